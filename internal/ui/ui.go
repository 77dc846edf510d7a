package ui

import (
	"fmt"

	"github.com/andrsj/spotify-playlist-merger/internal/models"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// Picker is a multi-select playlist list. Space toggles the highlighted
// playlist, enter confirms the selection, q cancels.
type Picker struct {
	list      list.Model
	confirmed bool
	width     int
	height    int
	help      help.Model
	keys      keyMap
}

// NewPicker creates a picker over the given playlists, none selected.
func NewPicker(playlists []models.Playlist) *Picker {
	items := make([]list.Item, len(playlists))
	for i, pl := range playlists {
		items[i] = sourceItem{playlist: pl}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select Source Playlists"
	l.Styles.Title = styles.title
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return &Picker{
		list: l,
		help: help.New(),
		keys: newKeyMap(),
	}
}

// Init implements tea.Model.
func (m *Picker) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the picker state.
func (m *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case " ":
			return m, m.toggleCurrent()
		case "a":
			return m, m.toggleAll()
		case "enter":
			m.confirmed = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list with contextual help.
func (m *Picker) View() string {
	status := fmt.Sprintf("%d of %d selected", len(m.Selected()), len(m.list.Items()))

	helpKeys := []key.Binding{m.keys.toggle, m.keys.all, m.keys.confirm, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n\n%s", m.list.View(), styles.help.Render(status), helpView)
}

// Confirmed reports whether the user confirmed the selection rather than
// cancelling out.
func (m *Picker) Confirmed() bool {
	return m.confirmed
}

// Selected returns the checked playlists in list order.
func (m *Picker) Selected() []models.Playlist {
	var selected []models.Playlist
	for _, item := range m.list.Items() {
		if src, ok := item.(sourceItem); ok && src.checked {
			selected = append(selected, src.playlist)
		}
	}
	return selected
}

func (m *Picker) toggleCurrent() tea.Cmd {
	item, ok := m.list.SelectedItem().(sourceItem)
	if !ok {
		return nil
	}
	item.checked = !item.checked
	return m.list.SetItem(m.list.Index(), item)
}

// toggleAll checks every playlist, or clears them all when everything is
// already checked.
func (m *Picker) toggleAll() tea.Cmd {
	items := m.list.Items()
	allChecked := len(items) > 0
	for _, item := range items {
		if src, ok := item.(sourceItem); ok && !src.checked {
			allChecked = false
			break
		}
	}

	next := make([]list.Item, len(items))
	for i, item := range items {
		src, ok := item.(sourceItem)
		if !ok {
			next[i] = item
			continue
		}
		src.checked = !allChecked
		next[i] = src
	}
	return m.list.SetItems(next)
}
