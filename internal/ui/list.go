package ui

import (
	"fmt"

	"github.com/andrsj/spotify-playlist-merger/internal/models"
	"github.com/charmbracelet/bubbles/list"
)

var (
	_ list.Item = sourceItem{}
)

// sourceItem wraps [models.Playlist] with a selection mark to implement
// [list.Item].
type sourceItem struct {
	playlist models.Playlist
	checked  bool
}

func (i sourceItem) FilterValue() string { return i.playlist.Name }

func (i sourceItem) Title() string {
	mark := "[ ]"
	if i.checked {
		mark = "[x]"
	}
	return fmt.Sprintf("%s %s", mark, i.playlist.Name)
}

func (i sourceItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	if i.playlist.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Description)
	}
	return desc
}
