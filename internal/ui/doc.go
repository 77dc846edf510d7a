// Package ui implements the interactive playlist picker using bubbletea's Elm
// architecture.
//
// The [Picker] renders the user's playlists as a multi-select list:
// space toggles the highlighted playlist, a toggles everything, enter confirms
// and q cancels. The caller reads the outcome through [Picker.Confirmed] and
// [Picker.Selected] after the program exits.
//
// Keyboard navigation uses vim-style bindings (j/k, space, enter, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
