package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/andrsj/spotify-playlist-merger/internal/models"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/andrsj/spotify-playlist-merger/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

// Playlists lists the account's playlists, or with --pick runs the
// interactive source picker.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	limit := int(cmd.Int("limit"))
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")
	pick := cmd.Bool("pick")
	listPath := cmd.String("file")

	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	r.logger.Infof("listing spotify playlists with limit %v", limit)

	playlists, err := r.spotify.GetPlaylists(ctx)
	if err != nil {
		if reauthed, authErr := r.handleAuthError(ctx, err, cmd); reauthed {
			if authErr != nil {
				return authErr
			}
			if playlists, err = r.spotify.GetPlaylists(ctx); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
			}
		} else {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	if pick {
		return r.pickSources(playlists, listPath)
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if useJSON {
		return r.writeJSON(playlists, pretty)
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		if p.Public {
			r.writePlain("   Visibility: Public\n")
		} else {
			r.writePlain("   Visibility: Private\n")
		}
		r.writePlain("\n")
	}

	return nil
}

// pickSources runs the multi-select picker over playlists and writes the
// chosen ids to the source list file.
func (r *Runner) pickSources(playlists []models.Playlist, listPath string) error {
	if len(playlists) == 0 {
		r.writePlain("No playlists to pick from.\n")
		return nil
	}

	// Redirect logs to a file while the picker owns the terminal
	fileLogger, err := shared.NewFileLogger("./tmp/merger-picker.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	p := tea.NewProgram(ui.NewPicker(playlists))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("error running picker: %w", err)
	}

	picker, ok := final.(*ui.Picker)
	if !ok || !picker.Confirmed() {
		r.writePlain("Selection cancelled.\n")
		return nil
	}

	selected := picker.Selected()
	if len(selected) == 0 {
		r.writePlain("Nothing selected.\n")
		return nil
	}

	var b strings.Builder
	b.WriteString("# merger source list\n")
	for _, pl := range selected {
		fmt.Fprintf(&b, "# %s (%d tracks)\n%s\n", pl.Name, pl.TrackCount, pl.ID)
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write source list: %w", err)
	}

	r.writePlain("✓ Wrote %d source(s) to %s\n", len(selected), listPath)
	r.writePlain("Next: merger ingest --file %s\n", listPath)

	return nil
}
