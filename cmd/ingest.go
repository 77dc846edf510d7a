package main

import (
	"context"
	"fmt"

	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/andrsj/spotify-playlist-merger/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Ingest fetches the configured sources into the canonical store. Sources
// come from the source list file plus any --id flags; --liked adds the saved
// tracks library. Interrupted runs resume from their checkpoints.
func (r *Runner) Ingest(ctx context.Context, cmd *cli.Command) error {
	listPath := cmd.String("file")
	liked := cmd.Bool("liked")
	refresh := cmd.Bool("refresh")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if r.engine == nil {
		return fmt.Errorf("%w: canonical store not initialized (run 'merger setup' first)", shared.ErrServiceUnavailable)
	}
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	var sources []string
	for _, raw := range cmd.StringSlice("id") {
		sources = append(sources, shared.ExtractPlaylistID(raw))
	}

	// A missing default file is fine as long as --id or --liked cover the
	// run; an explicitly named file has to exist.
	fromFile, err := shared.ReadSourceList(listPath)
	switch {
	case err == nil:
		sources = append(fromFile, sources...)
	case cmd.IsSet("file") || (len(sources) == 0 && !liked):
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	if len(sources) == 0 && !liked {
		return fmt.Errorf("%w: source list %s is empty", shared.ErrInvalidInput, listPath)
	}

	total := len(sources)
	if liked {
		total++
	}

	r.logger.Info("starting ingest", "sources", total, "refresh", refresh)
	r.writePlain("Ingesting %d source(s) into the canonical store...\n\n", total)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go r.consumeProgress(progressCh, done)
	finish := func() {
		close(progressCh)
		<-done
	}

	result := &tasks.IngestResult{}

	if len(sources) > 0 {
		ingested, err := r.engine.Ingest(ctx, progressCh, sources, refresh)
		if err != nil {
			if reauthed, authErr := r.handleAuthError(ctx, err, cmd); reauthed && authErr == nil {
				ingested, err = r.engine.Ingest(ctx, progressCh, sources, refresh)
			} else if reauthed {
				err = authErr
			}
		}
		if ingested != nil {
			result.Sources = append(result.Sources, ingested.Sources...)
			result.Total += ingested.Total
		}
		if err != nil {
			finish()
			r.reportPartialIngest(result)
			return err
		}
	}

	if liked {
		likedIngest, err := r.engine.IngestLiked(ctx, progressCh, refresh)
		if err != nil {
			if reauthed, authErr := r.handleAuthError(ctx, err, cmd); reauthed && authErr == nil {
				likedIngest, err = r.engine.IngestLiked(ctx, progressCh, refresh)
			} else if reauthed {
				err = authErr
			}
		}
		if likedIngest != nil {
			result.Sources = append(result.Sources, *likedIngest)
			result.Total += likedIngest.Tracks
		}
		if err != nil {
			finish()
			r.reportPartialIngest(result)
			return err
		}
	}

	finish()

	if useJSON {
		return r.writeJSON(result, pretty)
	}

	r.writePlain("\n")
	r.writePlainHeader("Ingest Complete!")
	for _, src := range result.Sources {
		marker := "✓"
		if src.Replayed {
			marker = "↻"
		}
		name := src.Name
		if name == "" {
			name = src.Source
		}
		r.writePlain("%s %s: %d tracks\n", marker, name, src.Tracks)
	}
	r.writePlain("Total entries stored: %d\n", result.Total)

	return nil
}

// reportPartialIngest notes how far an interrupted ingest got.
func (r *Runner) reportPartialIngest(result *tasks.IngestResult) {
	if result == nil || len(result.Sources) == 0 {
		return
	}
	r.writePlain("\n⚠ Ingest interrupted: %d source(s) stored (%d entries). Run again to resume.\n", len(result.Sources), result.Total)
}
