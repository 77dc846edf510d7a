package main

import (
	"context"
	"fmt"

	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/andrsj/spotify-playlist-merger/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Features fills the audio_features table for stored track ids. Already
// enriched ids are skipped, so an interrupted run picks up where it stopped.
func (r *Runner) Features(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if r.engine == nil {
		return fmt.Errorf("%w: canonical store not initialized (run 'merger setup' first)", shared.ErrServiceUnavailable)
	}
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	r.logger.Info("starting audio features enrichment")

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go r.consumeProgress(progressCh, done)

	result, err := r.engine.EnrichFeatures(ctx, progressCh)
	if err != nil {
		if reauthed, authErr := r.handleAuthError(ctx, err, cmd); reauthed && authErr == nil {
			result, err = r.engine.EnrichFeatures(ctx, progressCh)
		} else if reauthed {
			err = authErr
		}
	}
	close(progressCh)
	<-done

	if err != nil {
		if result != nil && result.Fetched > 0 {
			r.writePlain("\n⚠ Enrichment interrupted after %d track(s). Stored rows are kept; run again to continue.\n", result.Fetched)
		}
		return err
	}

	if useJSON {
		return r.writeJSON(result, pretty)
	}

	r.writePlain("✓ Audio features: %d tracked, %d already stored, %d fetched\n", result.Tracked, result.Skipped, result.Fetched)

	return nil
}
