package main

import (
	"context"
	"fmt"

	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/andrsj/spotify-playlist-merger/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Merge consolidates the deduplicated library into merged playlist(s) on the
// account. Without --yes the plan is shown and confirmed first; --dry-run
// stops after the plan. An interrupted merge resumes into the same playlists.
func (r *Runner) Merge(ctx context.Context, cmd *cli.Command) error {
	name := cmd.String("name")
	dryRun := cmd.Bool("dry-run")
	yes := cmd.Bool("yes")
	refresh := cmd.Bool("refresh")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if r.engine == nil {
		return fmt.Errorf("%w: canonical store not initialized (run 'merger setup' first)", shared.ErrServiceUnavailable)
	}

	plan, err := r.engine.Plan(name)
	if err != nil {
		return err
	}

	if dryRun {
		if useJSON {
			return r.writeJSON(plan, pretty)
		}
		r.renderPlan(plan)
		return nil
	}

	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	r.renderPlan(plan)

	if !yes {
		confirmed, err := r.confirm("Proceed with merge?")
		if err != nil {
			return err
		}
		if !confirmed {
			r.writePlain("Aborted.\n")
			return nil
		}
	}

	r.logger.Info("starting merge", "name", plan.Name, "parts", len(plan.Parts), "refresh", refresh)
	r.writePlain("\n")

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go r.consumeProgress(progressCh, done)

	result, err := r.engine.Merge(ctx, progressCh, name, refresh)
	if err != nil {
		if reauthed, authErr := r.handleAuthError(ctx, err, cmd); reauthed && authErr == nil {
			result, err = r.engine.Merge(ctx, progressCh, name, refresh)
		} else if reauthed {
			err = authErr
		}
	}
	close(progressCh)
	<-done

	if err != nil {
		if result != nil && result.Written > 0 {
			r.writePlain("\n⚠ Merge interrupted after %d track(s). Run again to resume into the same playlist(s).\n", result.Written)
		}
		return err
	}

	if useJSON {
		return r.writeJSON(result, pretty)
	}

	r.writePlain("\n")
	r.writePlainHeader("Merge Complete!")
	if result.Replayed {
		r.writePlain("(already completed; replayed without remote calls)\n")
	}
	for _, target := range result.Targets {
		r.writePlain("✓ %s (ID: %s): %d tracks\n", target.Name, target.ID, target.Tracks)
	}
	r.writePlain("Tracks written: %d\n", result.Written)

	return nil
}

func (r *Runner) renderPlan(plan *tasks.MergePlan) {
	r.writePlainHeader("Merge Plan")
	r.writePlain("Name: %s\n", plan.Name)
	r.writePlain("Sources: %d\n", len(plan.Sources))
	r.writePlain("Entries: %d\n", plan.Entries)
	r.writePlain("Unique tracks: %d\n", plan.Unique)
	r.writePlain("Duplicates removed: %d (%.1f%% reduction)\n", plan.Removed, plan.Reduction)
	if len(plan.Parts) > 1 {
		r.writePlain("Playlists required (limit %d per playlist):\n", plan.Limit)
		for _, part := range plan.Parts {
			r.writePlain("  %s: %d tracks\n", part.Name, part.Tracks)
		}
	}
}
