package main

import (
	"context"
	"fmt"

	"github.com/andrsj/spotify-playlist-merger/internal/formatter"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/andrsj/spotify-playlist-merger/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Report analyzes the canonical store and renders the library report. The
// command makes no remote calls.
func (r *Runner) Report(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")
	csvPath := cmd.String("csv")
	mdPath := cmd.String("md")

	if r.engine == nil {
		return fmt.Errorf("%w: canonical store not initialized (run 'merger setup' first)", shared.ErrServiceUnavailable)
	}

	r.logger.Info("building library report")

	report, err := r.engine.Report()
	if err != nil {
		return err
	}

	if csvPath != "" {
		tracks, err := r.tracks.Deduplicated()
		if err != nil {
			return err
		}
		path, err := formatter.WriteTracksCSV(tracks, csvPath)
		if err != nil {
			return err
		}
		r.writePlain("✓ Deduplicated tracks exported to %s\n", path)
	}

	if mdPath != "" {
		path, err := formatter.WriteReportMarkdown(report, mdPath)
		if err != nil {
			return err
		}
		r.writePlain("✓ Report written to %s\n", path)
	}

	if useJSON {
		return r.writeJSON(report, pretty)
	}

	r.renderReport(report)
	return nil
}

func (r *Runner) renderReport(report *tasks.Report) {
	r.writePlainHeader("Library Report")

	if stats := report.Stats; stats != nil {
		r.writePlain("Entries: %d\n", stats.Entries)
		r.writePlain("Unique tracks: %d\n", stats.UniqueTracks)
		r.writePlain("Unique identities: %d\n", stats.UniqueIdentities)
	}

	if len(report.Sources) > 0 {
		r.writePlainln("Sources:")
		for _, src := range report.Sources {
			r.writePlain("  %s: %d entries, %d unique\n", src.Source, src.Entries, src.UniqueTracks)
		}
	}

	if t := report.Totals; t != nil {
		r.writePlainln("Totals:")
		r.writePlain("  Artists: %d  Albums: %d\n", t.UniqueArtists, t.UniqueAlbums)
		r.writePlain("  Total duration: %s\n", shared.FormatTotalDuration(int(t.TotalDurationMS)))
		r.writePlain("  Average length: %s (%s - %s)\n",
			shared.FormatDuration(int(t.AvgDurationMS)),
			shared.FormatDuration(t.MinDurationMS),
			shared.FormatDuration(t.MaxDurationMS))
		r.writePlain("  Average popularity: %.1f\n", t.AvgPopularity)
		r.writePlain("  Explicit tracks: %d\n", t.ExplicitTracks)
	}

	if len(report.Overlap) > 0 {
		r.writePlainln("Source overlap:")
		for _, bucket := range report.Overlap {
			r.writePlain("  in %d source(s): %d tracks\n", bucket.Sources, bucket.Identities)
		}
	}

	if len(report.Duplicates) > 0 {
		r.writePlainln("Top duplicates:")
		for i, dup := range report.Duplicates {
			r.writePlain("  %d. %s - %s (x%d)\n", i+1, dup.Artist, dup.Name, dup.Weight)
		}
	}

	if len(report.Artists) > 0 {
		r.writePlainln("Top artists:")
		for i, artist := range report.Artists {
			r.writePlain("  %d. %s: %d tracks (%d entries)\n", i+1, artist.Artist, artist.UniqueTracks, artist.TotalEntries)
		}
	}

	if len(report.Years) > 0 {
		r.writePlainln("Release years:")
		for _, year := range report.Years {
			r.writePlain("  %s: %d\n", year.Year, year.Tracks)
		}
	}

	if f := report.Features; f != nil && f.Count > 0 {
		r.writePlainln("Audio features (averages over %d tracks):", f.Count)
		r.writePlain("  Tempo: %.1f BPM (%.0f - %.0f)\n", f.Tempo, f.MinTempo, f.MaxTempo)
		r.writePlain("  Energy: %.2f  Danceability: %.2f  Valence: %.2f\n", f.Energy, f.Danceability, f.Valence)
		r.writePlain("  Acousticness: %.2f  Speechiness: %.2f  Liveness: %.2f\n", f.Acousticness, f.Speechiness, f.Liveness)
	}
}
