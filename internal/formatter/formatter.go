// package formatter renders canonical-store data to export formats (CSV, Markdown)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/andrsj/spotify-playlist-merger/internal/models"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/andrsj/spotify-playlist-merger/internal/tasks"
)

// ExportTracksCSV converts tracks to CSV format with columns: ID, Name, Artist,
// Album, Release Date, Duration (ms), Popularity, Explicit, Added At, Source
func ExportTracksCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Artist", "Album", "Release Date", "Duration (ms)", "Popularity", "Explicit", "Added At", "Source"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			track.ID,
			track.Name,
			track.Artist,
			track.Album,
			track.ReleaseDate,
			strconv.Itoa(track.DurationMS),
			strconv.Itoa(track.Popularity),
			strconv.FormatBool(track.Explicit),
			track.AddedAt.UTC().Format(time.RFC3339),
			track.Source,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteTracksCSV writes the CSV rendition of tracks to path.
//
// Defaults to library_tracks.csv.
func WriteTracksCSV(tracks []models.Track, path string) (string, error) {
	if path == "" {
		path = "library_tracks.csv"
	}

	data, err := ExportTracksCSV(tracks)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return path, nil
}

// ReportMarkdown converts a library report to Markdown format
func ReportMarkdown(report *tasks.Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Library Report\n\n")
	buf.WriteString(fmt.Sprintf("Generated %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04 MST")))

	buf.WriteString(fmt.Sprintf("**Entries**: %d\n", report.Stats.Entries))
	buf.WriteString(fmt.Sprintf("**Unique tracks**: %d\n", report.Stats.UniqueTracks))
	buf.WriteString(fmt.Sprintf("**Unique identities**: %d\n\n", report.Stats.UniqueIdentities))

	buf.WriteString("## Sources\n\n")
	for _, src := range report.Sources {
		buf.WriteString(fmt.Sprintf("- %s: %d entries, %d unique\n", src.Source, src.Entries, src.UniqueTracks))
	}

	buf.WriteString("\n## Totals\n\n")
	totals := report.Totals
	buf.WriteString(fmt.Sprintf("**Artists**: %d\n", totals.UniqueArtists))
	buf.WriteString(fmt.Sprintf("**Albums**: %d\n", totals.UniqueAlbums))
	buf.WriteString(fmt.Sprintf("**Total duration**: %s\n", shared.FormatTotalDuration(int(totals.TotalDurationMS))))
	buf.WriteString(fmt.Sprintf("**Average length**: %s\n", shared.FormatDuration(int(totals.AvgDurationMS))))
	buf.WriteString(fmt.Sprintf("**Average popularity**: %.1f\n", totals.AvgPopularity))
	buf.WriteString(fmt.Sprintf("**Explicit tracks**: %d\n", totals.ExplicitTracks))

	if len(report.Overlap) > 0 {
		buf.WriteString("\n## Source Overlap\n\n")
		for _, bucket := range report.Overlap {
			buf.WriteString(fmt.Sprintf("- in %d source(s): %d tracks\n", bucket.Sources, bucket.Identities))
		}
	}

	if len(report.Duplicates) > 0 {
		buf.WriteString("\n## Top Duplicates\n\n")
		for i, dup := range report.Duplicates {
			buf.WriteString(fmt.Sprintf("%d. %s - %s (x%d)\n", i+1, dup.Artist, dup.Name, dup.Weight))
		}
	}

	if len(report.Artists) > 0 {
		buf.WriteString("\n## Top Artists\n\n")
		for i, artist := range report.Artists {
			buf.WriteString(fmt.Sprintf("%d. %s: %d tracks (%d entries)\n", i+1, artist.Artist, artist.UniqueTracks, artist.TotalEntries))
		}
	}

	if len(report.Years) > 0 {
		buf.WriteString("\n## Release Years\n\n")
		for _, year := range report.Years {
			buf.WriteString(fmt.Sprintf("- %s: %d\n", year.Year, year.Tracks))
		}
	}

	if report.Features != nil {
		buf.WriteString("\n## Audio Features\n\n")
		f := report.Features
		buf.WriteString(fmt.Sprintf("Averages over %d analyzed tracks:\n\n", f.Count))
		buf.WriteString(fmt.Sprintf("**Tempo**: %.1f BPM (%.0f-%.0f)\n", f.Tempo, f.MinTempo, f.MaxTempo))
		buf.WriteString(fmt.Sprintf("**Energy**: %.2f\n", f.Energy))
		buf.WriteString(fmt.Sprintf("**Danceability**: %.2f\n", f.Danceability))
		buf.WriteString(fmt.Sprintf("**Valence**: %.2f\n", f.Valence))
		buf.WriteString(fmt.Sprintf("**Acousticness**: %.2f\n", f.Acousticness))
	}

	return buf.Bytes(), nil
}

// WriteReportMarkdown writes the Markdown report to path.
//
// Defaults to library_report.md.
func WriteReportMarkdown(report *tasks.Report, path string) (string, error) {
	if path == "" {
		path = "library_report.md"
	}

	data, err := ReportMarkdown(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return path, nil
}
