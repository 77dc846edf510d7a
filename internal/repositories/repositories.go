package repositories

import (
	"time"
)

// SourceCount summarizes one ingestion source's stored rows.
type SourceCount struct {
	Source       string `json:"source"`
	Entries      int    `json:"entries"`
	UniqueTracks int    `json:"unique_tracks"`
}

// OverlapBucket counts identities appearing in exactly Sources distinct sources.
type OverlapBucket struct {
	Sources    int `json:"sources"`
	Identities int `json:"identities"`
}

// DuplicateWeight is one identity's duplication profile across the canonical
// store: how many rows share the identity and when they were first and last
// added.
type DuplicateWeight struct {
	TrackID    string    `json:"track_id"`
	Name       string    `json:"name"`
	Artist     string    `json:"artist"`
	Weight     int       `json:"weight"`
	FirstAdded time.Time `json:"first_added"`
	LastAdded  time.Time `json:"last_added"`
}

// ArtistCount summarizes one artist's presence in the store.
type ArtistCount struct {
	Artist       string `json:"artist"`
	ArtistID     string `json:"artist_id,omitempty"`
	UniqueTracks int    `json:"unique_tracks"`
	TotalEntries int    `json:"total_entries"`
}

// YearCount is the number of distinct tracks released in one year.
type YearCount struct {
	Year   string `json:"year"`
	Tracks int    `json:"tracks"`
}

// LibraryStats are the whole-store row and identity counts.
type LibraryStats struct {
	Entries          int `json:"entries"`
	UniqueTracks     int `json:"unique_tracks"`
	UniqueIdentities int `json:"unique_identities"`
}

// LibraryTotals aggregates the distinct-track view: unique counts, duration
// spread, popularity, and explicit share.
type LibraryTotals struct {
	UniqueTracks    int     `json:"unique_tracks"`
	UniqueArtists   int     `json:"unique_artists"`
	UniqueAlbums    int     `json:"unique_albums"`
	TotalDurationMS int64   `json:"total_duration_ms"`
	AvgDurationMS   float64 `json:"avg_duration_ms"`
	MinDurationMS   int     `json:"min_duration_ms"`
	MaxDurationMS   int     `json:"max_duration_ms"`
	AvgPopularity   float64 `json:"avg_popularity"`
	ExplicitTracks  int     `json:"explicit_tracks"`
}

// FeatureAverages aggregates the stored audio features.
type FeatureAverages struct {
	Tempo            float64 `json:"avg_tempo"`
	Energy           float64 `json:"avg_energy"`
	Danceability     float64 `json:"avg_danceability"`
	Valence          float64 `json:"avg_valence"`
	Acousticness     float64 `json:"avg_acousticness"`
	Instrumentalness float64 `json:"avg_instrumentalness"`
	Speechiness      float64 `json:"avg_speechiness"`
	Liveness         float64 `json:"avg_liveness"`
	MinTempo         float64 `json:"min_tempo"`
	MaxTempo         float64 `json:"max_tempo"`
	Count            int     `json:"tracks_with_features"`
}

// timeLayouts covers the formats timestamps come back in: RFC3339 as written
// by the repositories, and SQLite's CURRENT_TIMESTAMP format.
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05"}

// parseTime converts a stored timestamp string back to UTC time. Unparsable
// values yield the zero time rather than an error; added_at is optional data.
func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// formatTime normalizes a timestamp for storage. All values are written as
// UTC RFC3339 so lexicographic MIN/MAX aggregate chronologically.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
