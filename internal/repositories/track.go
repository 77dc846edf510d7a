package repositories

import (
	"database/sql"
	"fmt"

	"github.com/andrsj/spotify-playlist-merger/internal/models"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
)

// trackColumns is the scan order shared by every track query.
const trackColumns = "track_id, name, artist, artist_id, album, album_id, release_date, duration_ms, popularity, explicit, isrc, added_at, source"

// TrackRepository persists fetched track occurrences. The store is a
// multiset: every fetched occurrence is its own row under a generated row id,
// and duplicate identities are kept on purpose for weight analysis.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// ReplaceSource atomically swaps all rows of one source for the given tracks.
// Delete and insert run in a single transaction, so a failed refresh leaves
// the previous rows intact.
func (r *TrackRepository) ReplaceSource(source string, tracks []models.Track) error {
	if source == "" {
		return fmt.Errorf("%w: source required", shared.ErrInvalidArgument)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tracks WHERE source = ?", source); err != nil {
		return fmt.Errorf("failed to clear source %s: %w", source, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO tracks (id, track_id, name, artist, artist_id, album, album_id, release_date, duration_ms, popularity, explicit, isrc, added_at, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, track := range tracks {
		if err := track.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		_, err := stmt.Exec(
			shared.GenerateID(),
			track.ID,
			track.Name,
			track.Artist,
			track.ArtistID,
			track.Album,
			track.AlbumID,
			track.ReleaseDate,
			track.DurationMS,
			track.Popularity,
			track.Explicit,
			track.ISRC,
			formatTime(track.AddedAt),
			source,
		)
		if err != nil {
			return fmt.Errorf("failed to insert track %s: %w", track.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit source replace: %w", err)
	}
	return nil
}

// Deduplicated returns one track per identity (track id, name, artist),
// keeping the most recent added_at. The non-identity columns come from the
// row that supplied that added_at. Ordered by name then artist.
func (r *TrackRepository) Deduplicated() ([]models.Track, error) {
	query := `
		SELECT track_id, name, artist, artist_id, album, album_id, release_date,
		       duration_ms, popularity, explicit, isrc, MAX(added_at) AS added_at, source
		FROM tracks
		GROUP BY track_id, name, artist
		ORDER BY name, artist
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query deduplicated tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// BySource returns every stored row for one source in insertion order.
func (r *TrackRepository) BySource(source string) ([]models.Track, error) {
	query := "SELECT " + trackColumns + " FROM tracks WHERE source = ? ORDER BY rowid"

	rows, err := r.db.Query(query, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks for %s: %w", source, err)
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// SourceCounts returns per-source row and unique-track counts, ordered by
// source name.
func (r *TrackRepository) SourceCounts() ([]SourceCount, error) {
	query := `
		SELECT source, COUNT(*) AS entries, COUNT(DISTINCT track_id) AS unique_tracks
		FROM tracks
		GROUP BY source
		ORDER BY source
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query source counts: %w", err)
	}
	defer rows.Close()

	var counts []SourceCount
	for rows.Next() {
		var c SourceCount
		if err := rows.Scan(&c.Source, &c.Entries, &c.UniqueTracks); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

// OverlapDistribution buckets identities by how many distinct sources they
// appear in.
func (r *TrackRepository) OverlapDistribution() ([]OverlapBucket, error) {
	query := `
		SELECT src_count, COUNT(*) AS identities
		FROM (
			SELECT COUNT(DISTINCT source) AS src_count
			FROM tracks
			GROUP BY track_id, name, artist
		)
		GROUP BY src_count
		ORDER BY src_count
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlap distribution: %w", err)
	}
	defer rows.Close()

	var buckets []OverlapBucket
	for rows.Next() {
		var b OverlapBucket
		if err := rows.Scan(&b.Sources, &b.Identities); err != nil {
			return nil, fmt.Errorf("failed to scan overlap bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return buckets, nil
}

// DuplicateWeights returns the heaviest identities: how many rows share each
// identity, with first and last added timestamps. Ordered by weight
// descending then name; limit <= 0 returns everything.
func (r *TrackRepository) DuplicateWeights(limit int) ([]DuplicateWeight, error) {
	query := `
		SELECT track_id, name, artist, COUNT(*) AS weight,
		       MIN(added_at) AS first_added, MAX(added_at) AS last_added
		FROM tracks
		GROUP BY track_id, name, artist
		ORDER BY weight DESC, name
	`

	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate weights: %w", err)
	}
	defer rows.Close()

	var weights []DuplicateWeight
	for rows.Next() {
		var (
			w           DuplicateWeight
			first, last string
		)
		if err := rows.Scan(&w.TrackID, &w.Name, &w.Artist, &w.Weight, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate weight: %w", err)
		}
		w.FirstAdded = parseTime(first)
		w.LastAdded = parseTime(last)
		weights = append(weights, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return weights, nil
}

// TopArtists returns the artists with the most distinct tracks. Ordered by
// unique tracks descending then artist; limit <= 0 returns everything.
func (r *TrackRepository) TopArtists(limit int) ([]ArtistCount, error) {
	query := `
		SELECT artist, artist_id, COUNT(DISTINCT track_id) AS unique_tracks, COUNT(*) AS total_entries
		FROM tracks
		GROUP BY artist, artist_id
		ORDER BY unique_tracks DESC, artist
	`

	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top artists: %w", err)
	}
	defer rows.Close()

	var artists []ArtistCount
	for rows.Next() {
		var a ArtistCount
		if err := rows.Scan(&a.Artist, &a.ArtistID, &a.UniqueTracks, &a.TotalEntries); err != nil {
			return nil, fmt.Errorf("failed to scan artist count: %w", err)
		}
		artists = append(artists, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return artists, nil
}

// YearDistribution returns distinct track counts by release year, newest
// first. Rows without a release date are excluded.
func (r *TrackRepository) YearDistribution() ([]YearCount, error) {
	query := `
		SELECT SUBSTR(release_date, 1, 4) AS year, COUNT(DISTINCT track_id) AS track_count
		FROM tracks
		WHERE release_date IS NOT NULL AND release_date != ''
		GROUP BY year
		ORDER BY year DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query year distribution: %w", err)
	}
	defer rows.Close()

	var years []YearCount
	for rows.Next() {
		var y YearCount
		if err := rows.Scan(&y.Year, &y.Tracks); err != nil {
			return nil, fmt.Errorf("failed to scan year count: %w", err)
		}
		years = append(years, y)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return years, nil
}

// Stats returns whole-store row, track, and identity counts.
func (r *TrackRepository) Stats() (*LibraryStats, error) {
	var stats LibraryStats

	if err := r.db.QueryRow("SELECT COUNT(*) FROM tracks").Scan(&stats.Entries); err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	if err := r.db.QueryRow("SELECT COUNT(DISTINCT track_id) FROM tracks").Scan(&stats.UniqueTracks); err != nil {
		return nil, fmt.Errorf("failed to count unique tracks: %w", err)
	}

	identityQuery := `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM tracks GROUP BY track_id, name, artist
		)
	`
	if err := r.db.QueryRow(identityQuery).Scan(&stats.UniqueIdentities); err != nil {
		return nil, fmt.Errorf("failed to count identities: %w", err)
	}

	return &stats, nil
}

// Totals aggregates the distinct-track view: unique track/artist/album
// counts, duration spread, average popularity, and explicit count. An empty
// store returns a zero struct.
func (r *TrackRepository) Totals() (*LibraryTotals, error) {
	var totals LibraryTotals

	if err := r.db.QueryRow("SELECT COUNT(DISTINCT track_id) FROM tracks").Scan(&totals.UniqueTracks); err != nil {
		return nil, fmt.Errorf("failed to count unique tracks: %w", err)
	}
	if totals.UniqueTracks == 0 {
		return &totals, nil
	}

	query := `
		SELECT COUNT(DISTINCT artist_id), COUNT(DISTINCT album_id),
		       SUM(duration_ms), AVG(duration_ms), MIN(duration_ms), MAX(duration_ms),
		       AVG(popularity),
		       SUM(CASE WHEN explicit THEN 1 ELSE 0 END)
		FROM (SELECT DISTINCT track_id, artist_id, album_id, duration_ms, popularity, explicit FROM tracks)
	`
	err := r.db.QueryRow(query).Scan(
		&totals.UniqueArtists,
		&totals.UniqueAlbums,
		&totals.TotalDurationMS,
		&totals.AvgDurationMS,
		&totals.MinDurationMS,
		&totals.MaxDurationMS,
		&totals.AvgPopularity,
		&totals.ExplicitTracks,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate library totals: %w", err)
	}
	return &totals, nil
}

// DistinctTrackIDs returns every distinct external track id in the store,
// ordered for deterministic enrichment batches.
func (r *TrackRepository) DistinctTrackIDs() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT track_id FROM tracks ORDER BY track_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query track ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// scanTrack reads one row in trackColumns order into a [models.Track].
func scanTrack(rows *sql.Rows) (models.Track, error) {
	var (
		track   models.Track
		addedAt string
	)
	err := rows.Scan(
		&track.ID,
		&track.Name,
		&track.Artist,
		&track.ArtistID,
		&track.Album,
		&track.AlbumID,
		&track.ReleaseDate,
		&track.DurationMS,
		&track.Popularity,
		&track.Explicit,
		&track.ISRC,
		&addedAt,
		&track.Source,
	)
	if err != nil {
		return models.Track{}, fmt.Errorf("failed to scan track: %w", err)
	}
	track.AddedAt = parseTime(addedAt)
	return track, nil
}
