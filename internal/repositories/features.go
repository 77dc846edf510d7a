package repositories

import (
	"database/sql"
	"fmt"

	"github.com/andrsj/spotify-playlist-merger/internal/models"
)

// AudioFeatureRepository persists per-track audio features, keyed uniquely by
// the external track id. Stored rows double as the enrichment job's resume
// marker: ids already present are never refetched.
type AudioFeatureRepository struct {
	db *sql.DB
}

// NewAudioFeatureRepository creates a new AudioFeatureRepository with the given database connection
func NewAudioFeatureRepository(db *sql.DB) *AudioFeatureRepository {
	return &AudioFeatureRepository{db: db}
}

// UpsertBatch writes a batch of features in one transaction, replacing any
// existing rows for the same track ids.
func (r *AudioFeatureRepository) UpsertBatch(features []models.AudioFeatures) error {
	if len(features) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO audio_features
			(track_id, danceability, energy, key, loudness, mode, speechiness,
			 acousticness, instrumentalness, liveness, valence, tempo, duration_ms, time_signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, f := range features {
		if f.TrackID == "" {
			continue
		}
		_, err := stmt.Exec(
			f.TrackID,
			f.Danceability,
			f.Energy,
			f.Key,
			f.Loudness,
			f.Mode,
			f.Speechiness,
			f.Acousticness,
			f.Instrumentalness,
			f.Liveness,
			f.Valence,
			f.Tempo,
			f.DurationMS,
			f.TimeSignature,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert features for %s: %w", f.TrackID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feature batch: %w", err)
	}
	return nil
}

// StoredIDs returns the set of track ids that already have features.
func (r *AudioFeatureRepository) StoredIDs() (map[string]struct{}, error) {
	rows, err := r.db.Query("SELECT track_id FROM audio_features")
	if err != nil {
		return nil, fmt.Errorf("failed to query stored feature ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan feature id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// Count returns how many tracks have stored features.
func (r *AudioFeatureRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM audio_features").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count features: %w", err)
	}
	return count, nil
}

// Averages aggregates the stored features. Returns a zero-count result when
// nothing is stored yet.
func (r *AudioFeatureRepository) Averages() (*FeatureAverages, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM audio_features").Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count features: %w", err)
	}
	if count == 0 {
		return &FeatureAverages{}, nil
	}

	query := `
		SELECT AVG(tempo), AVG(energy), AVG(danceability), AVG(valence),
		       AVG(acousticness), AVG(instrumentalness), AVG(speechiness), AVG(liveness),
		       MIN(tempo), MAX(tempo), COUNT(*)
		FROM audio_features
	`

	var avg FeatureAverages
	err := r.db.QueryRow(query).Scan(
		&avg.Tempo,
		&avg.Energy,
		&avg.Danceability,
		&avg.Valence,
		&avg.Acousticness,
		&avg.Instrumentalness,
		&avg.Speechiness,
		&avg.Liveness,
		&avg.MinTempo,
		&avg.MaxTempo,
		&avg.Count,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate features: %w", err)
	}
	return &avg, nil
}
