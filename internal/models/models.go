package models

import (
	"fmt"
	"strings"
	"time"
)

// TrackURIPrefix is the URI scheme the write API expects for track ids.
const TrackURIPrefix = "spotify:track:"

// Track is one fetched occurrence of a song inside a source collection.
// The same song appearing in three playlists yields three Track values with
// three Source tags. JSON tags serve the checkpoint buffers and --json output.
type Track struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Artist      string    `json:"artist"`
	ArtistID    string    `json:"artist_id,omitempty"`
	Album       string    `json:"album,omitempty"`
	AlbumID     string    `json:"album_id,omitempty"`
	ReleaseDate string    `json:"release_date,omitempty"`
	DurationMS  int       `json:"duration_ms"`
	Popularity  int       `json:"popularity"`
	Explicit    bool      `json:"explicit"`
	ISRC        string    `json:"isrc,omitempty"`
	AddedAt     time.Time `json:"added_at"`
	Source      string    `json:"source,omitempty"`
}

// Validate checks that the track carries the external identifier every
// downstream stage keys on.
func (t Track) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("track missing external id")
	}
	return nil
}

// Identity returns the dedup identity tuple for this track.
func (t Track) Identity() Identity {
	return Identity{ID: t.ID, Name: t.Name, Artist: t.Artist}
}

// URI returns the track id in URI form, passing through ids already prefixed.
func (t Track) URI() string {
	return TrackURI(t.ID)
}

// TrackURI converts a bare track id to URI form.
func TrackURI(id string) string {
	if strings.HasPrefix(id, TrackURIPrefix) {
		return id
	}
	return TrackURIPrefix + id
}

// Identity is the exact tuple two tracks must share to count as duplicates:
// external id, display name, and primary-artist name. Differing remasters or
// re-releases of the same recording keep distinct identities on purpose.
type Identity struct {
	ID     string
	Name   string
	Artist string
}

// TrackPage is one page of a paginated track read, carrying the collection
// total the remote reports alongside every page.
type TrackPage struct {
	Items []Track
	Total int
}

// Playlist represents a remote playlist's metadata.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
	Owner       string `json:"owner,omitempty"`
}

// PlaylistPage is one page of a paginated playlist listing.
type PlaylistPage struct {
	Items []Playlist
	Total int
}

// User identifies the authenticated account playlists are created under.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// AudioFeatures holds the optional per-track enrichment attributes, keyed
// uniquely by the external track id.
type AudioFeatures struct {
	TrackID          string  `json:"track_id"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              int     `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	DurationMS       int     `json:"duration_ms"`
	TimeSignature    int     `json:"time_signature"`
}
