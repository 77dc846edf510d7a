// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/andrsj/spotify-playlist-merger/internal/models"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
)

// MockService is a configurable test double for [services.Service]. Every call
// fails with Err when it is set.
type MockService struct {
	User      *models.User
	Playlists []models.Playlist
	Tracks    map[string][]models.Track
	Saved     []models.Track
	Err       error

	Created []models.Playlist
	Added   map[string][][]string
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) CurrentUser(ctx context.Context) (*models.User, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.User != nil {
		return m.User, nil
	}
	return &models.User{ID: "mock-user", DisplayName: "Mock User"}, nil
}

func (m *MockService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Playlists, nil
}

func (m *MockService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, pl := range m.Playlists {
		if pl.ID == playlistID {
			return &pl, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
}

func (m *MockService) PlaylistTracksPage(ctx context.Context, playlistID string, offset, limit int) (*models.TrackPage, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	items, ok := m.Tracks[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return &models.TrackPage{Items: slicePage(items, offset, limit), Total: len(items)}, nil
}

func (m *MockService) SavedTracksPage(ctx context.Context, offset, limit int) (*models.TrackPage, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &models.TrackPage{Items: slicePage(m.Saved, offset, limit), Total: len(m.Saved)}, nil
}

func (m *MockService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	pl := models.Playlist{
		ID:          fmt.Sprintf("mock-playlist-%d", len(m.Created)+1),
		Name:        name,
		Description: description,
	}
	m.Created = append(m.Created, pl)
	return &pl, nil
}

func (m *MockService) AddPlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	if m.Err != nil {
		return m.Err
	}
	if m.Added == nil {
		m.Added = make(map[string][][]string)
	}
	m.Added[playlistID] = append(m.Added[playlistID], append([]string(nil), uris...))
	return nil
}

func (m *MockService) AudioFeatures(ctx context.Context, trackIDs []string) ([]models.AudioFeatures, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	features := make([]models.AudioFeatures, len(trackIDs))
	for i, id := range trackIDs {
		features[i] = models.AudioFeatures{TrackID: id, Tempo: 120, Energy: 0.5, Danceability: 0.5}
	}
	return features, nil
}

func slicePage(items []models.Track, offset, limit int) []models.Track {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
