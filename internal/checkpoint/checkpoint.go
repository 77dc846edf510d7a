package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/charmbracelet/log"
)

// Checkpoint is the durable progress marker for one job. Cursor is the next
// page offset for fetch jobs and the count of ids already written for write
// jobs. Fetch jobs additionally persist the collection Total probed at
// fresh-run start and the raw Items buffered so far.
type Checkpoint struct {
	Cursor    int             `json:"cursor"`
	Total     int             `json:"total,omitempty"`
	Complete  bool            `json:"complete"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	Items     json.RawMessage `json:"items,omitempty"`
}

// SetItems marshals v into the checkpoint's item buffer.
func (c *Checkpoint) SetItems(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint items: %w", err)
	}
	c.Items = data
	return nil
}

// DecodeItems unmarshals the buffered items into v. A checkpoint without
// items leaves v untouched.
func (c *Checkpoint) DecodeItems(v any) error {
	if len(c.Items) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Items, v); err != nil {
		return fmt.Errorf("failed to decode checkpoint items: %w", err)
	}
	return nil
}

// FetchKey returns the job key for a paginated fetch of the given collection.
func FetchKey(collectionID string) string {
	return "fetch:" + collectionID
}

// WriteKey returns the job key for a batched write to the given collection.
func WriteKey(collectionID string) string {
	return "write:" + collectionID
}

// MergeKey returns the job key for a merge plan with the given slug.
func MergeKey(slug string) string {
	return "merge:" + slug
}

// Store persists one JSON checkpoint file per job key under a directory.
// Saves replace the file atomically; concurrent writers are not coordinated,
// the last completed save wins.
type Store struct {
	dir    string
	logger *log.Logger
}

// NewStore creates the checkpoint directory if needed and returns a store.
func NewStore(dir string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Path returns the file path backing the given job key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".json")
}

// Load reads the checkpoint for key. A job that has never checkpointed
// returns (nil, nil).
func (s *Store) Load(key string) (*Checkpoint, error) {
	file, err := os.Open(s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open %s: %v", shared.ErrCheckpoint, key, err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", shared.ErrCheckpoint, key, err)
	}

	return &cp, nil
}

// Save stamps UpdatedAt and atomically replaces the checkpoint file for key:
// the data lands in a temp file which is synced, closed, and renamed over the
// old checkpoint, so a crash mid-save never leaves a torn file behind.
func (s *Store) Save(key string, cp *Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()

	path := s.Path(key)
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", shared.ErrCheckpoint, key, err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("%w: encode %s: %v", shared.ErrCheckpoint, key, err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("%w: sync %s: %v", shared.ErrCheckpoint, key, err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("%w: close %s: %v", shared.ErrCheckpoint, key, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("%w: replace %s: %v", shared.ErrCheckpoint, key, err)
	}

	s.logger.Debug("checkpoint saved", "key", key, "cursor", cp.Cursor, "complete", cp.Complete)
	return nil
}

// Delete removes the checkpoint for key. A missing file is not an error.
func (s *Store) Delete(key string) error {
	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: delete %s: %v", shared.ErrCheckpoint, key, err)
	}
	s.logger.Debug("checkpoint deleted", "key", key)
	return nil
}

// sanitizeKey maps a job key to a safe file name. Job keys carry a kind
// prefix separated by a colon, which some filesystems reject.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}
