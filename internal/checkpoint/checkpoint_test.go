package checkpoint

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andrsj/spotify-playlist-merger/internal/shared"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "checkpoints"), shared.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestStore(t *testing.T) {
	t.Run("Load returns nil for a job that never checkpointed", func(t *testing.T) {
		store := newTestStore(t)

		cp, err := store.Load(FetchKey("fresh"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cp != nil {
			t.Errorf("expected nil checkpoint, got %+v", cp)
		}
	})

	t.Run("Save and Load roundtrip", func(t *testing.T) {
		store := newTestStore(t)
		key := FetchKey("37i9dQZF1DXcBWIGoYBM5M")

		before := time.Now().UTC().Add(-time.Second)
		cp := &Checkpoint{Cursor: 200, Total: 250, Error: "connection reset"}
		if err := cp.SetItems([]string{"a", "b"}); err != nil {
			t.Fatalf("failed to set items: %v", err)
		}
		if err := store.Save(key, cp); err != nil {
			t.Fatalf("failed to save checkpoint: %v", err)
		}

		loaded, err := store.Load(key)
		if err != nil {
			t.Fatalf("failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("expected checkpoint, got nil")
		}
		if loaded.Cursor != 200 || loaded.Total != 250 {
			t.Errorf("unexpected cursor/total: %d/%d", loaded.Cursor, loaded.Total)
		}
		if loaded.Complete {
			t.Error("expected incomplete checkpoint")
		}
		if loaded.Error != "connection reset" {
			t.Errorf("expected persisted error message, got %q", loaded.Error)
		}
		if loaded.UpdatedAt.Before(before) {
			t.Errorf("expected UpdatedAt to be stamped on save, got %v", loaded.UpdatedAt)
		}

		var items []string
		if err := loaded.DecodeItems(&items); err != nil {
			t.Fatalf("failed to decode items: %v", err)
		}
		if len(items) != 2 || items[0] != "a" || items[1] != "b" {
			t.Errorf("unexpected items: %v", items)
		}
	})

	t.Run("last save wins", func(t *testing.T) {
		store := newTestStore(t)
		key := WriteKey("target")

		if err := store.Save(key, &Checkpoint{Cursor: 100}); err != nil {
			t.Fatalf("failed to save first checkpoint: %v", err)
		}
		if err := store.Save(key, &Checkpoint{Cursor: 200, Complete: true}); err != nil {
			t.Fatalf("failed to save second checkpoint: %v", err)
		}

		loaded, err := store.Load(key)
		if err != nil {
			t.Fatalf("failed to load checkpoint: %v", err)
		}
		if loaded.Cursor != 200 || !loaded.Complete {
			t.Errorf("expected the second save, got %+v", loaded)
		}
	})

	t.Run("save leaves no temp file behind", func(t *testing.T) {
		store := newTestStore(t)
		key := FetchKey("tidy")

		if err := store.Save(key, &Checkpoint{Cursor: 1}); err != nil {
			t.Fatalf("failed to save checkpoint: %v", err)
		}

		entries, err := os.ReadDir(filepath.Dir(store.Path(key)))
		if err != nil {
			t.Fatalf("failed to read checkpoint dir: %v", err)
		}
		for _, entry := range entries {
			if strings.HasSuffix(entry.Name(), ".tmp") {
				t.Errorf("temp file left behind: %s", entry.Name())
			}
		}
	})

	t.Run("Delete removes the checkpoint and tolerates absence", func(t *testing.T) {
		store := newTestStore(t)
		key := FetchKey("gone")

		if err := store.Save(key, &Checkpoint{Cursor: 5}); err != nil {
			t.Fatalf("failed to save checkpoint: %v", err)
		}
		if err := store.Delete(key); err != nil {
			t.Fatalf("failed to delete checkpoint: %v", err)
		}

		cp, err := store.Load(key)
		if err != nil {
			t.Fatalf("unexpected load error: %v", err)
		}
		if cp != nil {
			t.Errorf("expected checkpoint gone, got %+v", cp)
		}

		if err := store.Delete(key); err != nil {
			t.Errorf("deleting an absent checkpoint should succeed, got %v", err)
		}
	})

	t.Run("corrupt checkpoint surfaces an error", func(t *testing.T) {
		store := newTestStore(t)
		key := FetchKey("corrupt")

		if err := os.WriteFile(store.Path(key), []byte("{not json"), 0644); err != nil {
			t.Fatalf("failed to plant corrupt file: %v", err)
		}

		if _, err := store.Load(key); err == nil {
			t.Error("expected decode error for corrupt checkpoint")
		}
	})

	t.Run("keys with separators map to safe file names", func(t *testing.T) {
		store := newTestStore(t)

		keys := []string{FetchKey("abc/../../etc"), WriteKey("id:with:colons"), MergeKey("plan name")}
		for _, key := range keys {
			if err := store.Save(key, &Checkpoint{Cursor: 1}); err != nil {
				t.Fatalf("failed to save %q: %v", key, err)
			}

			path := store.Path(key)
			if filepath.Dir(path) != filepath.Dir(store.Path("plain")) {
				t.Errorf("key %q escaped the checkpoint directory: %s", key, path)
			}

			loaded, err := store.Load(key)
			if err != nil || loaded == nil {
				t.Errorf("failed to load %q back: %v", key, err)
			}
		}
	})
}

func TestJobKeys(t *testing.T) {
	tc := []struct {
		name string
		got  string
		want string
	}{
		{name: "fetch", got: FetchKey("p1"), want: "fetch:p1"},
		{name: "write", got: WriteKey("p2"), want: "write:p2"},
		{name: "merge", got: MergeKey("merged-library"), want: "merge:merged-library"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got)
			}
		})
	}
}
