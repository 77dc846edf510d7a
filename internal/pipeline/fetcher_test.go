package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"testing"

	"github.com/andrsj/spotify-playlist-merger/internal/checkpoint"
	"github.com/andrsj/spotify-playlist-merger/internal/retry"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
)

// pagedSource fakes an offset-paged remote collection and records every call.
type pagedSource struct {
	items   []string
	offsets []int
	limits  []int
	failAt  int // offset that fails, -1 for never
	err     error
}

func newPagedSource(n int) *pagedSource {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf("track-%03d", i)
	}
	return &pagedSource{items: items, failAt: -1}
}

func (s *pagedSource) page(_ context.Context, offset, limit int) ([]string, int, error) {
	s.offsets = append(s.offsets, offset)
	s.limits = append(s.limits, limit)
	if s.failAt >= 0 && offset == s.failAt {
		return nil, 0, s.err
	}
	end := offset + limit
	if end > len(s.items) {
		end = len(s.items)
	}
	if offset > len(s.items) {
		offset = len(s.items)
	}
	return s.items[offset:end], len(s.items), nil
}

func newTestStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	store, err := checkpoint.NewStore(t.TempDir(), shared.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("failed to create checkpoint store: %v", err)
	}
	return store
}

func TestFetcher(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(io.Discard)
	policy := retry.NewPolicy(1, logger)

	t.Run("fresh run probes once and pages to completion", func(t *testing.T) {
		store := newTestStore(t)
		source := newPagedSource(250)
		key := checkpoint.FetchKey("fresh")

		var progress [][2]int
		f := NewFetcher[string](store, policy, logger)
		f.SetProgress(func(done, total int) {
			progress = append(progress, [2]int{done, total})
		})

		got, err := f.Fetch(ctx, key, 100, source.page)
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if len(got) != 250 {
			t.Fatalf("expected 250 items, got %d", len(got))
		}
		if got[0] != "track-000" || got[249] != "track-249" {
			t.Errorf("items out of order: first %q, last %q", got[0], got[249])
		}

		wantOffsets := []int{0, 0, 100, 200}
		if !reflect.DeepEqual(source.offsets, wantOffsets) {
			t.Errorf("expected offsets %v, got %v", wantOffsets, source.offsets)
		}
		if source.limits[0] != 1 {
			t.Errorf("expected probe limit 1, got %d", source.limits[0])
		}

		wantProgress := [][2]int{{100, 250}, {200, 250}, {250, 250}}
		if !reflect.DeepEqual(progress, wantProgress) {
			t.Errorf("expected progress %v, got %v", wantProgress, progress)
		}

		cp, err := store.Load(key)
		if err != nil || cp == nil {
			t.Fatalf("expected final checkpoint, got %+v (%v)", cp, err)
		}
		if !cp.Complete || cp.Total != 250 {
			t.Errorf("expected complete checkpoint with total 250, got %+v", cp)
		}
	})

	t.Run("complete checkpoint replays without remote calls", func(t *testing.T) {
		store := newTestStore(t)
		key := checkpoint.FetchKey("cached")
		cp := &checkpoint.Checkpoint{Cursor: 300, Total: 250, Complete: true}
		if err := cp.SetItems([]string{"a", "b", "c"}); err != nil {
			t.Fatalf("failed to set items: %v", err)
		}
		if err := store.Save(key, cp); err != nil {
			t.Fatalf("failed to save checkpoint: %v", err)
		}

		source := newPagedSource(250)
		f := NewFetcher[string](store, policy, logger)
		got, err := f.Fetch(ctx, key, 100, source.page)
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if len(source.offsets) != 0 {
			t.Errorf("expected zero remote calls, got %d", len(source.offsets))
		}
		if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
			t.Errorf("expected buffered items, got %v", got)
		}
	})

	t.Run("resume issues only the remaining pages", func(t *testing.T) {
		store := newTestStore(t)
		source := newPagedSource(250)
		key := checkpoint.FetchKey("resume")

		cp := &checkpoint.Checkpoint{Cursor: 200, Total: 250}
		if err := cp.SetItems(source.items[:200]); err != nil {
			t.Fatalf("failed to set items: %v", err)
		}
		if err := store.Save(key, cp); err != nil {
			t.Fatalf("failed to save checkpoint: %v", err)
		}

		f := NewFetcher[string](store, policy, logger)
		got, err := f.Fetch(ctx, key, 100, source.page)
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if !reflect.DeepEqual(source.offsets, []int{200}) {
			t.Errorf("expected a single call at offset 200, got %v", source.offsets)
		}
		if !reflect.DeepEqual(got, source.items) {
			t.Errorf("resumed result differs from the full collection")
		}
	})

	t.Run("resume honors the pinned total when the remote shrank", func(t *testing.T) {
		store := newTestStore(t)
		source := newPagedSource(240)
		key := checkpoint.FetchKey("shrunk")

		cp := &checkpoint.Checkpoint{Cursor: 200, Total: 250}
		if err := cp.SetItems(source.items[:200]); err != nil {
			t.Fatalf("failed to set items: %v", err)
		}
		if err := store.Save(key, cp); err != nil {
			t.Fatalf("failed to save checkpoint: %v", err)
		}

		f := NewFetcher[string](store, policy, logger)
		got, err := f.Fetch(ctx, key, 100, source.page)
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if len(source.offsets) != 1 {
			t.Fatalf("expected a single call, got %v", source.offsets)
		}
		if len(got) != 240 {
			t.Errorf("expected 240 items after the short page, got %d", len(got))
		}
	})

	t.Run("persists an incomplete checkpoint every five pages", func(t *testing.T) {
		store := newTestStore(t)
		source := newPagedSource(1200)
		key := checkpoint.FetchKey("cadence")

		cursorSeen := map[int]int{} // offset -> checkpoint cursor before serving the page, -1 when absent
		pageFn := func(ctx context.Context, offset, limit int) ([]string, int, error) {
			if limit > 1 {
				cp, err := store.Load(key)
				if err != nil {
					t.Fatalf("failed to load checkpoint: %v", err)
				}
				if cp == nil {
					cursorSeen[offset] = -1
				} else {
					cursorSeen[offset] = cp.Cursor
				}
			}
			return source.page(ctx, offset, limit)
		}

		f := NewFetcher[string](store, policy, logger)
		got, err := f.Fetch(ctx, key, 100, pageFn)
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if len(got) != 1200 {
			t.Fatalf("expected 1200 items, got %d", len(got))
		}

		tc := []struct {
			offset int
			cursor int
		}{
			{0, -1},
			{400, -1},   // fifth page is in flight, nothing saved yet
			{500, 500},  // saved after the fifth page
			{900, 500},  // unchanged until the tenth
			{1000, 1000},
			{1100, 1000},
		}
		for _, c := range tc {
			if cursorSeen[c.offset] != c.cursor {
				t.Errorf("at offset %d: expected checkpoint cursor %d, got %d", c.offset, c.cursor, cursorSeen[c.offset])
			}
		}

		cp, err := store.Load(key)
		if err != nil || cp == nil {
			t.Fatalf("expected final checkpoint, got %+v (%v)", cp, err)
		}
		if !cp.Complete || cp.Cursor != 1200 {
			t.Errorf("expected complete checkpoint at cursor 1200, got %+v", cp)
		}
	})

	t.Run("failure persists the buffer and rerun resumes", func(t *testing.T) {
		store := newTestStore(t)
		source := newPagedSource(250)
		key := checkpoint.FetchKey("crashy")
		cause := errors.New("connection reset")
		source.failAt = 200
		source.err = cause

		f := NewFetcher[string](store, policy, logger)
		if _, err := f.Fetch(ctx, key, 100, source.page); !errors.Is(err, cause) {
			t.Fatalf("expected fetch to propagate %v, got %v", cause, err)
		}

		cp, err := store.Load(key)
		if err != nil || cp == nil {
			t.Fatalf("expected checkpoint after failure, got %+v (%v)", cp, err)
		}
		if cp.Complete || cp.Cursor != 200 || cp.Error == "" {
			t.Errorf("expected incomplete checkpoint at cursor 200 with an error, got %+v", cp)
		}
		var buffered []string
		if err := cp.DecodeItems(&buffered); err != nil {
			t.Fatalf("failed to decode buffer: %v", err)
		}
		if len(buffered) != 200 {
			t.Errorf("expected 200 buffered items, got %d", len(buffered))
		}

		source.failAt = -1
		source.offsets = nil
		got, err := f.Fetch(ctx, key, 100, source.page)
		if err != nil {
			t.Fatalf("resumed fetch failed: %v", err)
		}
		if !reflect.DeepEqual(source.offsets, []int{200}) {
			t.Errorf("expected the rerun to request only offset 200, got %v", source.offsets)
		}
		if !reflect.DeepEqual(got, source.items) {
			t.Errorf("resumed result differs from an uninterrupted run")
		}
	})

	t.Run("empty collection completes with no items", func(t *testing.T) {
		store := newTestStore(t)
		source := newPagedSource(0)
		key := checkpoint.FetchKey("empty")

		f := NewFetcher[string](store, policy, logger)
		got, err := f.Fetch(ctx, key, 100, source.page)
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no items, got %d", len(got))
		}
		if !reflect.DeepEqual(source.offsets, []int{0}) {
			t.Errorf("expected only the probe call, got %v", source.offsets)
		}

		cp, err := store.Load(key)
		if err != nil || cp == nil {
			t.Fatalf("expected final checkpoint, got %+v (%v)", cp, err)
		}
		if !cp.Complete || cp.Cursor != 0 {
			t.Errorf("expected complete checkpoint at cursor 0, got %+v", cp)
		}
	})

	t.Run("rejects a non-positive page size", func(t *testing.T) {
		store := newTestStore(t)
		source := newPagedSource(10)
		f := NewFetcher[string](store, policy, logger)
		if _, err := f.Fetch(ctx, checkpoint.FetchKey("bad"), 0, source.page); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if len(source.offsets) != 0 {
			t.Errorf("expected no remote calls, got %v", source.offsets)
		}
	})
}
