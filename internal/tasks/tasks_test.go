package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/andrsj/spotify-playlist-merger/internal/checkpoint"
	"github.com/andrsj/spotify-playlist-merger/internal/models"
	"github.com/andrsj/spotify-playlist-merger/internal/repositories"
	"github.com/andrsj/spotify-playlist-merger/internal/retry"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
)

// mockService implements services.Service against in-memory fixtures and
// records every remote call.
type mockService struct {
	playlists map[string]models.Playlist
	tracks    map[string][]models.Track
	saved     []models.Track

	metaCalls   int
	pageCalls   int
	pageLimits  []int
	savedCalls  int
	savedLimits []int

	createCalls int
	created     []models.Playlist

	addCalls  int
	addFailAt int // 1-based call that fails, once
	batches   map[string][][]string

	featuresCalls  int
	featuresFailAt int
}

func (m *mockService) Name() string { return "spotify" }

func (m *mockService) CurrentUser(ctx context.Context) (*models.User, error) {
	return &models.User{ID: "user-1", DisplayName: "Test User"}, nil
}

func (m *mockService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	m.metaCalls++
	if pl, ok := m.playlists[playlistID]; ok {
		return &pl, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
}

func (m *mockService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var out []models.Playlist
	for _, pl := range m.playlists {
		out = append(out, pl)
	}
	return out, nil
}

func (m *mockService) PlaylistTracksPage(ctx context.Context, playlistID string, offset, limit int) (*models.TrackPage, error) {
	m.pageCalls++
	m.pageLimits = append(m.pageLimits, limit)
	items, ok := m.tracks[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return &models.TrackPage{Items: pageSlice(items, offset, limit), Total: len(items)}, nil
}

func (m *mockService) SavedTracksPage(ctx context.Context, offset, limit int) (*models.TrackPage, error) {
	m.savedCalls++
	m.savedLimits = append(m.savedLimits, limit)
	return &models.TrackPage{Items: pageSlice(m.saved, offset, limit), Total: len(m.saved)}, nil
}

func (m *mockService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	m.createCalls++
	pl := models.Playlist{ID: fmt.Sprintf("created-%d", m.createCalls), Name: name, Description: description}
	m.created = append(m.created, pl)
	return &pl, nil
}

func (m *mockService) AddPlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	m.addCalls++
	if m.addFailAt == m.addCalls {
		return errors.New("add rejected")
	}
	if m.batches == nil {
		m.batches = make(map[string][][]string)
	}
	m.batches[playlistID] = append(m.batches[playlistID], append([]string(nil), uris...))
	return nil
}

func (m *mockService) AudioFeatures(ctx context.Context, trackIDs []string) ([]models.AudioFeatures, error) {
	m.featuresCalls++
	if m.featuresFailAt == m.featuresCalls {
		return nil, errors.New("features unavailable")
	}
	out := make([]models.AudioFeatures, len(trackIDs))
	for i, id := range trackIDs {
		out[i] = models.AudioFeatures{TrackID: id, Tempo: 120, Energy: 0.5}
	}
	return out, nil
}

func (m *mockService) sent(playlistID string) []string {
	var flat []string
	for _, batch := range m.batches[playlistID] {
		flat = append(flat, batch...)
	}
	return flat
}

func pageSlice(items []models.Track, offset, limit int) []models.Track {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func makeTracks(n int, prefix string) []models.Track {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{
			ID:      fmt.Sprintf("%s-%05d", prefix, i),
			Name:    fmt.Sprintf("Track %05d", i),
			Artist:  "Artist",
			AddedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return tracks
}

func newTestEngine(t *testing.T, svc *mockService, opts Options) *MergeEngine {
	t.Helper()

	logger := shared.NewLogger(io.Discard)

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	store, err := checkpoint.NewStore(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("failed to create checkpoint store: %v", err)
	}

	return NewMergeEngine(
		svc,
		repositories.NewTrackRepository(db),
		repositories.NewAudioFeatureRepository(db),
		store,
		retry.NewPolicy(1, logger),
		opts,
		logger,
	)
}

func TestMergeEngineIngest(t *testing.T) {
	ctx := context.Background()
	svc := &mockService{
		playlists: map[string]models.Playlist{"p1": {ID: "p1", Name: "Road Trip"}},
		tracks:    map[string][]models.Track{"p1": makeTracks(250, "p1")},
	}
	engine := newTestEngine(t, svc, Options{PageSize: 100, Pace: time.Millisecond})

	t.Run("fetches pages and stores rows", func(t *testing.T) {
		result, err := engine.Ingest(ctx, nil, []string{"p1"}, false)
		if err != nil {
			t.Fatalf("failed to ingest: %v", err)
		}
		if result.Total != 250 || len(result.Sources) != 1 {
			t.Fatalf("unexpected result %+v", result)
		}
		src := result.Sources[0]
		if src.Source != "p1" || src.Name != "Road Trip" || src.Tracks != 250 || src.Replayed {
			t.Errorf("unexpected source summary %+v", src)
		}
		if svc.metaCalls != 1 {
			t.Errorf("expected 1 metadata call, got %d", svc.metaCalls)
		}
		// probe plus three pages
		if svc.pageCalls != 4 || svc.pageLimits[0] != 1 {
			t.Errorf("unexpected page calls %d limits %v", svc.pageCalls, svc.pageLimits)
		}

		rows, err := engine.tracks.BySource("p1")
		if err != nil {
			t.Fatalf("failed to read store: %v", err)
		}
		if len(rows) != 250 || rows[0].Source != "p1" || rows[0].ID != "p1-00000" {
			t.Errorf("unexpected stored rows: %d first %+v", len(rows), rows[0])
		}
	})

	t.Run("completed ingest replays with zero remote calls", func(t *testing.T) {
		result, err := engine.Ingest(ctx, nil, []string{"p1"}, false)
		if err != nil {
			t.Fatalf("failed to replay: %v", err)
		}
		if !result.Sources[0].Replayed || result.Total != 250 {
			t.Errorf("expected replayed ingest, got %+v", result.Sources[0])
		}
		if svc.pageCalls != 4 || svc.metaCalls != 1 {
			t.Errorf("replay made remote calls: pages %d meta %d", svc.pageCalls, svc.metaCalls)
		}
	})

	t.Run("refresh refetches the source", func(t *testing.T) {
		result, err := engine.Ingest(ctx, nil, []string{"p1"}, true)
		if err != nil {
			t.Fatalf("failed to refresh: %v", err)
		}
		if result.Sources[0].Replayed {
			t.Error("refresh should not replay")
		}
		if svc.pageCalls != 8 || svc.metaCalls != 2 {
			t.Errorf("expected a second fetch pass, got pages %d meta %d", svc.pageCalls, svc.metaCalls)
		}
	})

	t.Run("unknown source stops the run after earlier sources stored", func(t *testing.T) {
		svc := &mockService{
			playlists: map[string]models.Playlist{"p1": {ID: "p1", Name: "Road Trip"}},
			tracks:    map[string][]models.Track{"p1": makeTracks(10, "p1")},
		}
		engine := newTestEngine(t, svc, Options{})

		result, err := engine.Ingest(ctx, nil, []string{"p1", "missing"}, false)
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Fatalf("expected not-found error, got %v", err)
		}
		if result.Total != 10 || len(result.Sources) != 1 {
			t.Errorf("expected partial result, got %+v", result)
		}

		rows, err := engine.tracks.BySource("p1")
		if err != nil {
			t.Fatalf("failed to read store: %v", err)
		}
		if len(rows) != 10 {
			t.Errorf("expected p1 ingested before the failure, got %d rows", len(rows))
		}
	})

	t.Run("rejects an empty source list", func(t *testing.T) {
		if _, err := engine.Ingest(ctx, nil, nil, false); !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected invalid input, got %v", err)
		}
	})
}

func TestMergeEngineIngestLiked(t *testing.T) {
	ctx := context.Background()
	svc := &mockService{saved: makeTracks(120, "s")}
	engine := newTestEngine(t, svc, Options{PageSize: 100})

	t.Run("caps the page size at the endpoint maximum", func(t *testing.T) {
		result, err := engine.IngestLiked(ctx, nil, false)
		if err != nil {
			t.Fatalf("failed to ingest liked: %v", err)
		}
		if result.Source != LikedSource || result.Tracks != 120 {
			t.Errorf("unexpected result %+v", result)
		}
		// probe plus three pages of 50
		if svc.savedCalls != 4 {
			t.Errorf("expected 4 saved calls, got %d", svc.savedCalls)
		}
		for _, limit := range svc.savedLimits[1:] {
			if limit != 50 {
				t.Errorf("expected page size 50, got %v", svc.savedLimits)
				break
			}
		}

		rows, err := engine.tracks.BySource(LikedSource)
		if err != nil {
			t.Fatalf("failed to read store: %v", err)
		}
		if len(rows) != 120 {
			t.Errorf("expected 120 stored rows, got %d", len(rows))
		}
	})

	t.Run("replays a completed library fetch", func(t *testing.T) {
		result, err := engine.IngestLiked(ctx, nil, false)
		if err != nil {
			t.Fatalf("failed to replay: %v", err)
		}
		if !result.Replayed || svc.savedCalls != 4 {
			t.Errorf("expected replay with no remote calls, got %+v calls %d", result, svc.savedCalls)
		}
	})
}

func TestMergeEngineReport(t *testing.T) {
	seed := func(id, name, artist string) models.Track {
		return models.Track{
			ID:          id,
			Name:        name,
			Artist:      artist,
			ArtistID:    "artist-" + artist,
			AlbumID:     "album-" + id,
			ReleaseDate: "2020-01-01",
			DurationMS:  200000,
			Popularity:  60,
			AddedAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		}
	}

	engine := newTestEngine(t, &mockService{}, Options{})
	if err := engine.tracks.ReplaceSource("p1", []models.Track{
		seed("t1", "Alpha", "Band A"),
		seed("t2", "Beta", "Band B"),
		seed("t3", "Gamma", "Band A"),
	}); err != nil {
		t.Fatalf("failed to seed p1: %v", err)
	}
	if err := engine.tracks.ReplaceSource("p2", []models.Track{seed("t1", "Alpha", "Band A")}); err != nil {
		t.Fatalf("failed to seed p2: %v", err)
	}

	report, err := engine.Report()
	if err != nil {
		t.Fatalf("failed to build report: %v", err)
	}

	if len(report.Sources) != 2 || report.Stats.Entries != 4 || report.Stats.UniqueTracks != 3 {
		t.Errorf("unexpected counts: sources %d stats %+v", len(report.Sources), report.Stats)
	}
	if report.Totals.UniqueTracks != 3 || report.Totals.TotalDurationMS != 600000 {
		t.Errorf("unexpected totals %+v", report.Totals)
	}
	if len(report.Duplicates) != 1 || report.Duplicates[0].TrackID != "t1" || report.Duplicates[0].Weight != 2 {
		t.Errorf("expected the duplicated identity only, got %+v", report.Duplicates)
	}
	if len(report.Artists) != 1 || report.Artists[0].Artist != "Band A" || report.Artists[0].UniqueTracks != 2 {
		t.Errorf("expected artists with two or more tracks only, got %+v", report.Artists)
	}
	if len(report.Years) != 1 || report.Years[0].Year != "2020" || report.Years[0].Tracks != 3 {
		t.Errorf("unexpected year distribution %+v", report.Years)
	}
	if report.Features != nil {
		t.Errorf("expected no feature averages before enrichment, got %+v", report.Features)
	}
	if report.GeneratedAt.IsZero() {
		t.Error("expected a generation timestamp")
	}

	if err := engine.features.UpsertBatch([]models.AudioFeatures{
		{TrackID: "t1", Tempo: 100},
		{TrackID: "t2", Tempo: 140},
	}); err != nil {
		t.Fatalf("failed to store features: %v", err)
	}

	report, err = engine.Report()
	if err != nil {
		t.Fatalf("failed to rebuild report: %v", err)
	}
	if report.Features == nil || report.Features.Count != 2 || report.Features.Tempo != 120 {
		t.Errorf("expected feature averages, got %+v", report.Features)
	}
}

func TestMergeEnginePlan(t *testing.T) {
	t.Run("single part keeps the plan name", func(t *testing.T) {
		engine := newTestEngine(t, &mockService{}, Options{})
		if err := engine.tracks.ReplaceSource("p1", makeTracks(250, "id")); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}
		if err := engine.tracks.ReplaceSource("p2", makeTracks(50, "id")); err != nil {
			t.Fatalf("failed to seed dups: %v", err)
		}

		plan, err := engine.Plan("Weekend Mix")
		if err != nil {
			t.Fatalf("failed to plan: %v", err)
		}
		if plan.Name != "Weekend Mix" || plan.Entries != 300 || plan.Unique != 250 || plan.Removed != 50 {
			t.Errorf("unexpected plan %+v", plan)
		}
		if len(plan.Parts) != 1 || plan.Parts[0].Name != "Weekend Mix" || plan.Parts[0].Tracks != 250 {
			t.Errorf("unexpected parts %+v", plan.Parts)
		}
		want := float64(50) / float64(300) * 100
		if plan.Reduction != want {
			t.Errorf("expected reduction %.2f, got %.2f", want, plan.Reduction)
		}
	})

	t.Run("splits at the playlist limit", func(t *testing.T) {
		engine := newTestEngine(t, &mockService{}, Options{})
		if err := engine.tracks.ReplaceSource("p1", makeTracks(10250, "id")); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}

		plan, err := engine.Plan("Big Library")
		if err != nil {
			t.Fatalf("failed to plan: %v", err)
		}
		if len(plan.Parts) != 2 {
			t.Fatalf("expected 2 parts, got %d", len(plan.Parts))
		}
		if plan.Parts[0].Name != "Big Library (Part 1)" || plan.Parts[0].Tracks != 10000 {
			t.Errorf("unexpected first part %+v", plan.Parts[0])
		}
		if plan.Parts[1].Name != "Big Library (Part 2)" || plan.Parts[1].Tracks != 250 {
			t.Errorf("unexpected second part %+v", plan.Parts[1])
		}
	})

	t.Run("defaults the plan name", func(t *testing.T) {
		engine := newTestEngine(t, &mockService{}, Options{})
		if err := engine.tracks.ReplaceSource("p1", makeTracks(5, "id")); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}

		plan, err := engine.Plan("")
		if err != nil {
			t.Fatalf("failed to plan: %v", err)
		}
		if !strings.HasPrefix(plan.Name, "Master Library ") {
			t.Errorf("unexpected default name %q", plan.Name)
		}
	})

	t.Run("empty store errors", func(t *testing.T) {
		engine := newTestEngine(t, &mockService{}, Options{})
		if _, err := engine.Plan("Empty"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected invalid input, got %v", err)
		}
	})
}

func TestMergeEngineMerge(t *testing.T) {
	ctx := context.Background()
	opts := Options{BatchSize: 100, Pace: time.Millisecond}

	seedStore := func(t *testing.T, engine *MergeEngine) {
		t.Helper()
		if err := engine.tracks.ReplaceSource("p1", makeTracks(250, "id")); err != nil {
			t.Fatalf("failed to seed p1: %v", err)
		}
		if err := engine.tracks.ReplaceSource("p2", makeTracks(50, "id")); err != nil {
			t.Fatalf("failed to seed p2: %v", err)
		}
	}

	wantURIs := func(n int) []string {
		uris := make([]string, n)
		for i := range uris {
			uris[i] = models.TrackURI(fmt.Sprintf("id-%05d", i))
		}
		return uris
	}

	t.Run("writes batches and completes the plan checkpoint", func(t *testing.T) {
		svc := &mockService{}
		engine := newTestEngine(t, svc, opts)
		seedStore(t, engine)

		result, err := engine.Merge(ctx, nil, "Weekend Mix", false)
		if err != nil {
			t.Fatalf("failed to merge: %v", err)
		}
		if result.Written != 250 || result.Replayed {
			t.Errorf("unexpected result %+v", result)
		}
		if result.Plan.Entries != 300 || result.Plan.Unique != 250 || result.Plan.Removed != 50 {
			t.Errorf("unexpected plan %+v", result.Plan)
		}
		if svc.createCalls != 1 || svc.created[0].Name != "Weekend Mix" {
			t.Errorf("unexpected created playlists %+v", svc.created)
		}

		batches := svc.batches["created-1"]
		if len(batches) != 3 || len(batches[0]) != 100 || len(batches[2]) != 50 {
			t.Errorf("unexpected batch shape: %d batches", len(batches))
		}
		sent := svc.sent("created-1")
		want := wantURIs(250)
		if len(sent) != len(want) {
			t.Fatalf("expected %d uris, got %d", len(want), len(sent))
		}
		for i := range want {
			if sent[i] != want[i] {
				t.Fatalf("uri %d: expected %q, got %q", i, want[i], sent[i])
			}
		}

		cp, err := engine.store.Load(checkpoint.MergeKey("weekend-mix"))
		if err != nil || cp == nil {
			t.Fatalf("failed to load plan checkpoint: cp=%v err=%v", cp, err)
		}
		if !cp.Complete {
			t.Error("expected a complete plan checkpoint")
		}
		var targets []CreatedTarget
		if err := cp.DecodeItems(&targets); err != nil {
			t.Fatalf("failed to decode targets: %v", err)
		}
		if len(targets) != 1 || targets[0].ID != "created-1" || targets[0].Tracks != 250 {
			t.Errorf("unexpected persisted targets %+v", targets)
		}

		t.Run("completed merge replays without remote calls", func(t *testing.T) {
			replay, err := engine.Merge(ctx, nil, "Weekend Mix", false)
			if err != nil {
				t.Fatalf("failed to replay: %v", err)
			}
			if !replay.Replayed || replay.Written != 250 {
				t.Errorf("unexpected replay %+v", replay)
			}
			if svc.createCalls != 1 || svc.addCalls != 3 {
				t.Errorf("replay made remote calls: create %d add %d", svc.createCalls, svc.addCalls)
			}
		})

		t.Run("refresh starts over with new playlists", func(t *testing.T) {
			fresh, err := engine.Merge(ctx, nil, "Weekend Mix", true)
			if err != nil {
				t.Fatalf("failed to re-merge: %v", err)
			}
			if fresh.Replayed || fresh.Written != 250 {
				t.Errorf("unexpected re-merge %+v", fresh)
			}
			if svc.createCalls != 2 || len(svc.sent("created-2")) != 250 {
				t.Errorf("expected a second playlist, create calls %d", svc.createCalls)
			}
		})
	})

	t.Run("interrupted write resumes into the same playlist", func(t *testing.T) {
		svc := &mockService{addFailAt: 2}
		engine := newTestEngine(t, svc, opts)
		seedStore(t, engine)

		result, err := engine.Merge(ctx, nil, "Weekend Mix", false)
		if err == nil {
			t.Fatal("expected the second batch to fail")
		}
		if result.Written != 100 || svc.createCalls != 1 {
			t.Errorf("unexpected partial result: written %d creates %d", result.Written, svc.createCalls)
		}

		result, err = engine.Merge(ctx, nil, "Weekend Mix", false)
		if err != nil {
			t.Fatalf("failed to resume: %v", err)
		}
		if result.Written != 250 || svc.createCalls != 1 {
			t.Errorf("expected resume into the same playlist: written %d creates %d", result.Written, svc.createCalls)
		}

		sent := svc.sent("created-1")
		want := wantURIs(250)
		if len(sent) != len(want) {
			t.Fatalf("expected every uri exactly once, got %d of %d", len(sent), len(want))
		}
		for i := range want {
			if sent[i] != want[i] {
				t.Fatalf("uri %d: expected %q, got %q", i, want[i], sent[i])
			}
		}
	})

	t.Run("splits above the playlist limit into parts", func(t *testing.T) {
		svc := &mockService{}
		engine := newTestEngine(t, svc, opts)
		if err := engine.tracks.ReplaceSource("p1", makeTracks(10250, "id")); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}

		result, err := engine.Merge(ctx, nil, "Big Library", false)
		if err != nil {
			t.Fatalf("failed to merge: %v", err)
		}
		if result.Written != 10250 || len(result.Targets) != 2 {
			t.Fatalf("unexpected result: written %d targets %d", result.Written, len(result.Targets))
		}
		if result.Targets[0].Tracks != 10000 || result.Targets[1].Tracks != 250 {
			t.Errorf("unexpected part sizes %+v", result.Targets)
		}
		if svc.created[0].Name != "Big Library (Part 1)" || svc.created[1].Name != "Big Library (Part 2)" {
			t.Errorf("unexpected part names %+v", svc.created)
		}
		if len(svc.batches["created-1"]) != 100 || len(svc.batches["created-2"]) != 3 {
			t.Errorf("unexpected batch counts: %d and %d",
				len(svc.batches["created-1"]), len(svc.batches["created-2"]))
		}
	})

	t.Run("empty store errors", func(t *testing.T) {
		engine := newTestEngine(t, &mockService{}, opts)
		if _, err := engine.Merge(ctx, nil, "Empty", false); !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected invalid input, got %v", err)
		}
	})
}

func TestMergeEngineFeatures(t *testing.T) {
	ctx := context.Background()

	t.Run("enriches missing ids in chunks", func(t *testing.T) {
		svc := &mockService{}
		engine := newTestEngine(t, svc, Options{})
		if err := engine.tracks.ReplaceSource("p1", makeTracks(150, "id")); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}

		result, err := engine.EnrichFeatures(ctx, nil)
		if err != nil {
			t.Fatalf("failed to enrich: %v", err)
		}
		if result.Tracked != 150 || result.Skipped != 0 || result.Fetched != 150 {
			t.Errorf("unexpected result %+v", result)
		}
		if svc.featuresCalls != 2 {
			t.Errorf("expected 2 chunk calls, got %d", svc.featuresCalls)
		}
		count, err := engine.features.Count()
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if count != 150 {
			t.Errorf("expected 150 stored rows, got %d", count)
		}

		result, err = engine.EnrichFeatures(ctx, nil)
		if err != nil {
			t.Fatalf("failed on second run: %v", err)
		}
		if result.Skipped != 150 || result.Fetched != 0 || svc.featuresCalls != 2 {
			t.Errorf("expected a no-op second run, got %+v calls %d", result, svc.featuresCalls)
		}
	})

	t.Run("partial progress survives a chunk failure", func(t *testing.T) {
		svc := &mockService{featuresFailAt: 2}
		engine := newTestEngine(t, svc, Options{})
		if err := engine.tracks.ReplaceSource("p1", makeTracks(150, "id")); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}

		result, err := engine.EnrichFeatures(ctx, nil)
		if err == nil {
			t.Fatal("expected the second chunk to fail")
		}
		if result.Fetched != 100 {
			t.Errorf("expected 100 rows before the failure, got %d", result.Fetched)
		}

		result, err = engine.EnrichFeatures(ctx, nil)
		if err != nil {
			t.Fatalf("failed to resume: %v", err)
		}
		if result.Skipped != 100 || result.Fetched != 50 {
			t.Errorf("expected the stored rows to be skipped, got %+v", result)
		}
		count, err := engine.features.Count()
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if count != 150 {
			t.Errorf("expected 150 stored rows, got %d", count)
		}
	})
}

func TestProgressNonBlocking(t *testing.T) {
	svc := &mockService{
		playlists: map[string]models.Playlist{"p1": {ID: "p1", Name: "Small"}},
		tracks:    map[string][]models.Track{"p1": makeTracks(10, "p1")},
	}
	engine := newTestEngine(t, svc, Options{})

	// nobody consumes this channel; sends must not block the run
	progress := make(chan ProgressUpdate)

	if _, err := engine.Ingest(context.Background(), progress, []string{"p1"}, false); err != nil {
		t.Fatalf("failed to ingest: %v", err)
	}
}
