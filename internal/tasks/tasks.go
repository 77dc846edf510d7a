package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andrsj/spotify-playlist-merger/internal/checkpoint"
	"github.com/andrsj/spotify-playlist-merger/internal/models"
	"github.com/andrsj/spotify-playlist-merger/internal/pipeline"
	"github.com/andrsj/spotify-playlist-merger/internal/repositories"
	"github.com/andrsj/spotify-playlist-merger/internal/retry"
	"github.com/andrsj/spotify-playlist-merger/internal/services"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/charmbracelet/log"
)

const (
	// DefaultPageSize is the fetch page size when none is configured.
	DefaultPageSize = 100

	// DefaultPlaylistLimit is the most tracks one created playlist may hold.
	DefaultPlaylistLimit = 10000

	// LikedSource tags rows ingested from the user's saved tracks library.
	LikedSource = "liked"
)

// Options bounds the engine's remote paging, batching, and pacing. Zero
// fields fall back to the defaults.
type Options struct {
	PageSize      int           // items requested per fetch page
	BatchSize     int           // ids per write call
	PlaylistLimit int           // max tracks per created playlist
	Pace          time.Duration // min delay between write calls
}

func (o Options) normalized() Options {
	if o.PageSize <= 0 || o.PageSize > services.MaxPlaylistTracksPage {
		o.PageSize = DefaultPageSize
	}
	if o.BatchSize <= 0 || o.BatchSize > services.MaxWriteBatch {
		o.BatchSize = services.MaxWriteBatch
	}
	if o.PlaylistLimit <= 0 {
		o.PlaylistLimit = DefaultPlaylistLimit
	}
	if o.Pace <= 0 {
		o.Pace = pipeline.DefaultPace
	}
	return o
}

// SourceIngest summarizes one ingested collection.
type SourceIngest struct {
	Source   string `json:"source"`
	Name     string `json:"name,omitempty"`
	Tracks   int    `json:"tracks"`
	Replayed bool   `json:"replayed"`
}

// IngestResult aggregates an ingest run across sources.
type IngestResult struct {
	Sources []SourceIngest `json:"sources"`
	Total   int            `json:"total"`
}

// Report is the whole-store analysis rendered by the report command.
type Report struct {
	Sources     []repositories.SourceCount     `json:"sources"`
	Stats       *repositories.LibraryStats     `json:"stats"`
	Totals      *repositories.LibraryTotals    `json:"totals"`
	Overlap     []repositories.OverlapBucket   `json:"overlap"`
	Duplicates  []repositories.DuplicateWeight `json:"duplicates"`
	Artists     []repositories.ArtistCount     `json:"artists"`
	Years       []repositories.YearCount       `json:"years"`
	Features    *repositories.FeatureAverages  `json:"features,omitempty"`
	GeneratedAt time.Time                      `json:"generated_at"`
}

// MergePlan describes the consolidation a merge run will perform.
type MergePlan struct {
	Name      string                     `json:"name"`
	Entries   int                        `json:"entries"`
	Unique    int                        `json:"unique_tracks"`
	Removed   int                        `json:"duplicates_removed"`
	Reduction float64                    `json:"reduction_pct"`
	Limit     int                        `json:"playlist_limit"`
	Sources   []repositories.SourceCount `json:"sources"`
	Parts     []PlanPart                 `json:"parts"`
}

// PlanPart is one playlist the plan will create.
type PlanPart struct {
	Name   string `json:"name"`
	Tracks int    `json:"tracks"`
}

// CreatedTarget is one playlist created by a merge run.
type CreatedTarget struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tracks int    `json:"tracks"`
}

// MergeResult summarizes a merge run.
type MergeResult struct {
	Plan     *MergePlan      `json:"plan"`
	Targets  []CreatedTarget `json:"targets"`
	Written  int             `json:"written"`
	Replayed bool            `json:"replayed"`
}

// FeaturesResult summarizes an audio features enrichment run.
type FeaturesResult struct {
	Tracked int `json:"tracked"` // distinct ids in the store
	Skipped int `json:"skipped"` // already enriched
	Fetched int `json:"fetched"` // rows upserted this run
}

// MergeEngine orchestrates ingest, report, merge, and enrichment runs against
// the canonical store. All operations are sequential; crash correctness comes
// from the checkpoint store, not from locking.
type MergeEngine struct {
	service  services.Service
	tracks   *repositories.TrackRepository
	features *repositories.AudioFeatureRepository
	store    *checkpoint.Store
	policy   retry.Policy
	opts     Options
	logger   *log.Logger
}

// NewMergeEngine creates a new MergeEngine with the provided dependencies.
func NewMergeEngine(
	service services.Service,
	tracks *repositories.TrackRepository,
	features *repositories.AudioFeatureRepository,
	store *checkpoint.Store,
	policy retry.Policy,
	opts Options,
	logger *log.Logger,
) *MergeEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &MergeEngine{
		service:  service,
		tracks:   tracks,
		features: features,
		store:    store,
		policy:   policy,
		opts:     opts.normalized(),
		logger:   logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *MergeEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Ingest fetches every source playlist into the canonical store. Each source
// runs through the checkpointed fetcher, so an interrupted run resumes from
// its cursor and a completed one replays without remote calls. refresh
// discards the fetch checkpoints first. The first failing source stops the
// run; earlier sources stay ingested.
func (e *MergeEngine) Ingest(ctx context.Context, progress chan<- ProgressUpdate, sources []string, refresh bool) (*IngestResult, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources to ingest", shared.ErrInvalidInput)
	}

	result := &IngestResult{}
	for i, src := range sources {
		ingest, err := e.ingestPlaylist(ctx, progress, src, i+1, len(sources), refresh)
		if err != nil {
			return result, err
		}
		result.Sources = append(result.Sources, *ingest)
		result.Total += ingest.Tracks
	}
	return result, nil
}

func (e *MergeEngine) ingestPlaylist(ctx context.Context, progress chan<- ProgressUpdate, src string, step, total int, refresh bool) (*SourceIngest, error) {
	key := checkpoint.FetchKey(src)
	if refresh {
		if err := e.store.Delete(key); err != nil {
			return nil, err
		}
	}

	cp, err := e.store.Load(key)
	if err != nil {
		return nil, err
	}

	ingest := &SourceIngest{Source: src}
	display := src
	if cp != nil && cp.Complete {
		// replay serves from the checkpoint, skip the metadata call too
		ingest.Replayed = true
	} else {
		pl, err := e.service.GetPlaylist(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve playlist %s: %w", src, err)
		}
		ingest.Name = pl.Name
		display = pl.Name
	}

	e.sendProgress(progress, fetchSourceUpdate(step, total, display))

	f := pipeline.NewFetcher[models.Track](e.store, e.policy, e.logger)
	f.SetProgress(func(done, pageTotal int) {
		e.sendProgress(progress, fetchPagesUpdate(done, pageTotal, display))
	})

	tracks, err := f.Fetch(ctx, key, e.opts.PageSize, func(ctx context.Context, offset, limit int) ([]models.Track, int, error) {
		page, perr := e.service.PlaylistTracksPage(ctx, src, offset, limit)
		if perr != nil {
			return nil, 0, perr
		}
		return page.Items, page.Total, nil
	})
	if err != nil {
		return nil, err
	}

	for i := range tracks {
		tracks[i].Source = src
	}

	e.sendProgress(progress, storeSourceUpdate(step, total, display, len(tracks)))
	if err := e.tracks.ReplaceSource(src, tracks); err != nil {
		return nil, err
	}

	ingest.Tracks = len(tracks)
	e.logger.Info("source ingested", "source", src, "tracks", len(tracks), "replayed", ingest.Replayed)
	return ingest, nil
}

// IngestLiked fetches the user's saved tracks library as source "liked"
// through the same checkpointed fetcher as playlist sources.
func (e *MergeEngine) IngestLiked(ctx context.Context, progress chan<- ProgressUpdate, refresh bool) (*SourceIngest, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}

	key := checkpoint.FetchKey(LikedSource)
	if refresh {
		if err := e.store.Delete(key); err != nil {
			return nil, err
		}
	}

	cp, err := e.store.Load(key)
	if err != nil {
		return nil, err
	}

	ingest := &SourceIngest{Source: LikedSource, Name: "Liked Songs"}
	if cp != nil && cp.Complete {
		ingest.Replayed = true
	}

	// the saved tracks endpoint pages at most 50 at a time
	pageSize := e.opts.PageSize
	if pageSize > services.MaxSavedTracksPage {
		pageSize = services.MaxSavedTracksPage
	}

	e.sendProgress(progress, fetchSourceUpdate(1, 1, ingest.Name))

	f := pipeline.NewFetcher[models.Track](e.store, e.policy, e.logger)
	f.SetProgress(func(done, pageTotal int) {
		e.sendProgress(progress, fetchPagesUpdate(done, pageTotal, ingest.Name))
	})

	tracks, err := f.Fetch(ctx, key, pageSize, func(ctx context.Context, offset, limit int) ([]models.Track, int, error) {
		page, perr := e.service.SavedTracksPage(ctx, offset, limit)
		if perr != nil {
			return nil, 0, perr
		}
		return page.Items, page.Total, nil
	})
	if err != nil {
		return nil, err
	}

	for i := range tracks {
		tracks[i].Source = LikedSource
	}

	e.sendProgress(progress, storeSourceUpdate(1, 1, ingest.Name, len(tracks)))
	if err := e.tracks.ReplaceSource(LikedSource, tracks); err != nil {
		return nil, err
	}

	ingest.Tracks = len(tracks)
	e.logger.Info("liked library ingested", "tracks", len(tracks), "replayed", ingest.Replayed)
	return ingest, nil
}

// Report assembles the whole-store analysis from the canonical store. No
// remote calls are made.
func (e *MergeEngine) Report() (*Report, error) {
	if e.tracks == nil {
		return nil, fmt.Errorf("%w: track repository not initialized", shared.ErrServiceUnavailable)
	}

	report := &Report{GeneratedAt: time.Now().UTC()}

	var err error
	if report.Sources, err = e.tracks.SourceCounts(); err != nil {
		return nil, err
	}
	if report.Stats, err = e.tracks.Stats(); err != nil {
		return nil, err
	}
	if report.Totals, err = e.tracks.Totals(); err != nil {
		return nil, err
	}
	if report.Overlap, err = e.tracks.OverlapDistribution(); err != nil {
		return nil, err
	}

	weights, err := e.tracks.DuplicateWeights(0)
	if err != nil {
		return nil, err
	}
	for _, w := range weights {
		if w.Weight > 1 {
			report.Duplicates = append(report.Duplicates, w)
		}
	}

	artists, err := e.tracks.TopArtists(0)
	if err != nil {
		return nil, err
	}
	for _, a := range artists {
		if a.UniqueTracks >= 2 {
			report.Artists = append(report.Artists, a)
		}
	}

	if report.Years, err = e.tracks.YearDistribution(); err != nil {
		return nil, err
	}

	if e.features != nil {
		avg, err := e.features.Averages()
		if err != nil {
			return nil, err
		}
		if avg.Count > 0 {
			report.Features = avg
		}
	}

	return report, nil
}

// Plan computes the consolidation summary for a merge run without touching
// the remote service. An empty name defaults to "Master Library <date>".
func (e *MergeEngine) Plan(name string) (*MergePlan, error) {
	if e.tracks == nil {
		return nil, fmt.Errorf("%w: track repository not initialized", shared.ErrServiceUnavailable)
	}
	if name == "" {
		name = fmt.Sprintf("Master Library %s", time.Now().Format("2006-01-02"))
	}

	stats, err := e.tracks.Stats()
	if err != nil {
		return nil, err
	}
	if stats.UniqueTracks == 0 {
		return nil, fmt.Errorf("%w: canonical store is empty, run ingest first", shared.ErrInvalidInput)
	}

	sources, err := e.tracks.SourceCounts()
	if err != nil {
		return nil, err
	}

	plan := &MergePlan{
		Name:    name,
		Entries: stats.Entries,
		Unique:  stats.UniqueTracks,
		Removed: stats.Entries - stats.UniqueTracks,
		Limit:   e.opts.PlaylistLimit,
		Sources: sources,
	}
	if plan.Entries > 0 {
		plan.Reduction = float64(plan.Removed) / float64(plan.Entries) * 100
	}

	sizes := splitCounts(plan.Unique, plan.Limit)
	for i, size := range sizes {
		plan.Parts = append(plan.Parts, PlanPart{
			Name:   partName(name, i, len(sizes)),
			Tracks: size,
		})
	}
	return plan, nil
}

// Merge consolidates the deduplicated store into created playlists. The plan
// checkpoints under merge:<slug>; created target ids are persisted before
// their writes run, so an interrupted merge resumes into the same playlists.
// A completed merge replays its summary with zero remote calls; refresh
// discards the plan and starts over with new playlists.
func (e *MergeEngine) Merge(ctx context.Context, progress chan<- ProgressUpdate, name string, refresh bool) (*MergeResult, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}

	plan, err := e.Plan(name)
	if err != nil {
		return nil, err
	}

	key := checkpoint.MergeKey(slugify(plan.Name))
	if refresh {
		if err := e.store.Delete(key); err != nil {
			return nil, err
		}
	}

	result := &MergeResult{Plan: plan}

	cp, err := e.store.Load(key)
	if err != nil {
		return nil, err
	}
	var created []CreatedTarget
	if cp != nil {
		if err := cp.DecodeItems(&created); err != nil {
			return nil, fmt.Errorf("failed to decode merge plan %s: %w", plan.Name, err)
		}
		if cp.Complete {
			result.Targets = created
			result.Replayed = true
			for _, target := range created {
				result.Written += target.Tracks
			}
			e.logger.Info("merge already complete", "name", plan.Name, "playlists", len(created))
			return result, nil
		}
		if len(created) > 0 {
			e.logger.Info("resuming merge", "name", plan.Name, "created", len(created))
		}
	}

	ids, err := e.deduplicatedIDs()
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Merged playlist created on %s", time.Now().Format("2006-01-02"))
	offset := 0
	for i, part := range plan.Parts {
		partIDs := ids[offset : offset+part.Tracks]
		offset += part.Tracks

		if i >= len(created) {
			e.sendProgress(progress, createTargetUpdate(i+1, len(plan.Parts), part.Name))

			var pl *models.Playlist
			err := e.policy.Do(ctx, fmt.Sprintf("create playlist %q", part.Name), func() error {
				var cerr error
				pl, cerr = e.service.CreatePlaylist(ctx, part.Name, description)
				return cerr
			})
			if err != nil {
				e.persistPlan(key, created, false, err)
				result.Targets = created
				return result, fmt.Errorf("failed to create playlist %q: %w", part.Name, err)
			}

			created = append(created, CreatedTarget{ID: pl.ID, Name: pl.Name})
			e.persistPlan(key, created, false, nil)
			e.sendProgress(progress, targetCreatedUpdate(i+1, len(plan.Parts), created[i]))
		}

		target := created[i]
		uris := make([]string, len(partIDs))
		for j, id := range partIDs {
			uris[j] = models.TrackURI(id)
		}

		w := pipeline.NewWriter(e.store, e.policy, e.logger, e.opts.Pace)
		w.SetProgress(func(done, writeTotal int) {
			e.sendProgress(progress, writeTracksUpdate(done, writeTotal, target.Name))
		})

		written, err := w.Write(ctx, checkpoint.WriteKey(target.ID), target.ID, uris, e.opts.BatchSize, func(ctx context.Context, targetID string, batch []string) error {
			return e.service.AddPlaylistTracks(ctx, targetID, batch)
		})
		created[i].Tracks = written
		result.Written += written
		if err != nil {
			e.persistPlan(key, created, false, err)
			result.Targets = created
			return result, err
		}
		e.persistPlan(key, created, false, nil)
	}

	e.persistPlan(key, created, true, nil)
	result.Targets = created
	e.logger.Info("merge complete", "name", plan.Name, "playlists", len(created), "tracks", result.Written)
	return result, nil
}

// EnrichFeatures fills the audio_features table for every canonical track id
// not yet enriched, in chunks through the retry policy. The table itself is
// the resume marker: rows upserted before a failure are not refetched.
func (e *MergeEngine) EnrichFeatures(ctx context.Context, progress chan<- ProgressUpdate) (*FeaturesResult, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	if e.features == nil {
		return nil, fmt.Errorf("%w: feature repository not initialized", shared.ErrServiceUnavailable)
	}

	ids, err := e.tracks.DistinctTrackIDs()
	if err != nil {
		return nil, err
	}
	stored, err := e.features.StoredIDs()
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range ids {
		if _, ok := stored[id]; !ok {
			missing = append(missing, id)
		}
	}

	result := &FeaturesResult{Tracked: len(ids), Skipped: len(ids) - len(missing)}
	if len(missing) == 0 {
		e.logger.Info("audio features up to date", "tracks", len(ids))
		return result, nil
	}

	for start := 0; start < len(missing); start += services.MaxFeaturesBatch {
		end := start + services.MaxFeaturesBatch
		if end > len(missing) {
			end = len(missing)
		}
		chunk := missing[start:end]

		var features []models.AudioFeatures
		err := e.policy.Do(ctx, fmt.Sprintf("audio features %d-%d", start, end), func() error {
			var ferr error
			features, ferr = e.service.AudioFeatures(ctx, chunk)
			return ferr
		})
		if err != nil {
			return result, fmt.Errorf("failed to fetch audio features at %d: %w", start, err)
		}

		if err := e.features.UpsertBatch(features); err != nil {
			return result, err
		}
		result.Fetched += len(features)
		e.sendProgress(progress, featuresUpdate(end, len(missing)))
	}

	e.logger.Info("audio features enriched", "fetched", result.Fetched, "skipped", result.Skipped)
	return result, nil
}

// deduplicatedIDs flattens the dedup view to distinct track ids, keeping the
// view's name ordering. Identities sharing an id collapse to its first row.
func (e *MergeEngine) deduplicatedIDs() ([]string, error) {
	rows, err := e.tracks.Deduplicated()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.ID]; ok {
			continue
		}
		seen[row.ID] = struct{}{}
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// persistPlan saves the merge plan checkpoint. Failures are logged, not
// propagated: the merge outcome matters more than the plan save.
func (e *MergeEngine) persistPlan(key string, created []CreatedTarget, complete bool, failure error) {
	cp := &checkpoint.Checkpoint{Cursor: len(created), Complete: complete}
	if failure != nil {
		cp.Error = failure.Error()
	}
	if err := cp.SetItems(created); err != nil {
		e.logger.Error("failed to encode merge plan", "key", key, "error", err)
		return
	}
	if err := e.store.Save(key, cp); err != nil {
		e.logger.Error("failed to save merge plan", "key", key, "error", err)
	}
}

// splitCounts partitions total into chunks of at most limit.
func splitCounts(total, limit int) []int {
	var sizes []int
	for total > 0 {
		size := total
		if size > limit {
			size = limit
		}
		sizes = append(sizes, size)
		total -= size
	}
	return sizes
}

// partName numbers playlist parts when the plan needs more than one.
func partName(name string, index, parts int) string {
	if parts <= 1 {
		return name
	}
	return fmt.Sprintf("%s (Part %d)", name, index+1)
}

// slugify lowercases a plan name into a checkpoint key slug.
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
