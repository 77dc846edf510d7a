package pipeline

import (
	"context"
	"fmt"

	"github.com/andrsj/spotify-playlist-merger/internal/checkpoint"
	"github.com/andrsj/spotify-playlist-merger/internal/retry"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/charmbracelet/log"
)

// DefaultSaveEvery is the fetch checkpoint cadence, in successful pages.
const DefaultSaveEvery = 5

// PageFunc reads one page of a remote collection starting at offset. It
// returns the page's items together with the collection's reported total, so
// paging needs no separate count call. Implementations must be safe to call
// again with the same offset after a failure.
type PageFunc[T any] func(ctx context.Context, offset, limit int) (items []T, total int, err error)

// Fetcher pages through a remote collection, carrying the accumulated items in
// a checkpoint so an interrupted job resumes at its last saved offset instead
// of refetching from zero. A job whose checkpoint is marked complete replays
// its buffer without touching the remote at all.
type Fetcher[T any] struct {
	store     *checkpoint.Store
	policy    retry.Policy
	logger    *log.Logger
	saveEvery int
	progress  func(done, total int)
}

// NewFetcher creates a Fetcher that checkpoints into store and routes every
// remote call through policy. A nil logger falls back to the shared stderr
// logger.
func NewFetcher[T any](store *checkpoint.Store, policy retry.Policy, logger *log.Logger) *Fetcher[T] {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Fetcher[T]{
		store:     store,
		policy:    policy,
		logger:    logger,
		saveEvery: DefaultSaveEvery,
	}
}

// SetProgress registers a callback invoked after each successful page with the
// buffered item count and the collection total.
func (f *Fetcher[T]) SetProgress(fn func(done, total int)) {
	f.progress = fn
}

// Fetch returns every item of the collection read by page, resuming from the
// checkpoint stored under jobKey when one exists. The collection total is
// probed once on a fresh run and pinned in the checkpoint; resumed runs honor
// the pinned total so a remote collection that shrank mid-job cannot loop.
func (f *Fetcher[T]) Fetch(ctx context.Context, jobKey string, pageSize int, page PageFunc[T]) ([]T, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: page size must be positive, got %d", shared.ErrInvalidArgument, pageSize)
	}

	var (
		buffer []T
		cursor int
		total  int
	)

	cp, err := f.store.Load(jobKey)
	if err != nil {
		return nil, err
	}

	switch {
	case cp != nil && cp.Complete:
		if err := cp.DecodeItems(&buffer); err != nil {
			return nil, err
		}
		f.logger.Info("fetch already complete, replaying buffered items", "job", jobKey, "items", len(buffer))
		return buffer, nil
	case cp != nil:
		if err := cp.DecodeItems(&buffer); err != nil {
			return nil, err
		}
		cursor = cp.Cursor
		total = cp.Total
		f.logger.Info("resuming fetch", "job", jobKey, "cursor", cursor, "total", total, "buffered", len(buffer))
	default:
		total, err = f.probe(ctx, jobKey, page)
		if err != nil {
			return nil, fmt.Errorf("failed to probe %s: %w", jobKey, err)
		}
		f.logger.Info("starting fetch", "job", jobKey, "total", total)
	}

	pages := 0
	for cursor < total {
		var items []T
		err := f.policy.Do(ctx, fmt.Sprintf("%s offset %d", jobKey, cursor), func() error {
			var perr error
			items, _, perr = page(ctx, cursor, pageSize)
			return perr
		})
		if err != nil {
			if perr := f.persist(jobKey, cursor, total, buffer, false, err); perr != nil {
				f.logger.Error("failed to checkpoint after fetch failure", "job", jobKey, "error", perr)
			}
			return nil, fmt.Errorf("failed to fetch %s at offset %d: %w", jobKey, cursor, err)
		}

		buffer = append(buffer, items...)
		// Advance by the requested page size, not the returned count, so a
		// short final page still terminates the loop.
		cursor += pageSize
		pages++

		if f.progress != nil {
			f.progress(len(buffer), total)
		}
		if pages%f.saveEvery == 0 {
			if err := f.persist(jobKey, cursor, total, buffer, false, nil); err != nil {
				return nil, err
			}
		}
	}

	if err := f.persist(jobKey, cursor, total, buffer, true, nil); err != nil {
		return nil, err
	}
	f.logger.Info("fetch complete", "job", jobKey, "items", len(buffer))
	return buffer, nil
}

// probe reads a single item to learn the collection total.
func (f *Fetcher[T]) probe(ctx context.Context, jobKey string, page PageFunc[T]) (int, error) {
	return retry.DoValue(ctx, f.policy, jobKey+" probe", func() (int, error) {
		_, total, err := page(ctx, 0, 1)
		return total, err
	})
}

func (f *Fetcher[T]) persist(jobKey string, cursor, total int, buffer []T, complete bool, cause error) error {
	cp := &checkpoint.Checkpoint{
		Cursor:   cursor,
		Total:    total,
		Complete: complete,
	}
	if cause != nil {
		cp.Error = cause.Error()
	}
	if err := cp.SetItems(buffer); err != nil {
		return err
	}
	return f.store.Save(jobKey, cp)
}
