package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/andrsj/spotify-playlist-merger/internal/checkpoint"
	"github.com/andrsj/spotify-playlist-merger/internal/retry"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// DefaultPace is the minimum interval between remote write calls.
const DefaultPace = 100 * time.Millisecond

// WriteFunc sends one batch of ids to the remote target. Implementations must
// tolerate being called again with the same batch after a failure.
type WriteFunc func(ctx context.Context, targetID string, batch []string) error

// Writer pushes an ordered id list to a remote target in checkpointed batches.
// The checkpoint records how many ids have landed, so a resumed job skips them
// and no id is ever sent twice. Calls are paced through a rate limiter even
// before the remote ever pushes back.
type Writer struct {
	store    *checkpoint.Store
	policy   retry.Policy
	logger   *log.Logger
	limiter  *rate.Limiter
	progress func(done, total int)
}

// NewWriter creates a Writer that checkpoints into store and paces remote
// calls at one per pace interval. Non-positive pace falls back to
// [DefaultPace]; a nil logger falls back to the shared stderr logger.
func NewWriter(store *checkpoint.Store, policy retry.Policy, logger *log.Logger, pace time.Duration) *Writer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if pace <= 0 {
		pace = DefaultPace
	}
	return &Writer{
		store:   store,
		policy:  policy,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(pace), 1),
	}
}

// SetProgress registers a callback invoked after each successful batch with
// the written count and the full id count.
func (w *Writer) SetProgress(fn func(done, total int)) {
	w.progress = fn
}

// Write sends ids to targetID in batches of at most batchSize, resuming from
// the checkpoint stored under jobKey when one exists. It returns the number of
// ids written across all invocations of the job. A checkpoint marked complete
// returns that count without any remote call.
func (w *Writer) Write(ctx context.Context, jobKey, targetID string, ids []string, batchSize int, fn WriteFunc) (int, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("%w: batch size must be positive, got %d", shared.ErrInvalidArgument, batchSize)
	}

	written := 0
	cp, err := w.store.Load(jobKey)
	if err != nil {
		return 0, err
	}
	if cp != nil {
		if cp.Complete {
			w.logger.Info("write already complete", "job", jobKey, "written", cp.Cursor)
			return cp.Cursor, nil
		}
		written = cp.Cursor
		if written > len(ids) {
			written = len(ids)
		}
		w.logger.Info("resuming write", "job", jobKey, "written", written, "remaining", len(ids)-written)
	}

	for written < len(ids) {
		end := written + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[written:end]

		if err := w.limiter.Wait(ctx); err != nil {
			return written, err
		}

		err := w.policy.Do(ctx, fmt.Sprintf("%s batch at %d", jobKey, written), func() error {
			return fn(ctx, targetID, batch)
		})
		if err != nil {
			if perr := w.persist(jobKey, written, false, err); perr != nil {
				w.logger.Error("failed to checkpoint after write failure", "job", jobKey, "error", perr)
			}
			return written, fmt.Errorf("failed to write %s at index %d: %w", jobKey, written, err)
		}

		written += len(batch)
		if w.progress != nil {
			w.progress(written, len(ids))
		}
		if err := w.persist(jobKey, written, false, nil); err != nil {
			return written, err
		}
	}

	if err := w.persist(jobKey, written, true, nil); err != nil {
		return written, err
	}
	w.logger.Info("write complete", "job", jobKey, "written", written)
	return written, nil
}

func (w *Writer) persist(jobKey string, written int, complete bool, cause error) error {
	cp := &checkpoint.Checkpoint{
		Cursor:   written,
		Complete: complete,
	}
	if cause != nil {
		cp.Error = cause.Error()
	}
	return w.store.Save(jobKey, cp)
}
