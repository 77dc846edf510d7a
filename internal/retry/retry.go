package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/charmbracelet/log"
)

const (
	// DefaultMaxAttempts is the hard ceiling on attempts per remote call.
	DefaultMaxAttempts = 5

	// DefaultRetryAfter is assumed when a rate-limit response omits the
	// Retry-After value.
	DefaultRetryAfter = 5 * time.Second
)

// Class partitions remote failures for the backoff policy to switch on.
type Class int

const (
	ClassUnknown     Class = iota // unclassified failure, retried on the exponential schedule
	ClassRateLimited              // upstream asked to slow down; honors the Retry-After hint
	ClassTransient                // server fault or network error
	ClassTerminal                 // not retried: budget exhausted or cancellation
	ClassData                     // undecodable payload
)

// String returns the class name for logs.
func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassTransient:
		return "transient"
	case ClassTerminal:
		return "terminal"
	case ClassData:
		return "data"
	default:
		return "unknown"
	}
}

// Error is a classified remote failure. Status is the HTTP status when known
// (0 for network faults); RetryAfter carries the rate-limit hint.
type Error struct {
	Class      Class
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s error (status %d): %v", e.Class, e.Status, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify returns the failure class of err. Unwrapped [Error] values carry
// their own class; context cancellation is terminal; everything else is
// unknown and gets retried on the exponential schedule.
func Classify(err error) Class {
	var re *Error
	if errors.As(err, &re) {
		return re.Class
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTerminal
	}
	return ClassUnknown
}

// ClassifyStatus maps an HTTP status code to a failure class.
func ClassifyStatus(status int) Class {
	switch {
	case status == http.StatusTooManyRequests:
		return ClassRateLimited
	case status == 0 || status >= 500:
		return ClassTransient
	default:
		return ClassUnknown
	}
}

// Policy retries remote calls up to MaxAttempts, sleeping between attempts.
// Rate-limited failures sleep RetryAfter plus one second; every other failure
// sleeps 2^attempt plus one second. Only terminal failures short-circuit.
type Policy struct {
	MaxAttempts int

	logger *log.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewPolicy creates a retry policy with the given attempt ceiling.
// Non-positive maxAttempts falls back to [DefaultMaxAttempts]; a nil logger
// falls back to the shared stderr logger.
func NewPolicy(maxAttempts int, logger *log.Logger) Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return Policy{MaxAttempts: maxAttempts, logger: logger, sleep: waitContext}
}

// Do runs fn until it succeeds, fails terminally, or the attempt budget is
// spent. The op name only labels log lines.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	max := p.MaxAttempts
	if max <= 0 {
		max = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < max; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		class := Classify(err)
		if class == ClassTerminal {
			return err
		}
		if attempt == max-1 {
			break
		}

		delay := backoffDelay(attempt, class, err)
		p.logger.Warn("remote call failed, backing off",
			"op", op, "attempt", attempt+1, "max", max, "class", class.String(), "delay", delay, "error", err)
		if err := p.wait(ctx, delay); err != nil {
			return &Error{Class: ClassTerminal, Err: err}
		}
	}

	return &Error{
		Class: ClassTerminal,
		Err:   fmt.Errorf("retry budget exhausted after %d attempts: %w", max, lastErr),
	}
}

// DoValue runs fn under policy p and returns its result.
func DoValue[T any](ctx context.Context, p Policy, op string, fn func() (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (p Policy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	return waitContext(ctx, d)
}

// backoffDelay picks the sleep before the next attempt. Rate limits use the
// server's hint rather than the exponential schedule.
func backoffDelay(attempt int, class Class, err error) time.Duration {
	if class == ClassRateLimited {
		var re *Error
		if errors.As(err, &re) && re.RetryAfter > 0 {
			return re.RetryAfter + time.Second
		}
		return DefaultRetryAfter + time.Second
	}
	return (1<<attempt)*time.Second + time.Second
}

// waitContext sleeps for d unless the context ends first.
func waitContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
