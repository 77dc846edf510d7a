// Package retry bounds every remote call with a classified backoff policy.
//
// Failures are wrapped in [Error] carrying a [Class]. The [Policy] retries
// everything except terminal failures, up to MaxAttempts:
//
//   - rate-limited: sleep the server's Retry-After hint plus one second
//   - anything else: sleep 2^attempt plus one second (2s, 3s, 5s, 9s, ...)
//
// An exhausted budget returns a terminal [Error] wrapping the last failure,
// so callers can persist progress and exit nonzero while staying resumable.
package retry
