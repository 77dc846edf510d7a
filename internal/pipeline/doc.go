// Package pipeline implements the resumable remote I/O primitives: a
// paginated [Fetcher] that buffers items in checkpoints and a batched
// [Writer] that records its position after every batch.
//
// Both run strictly sequentially. Jobs are identified by checkpoint keys
// (see [github.com/andrsj/spotify-playlist-merger/internal/checkpoint]), and
// re-invoking a finished job replays its recorded outcome without remote
// calls, which makes whole-pipeline runs safely re-entrant.
package pipeline
