// Package repositories implements SQLite persistence for the canonical track
// store and its analysis queries.
//
// Key Implementations:
//   - [TrackRepository] : multiset of fetched track occurrences with
//     full-refresh per source, identity-based deduplication, and the
//     aggregate queries behind the dry-run report
//   - [AudioFeatureRepository] : per-track audio features keyed by external
//     track id, doubling as the enrichment job's resume marker
//
// Deduplication groups rows by the identity tuple (track_id, name, artist)
// and keeps MAX(added_at) per group; the remaining columns ride along from
// the row that supplied the maximum. Timestamps are stored as UTC RFC3339
// text so MIN/MAX aggregate chronologically.
package repositories
