// Package tasks orchestrates the ingest, report, merge, and enrichment runs
// with real-time progress reporting.
//
// # Core Operations
//
// [MergeEngine] drives the pipeline end to end:
//
//  1. [MergeEngine.Ingest] / [MergeEngine.IngestLiked] : Pull sources into the store
//     - Pages each collection through the checkpointed fetcher
//     - Tags rows with their source and replaces that source transactionally
//     - Replays completed sources without remote calls
//
//  2. [MergeEngine.Report] : Analyze the canonical store
//     - Per-source counts, library totals, overlap, duplicate weights
//     - Artist and release-year breakdowns, audio feature averages
//     - Never touches the remote service
//
//  3. [MergeEngine.Plan] / [MergeEngine.Merge] : Consolidate into playlists
//     - Partitions the deduplicated ids at the playlist size limit
//     - Persists created playlist ids before writing, so resume reuses them
//     - Batched writes checkpoint after every call
//
//  4. [MergeEngine.EnrichFeatures] : Fill the audio features table
//     - Chunked through the retry policy; stored rows are the resume marker
//
// # Progress Reporting
//
// All operations send [ProgressUpdate] values on an optional channel using
// select with default, so a slow or absent consumer never blocks a run.
//
// # Durability
//
// Operations are sequential. Crash correctness comes from the checkpoint
// store: fetches checkpoint their cursor and buffer, writes checkpoint after
// every batch, and the merge plan checkpoints its created targets.
package tasks
