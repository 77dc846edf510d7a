// Package models defines the domain records flowing through the playlist
// merge pipeline.
//
// The central type is [Track]: one occurrence of a song inside a source
// collection. The same struct serves three roles:
//
//  1. Fetch output: the services layer maps remote playlist items into Tracks,
//     dropping items without an external id.
//  2. Checkpoint payload: partially fetched Tracks are buffered as JSON inside
//     fetch-job checkpoints and replayed on resume.
//  3. Canonical row: every Track is stored as its own row, so duplicates keep
//     their per-source weight.
//
// [Identity] is the exact (id, name, artist) tuple the deduplicated view
// groups on. [Playlist], [User], and [AudioFeatures] mirror the remote
// service's shapes; [TrackPage] and [PlaylistPage] carry pagination totals.
package models
