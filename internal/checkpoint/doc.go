// Package checkpoint persists per-job progress markers as JSON files.
//
// One file per job key ([FetchKey], [WriteKey], [MergeKey]) under a single
// directory. [Store.Save] replaces the file atomically via temp-file rename,
// which is the pipeline's only crash-correctness mechanism: a job killed at
// any instant restarts from its last durable [Checkpoint].
package checkpoint
