// Package tasks implements the sync workflows between the two platforms.
//
// The core abstraction is [Engine], which owns both orchestrations: file
// sync (copying task attachments onto matching items of an existing board)
// and list replication (recreating a list as a new board with columns,
// items, and optional sub-items, attachments, and comments).
//
// Jobs are fire-and-forget: Start methods persist a job record, detach the
// run onto a background goroutine, and return the job id. Progress reaches
// the caller two ways: incrementally through the job record (polled via
// [Engine.JobStatus]) and through an optional non-blocking channel of
// [ProgressUpdate] events.
//
// # Error policy
//
//   - service wiring and authentication problems fail the Start call itself
//   - setup errors (list lookup, board creation) fail the whole job
//   - per-task errors are retried with backoff, then recorded in the job's
//     error log; the run continues
//   - rate-limit pushback never fails anything, it only slows the run down
//   - cancellation is observed between batches and persisted as cancelled
package tasks
