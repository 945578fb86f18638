// Package repositories implements SQLite-backed persistence for the sync service's entities.
//
// # Repositories
//
//   - [JobRepository] : job records with atomic progress counters, append-only
//     error logs, and status transitions that stamp started/completed times
//   - [FieldMappingRepository] : immutable field mapping rows per replication job
//   - [TaskMappingRepository] : task -> item mappings; only sync_status mutates
//   - [TransferRepository] : per-file transfer outcomes with status counts
//   - [Vault] : AES-GCM encrypted token storage keyed by user and service
//
// All repositories follow the same conventions: UUID primary keys generated on
// insert, monotonically increasing per-table sequence numbers (see
// [NextSequence]), timestamps maintained on every write, and soft deletes via
// a deleted_at column that every read filters on.
package repositories
