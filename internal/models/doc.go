// Package models defines domain entities and persistence interfaces for the ClickUp -> Monday sync service.
//
// The package contains the persistent entities backing the orchestration core:
//   - [JobRecord] : One orchestration run (file sync or list replication) with status, counters, and an append-only error log
//   - [FieldMapping] : Source custom field -> target column correspondence, immutable after structure analysis
//   - [TaskMapping] : Source task -> created target item correspondence with the raw source payload for audit
//   - [TransferRecord] : Outcome of one attempted attachment transfer
//
// All entities implement the [Model] interface providing ID generation, timestamps, validation, and soft delete support.
// The [Repository] interface defines standard CRUD operations for database access.
//
// Source service DTOs (tasks, lists, fields) and target service DTOs (boards, columns, items)
// live in the services package; this package only holds what the job store persists.
package models
