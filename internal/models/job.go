package models

import (
	"fmt"
	"time"
)

// JobKind identifies the type of orchestration a JobRecord tracks.
type JobKind string

const (
	JobFileSync        JobKind = "file_sync"
	JobListReplication JobKind = "list_replication"
)

// JobStatus enumerates the lifecycle states of a job.
//
// File sync jobs move pending -> running -> completed|failed.
// Replication jobs move mapping -> creating -> migrating -> completed|failed.
// A cancelled status may be written externally; orchestrators treat it as
// advisory and do not observe it mid-run.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusMapping   JobStatus = "mapping"
	StatusCreating  JobStatus = "creating"
	StatusMigrating JobStatus = "migrating"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

var validStatuses = map[JobStatus]bool{
	StatusPending:   true,
	StatusRunning:   true,
	StatusMapping:   true,
	StatusCreating:  true,
	StatusMigrating: true,
	StatusCompleted: true,
	StatusFailed:    true,
	StatusCancelled: true,
}

// ErrorEntry is one line of a job's append-only error log.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// JobRecord represents one running or finished orchestration.
//
// Created when an orchestration starts and mutated incrementally as batches
// complete. The core never deletes job records.
type JobRecord struct {
	id              string
	sequence        int
	kind            JobKind
	status          JobStatus
	sourceListID    string
	targetBoardID   string
	targetBoardName string
	totalItems      int
	processedItems  int
	options         string
	errorLog        []ErrorEntry
	startedAt       *time.Time
	completedAt     *time.Time
	createdAt       time.Time
	updatedAt       time.Time
	deletedAt       *time.Time
}

// NewJobRecord creates a job record for the given kind and source list.
// Options is an opaque JSON blob describing the orchestration configuration.
func NewJobRecord(kind JobKind, sourceListID, options string) *JobRecord {
	now := time.Now()
	status := StatusPending
	if kind == JobListReplication {
		status = StatusMapping
	}
	return &JobRecord{
		kind:         kind,
		status:       status,
		sourceListID: sourceListID,
		options:      options,
		errorLog:     []ErrorEntry{},
		createdAt:    now,
		updatedAt:    now,
	}
}

func (j *JobRecord) ID() string              { return j.id }
func (j *JobRecord) Sequence() int           { return j.sequence }
func (j *JobRecord) Kind() JobKind           { return j.kind }
func (j *JobRecord) Status() JobStatus       { return j.status }
func (j *JobRecord) SourceListID() string    { return j.sourceListID }
func (j *JobRecord) TargetBoardID() string   { return j.targetBoardID }
func (j *JobRecord) TargetBoardName() string { return j.targetBoardName }
func (j *JobRecord) TotalItems() int         { return j.totalItems }
func (j *JobRecord) ProcessedItems() int     { return j.processedItems }
func (j *JobRecord) Options() string         { return j.options }
func (j *JobRecord) ErrorLog() []ErrorEntry  { return j.errorLog }
func (j *JobRecord) StartedAt() *time.Time   { return j.startedAt }
func (j *JobRecord) CompletedAt() *time.Time { return j.completedAt }
func (j *JobRecord) CreatedAt() time.Time    { return j.createdAt }
func (j *JobRecord) UpdatedAt() time.Time    { return j.updatedAt }
func (j *JobRecord) DeletedAt() *time.Time   { return j.deletedAt }

func (j *JobRecord) SetID(id string)                { j.id = id }
func (j *JobRecord) SetSequence(seq int)            { j.sequence = seq }
func (j *JobRecord) SetStatus(s JobStatus)          { j.status = s }
func (j *JobRecord) SetTargetBoardID(id string)     { j.targetBoardID = id }
func (j *JobRecord) SetTargetBoardName(name string) { j.targetBoardName = name }
func (j *JobRecord) SetTotalItems(n int)            { j.totalItems = n }
func (j *JobRecord) SetProcessedItems(n int)        { j.processedItems = n }
func (j *JobRecord) SetErrorLog(log []ErrorEntry)   { j.errorLog = log }
func (j *JobRecord) SetStartedAt(t *time.Time)      { j.startedAt = t }
func (j *JobRecord) SetCompletedAt(t *time.Time)    { j.completedAt = t }
func (j *JobRecord) SetCreatedAt(t time.Time)       { j.createdAt = t }
func (j *JobRecord) SetUpdatedAt(t time.Time)       { j.updatedAt = t }
func (j *JobRecord) SetDeletedAt(t *time.Time)      { j.deletedAt = t }

// AppendError adds a timestamped message to the job's error log.
func (j *JobRecord) AppendError(msg string) {
	j.errorLog = append(j.errorLog, ErrorEntry{Timestamp: time.Now(), Message: msg})
}

// Terminal reports whether the job has reached a final state.
func (j *JobRecord) Terminal() bool {
	return j.status == StatusCompleted || j.status == StatusFailed || j.status == StatusCancelled
}

func (j *JobRecord) Validate() error {
	if j.kind != JobFileSync && j.kind != JobListReplication {
		return fmt.Errorf("invalid job kind: %q", j.kind)
	}
	if !validStatuses[j.status] {
		return fmt.Errorf("invalid job status: %q", j.status)
	}
	if j.sourceListID == "" {
		return fmt.Errorf("source list id is required")
	}
	if j.totalItems < 0 || j.processedItems < 0 {
		return fmt.Errorf("item counters cannot be negative")
	}
	return nil
}
