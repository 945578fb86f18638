package models

import (
	"fmt"
	"time"
)

// FieldMapping records one source custom field -> target column correspondence.
//
// Created once per replication during structure analysis and immutable
// afterward; looked up by source field id during task transformation.
type FieldMapping struct {
	id                string
	sequence          int
	jobID             string
	sourceFieldID     string
	sourceFieldName   string
	sourceFieldType   string
	targetColumnID    string
	targetColumnTitle string
	targetColumnType  string
	createdAt         time.Time
	updatedAt         time.Time
	deletedAt         *time.Time
}

// NewFieldMapping creates a field mapping row for the given job.
func NewFieldMapping(jobID, sourceFieldID, sourceFieldName, sourceFieldType, targetColumnID, targetColumnTitle, targetColumnType string) *FieldMapping {
	now := time.Now()
	return &FieldMapping{
		jobID:             jobID,
		sourceFieldID:     sourceFieldID,
		sourceFieldName:   sourceFieldName,
		sourceFieldType:   sourceFieldType,
		targetColumnID:    targetColumnID,
		targetColumnTitle: targetColumnTitle,
		targetColumnType:  targetColumnType,
		createdAt:         now,
		updatedAt:         now,
	}
}

func (f *FieldMapping) ID() string                { return f.id }
func (f *FieldMapping) Sequence() int             { return f.sequence }
func (f *FieldMapping) JobID() string             { return f.jobID }
func (f *FieldMapping) SourceFieldID() string     { return f.sourceFieldID }
func (f *FieldMapping) SourceFieldName() string   { return f.sourceFieldName }
func (f *FieldMapping) SourceFieldType() string   { return f.sourceFieldType }
func (f *FieldMapping) TargetColumnID() string    { return f.targetColumnID }
func (f *FieldMapping) TargetColumnTitle() string { return f.targetColumnTitle }
func (f *FieldMapping) TargetColumnType() string  { return f.targetColumnType }
func (f *FieldMapping) CreatedAt() time.Time      { return f.createdAt }
func (f *FieldMapping) UpdatedAt() time.Time      { return f.updatedAt }
func (f *FieldMapping) DeletedAt() *time.Time     { return f.deletedAt }

func (f *FieldMapping) SetID(id string)           { f.id = id }
func (f *FieldMapping) SetSequence(seq int)       { f.sequence = seq }
func (f *FieldMapping) SetCreatedAt(t time.Time)  { f.createdAt = t }
func (f *FieldMapping) SetUpdatedAt(t time.Time)  { f.updatedAt = t }
func (f *FieldMapping) SetDeletedAt(t *time.Time) { f.deletedAt = t }

func (f *FieldMapping) Validate() error {
	if f.jobID == "" {
		return fmt.Errorf("job id is required")
	}
	if f.sourceFieldID == "" || f.sourceFieldName == "" {
		return fmt.Errorf("source field id and name are required")
	}
	if f.targetColumnID == "" || f.targetColumnType == "" {
		return fmt.Errorf("target column id and type are required")
	}
	return nil
}

// SyncStatus enumerates the states of a task mapping.
type SyncStatus string

const (
	SyncStatusSynced SyncStatus = "synced"
	SyncStatusFailed SyncStatus = "failed"
)

// TaskMapping records the correspondence between one source task and the
// target item created for it.
//
// The target item id is set at construction and never reassigned; replays
// either reuse the mapping or insert a fresh row. Only sync_status mutates.
type TaskMapping struct {
	id             string
	sequence       int
	jobID          string
	sourceTaskID   string
	sourceParentID string
	targetItemID   string
	targetParentID string
	sourcePayload  string
	syncStatus     SyncStatus
	createdAt      time.Time
	updatedAt      time.Time
	deletedAt      *time.Time
}

// NewTaskMapping creates a task mapping at the moment a target item is created.
// sourcePayload carries the raw source task JSON for audit and retry.
func NewTaskMapping(jobID, sourceTaskID, sourceParentID, targetItemID, targetParentID, sourcePayload string) *TaskMapping {
	now := time.Now()
	return &TaskMapping{
		jobID:          jobID,
		sourceTaskID:   sourceTaskID,
		sourceParentID: sourceParentID,
		targetItemID:   targetItemID,
		targetParentID: targetParentID,
		sourcePayload:  sourcePayload,
		syncStatus:     SyncStatusSynced,
		createdAt:      now,
		updatedAt:      now,
	}
}

func (t *TaskMapping) ID() string             { return t.id }
func (t *TaskMapping) Sequence() int          { return t.sequence }
func (t *TaskMapping) JobID() string          { return t.jobID }
func (t *TaskMapping) SourceTaskID() string   { return t.sourceTaskID }
func (t *TaskMapping) SourceParentID() string { return t.sourceParentID }
func (t *TaskMapping) TargetItemID() string   { return t.targetItemID }
func (t *TaskMapping) TargetParentID() string { return t.targetParentID }
func (t *TaskMapping) SourcePayload() string  { return t.sourcePayload }
func (t *TaskMapping) SyncStatus() SyncStatus { return t.syncStatus }
func (t *TaskMapping) CreatedAt() time.Time   { return t.createdAt }
func (t *TaskMapping) UpdatedAt() time.Time   { return t.updatedAt }
func (t *TaskMapping) DeletedAt() *time.Time  { return t.deletedAt }

func (t *TaskMapping) SetID(id string)              { t.id = id }
func (t *TaskMapping) SetSequence(seq int)          { t.sequence = seq }
func (t *TaskMapping) SetSyncStatus(s SyncStatus)   { t.syncStatus = s }
func (t *TaskMapping) SetCreatedAt(ts time.Time)    { t.createdAt = ts }
func (t *TaskMapping) SetUpdatedAt(ts time.Time)    { t.updatedAt = ts }
func (t *TaskMapping) SetDeletedAt(ts *time.Time)   { t.deletedAt = ts }
func (t *TaskMapping) SetSourcePayload(raw string)  { t.sourcePayload = raw }

func (t *TaskMapping) Validate() error {
	if t.jobID == "" {
		return fmt.Errorf("job id is required")
	}
	if t.sourceTaskID == "" {
		return fmt.Errorf("source task id is required")
	}
	if t.targetItemID == "" {
		return fmt.Errorf("target item id is required")
	}
	if t.syncStatus != SyncStatusSynced && t.syncStatus != SyncStatusFailed {
		return fmt.Errorf("invalid sync status: %q", t.syncStatus)
	}
	return nil
}
