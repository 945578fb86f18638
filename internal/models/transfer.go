package models

import (
	"fmt"
	"time"
)

// TransferStatus enumerates the outcomes of one attempted file transfer.
type TransferStatus string

const (
	TransferPending     TransferStatus = "pending"
	TransferTransferred TransferStatus = "transferred"
	TransferSkipped     TransferStatus = "skipped"
	TransferFailed      TransferStatus = "failed"
)

// TransferRecord is one row per attempted attachment transfer.
// Created when a transfer is attempted or resolved as a duplicate.
type TransferRecord struct {
	id           string
	sequence     int
	jobID        string
	sourceTaskID string
	targetItemID string
	fileName     string
	fileSize     int64
	status       TransferStatus
	errorMessage string
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewTransferRecord creates a transfer record for the given job and file.
func NewTransferRecord(jobID, sourceTaskID, targetItemID, fileName string, fileSize int64) *TransferRecord {
	now := time.Now()
	return &TransferRecord{
		jobID:        jobID,
		sourceTaskID: sourceTaskID,
		targetItemID: targetItemID,
		fileName:     fileName,
		fileSize:     fileSize,
		status:       TransferPending,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (r *TransferRecord) ID() string             { return r.id }
func (r *TransferRecord) Sequence() int          { return r.sequence }
func (r *TransferRecord) JobID() string          { return r.jobID }
func (r *TransferRecord) SourceTaskID() string   { return r.sourceTaskID }
func (r *TransferRecord) TargetItemID() string   { return r.targetItemID }
func (r *TransferRecord) FileName() string       { return r.fileName }
func (r *TransferRecord) FileSize() int64        { return r.fileSize }
func (r *TransferRecord) Status() TransferStatus { return r.status }
func (r *TransferRecord) ErrorMessage() string   { return r.errorMessage }
func (r *TransferRecord) CreatedAt() time.Time   { return r.createdAt }
func (r *TransferRecord) UpdatedAt() time.Time   { return r.updatedAt }
func (r *TransferRecord) DeletedAt() *time.Time  { return r.deletedAt }

func (r *TransferRecord) SetID(id string)               { r.id = id }
func (r *TransferRecord) SetSequence(seq int)           { r.sequence = seq }
func (r *TransferRecord) SetStatus(s TransferStatus)    { r.status = s }
func (r *TransferRecord) SetErrorMessage(msg string)    { r.errorMessage = msg }
func (r *TransferRecord) SetTargetItemID(id string)     { r.targetItemID = id }
func (r *TransferRecord) SetCreatedAt(t time.Time)      { r.createdAt = t }
func (r *TransferRecord) SetUpdatedAt(t time.Time)      { r.updatedAt = t }
func (r *TransferRecord) SetDeletedAt(t *time.Time)     { r.deletedAt = t }

func (r *TransferRecord) Validate() error {
	if r.jobID == "" {
		return fmt.Errorf("job id is required")
	}
	if r.sourceTaskID == "" {
		return fmt.Errorf("source task id is required")
	}
	if r.fileName == "" {
		return fmt.Errorf("file name is required")
	}
	switch r.status {
	case TransferPending, TransferTransferred, TransferSkipped, TransferFailed:
	default:
		return fmt.Errorf("invalid transfer status: %q", r.status)
	}
	return nil
}
