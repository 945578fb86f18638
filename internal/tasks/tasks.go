package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AskChad/ClickUp-Monday-sync/internal/models"
	"github.com/AskChad/ClickUp-Monday-sync/internal/ratelimit"
	"github.com/AskChad/ClickUp-Monday-sync/internal/repositories"
	"github.com/AskChad/ClickUp-Monday-sync/internal/services"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

// ReplicationMode selects how much of a list a replication job copies.
type ReplicationMode string

const (
	// ModeFull copies structure and data.
	ModeFull ReplicationMode = "full"
	// ModeStructureOnly creates the board and columns without items.
	ModeStructureOnly ReplicationMode = "structure_only"
	// ModeDataOnly creates items without custom columns. The job still
	// creates a fresh board to hold them.
	ModeDataOnly ReplicationMode = "data_only"
)

// FileSyncOptions configures a file sync job.
type FileSyncOptions struct {
	// IncludeClosed also scans closed tasks for attachments.
	IncludeClosed bool `json:"include_closed"`
	// SkipDuplicates skips files already present on the matched item,
	// compared by name and size.
	SkipDuplicates bool `json:"skip_duplicates"`
	// LinkBack writes the source task URL into a link column on the item.
	LinkBack bool `json:"link_back"`
	// MaxFileSize overrides the configured transfer size cap, in bytes.
	MaxFileSize int64 `json:"max_file_size,omitempty"`
	// AllowedExts restricts transfers to these extensions when non-empty.
	AllowedExts []string `json:"allowed_exts,omitempty"`
}

// ReplicationOptions configures a list replication job.
type ReplicationOptions struct {
	Mode ReplicationMode `json:"mode"`
	// IncludeClosed also replicates closed tasks.
	IncludeClosed bool `json:"include_closed"`
	// IncludeSubtasks creates sub-items for direct children of top-level tasks.
	IncludeSubtasks bool `json:"include_subtasks"`
	// IncludeAttachments transfers file attachments onto created items.
	IncludeAttachments bool `json:"include_attachments"`
	// IncludeComments reposts task comments as item updates.
	IncludeComments bool `json:"include_comments"`
	// PreserveAssignees carries assignees onto the created items.
	PreserveAssignees bool `json:"preserve_assignees"`
	// PreserveDates carries due dates onto the created items.
	PreserveDates bool `json:"preserve_dates"`
}

// JobSnapshot is a point-in-time view of a job and its persisted outcomes.
type JobSnapshot struct {
	Job           *models.JobRecord
	FieldMappings int
	TaskMappings  int
	Transferred   int
	SkippedFiles  int
	FailedFiles   int
}

// Engine orchestrates sync jobs between the source and target services.
//
// Start methods create the job record, kick off the orchestration on a
// detached goroutine, and return the job id immediately; callers poll
// [Engine.JobStatus] or watch the progress channel.
type Engine struct {
	jobs      *repositories.JobRepository
	fields    *repositories.FieldMappingRepository
	taskMaps  *repositories.TaskMappingRepository
	transfers *repositories.TransferRepository

	source services.SourceService
	target services.TargetService

	logger *log.Logger
	cfg    shared.SyncConfig

	wg sync.WaitGroup
}

// NewEngine creates an engine over the given repositories and services.
func NewEngine(
	jobs *repositories.JobRepository,
	fields *repositories.FieldMappingRepository,
	taskMaps *repositories.TaskMappingRepository,
	transfers *repositories.TransferRepository,
	source services.SourceService,
	target services.TargetService,
	logger *log.Logger,
	cfg shared.SyncConfig,
) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		jobs:      jobs,
		fields:    fields,
		taskMaps:  taskMaps,
		transfers: transfers,
		source:    source,
		target:    target,
		logger:    logger,
		cfg:       cfg,
	}
}

// StartFileSync starts a file sync job copying attachments from the source
// list onto matching items of an existing target board. Returns the job id;
// the work continues on a detached goroutine.
func (e *Engine) StartFileSync(ctx context.Context, progress chan<- ProgressUpdate, sourceListID, targetBoardID string, opts FileSyncOptions) (string, error) {
	if err := e.preflight(ctx); err != nil {
		return "", err
	}
	if sourceListID == "" || targetBoardID == "" {
		return "", fmt.Errorf("%w: source list and target board are required", shared.ErrInvalidInput)
	}

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("failed to encode job options: %w", err)
	}

	job := models.NewJobRecord(models.JobFileSync, sourceListID, string(optsJSON))
	job.SetTargetBoardID(targetBoardID)
	if err := e.jobs.Create(job); err != nil {
		return "", err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		// The job outlives the caller's context; cancellation is cooperative
		// and observed at batch boundaries.
		e.runFileSync(context.WithoutCancel(ctx), job.ID(), sourceListID, targetBoardID, opts, progress)
	}()

	return job.ID(), nil
}

// StartReplication starts a replication job recreating the source list as a
// new target board. Returns the job id; the work continues on a detached
// goroutine.
func (e *Engine) StartReplication(ctx context.Context, progress chan<- ProgressUpdate, sourceListID, targetBoardName string, opts ReplicationOptions) (string, error) {
	if err := e.preflight(ctx); err != nil {
		return "", err
	}
	if sourceListID == "" {
		return "", fmt.Errorf("%w: source list is required", shared.ErrInvalidInput)
	}
	if opts.Mode == "" {
		opts.Mode = ModeFull
	}
	if opts.Mode != ModeFull && opts.Mode != ModeStructureOnly && opts.Mode != ModeDataOnly {
		return "", fmt.Errorf("%w: unknown replication mode %q", shared.ErrInvalidInput, opts.Mode)
	}

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("failed to encode job options: %w", err)
	}

	job := models.NewJobRecord(models.JobListReplication, sourceListID, string(optsJSON))
	job.SetTargetBoardName(targetBoardName)
	if err := e.jobs.Create(job); err != nil {
		return "", err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runReplication(context.WithoutCancel(ctx), job.ID(), sourceListID, targetBoardName, opts, progress)
	}()

	return job.ID(), nil
}

// JobStatus returns a snapshot of a job's record and its persisted outcomes.
func (e *Engine) JobStatus(jobID string) (*JobSnapshot, error) {
	job, err := e.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}

	snapshot := &JobSnapshot{Job: job}

	if mappings, err := e.fields.ListByJob(jobID); err == nil {
		snapshot.FieldMappings = len(mappings)
	}
	if mappings, err := e.taskMaps.ListByJob(jobID); err == nil {
		snapshot.TaskMappings = len(mappings)
	}
	if n, err := e.transfers.CountByStatus(jobID, models.TransferTransferred); err == nil {
		snapshot.Transferred = n
	}
	if n, err := e.transfers.CountByStatus(jobID, models.TransferSkipped); err == nil {
		snapshot.SkippedFiles = n
	}
	if n, err := e.transfers.CountByStatus(jobID, models.TransferFailed); err == nil {
		snapshot.FailedFiles = n
	}

	return snapshot, nil
}

// Wait blocks until every detached job goroutine has finished.
func (e *Engine) Wait() { e.wg.Wait() }

// preflight verifies both services are wired before any job record exists.
// Authentication failures must surface to the caller, not the error log.
func (e *Engine) preflight(ctx context.Context) error {
	if e.source == nil {
		return fmt.Errorf("%w: source service not initialized", shared.ErrServiceUnavailable)
	}
	if e.target == nil {
		return fmt.Errorf("%w: target service not initialized", shared.ErrServiceUnavailable)
	}
	return ctx.Err()
}

// sendProgress delivers an update without blocking the orchestration.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// backoffConfig builds the per-item retry schedule from the sync defaults.
func (e *Engine) backoffConfig() ratelimit.BackoffConfig {
	cfg := ratelimit.DefaultBackoff()
	if e.cfg.MaxRetries > 0 {
		cfg.MaxAttempts = uint(e.cfg.MaxRetries)
	}
	return cfg
}

// maxFileSize resolves the transfer size cap from options and config.
func (e *Engine) maxFileSize(override int64) int64 {
	if override > 0 {
		return override
	}
	if e.cfg.MaxFileSizeMB > 0 {
		return e.cfg.MaxFileSizeMB * 1024 * 1024
	}
	return 0
}

// batchDelay returns the configured inter-batch pause.
func (e *Engine) batchDelay(fallback time.Duration) time.Duration {
	if e.cfg.BatchDelayMS > 0 {
		return time.Duration(e.cfg.BatchDelayMS) * time.Millisecond
	}
	return fallback
}

// failJob marks a job failed and records the fatal cause.
func (e *Engine) failJob(jobID string, cause error) {
	e.logger.Error("job failed", "job", jobID, "error", cause)
	if err := e.jobs.AppendError(jobID, cause.Error()); err != nil {
		e.logger.Error("failed to record job error", "job", jobID, "error", err)
	}
	if err := e.jobs.SetStatus(jobID, models.StatusFailed); err != nil {
		e.logger.Error("failed to mark job failed", "job", jobID, "error", err)
	}
}

// finishJob marks a job with its terminal status after a run.
func (e *Engine) finishJob(jobID string, runErr error) {
	status := models.StatusCompleted
	if runErr != nil {
		// Only cancellation aborts a run; item failures live in the summary.
		status = models.StatusCancelled
		if err := e.jobs.AppendError(jobID, runErr.Error()); err != nil {
			e.logger.Error("failed to record job error", "job", jobID, "error", err)
		}
	}
	if err := e.jobs.SetStatus(jobID, status); err != nil {
		e.logger.Error("failed to mark job finished", "job", jobID, "error", err)
	}
}
