package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AskChad/ClickUp-Monday-sync/internal/batch"
	"github.com/AskChad/ClickUp-Monday-sync/internal/dedupe"
	"github.com/AskChad/ClickUp-Monday-sync/internal/models"
	"github.com/AskChad/ClickUp-Monday-sync/internal/services"
	"github.com/AskChad/ClickUp-Monday-sync/internal/transform"
)

// replicationBatchDelay spaces item-creation batches further apart than file
// transfers; board mutations are the most complexity-expensive calls.
const replicationBatchDelay = 500 * time.Millisecond

// standardColumn describes one built-in column every replicated board gets.
type standardColumn struct {
	key   string // canonical key used by transform.StandardFields
	title string
	typ   string
}

var standardColumns = []standardColumn{
	{key: "status", title: "Status", typ: "status"},
	{key: "priority", title: "Priority", typ: "status"},
	{key: "due_date", title: "Due Date", typ: "date"},
	{key: "assignees", title: "Assignees", typ: "people"},
	{key: "tags", title: "Tags", typ: "text"},
}

// replicationPlan carries the column wiring from the creating phase into the
// migrating phase.
type replicationPlan struct {
	boardID string
	// standard maps canonical field keys to created column ids.
	standard map[string]string
	// custom maps source field names to created column mappings.
	custom map[string]transform.Mapping
}

// runReplication executes a list replication job end to end.
func (e *Engine) runReplication(ctx context.Context, jobID, sourceListID, targetBoardName string, opts ReplicationOptions, progress chan<- ProgressUpdate) {
	logger := e.logger.With("job", jobID, "kind", models.JobListReplication)

	// Phase 1: mapping. Read the source structure.
	list, err := e.source.GetList(ctx, sourceListID)
	if err != nil {
		e.failJob(jobID, fmt.Errorf("source list lookup failed: %w", err))
		return
	}
	// data_only replication creates no columns, so the field structure is
	// never consulted.
	var fields []services.CustomField
	if opts.Mode != ModeDataOnly {
		fields, err = e.source.GetCustomFields(ctx, sourceListID)
		if err != nil {
			e.failJob(jobID, fmt.Errorf("custom field lookup failed: %w", err))
			return
		}
	}
	e.sendProgress(progress, mappingUpdate(len(fields)))

	if targetBoardName == "" {
		targetBoardName = list.Name
	}

	// Phase 2: creating. Errors here are fatal; a half-created board with no
	// items is not worth migrating into.
	if err := e.jobs.SetStatus(jobID, models.StatusCreating); err != nil {
		logger.Error("failed to mark job creating", "error", err)
		return
	}

	if opts.Mode == ModeDataOnly {
		logger.Warn("data_only replication still creates a new board; no columns will be replicated")
	}

	plan, err := e.createBoard(ctx, jobID, targetBoardName, fields, opts, logger)
	if err != nil {
		e.failJob(jobID, err)
		return
	}
	e.sendProgress(progress, creatingUpdate(targetBoardName, plan.boardID))

	if err := e.jobs.SetTargetBoard(jobID, plan.boardID, targetBoardName); err != nil {
		logger.Error("failed to record target board", "error", err)
	}

	if opts.Mode == ModeStructureOnly {
		if err := e.jobs.SetTotal(jobID, 0); err != nil {
			logger.Error("failed to record job total", "error", err)
		}
		e.sendProgress(progress, finishedUpdate(jobID, 0, 0, 0))
		e.finishJob(jobID, nil)
		return
	}

	// Phase 3: migrating.
	if err := e.jobs.SetStatus(jobID, models.StatusMigrating); err != nil {
		logger.Error("failed to mark job migrating", "error", err)
		return
	}

	tasks, err := e.source.GetTasks(ctx, sourceListID, services.TaskFilter{IncludeClosed: opts.IncludeClosed})
	if err != nil {
		e.failJob(jobID, fmt.Errorf("task listing failed: %w", err))
		return
	}
	e.sendProgress(progress, fetchSourceUpdate(list.Name, len(tasks)))

	// Children are resolved up front from one subtask-inclusive listing
	// rather than per-parent queries.
	children := map[string][]services.Task{}
	if opts.IncludeSubtasks {
		withSubs, err := e.source.GetTasks(ctx, sourceListID, services.TaskFilter{IncludeClosed: opts.IncludeClosed, IncludeSubtasks: true})
		if err != nil {
			e.failJob(jobID, fmt.Errorf("subtask listing failed: %w", err))
			return
		}
		for _, t := range withSubs {
			if t.ParentID != "" {
				children[t.ParentID] = append(children[t.ParentID], t)
			}
		}
	}

	if err := e.jobs.SetTotal(jobID, len(tasks)); err != nil {
		logger.Error("failed to record job total", "error", err)
	}

	columns := newBoardColumns(plan.boardID, nil, e.target)
	limits := dedupe.Limits{MaxSize: e.maxFileSize(0)}

	runner := batch.NewRunner[services.Task](batch.Config{
		BatchSize:  e.cfg.BatchSize,
		BatchDelay: e.batchDelay(replicationBatchDelay),
		Backoff:    e.backoffConfig(),
	}, logger)
	runner.OnProgress(func(p batch.Progress) {
		if err := e.jobs.AddProgress(jobID, 1); err != nil {
			logger.Error("failed to persist progress", "error", err)
		}
		if p.Result.Status == batch.StatusFailed && p.Result.Err != nil {
			if err := e.jobs.AppendError(jobID, fmt.Sprintf("task %s: %v", p.Result.ID, p.Result.Err)); err != nil {
				logger.Error("failed to record item error", "error", err)
			}
		}
		e.sendProgress(progress, migratingUpdate(p.Completed, p.Total, p.Result.ID))
	})

	summary, runErr := runner.Run(ctx, tasks, func(t services.Task) string { return t.ID }, func(ctx context.Context, task services.Task) (any, error) {
		return e.migrateTask(ctx, jobID, task, plan, children[task.ID], columns, limits, opts)
	})

	e.sendProgress(progress, finishedUpdate(jobID, summary.Successful, summary.Failed, summary.Skipped))
	logger.Info("replication finished",
		"board", plan.boardID,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", summary.Duration,
	)
	e.finishJob(jobID, runErr)
}

// createBoard creates the target board and, outside data_only mode, its
// columns. Column creation is best-effort: a field whose column cannot be
// created is logged and dropped from the plan, not fatal.
func (e *Engine) createBoard(ctx context.Context, jobID, name string, fields []services.CustomField, opts ReplicationOptions, logger *log.Logger) (*replicationPlan, error) {
	board, err := e.target.CreateBoard(ctx, name, "public")
	if err != nil {
		return nil, fmt.Errorf("board creation failed: %w", err)
	}

	plan := &replicationPlan{
		boardID:  board.ID,
		standard: map[string]string{},
		custom:   map[string]transform.Mapping{},
	}

	if opts.Mode == ModeDataOnly {
		return plan, nil
	}

	for _, sc := range standardColumns {
		col, err := e.target.CreateColumn(ctx, board.ID, sc.title, sc.typ, nil)
		if err != nil {
			logger.Warn("standard column creation failed", "column", sc.title, "error", err)
			continue
		}
		plan.standard[sc.key] = col.ID
	}

	for _, field := range fields {
		title := transform.SanitizeColumnName(field.Name)
		if title == "" {
			logger.Warn("field name sanitizes to nothing, skipping", "field", field.Name)
			continue
		}
		columnType := transform.MapFieldType(field.Type)

		col, err := e.target.CreateColumn(ctx, board.ID, title, columnType, nil)
		if err != nil {
			logger.Warn("column creation failed", "field", field.Name, "error", err)
			if appendErr := e.jobs.AppendError(jobID, fmt.Sprintf("column for field %q: %v", field.Name, err)); appendErr != nil {
				logger.Error("failed to record column error", "error", appendErr)
			}
			continue
		}

		mapping := models.NewFieldMapping(jobID, field.ID, field.Name, field.Type, col.ID, col.Title, col.Type)
		if err := e.fields.Create(mapping); err != nil {
			logger.Error("failed to persist field mapping", "field", field.Name, "error", err)
		}
		plan.custom[field.Name] = transform.Mapping{TargetColumnID: col.ID, TargetColumnType: col.Type}
	}

	return plan, nil
}

// migrateTask replicates one task as a new item, with its optional
// description, attachments, comments, and direct sub-items.
func (e *Engine) migrateTask(ctx context.Context, jobID string, task services.Task, plan *replicationPlan, subtasks []services.Task, columns *boardColumns, limits dedupe.Limits, opts ReplicationOptions) (any, error) {
	logger := e.logger.With("job", jobID, "task", task.ID)

	// Replays: a task that already produced an item is never recreated.
	if existing, err := e.taskMaps.GetBySourceTask(jobID, task.ID); err != nil {
		return nil, fmt.Errorf("mapping lookup failed: %w", err)
	} else if existing != nil {
		return existing.TargetItemID(), fmt.Errorf("already migrated as item %s: %w", existing.TargetItemID(), batch.ErrSkip)
	}

	detail := &task
	if opts.IncludeAttachments || opts.IncludeComments {
		fetched, err := e.source.GetTask(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("task detail fetch failed: %w", err)
		}
		detail = fetched
	}

	name, values := itemColumnValues(*detail, plan, opts)

	item, err := e.target.CreateItem(ctx, plan.boardID, name, values)
	if err != nil {
		return nil, fmt.Errorf("item creation failed: %w", err)
	}

	payload, err := json.Marshal(detail)
	if err != nil {
		payload = []byte("{}")
	}
	mapping := models.NewTaskMapping(jobID, task.ID, task.ParentID, item.ID, "", string(payload))
	if err := e.taskMaps.Create(mapping); err != nil {
		logger.Error("failed to persist task mapping", "error", err)
	}

	var failed bool

	if detail.Description != "" {
		if _, err := e.target.CreateUpdate(ctx, item.ID, detail.Description); err != nil {
			failed = true
			logger.Warn("description update failed", "error", err)
		}
	}

	if opts.IncludeAttachments && len(detail.Attachments) > 0 {
		for _, att := range detail.Attachments {
			record := models.NewTransferRecord(jobID, task.ID, item.ID, att.Name, att.Size)
			if ok, reason := dedupe.ValidateFile(att, limits); !ok {
				record.SetStatus(models.TransferSkipped)
				record.SetErrorMessage(reason)
				e.saveTransfer(record, logger)
				continue
			}
			if err := e.transferFile(ctx, att, *item, columns); err != nil {
				failed = true
				logger.Warn("attachment transfer failed", "file", att.Name, "error", err)
				record.SetStatus(models.TransferFailed)
				record.SetErrorMessage(err.Error())
				e.saveTransfer(record, logger)
				continue
			}
			record.SetStatus(models.TransferTransferred)
			e.saveTransfer(record, logger)
		}
	}

	if opts.IncludeComments {
		comments, err := e.source.GetComments(ctx, task.ID)
		if err != nil {
			failed = true
			logger.Warn("comment fetch failed", "error", err)
		} else {
			for _, comment := range comments {
				body := fmt.Sprintf("%s (%s):\n%s", comment.Author, time.UnixMilli(comment.Date).UTC().Format("2006-01-02 15:04"), comment.Body)
				if _, err := e.target.CreateUpdate(ctx, item.ID, body); err != nil {
					failed = true
					logger.Warn("comment migration failed", "comment", comment.ID, "error", err)
				}
			}
		}
	}

	// Sub-items are one level deep: direct children of top-level tasks.
	if opts.IncludeSubtasks && task.ParentID == "" {
		for _, child := range subtasks {
			childName, childValues := itemColumnValues(child, plan, opts)
			sub, err := e.target.CreateSubitem(ctx, item.ID, childName, childValues)
			if err != nil {
				failed = true
				logger.Warn("subitem creation failed", "child", child.ID, "error", err)
				if appendErr := e.jobs.AppendError(jobID, fmt.Sprintf("subtask %s of %s: %v", child.ID, task.ID, err)); appendErr != nil {
					logger.Error("failed to record subtask error", "error", appendErr)
				}
				continue
			}
			childPayload, err := json.Marshal(child)
			if err != nil {
				childPayload = []byte("{}")
			}
			childMapping := models.NewTaskMapping(jobID, child.ID, task.ID, sub.ID, item.ID, string(childPayload))
			if err := e.taskMaps.Create(childMapping); err != nil {
				logger.Error("failed to persist subtask mapping", "error", err)
			} else if err := e.taskMaps.SetSyncStatus(childMapping.ID(), models.SyncStatusSynced); err != nil {
				logger.Error("failed to mark subtask synced", "error", err)
			}
		}
	}

	status := models.SyncStatusSynced
	if failed {
		status = models.SyncStatusFailed
	}
	if err := e.taskMaps.SetSyncStatus(mapping.ID(), status); err != nil {
		logger.Error("failed to set sync status", "error", err)
	}

	return item.ID, nil
}

// itemColumnValues resolves a task's standard and custom fields against the
// plan's columns. Both parent items and sub-items go through here so children
// carry the same status, priority, date, and custom field values. A data_only
// plan has no columns, so the value map comes back empty.
func itemColumnValues(task services.Task, plan *replicationPlan, opts ReplicationOptions) (string, map[string]any) {
	name, standard := transform.StandardFields(task)
	if !opts.PreserveAssignees {
		delete(standard, "assignees")
	}
	if !opts.PreserveDates {
		delete(standard, "due_date")
	}

	values := map[string]any{}
	if opts.Mode != ModeDataOnly {
		for key, value := range standard {
			if columnID, ok := plan.standard[key]; ok {
				values[columnID] = value
			}
		}
		for columnID, value := range transform.CustomFieldValues(task, plan.custom) {
			values[columnID] = value
		}
	}
	return name, values
}
