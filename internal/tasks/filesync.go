package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/AskChad/ClickUp-Monday-sync/internal/batch"
	"github.com/AskChad/ClickUp-Monday-sync/internal/dedupe"
	"github.com/AskChad/ClickUp-Monday-sync/internal/models"
	"github.com/AskChad/ClickUp-Monday-sync/internal/ratelimit"
	"github.com/AskChad/ClickUp-Monday-sync/internal/services"
)

const (
	fileColumnTitle = "Files"
	linkColumnTitle = "Source Link"
)

// boardColumns lazily creates the file and link columns a sync needs.
// Columns are created at most once per job, on first use.
type boardColumns struct {
	mu      sync.Mutex
	boardID string
	target  services.TargetService

	fileColumnID string
	linkColumnID string
}

func newBoardColumns(boardID string, board *services.Board, target services.TargetService) *boardColumns {
	c := &boardColumns{boardID: boardID, target: target}
	if board == nil {
		return c
	}
	for _, col := range board.Columns {
		switch col.Type {
		case "file":
			if c.fileColumnID == "" {
				c.fileColumnID = col.ID
			}
		case "link":
			if c.linkColumnID == "" && strings.EqualFold(col.Title, linkColumnTitle) {
				c.linkColumnID = col.ID
			}
		}
	}
	return c
}

func (c *boardColumns) file(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fileColumnID != "" {
		return c.fileColumnID, nil
	}
	col, err := c.target.CreateColumn(ctx, c.boardID, fileColumnTitle, "file", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create file column: %w", err)
	}
	c.fileColumnID = col.ID
	return col.ID, nil
}

func (c *boardColumns) link(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.linkColumnID != "" {
		return c.linkColumnID, nil
	}
	col, err := c.target.CreateColumn(ctx, c.boardID, linkColumnTitle, "link", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create link column: %w", err)
	}
	c.linkColumnID = col.ID
	return col.ID, nil
}

// itemIndex matches source task names to target items.
type itemIndex struct {
	items []services.Item
	exact map[string]services.Item
}

func newItemIndex(items []services.Item) *itemIndex {
	idx := &itemIndex{items: items, exact: make(map[string]services.Item, len(items))}
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item.Name))
		if _, taken := idx.exact[key]; !taken {
			idx.exact[key] = item
		}
	}
	return idx
}

// match resolves a task name to an item: exact case-insensitive match first,
// then substring containment in either direction. Returns false when nothing
// matches; ambiguity resolves to the first candidate in board order.
func (idx *itemIndex) match(taskName string) (services.Item, bool) {
	name := strings.ToLower(strings.TrimSpace(taskName))
	if item, ok := idx.exact[name]; ok {
		return item, true
	}
	for _, item := range idx.items {
		itemName := strings.ToLower(strings.TrimSpace(item.Name))
		if itemName == "" {
			continue
		}
		if strings.Contains(itemName, name) || strings.Contains(name, itemName) {
			return item, true
		}
	}
	return services.Item{}, false
}

// runFileSync executes a file sync job end to end.
func (e *Engine) runFileSync(ctx context.Context, jobID, sourceListID, targetBoardID string, opts FileSyncOptions, progress chan<- ProgressUpdate) {
	logger := e.logger.With("job", jobID, "kind", models.JobFileSync)

	if err := e.jobs.SetStatus(jobID, models.StatusRunning); err != nil {
		logger.Error("failed to mark job running", "error", err)
		return
	}

	list, err := e.source.GetList(ctx, sourceListID)
	if err != nil {
		e.failJob(jobID, fmt.Errorf("source list lookup failed: %w", err))
		return
	}

	board, err := e.target.GetBoard(ctx, targetBoardID)
	if err != nil {
		e.failJob(jobID, fmt.Errorf("target board lookup failed: %w", err))
		return
	}

	tasks, err := e.source.GetTasks(ctx, sourceListID, services.TaskFilter{IncludeClosed: opts.IncludeClosed})
	if err != nil {
		e.failJob(jobID, fmt.Errorf("task listing failed: %w", err))
		return
	}
	e.sendProgress(progress, fetchSourceUpdate(list.Name, len(tasks)))

	// Listings carry no attachment data, so every task's detail is fetched up
	// front. Only tasks that actually hold attachments enter the run; the job
	// total counts those, not the whole list.
	var withFiles []services.Task
	for _, task := range tasks {
		var detail *services.Task
		_, err := ratelimit.Do(ctx, e.backoffConfig(), func() error {
			var fetchErr error
			detail, fetchErr = e.source.GetTask(ctx, task.ID)
			return fetchErr
		})
		if err != nil {
			logger.Warn("task detail fetch failed", "task", task.ID, "error", err)
			if appendErr := e.jobs.AppendError(jobID, fmt.Sprintf("task %s: detail fetch failed: %v", task.ID, err)); appendErr != nil {
				logger.Error("failed to record detail error", "error", appendErr)
			}
			continue
		}
		if len(detail.Attachments) == 0 {
			continue
		}
		withFiles = append(withFiles, *detail)
	}

	items, err := e.target.ListItems(ctx, targetBoardID)
	if err != nil {
		e.failJob(jobID, fmt.Errorf("target item listing failed: %w", err))
		return
	}

	if err := e.jobs.SetTotal(jobID, len(withFiles)); err != nil {
		logger.Error("failed to record job total", "error", err)
	}

	index := newItemIndex(items)
	columns := newBoardColumns(targetBoardID, board, e.target)
	limits := dedupe.Limits{MaxSize: e.maxFileSize(opts.MaxFileSize), AllowedExts: opts.AllowedExts}

	runner := batch.NewRunner[services.Task](batch.Config{
		BatchSize:   e.cfg.BatchSize,
		BatchDelay:  e.batchDelay(batch.DefaultBatchDelay),
		Concurrency: e.cfg.MaxConcurrency,
		Backoff:     e.backoffConfig(),
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
		e.sendProgress(progress, matchItemsUpdate(p.Completed, p.Total, p.Result.ID))
	})

	summary, runErr := runner.Run(ctx, withFiles, func(t services.Task) string { return t.ID }, func(ctx context.Context, task services.Task) (any, error) {
		return nil, e.syncTaskFiles(ctx, jobID, task, index, columns, limits, opts, progress)
	})

	e.sendProgress(progress, finishedUpdate(jobID, summary.Successful, summary.Failed, summary.Skipped))
	logger.Info("file sync finished",
		"successful", summary.Successful,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", summary.Duration,
	)
	e.finishJob(jobID, runErr)
}

// syncTaskFiles copies one task's attachments onto its matched item. The task
// is detail-complete; attachments were resolved before the run started.
func (e *Engine) syncTaskFiles(ctx context.Context, jobID string, task services.Task, index *itemIndex, columns *boardColumns, limits dedupe.Limits, opts FileSyncOptions, progress chan<- ProgressUpdate) error {
	logger := e.logger.With("job", jobID, "task", task.ID)

	item, ok := index.match(task.Name)
	if !ok {
		logger.Warn("no matching item on target board", "task_name", task.Name)
		return fmt.Errorf("no matching item for %q: %w", task.Name, batch.ErrSkip)
	}

	var existing []services.Asset
	if opts.SkipDuplicates {
		var err error
		existing, err = e.target.GetItemAssets(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("asset listing failed: %w", err)
		}
	}

	var failures int
	for i, att := range task.Attachments {
		e.sendProgress(progress, transferUpdate(i+1, len(task.Attachments), att.Name))
		record := models.NewTransferRecord(jobID, task.ID, item.ID, att.Name, att.Size)

		if ok, reason := dedupe.ValidateFile(att, limits); !ok {
			record.SetStatus(models.TransferSkipped)
			record.SetErrorMessage(reason)
			e.saveTransfer(record, logger)
			continue
		}

		if opts.SkipDuplicates {
			if dup, ok := dedupe.MatchByNameAndSize(att, existing); ok {
				record.SetStatus(models.TransferSkipped)
				record.SetErrorMessage(fmt.Sprintf("already present on item as asset %s", dup.ID))
				e.saveTransfer(record, logger)
				continue
			}
		}

		if err := e.transferFile(ctx, att, item, columns); err != nil {
			failures++
			logger.Warn("file transfer failed", "file", att.Name, "error", err)
			record.SetStatus(models.TransferFailed)
			record.SetErrorMessage(err.Error())
			e.saveTransfer(record, logger)
			if appendErr := e.jobs.AppendError(jobID, fmt.Sprintf("file %s on task %s: %v", att.Name, task.ID, err)); appendErr != nil {
				logger.Error("failed to record file error", "error", appendErr)
			}
			continue
		}

		record.SetStatus(models.TransferTransferred)
		e.saveTransfer(record, logger)
	}

	if opts.LinkBack && task.URL != "" {
		linkID, err := columns.link(ctx)
		if err != nil {
			logger.Warn("link column unavailable", "error", err)
		} else {
			value := map[string]string{"url": task.URL, "text": task.Name}
			if err := e.target.ChangeColumnValue(ctx, item.BoardID, item.ID, linkID, value); err != nil {
				logger.Warn("link-back write failed", "error", err)
			}
		}
	}

	if failures == len(task.Attachments) {
		return fmt.Errorf("all %d attachments failed to transfer", failures)
	}
	return nil
}

// transferFile downloads one attachment and uploads it into the file column.
func (e *Engine) transferFile(ctx context.Context, att services.Attachment, item services.Item, columns *boardColumns) error {
	data, err := e.source.DownloadAttachment(ctx, att)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	columnID, err := columns.file(ctx)
	if err != nil {
		return err
	}

	if _, err := e.target.AddFileToColumn(ctx, item.ID, columnID, att.Name, data); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

func (e *Engine) saveTransfer(record *models.TransferRecord, logger *log.Logger) {
	if err := e.transfers.Create(record); err != nil {
		logger.Error("failed to persist transfer record", "error", err)
	}
}
