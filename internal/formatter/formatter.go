// package formatter renders job reports to various formats (JSON, Markdown, plain text, CSV)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/AskChad/ClickUp-Monday-sync/internal/models"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
	"github.com/AskChad/ClickUp-Monday-sync/internal/tasks"
)

// Report bundles a job snapshot with the persisted rows backing it.
//
// Transfers and Mappings are optional; sections for them are omitted from
// rendered output when empty.
type Report struct {
	Snapshot  *tasks.JobSnapshot
	Mappings  []*models.FieldMapping
	Transfers []*models.TransferRecord
}

type reportDoc struct {
	JobID          string              `json:"job_id"`
	Kind           string              `json:"kind"`
	Status         string              `json:"status"`
	SourceListID   string              `json:"source_list_id"`
	TargetBoardID  string              `json:"target_board_id,omitempty"`
	TargetBoard    string              `json:"target_board_name,omitempty"`
	TotalItems     int                 `json:"total_items"`
	ProcessedItems int                 `json:"processed_items"`
	FieldMappings  int                 `json:"field_mappings"`
	TaskMappings   int                 `json:"task_mappings"`
	Transferred    int                 `json:"transferred_files"`
	SkippedFiles   int                 `json:"skipped_files"`
	FailedFiles    int                 `json:"failed_files"`
	StartedAt      *time.Time          `json:"started_at,omitempty"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
	Errors         []models.ErrorEntry `json:"errors,omitempty"`
}

// ExportToJSON converts a report to pretty-printed JSON.
func ExportToJSON(report *Report) ([]byte, error) {
	job := report.Snapshot.Job
	doc := reportDoc{
		JobID:          job.ID(),
		Kind:           string(job.Kind()),
		Status:         string(job.Status()),
		SourceListID:   job.SourceListID(),
		TargetBoardID:  job.TargetBoardID(),
		TargetBoard:    job.TargetBoardName(),
		TotalItems:     job.TotalItems(),
		ProcessedItems: job.ProcessedItems(),
		FieldMappings:  report.Snapshot.FieldMappings,
		TaskMappings:   report.Snapshot.TaskMappings,
		Transferred:    report.Snapshot.Transferred,
		SkippedFiles:   report.Snapshot.SkippedFiles,
		FailedFiles:    report.Snapshot.FailedFiles,
		StartedAt:      job.StartedAt(),
		CompletedAt:    job.CompletedAt(),
		Errors:         job.ErrorLog(),
	}
	return shared.MarshalJSON(doc, true)
}

// ExportToMarkdown converts a report to Markdown with a summary table,
// optional field mapping and transfer tables, and the error log.
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	job := report.Snapshot.Job

	buf.WriteString(fmt.Sprintf("# Job %s\n\n", job.ID()))
	buf.WriteString(fmt.Sprintf("**Kind**: %s\n", job.Kind()))
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", job.Status()))
	buf.WriteString(fmt.Sprintf("**Source List**: %s\n", job.SourceListID()))
	if job.TargetBoardID() != "" {
		board := job.TargetBoardID()
		if job.TargetBoardName() != "" {
			board = fmt.Sprintf("%s (%s)", job.TargetBoardName(), job.TargetBoardID())
		}
		buf.WriteString(fmt.Sprintf("**Target Board**: %s\n", board))
	}
	buf.WriteString(fmt.Sprintf("**Progress**: %d/%d\n", job.ProcessedItems(), job.TotalItems()))
	if elapsed := Elapsed(job.StartedAt(), job.CompletedAt()); elapsed != "" {
		buf.WriteString(fmt.Sprintf("**Duration**: %s\n", elapsed))
	}
	buf.WriteString("\n## Counts\n\n")
	buf.WriteString("| Metric | Count |\n|---|---|\n")
	buf.WriteString(fmt.Sprintf("| Field mappings | %d |\n", report.Snapshot.FieldMappings))
	buf.WriteString(fmt.Sprintf("| Task mappings | %d |\n", report.Snapshot.TaskMappings))
	buf.WriteString(fmt.Sprintf("| Files transferred | %d |\n", report.Snapshot.Transferred))
	buf.WriteString(fmt.Sprintf("| Files skipped | %d |\n", report.Snapshot.SkippedFiles))
	buf.WriteString(fmt.Sprintf("| Files failed | %d |\n", report.Snapshot.FailedFiles))

	if len(report.Mappings) > 0 {
		buf.WriteString("\n## Field Mappings\n\n")
		buf.WriteString("| Source Field | Source Type | Target Column | Target Type |\n|---|---|---|---|\n")
		for _, m := range report.Mappings {
			buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				m.SourceFieldName(), m.SourceFieldType(), m.TargetColumnTitle(), m.TargetColumnType()))
		}
	}

	if len(report.Transfers) > 0 {
		buf.WriteString("\n## Transfers\n\n")
		buf.WriteString("| File | Size | Task | Item | Status |\n|---|---|---|---|---|\n")
		for _, tr := range report.Transfers {
			buf.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s |\n",
				tr.FileName(), tr.FileSize(), tr.SourceTaskID(), tr.TargetItemID(), tr.Status()))
		}
	}

	if errs := job.ErrorLog(); len(errs) > 0 {
		buf.WriteString("\n## Errors\n\n")
		for _, e := range errs {
			buf.WriteString(fmt.Sprintf("- `%s` %s\n", e.Timestamp.Format(time.RFC3339), e.Message))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a report to plain text.
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	job := report.Snapshot.Job

	buf.WriteString(fmt.Sprintf("Job: %s\n", job.ID()))
	buf.WriteString(fmt.Sprintf("Kind: %s\n", job.Kind()))
	buf.WriteString(fmt.Sprintf("Status: %s\n", job.Status()))
	buf.WriteString(fmt.Sprintf("Source list: %s\n", job.SourceListID()))
	if job.TargetBoardID() != "" {
		buf.WriteString(fmt.Sprintf("Target board: %s\n", job.TargetBoardID()))
	}
	buf.WriteString(fmt.Sprintf("Progress: %d/%d\n", job.ProcessedItems(), job.TotalItems()))
	buf.WriteString(fmt.Sprintf("Transferred: %d, skipped: %d, failed: %d\n",
		report.Snapshot.Transferred, report.Snapshot.SkippedFiles, report.Snapshot.FailedFiles))

	if errs := job.ErrorLog(); len(errs) > 0 {
		buf.WriteString("\nErrors:\n")
		for i, e := range errs {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, e.Message))
		}
	}

	return buf.Bytes(), nil
}

// ExportTransfersToCSV converts transfer records to CSV with columns:
// Sequence, SourceTask, TargetItem, FileName, Size, Status, Error
func ExportTransfersToCSV(records []*models.TransferRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "SourceTask", "TargetItem", "FileName", "Size", "Status", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range records {
		record := []string{
			strconv.Itoa(r.Sequence()),
			r.SourceTaskID(),
			r.TargetItemID(),
			r.FileName(),
			strconv.FormatInt(r.FileSize(), 10),
			string(r.Status()),
			r.ErrorMessage(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// Elapsed formats the wall-clock duration between two optional timestamps.
// An unfinished job measures against the current time; an unstarted job
// yields the empty string.
func Elapsed(started, completed *time.Time) string {
	if started == nil {
		return ""
	}
	end := time.Now()
	if completed != nil {
		end = *completed
	}
	return end.Sub(*started).Round(time.Millisecond).String()
}

// WriteReport writes a report to disk in the given format ("json", "markdown"
// or "text"), returning the path written. An empty path defaults to
// {jobID}_report.{ext}.
func WriteReport(report *Report, format, path string) (string, error) {
	var (
		data []byte
		err  error
		ext  string
	)

	switch format {
	case "json":
		data, err = ExportToJSON(report)
		ext = "json"
	case "markdown", "md":
		data, err = ExportToMarkdown(report)
		ext = "md"
	case "text", "txt":
		data, err = ExportToText(report)
		ext = "txt"
	default:
		return "", fmt.Errorf("unsupported report format: %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	if path == "" {
		path = fmt.Sprintf("%s_report.%s", report.Snapshot.Job.ID(), ext)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}

// WriteTransfersCSV writes the transfer table to a CSV file, returning the
// path written. An empty path defaults to {jobID}_transfers.csv.
func WriteTransfersCSV(report *Report, path string) (string, error) {
	data, err := ExportTransfersToCSV(report.Transfers)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if path == "" {
		path = fmt.Sprintf("%s_transfers.csv", report.Snapshot.Job.ID())
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return path, nil
}
