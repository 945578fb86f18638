package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/AskChad/ClickUp-Monday-sync/internal/formatter"
	"github.com/AskChad/ClickUp-Monday-sync/internal/models"
	"github.com/AskChad/ClickUp-Monday-sync/internal/repositories"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
	"github.com/AskChad/ClickUp-Monday-sync/internal/tasks"
)

// JobsList lists recorded jobs, newest first.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	db, closeDB, err := r.openDB()
	if err != nil {
		return err
	}
	defer closeDB()

	jobs, err := repositories.NewJobRepository(db).List(map[string]any{
		"kind":   cmd.String("kind"),
		"status": cmd.String("status"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		rows := make([]map[string]any, 0, len(jobs))
		for _, job := range jobs {
			rows = append(rows, map[string]any{
				"id":         job.ID(),
				"kind":       job.Kind(),
				"status":     job.Status(),
				"list":       job.SourceListID(),
				"board":      job.TargetBoardID(),
				"progress":   fmt.Sprintf("%d/%d", job.ProcessedItems(), job.TotalItems()),
				"created_at": job.CreatedAt().Format(time.RFC3339),
			})
		}
		return r.writeJSON(rows, true)
	}

	if len(jobs) == 0 {
		return r.writePlain("No jobs recorded.\n")
	}

	for _, job := range jobs {
		r.writePlain("%s  %-16s  %-10s  %d/%d  %s\n",
			job.ID(), job.Kind(), formatter.RenderStatus(job.Status()),
			job.ProcessedItems(), job.TotalItems(),
			job.CreatedAt().Format("2006-01-02 15:04"))
	}
	return nil
}

// JobsStatus shows one job's progress, counts and error log.
func (r *Runner) JobsStatus(ctx context.Context, cmd *cli.Command) error {
	jobID := cmd.StringArg("id")
	if jobID == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}

	db, closeDB, err := r.openDB()
	if err != nil {
		return err
	}
	defer closeDB()

	engine := r.newEngine(db)
	report, err := r.buildReport(db, engine, jobID)
	if err != nil {
		return err
	}

	if path := cmd.String("report"); path != "" {
		written, err := formatter.WriteReport(report, cmd.String("format"), path)
		if err != nil {
			return err
		}
		r.writePlain("Report written to %s\n", written)
	}
	if cmd.Bool("csv") {
		written, err := formatter.WriteTransfersCSV(report, "")
		if err != nil {
			return err
		}
		r.writePlain("Transfer table written to %s\n", written)
	}

	if cmd.Bool("json") {
		data, err := formatter.ExportToJSON(report)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", data)
	}

	return r.printSummary(report)
}

// buildReport assembles a formatter report from the job snapshot and its
// persisted mapping and transfer rows.
func (r *Runner) buildReport(db *sql.DB, engine *tasks.Engine, jobID string) (*formatter.Report, error) {
	snapshot, err := engine.JobStatus(jobID)
	if err != nil {
		return nil, err
	}

	mappings, err := repositories.NewFieldMappingRepository(db).ListByJob(jobID)
	if err != nil {
		return nil, err
	}
	transfers, err := repositories.NewTransferRepository(db).ListByJob(jobID)
	if err != nil {
		return nil, err
	}

	return &formatter.Report{Snapshot: snapshot, Mappings: mappings, Transfers: transfers}, nil
}

// summarize prints the post-run summary for sync and replicate commands and
// optionally writes a report file.
func (r *Runner) summarize(db *sql.DB, engine *tasks.Engine, jobID, reportPath, format string) error {
	report, err := r.buildReport(db, engine, jobID)
	if err != nil {
		return err
	}

	if reportPath != "" {
		written, err := formatter.WriteReport(report, format, reportPath)
		if err != nil {
			return err
		}
		r.writePlain("\nReport written to %s\n", written)
	}

	return r.printSummary(report)
}

func (r *Runner) printSummary(report *formatter.Report) error {
	job := report.Snapshot.Job

	r.writePlain("\n")
	r.writePlainHeader(fmt.Sprintf("Job %s", job.ID()))
	r.writePlain("Status: %s\n", formatter.RenderStatus(job.Status()))
	r.writePlain("Progress: %d/%d items\n", job.ProcessedItems(), job.TotalItems())
	if elapsed := formatter.Elapsed(job.StartedAt(), job.CompletedAt()); elapsed != "" {
		r.writePlain("Duration: %s\n", elapsed)
	}

	if job.Kind() == models.JobListReplication {
		if job.TargetBoardID() != "" {
			r.writePlain("Board: %s (%s)\n", job.TargetBoardName(), job.TargetBoardID())
		}
		r.writePlain("Columns mapped: %d, items created: %d\n",
			report.Snapshot.FieldMappings, report.Snapshot.TaskMappings)
	}
	if report.Snapshot.Transferred+report.Snapshot.SkippedFiles+report.Snapshot.FailedFiles > 0 {
		r.writePlain("Files: %d transferred, %d skipped, %d failed\n",
			report.Snapshot.Transferred, report.Snapshot.SkippedFiles, report.Snapshot.FailedFiles)
	}

	if errs := job.ErrorLog(); len(errs) > 0 {
		r.writePlain("\nErrors (%d):\n", len(errs))
		for _, e := range errs {
			r.writePlain("  - %s\n", e.Message)
		}
	}

	return nil
}
