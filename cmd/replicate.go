package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/AskChad/ClickUp-Monday-sync/internal/tasks"
)

// ReplicateRun recreates a ClickUp list as a new Monday board and waits for
// the job to finish.
func (r *Runner) ReplicateRun(ctx context.Context, cmd *cli.Command) error {
	listID := cmd.String("list")
	boardName := cmd.String("name")

	db, closeDB, err := r.openDB()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := r.connect(ctx, db); err != nil {
		return err
	}

	opts := tasks.ReplicationOptions{
		Mode:               tasks.ReplicationMode(cmd.String("mode")),
		IncludeClosed:      cmd.Bool("include-closed"),
		IncludeSubtasks:    cmd.Bool("subtasks"),
		IncludeAttachments: cmd.Bool("attachments"),
		IncludeComments:    cmd.Bool("comments"),
		PreserveAssignees:  cmd.Bool("preserve-assignees"),
		PreserveDates:      cmd.Bool("preserve-dates"),
	}

	r.logger.Info("starting replication", "list", listID, "mode", opts.Mode)
	r.writePlain("Replicating list %s to a new board\n\n", listID)

	engine := r.newEngine(db)
	progressCh := make(chan tasks.ProgressUpdate, 50)
	progressDone := r.watchProgress(progressCh)

	jobID, err := engine.StartReplication(ctx, progressCh, listID, boardName, opts)
	if err != nil {
		close(progressCh)
		<-progressDone
		return err
	}

	engine.Wait()
	close(progressCh)
	<-progressDone

	return r.summarize(db, engine, jobID, cmd.String("report"), cmd.String("format"))
}
