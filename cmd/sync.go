package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/AskChad/ClickUp-Monday-sync/internal/tasks"
)

// SyncRun copies task attachments from a ClickUp list onto matching items of
// an existing Monday board and waits for the job to finish.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	listID := cmd.String("list")
	boardID := cmd.String("board")

	db, closeDB, err := r.openDB()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := r.connect(ctx, db); err != nil {
		return err
	}

	opts := tasks.FileSyncOptions{
		IncludeClosed:  cmd.Bool("include-closed"),
		SkipDuplicates: cmd.Bool("skip-duplicates"),
		LinkBack:       cmd.Bool("link-back"),
		MaxFileSize:    cmd.Int64("max-file-size-mb") * 1024 * 1024,
		AllowedExts:    cmd.StringSlice("ext"),
	}

	r.logger.Info("starting file sync", "list", listID, "board", boardID)
	r.writePlain("Syncing attachments from list %s to board %s\n\n", listID, boardID)

	engine := r.newEngine(db)
	progressCh := make(chan tasks.ProgressUpdate, 50)
	progressDone := r.watchProgress(progressCh)

	jobID, err := engine.StartFileSync(ctx, progressCh, listID, boardID, opts)
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
