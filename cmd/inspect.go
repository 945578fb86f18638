package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/AskChad/ClickUp-Monday-sync/internal/services"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

// ListsShow prints a ClickUp list's metadata, custom fields and tasks.
func (r *Runner) ListsShow(ctx context.Context, cmd *cli.Command) error {
	listID := cmd.StringArg("id")
	if listID == "" {
		return fmt.Errorf("%w: list id", shared.ErrMissingArgument)
	}

	db, closeDB, err := r.openDB()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := r.connectSource(ctx, db); err != nil {
		return err
	}

	list, err := r.source.GetList(ctx, listID)
	if err != nil {
		return err
	}
	fields, err := r.source.GetCustomFields(ctx, listID)
	if err != nil {
		return err
	}

	var taskList []services.Task
	if cmd.Bool("tasks") {
		filter := services.TaskFilter{IncludeClosed: cmd.Bool("include-closed")}
		taskList, err = r.source.GetTasks(ctx, listID, filter)
		if err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		doc := map[string]any{
			"id":            list.ID,
			"name":          list.Name,
			"task_count":    list.TaskCount,
			"custom_fields": fields,
		}
		if taskList != nil {
			doc["tasks"] = taskList
		}
		return r.writeJSON(doc, true)
	}

	r.writePlainHeader(fmt.Sprintf("List %s", list.Name))
	r.writePlain("ID: %s\n", list.ID)
	r.writePlain("Tasks: %d\n", list.TaskCount)

	if len(fields) > 0 {
		r.writePlain("\nCustom fields (%d):\n", len(fields))
		for _, f := range fields {
			r.writePlain("  %-24s  %s\n", f.Name, f.Type)
		}
	}
	if cmd.Bool("tasks") {
		r.writePlain("\nTasks (%d):\n", len(taskList))
		for _, task := range taskList {
			r.writePlain("  %s  %-10s  %s\n", task.ID, task.Status, task.Name)
		}
	}

	return nil
}

// BoardsShow prints a Monday board's columns and items.
func (r *Runner) BoardsShow(ctx context.Context, cmd *cli.Command) error {
	boardID := cmd.StringArg("id")
	if boardID == "" {
		return fmt.Errorf("%w: board id", shared.ErrMissingArgument)
	}

	db, closeDB, err := r.openDB()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := r.connectTarget(ctx, db); err != nil {
		return err
	}

	board, err := r.target.GetBoard(ctx, boardID)
	if err != nil {
		return err
	}

	var items []services.Item
	if cmd.Bool("items") {
		items, err = r.target.ListItems(ctx, boardID)
		if err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		doc := map[string]any{
			"id":      board.ID,
			"name":    board.Name,
			"columns": board.Columns,
		}
		if items != nil {
			doc["items"] = items
		}
		return r.writeJSON(doc, true)
	}

	r.writePlainHeader(fmt.Sprintf("Board %s", board.Name))
	r.writePlain("ID: %s\n", board.ID)

	if len(board.Columns) > 0 {
		r.writePlain("\nColumns (%d):\n", len(board.Columns))
		for _, c := range board.Columns {
			r.writePlain("  %-24s  %s\n", c.Title, c.Type)
		}
	}
	if cmd.Bool("items") {
		r.writePlain("\nItems (%d):\n", len(items))
		for _, item := range items {
			r.writePlain("  %s  %s\n", item.ID, item.Name)
		}
	}

	return nil
}
