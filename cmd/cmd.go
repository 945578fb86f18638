// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles database initialization.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize database and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration instead",
			},
		},
		Action: r.SetupDatabase,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage service authentication",
		Commands: []*cli.Command{
			{
				Name:  "clickup",
				Usage: "Authenticate with ClickUp using OAuth2",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: defaultAuthTimeout,
					},
				},
				Action: r.AuthClickUp,
			},
			{
				Name:  "monday",
				Usage: "Store a Monday.com API token in the credential vault",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Monday.com personal API token",
						Required: true,
					},
				},
				Action: r.AuthMonday,
			},
			{
				Name:   "status",
				Usage:  "Show which service credentials are available",
				Action: r.AuthStatus,
			},
		},
	}
}

// syncCommand runs attachment sync onto an existing board.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Copy task attachments from a ClickUp list onto a Monday board",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "list",
				Usage:    "Source ClickUp list ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "board",
				Usage:    "Target Monday board ID",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "include-closed",
				Usage: "Include closed tasks",
			},
			&cli.BoolFlag{
				Name:  "skip-duplicates",
				Usage: "Skip files already present on the target item",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "link-back",
				Usage: "Write the source task URL to a link column on each item",
			},
			&cli.Int64Flag{
				Name:  "max-file-size-mb",
				Usage: "Per-file size ceiling in megabytes (0 uses the config default)",
			},
			&cli.StringSliceFlag{
				Name:  "ext",
				Usage: "Restrict transfers to the given file extensions (repeatable)",
			},
			&cli.StringFlag{
				Name:    "report",
				Aliases: []string{"o"},
				Usage:   "Write a job report to this path when finished",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Report format: json, markdown or text",
				Value: "text",
			},
		},
		Action: r.SyncRun,
	}
}

// replicateCommand recreates a ClickUp list as a new Monday board.
func replicateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "replicate",
		Usage: "Recreate a ClickUp list as a new Monday board",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "list",
				Usage:    "Source ClickUp list ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Name for the new board (defaults to the list name)",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Replication mode: full, structure_only or data_only",
				Value: "full",
			},
			&cli.BoolFlag{
				Name:  "include-closed",
				Usage: "Include closed tasks",
			},
			&cli.BoolFlag{
				Name:  "subtasks",
				Usage: "Replicate subtasks as sub-items",
			},
			&cli.BoolFlag{
				Name:  "attachments",
				Usage: "Copy task attachments to the new items",
			},
			&cli.BoolFlag{
				Name:  "comments",
				Usage: "Repost task comments as item updates",
			},
			&cli.BoolFlag{
				Name:  "preserve-assignees",
				Usage: "Carry task assignees onto the created items",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "preserve-dates",
				Usage: "Carry due dates onto the created items",
				Value: true,
			},
			&cli.StringFlag{
				Name:    "report",
				Aliases: []string{"o"},
				Usage:   "Write a job report to this path when finished",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Report format: json, markdown or text",
				Value: "text",
			},
		},
		Action: r.ReplicateRun,
	}
}

// listsCommand inspects a ClickUp list before syncing it.
func listsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "lists",
		Usage: "Show a ClickUp list's metadata, custom fields and tasks",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "tasks",
				Usage: "Also list the tasks on the list",
			},
			&cli.BoolFlag{
				Name:  "include-closed",
				Usage: "Include closed tasks",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.ListsShow,
	}
}

// boardsCommand inspects a Monday board before targeting it.
func boardsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "boards",
		Usage: "Show a Monday board's columns and items",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "items",
				Usage: "Also list the items on the board",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.BoardsShow,
	}
}

// jobsCommand inspects the persisted job store.
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect sync and replication jobs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded jobs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Filter by kind (file_sync or list_replication)",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JobsList,
			},
			{
				Name:  "status",
				Usage: "Show one job's progress, counts and error log",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.StringFlag{
						Name:    "report",
						Aliases: []string{"o"},
						Usage:   "Write a report file to this path",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Report format: json, markdown or text",
						Value: "json",
					},
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Also write the transfer table as CSV",
					},
				},
				Action: r.JobsStatus,
			},
		},
	}
}
