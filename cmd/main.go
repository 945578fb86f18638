package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/AskChad/ClickUp-Monday-sync/internal/ratelimit"
	"github.com/AskChad/ClickUp-Monday-sync/internal/services"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := "config.toml"
	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	}

	clickup := services.NewClickUpService(ratelimit.NewClickUpGovernor(config.Sync.RequestsPerMinute))
	monday := services.NewMondayService(ratelimit.NewMondayGovernor(
		config.Sync.RequestsPerMinute,
		config.Sync.ComplexityPerMin,
		config.Sync.BudgetThreshold,
	))

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Source:     clickup,
		Target:     monday,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "cmsync",
		Usage:    "Sync ClickUp lists and attachments to Monday.com boards",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
