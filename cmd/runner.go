package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/AskChad/ClickUp-Monday-sync/internal/repositories"
	"github.com/AskChad/ClickUp-Monday-sync/internal/services"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
	"github.com/AskChad/ClickUp-Monday-sync/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	source     services.SourceService
	target     services.TargetService
	logger     *log.Logger
	output     io.Writer
	db         *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
//
// DB is optional; when nil, commands that need the job store open the
// database from the config path on demand.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Source     services.SourceService
	Target     services.TargetService
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		source:     opts.Source,
		target:     opts.Target,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, replicateCommand, jobsCommand,
		listsCommand, boardsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openDB returns the job store database, opening it from the configured path
// when one was not injected. The returned cleanup is a no-op for injected
// databases.
func (r *Runner) openDB() (*sql.DB, func(), error) {
	if r.db != nil {
		return r.db, func() {}, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	return db, func() { db.Close() }, nil
}

// newEngine builds a sync engine over the given database using the runner's services.
func (r *Runner) newEngine(db *sql.DB) *tasks.Engine {
	return tasks.NewEngine(
		repositories.NewJobRepository(db),
		repositories.NewFieldMappingRepository(db),
		repositories.NewTaskMappingRepository(db),
		repositories.NewTransferRepository(db),
		r.source,
		r.target,
		r.logger,
		r.config.Sync,
	)
}

// connect authenticates both services, resolving tokens from the config file
// first and the credential vault second.
func (r *Runner) connect(ctx context.Context, db *sql.DB) error {
	if err := r.connectSource(ctx, db); err != nil {
		return err
	}
	return r.connectTarget(ctx, db)
}

func (r *Runner) connectSource(ctx context.Context, db *sql.DB) error {
	if r.source == nil {
		return fmt.Errorf("%w: services not initialized", shared.ErrServiceUnavailable)
	}

	token, err := r.resolveToken(db, r.config.Credentials.ClickUp.APIToken, "clickup")
	if err != nil {
		return fmt.Errorf("%w: no ClickUp token in config or vault, run 'cmsync auth clickup'", shared.ErrMissingCredentials)
	}
	return r.source.Authenticate(ctx, map[string]string{"access_token": token})
}

func (r *Runner) connectTarget(ctx context.Context, db *sql.DB) error {
	if r.target == nil {
		return fmt.Errorf("%w: services not initialized", shared.ErrServiceUnavailable)
	}

	token, err := r.resolveToken(db, r.config.Credentials.Monday.APIToken, "monday")
	if err != nil {
		return fmt.Errorf("%w: no Monday token in config or vault, run 'cmsync auth monday'", shared.ErrMissingCredentials)
	}
	return r.target.Authenticate(ctx, map[string]string{"api_token": token})
}

func (r *Runner) resolveToken(db *sql.DB, configured, service string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	vault, err := r.vault(db)
	if err != nil {
		return "", err
	}
	return vault.Get(defaultUser, service)
}

// defaultUser keys vault entries for the single-user CLI.
const defaultUser = "default"

func (r *Runner) vault(db *sql.DB) (*repositories.Vault, error) {
	if r.config.Credentials.VaultKey == "" {
		return nil, fmt.Errorf("%w: vault_key not set in config", shared.ErrMissingConfig)
	}
	return repositories.NewVault(db, r.config.Credentials.VaultKey)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// watchProgress prints progress updates until the channel closes.
// Returns a done channel so callers can wait for the final line to flush.
func (r *Runner) watchProgress(ch <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range ch {
			switch update.Phase {
			case tasks.FetchSource, tasks.MatchItems, tasks.Mapping, tasks.Creating:
				r.writePlain("→ %s\n", update.Message)
			case tasks.Migrating, tasks.TransferFiles:
				if update.Total > 0 {
					r.writePlain("  [%d/%d] %s\n", update.Step, update.Total, update.Message)
				} else {
					r.writePlain("  %s\n", update.Message)
				}
			case tasks.Finished:
				r.writePlain("✓ %s\n", update.Message)
			}
		}
	}()
	return done
}
