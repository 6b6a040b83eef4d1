package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/panqplex/panqplex/internal/repositories"
	"github.com/panqplex/panqplex/internal/scan"
	"github.com/panqplex/panqplex/internal/services"
	"github.com/panqplex/panqplex/internal/shared"
	"github.com/panqplex/panqplex/internal/tasks"
	"github.com/panqplex/panqplex/internal/throttle"
	"github.com/panqplex/panqplex/internal/transfer"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	transport  services.Transport
	creds      services.Credentials
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	db         *sql.DB
	engine     *tasks.Reconciler
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Transport  services.Transport
	Creds      services.Credentials
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Creds == nil {
		opts.Creds = services.NewFileCredentials()
	}

	return &Runner{
		config:     opts.Config,
		transport:  opts.Transport,
		creds:      opts.Creds,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, scanCommand, lsCommand, metaCommand, readyCommand, resolveCommand, checkCommand, syncCommand, accountsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// reloadConfig reads the config file named by the --config flag, keeping
// the current configuration when the file does not exist. Also applies the
// --verbose flag to the logger.
func (r *Runner) reloadConfig(cmd *cli.Command) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	path := cmd.String("config")
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, keeping current", "path", path, "error", err)
		return
	}
	r.config = config
}

// ensureEngine lazily opens the database, runs migrations, reconciles the
// account table with the configuration, and builds the sync engine.
func (r *Runner) ensureEngine(cmd *cli.Command) (*tasks.Reconciler, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	r.reloadConfig(cmd)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	files := repositories.NewFileRepository(db)
	accounts := repositories.NewAccountRepository(db)

	now := time.Now()
	defaultAccount := ""
	for i, cfg := range r.config.Accounts {
		if i == 0 {
			defaultAccount = cfg.ID
		}
		if _, err := accounts.Ensure(cfg, now); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to register account %s: %w", cfg.ID, err)
		}
	}

	transport := r.transport
	if transport == nil {
		transport = services.NewYouTubeService("", r.httpClient, r.creds, r.config.Upload.RatePerSecond)
	}

	manager := transfer.NewManager(transport, files, r.logger, transfer.Options{
		ChunkSize:      r.config.Upload.ChunkSize(),
		RetryAttempts:  r.config.Upload.RetryAttempts,
		RetryBaseDelay: r.config.Upload.BaseDelay(),
		RequestTimeout: r.config.Upload.Timeout(),
	})

	r.db = db
	r.engine = tasks.NewReconciler(tasks.ReconcilerOpts{
		Files:          files,
		Accounts:       accounts,
		Throttle:       throttle.NewScheduler(accounts, nil),
		Transfer:       manager,
		Scanner:        scan.NewScanner(r.config.Scan.Extensions),
		Logger:         r.logger,
		DefaultAccount: defaultAccount,
	})
	return r.engine, nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// consumeProgress drains engine progress updates onto the logger. Returns
// a done channel closed when the updates channel is exhausted.
func (r *Runner) consumeProgress(updates <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range updates {
			if update.FileID != "" {
				r.logger.Info(update.Message, "phase", update.Phase.String(), "file", update.FileID)
			} else {
				r.logger.Info(update.Message, "phase", update.Phase.String())
			}
		}
	}()
	return done
}

// Close releases the database handle if one was opened.
func (r *Runner) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
