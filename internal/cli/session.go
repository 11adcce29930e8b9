package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/provsync/internal/config"
	"github.com/roach88/provsync/internal/memstore"
	"github.com/roach88/provsync/internal/neo4jstore"
	"github.com/roach88/provsync/internal/pgstore"
	"github.com/roach88/provsync/internal/reconcile"
	"github.com/roach88/provsync/internal/store"
)

// session holds what a command needs for one invocation: configuration,
// logger, an open store and a reconciler wired to it.
type session struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      reconcile.Store
	reconciler *reconcile.Reconciler

	registry    *prometheus.Registry
	metricsFile string
	closeStore  func() error
}

// open loads configuration, applies flag overrides, installs the logger and
// opens the configured store. Failures are reported through f.
func (o *RootOptions) open(ctx context.Context, cmd *cobra.Command, f *OutputFormatter) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, f.Fail(ExitCommandError, CodeConfig, "load config", err)
	}

	logger, err := setupLogging(cmd.ErrOrStderr(), cfg, o.Verbose)
	if err != nil {
		return nil, f.Fail(ExitCommandError, CodeConfig, "configure logging", err)
	}
	logger.Debug("configuration loaded", cfg.LogAttrs()...)

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, f.Fail(ExitCommandError, CodeStoreOpen, "open store", err)
	}

	registry := prometheus.NewRegistry()
	metrics := reconcile.NewMetrics()
	metrics.MustRegister(registry)

	ropts := []reconcile.Option{
		reconcile.WithLogger(logger),
		reconcile.WithMetrics(metrics),
		reconcile.WithTimeout(cfg.Reconcile.Timeout),
		reconcile.WithMaxRetries(cfg.Reconcile.MaxRetries),
		reconcile.WithConcurrency(cfg.Reconcile.Concurrency),
		reconcile.WithBackoff(cfg.Reconcile.Backoff),
	}
	if o.RunIDs != nil {
		ropts = append(ropts, reconcile.WithRunIDs(o.RunIDs))
	}

	return &session{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		reconciler:  reconcile.New(st, ropts...),
		registry:    registry,
		metricsFile: o.MetricsFile,
		closeStore:  closeStore,
	}, nil
}

// Close writes the metrics file, if requested, and closes the store.
func (s *session) Close() error {
	var errs []error
	if s.metricsFile != "" {
		if err := prometheus.WriteToTextfile(s.metricsFile, s.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics file: %w", err))
		}
	}
	if err := s.closeStore(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("error closing session", "error", err)
		return err
	}
	return nil
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	var files []string
	if o.EnvFile != "" {
		if _, err := os.Stat(o.EnvFile); err != nil {
			return nil, fmt.Errorf("env file: %w", err)
		}
		files = append(files, o.EnvFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}

	if o.Backend != "" {
		cfg.Backend = o.Backend
	}
	if o.DB != "" {
		switch cfg.Backend {
		case config.BackendSQLite:
			cfg.SQLite.Path = o.DB
		case config.BackendPostgres:
			cfg.Postgres.DSN = o.DB
		case config.BackendNeo4j:
			cfg.Neo4j.URI = o.DB
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs a text handler on w as the default logger. --verbose
// forces debug level.
func setupLogging(w io.Writer, cfg *config.Config, verbose bool) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (reconcile.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		logger.Debug("opening database", "backend", cfg.Backend, "path", cfg.SQLite.Path)
		st, err := store.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case config.BackendPostgres:
		logger.Debug("opening database", "backend", cfg.Backend, "host", cfg.Postgres.Host)
		st, err := pgstore.Open(ctx, cfg.Postgres.ConnString(), logger)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case config.BackendNeo4j:
		logger.Debug("opening database", "backend", cfg.Backend, "uri", cfg.Neo4j.URI)
		st, err := neo4jstore.Open(ctx, neo4jstore.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.User,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case config.BackendMemory:
		st := memstore.New()
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// commandContext returns cmd's context, cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
