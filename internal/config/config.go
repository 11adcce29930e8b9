// Package config loads provsync settings from the environment.
//
// Every variable carries the PROVSYNC_ prefix, e.g. PROVSYNC_BACKEND or
// PROVSYNC_POSTGRES_DSN. Values from optional .env files are loaded first and
// never override variables already set in the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable name.
const Prefix = "PROVSYNC_"

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendNeo4j    = "neo4j"
	BackendMemory   = "memory"
)

// Backends lists the supported backends.
var Backends = []string{BackendSQLite, BackendPostgres, BackendNeo4j, BackendMemory}

// DefaultEnvFiles are loaded by Load when no files are given.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Config holds all provsync configuration.
type Config struct {
	Backend  string `env:"BACKEND" envDefault:"sqlite"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	SQLite    SQLiteConfig
	Postgres  PostgresConfig
	Neo4j     Neo4jConfig
	Reconcile ReconcileConfig
}

// SQLiteConfig holds the SQLite database location.
type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" envDefault:"provsync.db"`
}

// PostgresConfig holds PostgreSQL connection settings. DSN wins over the
// individual fields when set.
type PostgresConfig struct {
	DSN      string `env:"POSTGRES_DSN"`
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"provsync"`
	Password string `env:"POSTGRES_PASSWORD"`
	Database string `env:"POSTGRES_DB" envDefault:"provsync"`
	SSLMode  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
}

// ConnString returns the PostgreSQL connection string.
func (p *PostgresConfig) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode,
	)
}

// Neo4jConfig holds Neo4j connection settings.
type Neo4jConfig struct {
	URI      string `env:"NEO4J_URI" envDefault:"neo4j://localhost:7687"`
	User     string `env:"NEO4J_USER" envDefault:"neo4j"`
	Password string `env:"NEO4J_PASSWORD"`
	Database string `env:"NEO4J_DATABASE"`
}

// ReconcileConfig tunes the reconciliation workflow.
type ReconcileConfig struct {
	Timeout     time.Duration `env:"APPLY_TIMEOUT" envDefault:"30s"`
	MaxRetries  int           `env:"MAX_RETRIES" envDefault:"2"`
	Concurrency int           `env:"CONCURRENCY" envDefault:"4"`
	Backoff     time.Duration `env:"RETRY_BACKOFF" envDefault:"100ms"`
}

// Load reads envFiles (DefaultEnvFiles when none are given; missing files are
// skipped) and then parses the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = DefaultEnvFiles
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return parse(env.Options{Prefix: Prefix})
}

// Parse builds a Config from environ instead of the process environment.
// Keys include the prefix.
func Parse(environ map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if !slices.Contains(Backends, c.Backend) {
		return fmt.Errorf("invalid backend %q (want one of %v)", c.Backend, Backends)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Reconcile.Timeout < 0 {
		return fmt.Errorf("apply timeout must not be negative")
	}
	if c.Reconcile.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.Reconcile.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// LogAttrs summarizes the configuration for a startup log line. Secrets are
// left out.
func (c *Config) LogAttrs() []any {
	attrs := []any{
		slog.String("backend", c.Backend),
		slog.Duration("apply_timeout", c.Reconcile.Timeout),
		slog.Int("max_retries", c.Reconcile.MaxRetries),
		slog.Int("concurrency", c.Reconcile.Concurrency),
	}
	switch c.Backend {
	case BackendSQLite:
		attrs = append(attrs, slog.String("sqlite_path", c.SQLite.Path))
	case BackendPostgres:
		attrs = append(attrs, slog.String("postgres_host", c.Postgres.Host))
	case BackendNeo4j:
		attrs = append(attrs, slog.String("neo4j_uri", c.Neo4j.URI))
	}
	return attrs
}
