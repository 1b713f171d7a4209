// Package config loads engine configuration from config.yaml with
// environment variable overrides. Secrets (passwords, encryption keys)
// come from the environment only.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for dbdeck-engine.
// Environment variables always override YAML values for fields that support
// both. Secrets must only come from environment variables (yaml:"-" fields).
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8390"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Metadata store (local PostgreSQL holding connections and history)
	Store StoreConfig `yaml:"store"`

	// Remote pool management
	Pools PoolConfig `yaml:"pools"`

	// Statement execution
	Queries QueryConfig `yaml:"queries"`

	// Query history retention
	History HistoryConfig `yaml:"history"`

	// Key used to encrypt stored connection passwords.
	// Generate with: openssl rand -base64 32
	// The server fails to start when this is unset.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"`
}

// StoreConfig holds the local metadata store configuration.
type StoreConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"dbdeck"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"dbdeck_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// PoolConfig holds settings for pools against registered connections.
type PoolConfig struct {
	// TTLMinutes is how long idle remote pools are kept alive.
	TTLMinutes int `yaml:"ttl_minutes" env:"POOL_TTL_MINUTES" env-default:"10"`
	// MaxConns is the per-pool connection cap against a remote database.
	MaxConns int32 `yaml:"max_conns" env:"POOL_MAX_CONNS" env-default:"5"`
	// MinConns is the per-pool idle floor.
	MinConns int32 `yaml:"min_conns" env:"POOL_MIN_CONNS" env-default:"1"`
	// ConnectTimeoutSeconds bounds pool establishment so acquisition never
	// hangs on an unreachable host.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds" env:"POOL_CONNECT_TIMEOUT_SECONDS" env-default:"10"`
}

// QueryConfig holds statement execution settings.
type QueryConfig struct {
	// StatementTimeoutSeconds is the per-statement execution budget.
	// Statements exceeding it fail with a timeout and are recorded as such.
	StatementTimeoutSeconds int `yaml:"statement_timeout_seconds" env:"QUERY_STATEMENT_TIMEOUT_SECONDS" env-default:"30"`
	// MaxBrowseLimit caps a single browse page.
	MaxBrowseLimit int `yaml:"max_browse_limit" env:"QUERY_MAX_BROWSE_LIMIT" env-default:"1000"`
	// AllowWrites permits ad hoc INSERT/UPDATE/DELETE statements. DDL is
	// always rejected.
	AllowWrites bool `yaml:"allow_writes" env:"QUERY_ALLOW_WRITES" env-default:"false"`
}

// HistoryConfig holds query history retention settings.
type HistoryConfig struct {
	// RetentionDays is how long history entries are kept. Entries older
	// than this are pruned by a background sweep.
	RetentionDays int `yaml:"retention_days" env:"HISTORY_RETENTION_DAYS" env-default:"30"`
	// SweepIntervalMinutes is how often the retention sweep runs.
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes" env:"HISTORY_SWEEP_INTERVAL_MINUTES" env-default:"60"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that cleanenv tags cannot express.
func (c *Config) Validate() error {
	if c.CredentialsKey == "" {
		return fmt.Errorf("CREDENTIALS_KEY must be set (generate with: openssl rand -base64 32)")
	}
	if c.Queries.StatementTimeoutSeconds <= 0 {
		return fmt.Errorf("queries.statement_timeout_seconds must be positive")
	}
	if c.Pools.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("pools.connect_timeout_seconds must be positive")
	}
	if c.History.RetentionDays <= 0 {
		return fmt.Errorf("history.retention_days must be positive")
	}
	return nil
}

// StatementTimeout returns the per-statement budget as a duration.
func (c *QueryConfig) StatementTimeout() time.Duration {
	return time.Duration(c.StatementTimeoutSeconds) * time.Second
}

// ConnectTimeout returns the pool establishment budget as a duration.
func (c *PoolConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// SweepInterval returns the retention sweep cadence as a duration.
func (c *HistoryConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// ConnectionString returns a PostgreSQL connection string for the store.
func (c *StoreConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
