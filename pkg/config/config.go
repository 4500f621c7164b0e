package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Driver names accepted in database.driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for ekaya-metastore.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	Log LogConfig `yaml:"log"`

	// Database configuration (PostgreSQL or SQLite)
	Database DatabaseConfig `yaml:"database"`

	Repository RepositoryConfig `yaml:"repository"`
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	// Format is "json" or "console". Empty picks console for local and json otherwise.
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:""`
}

// DatabaseConfig holds the store connection configuration.
type DatabaseConfig struct {
	Driver         string `yaml:"driver" env:"METASTORE_DB_DRIVER" env-default:"sqlite"`
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"sqoop"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"metastore"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	Schema         string `yaml:"schema" env:"METASTORE_DB_SCHEMA" env-default:"SQOOP"`
	MaxConnections int    `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`

	// SQLitePath is the database file used when Driver is sqlite.
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"metastore.db"`

	// ConnectRetries bounds the attempts made while the store comes up.
	ConnectRetries int           `yaml:"connect_retries" env:"METASTORE_DB_CONNECT_RETRIES" env-default:"5"`
	ConnectDelay   time.Duration `yaml:"connect_delay" env:"METASTORE_DB_CONNECT_DELAY" env-default:"500ms"`
}

// RepositoryConfig holds the metadata repository policies.
type RepositoryConfig struct {
	// AutoInstall creates the layout on first start instead of failing verification.
	AutoInstall bool `yaml:"auto_install" env:"METASTORE_AUTO_INSTALL" env-default:"true"`

	// RequireEnabled refuses jobs over disabled links and submissions of disabled jobs.
	RequireEnabled bool `yaml:"require_enabled" env:"METASTORE_REQUIRE_ENABLED" env-default:"true"`

	// PurgeAfter removes finished submissions older than this on a timer. Zero disables purging.
	PurgeAfter    time.Duration `yaml:"purge_after" env:"METASTORE_PURGE_AFTER" env-default:"0s"`
	PurgeInterval time.Duration `yaml:"purge_interval" env:"METASTORE_PURGE_INTERVAL" env-default:"1h"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// A missing config.yaml is not an error; environment variables and defaults
// are used instead.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit file path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Schema == "" {
			return fmt.Errorf("database.schema is required for %s", DriverPostgres)
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for %s", DriverSQLite)
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.ConnectRetries < 0 {
		return fmt.Errorf("database.connect_retries must not be negative")
	}
	if c.Repository.PurgeAfter < 0 {
		return fmt.Errorf("repository.purge_after must not be negative")
	}
	if c.Repository.PurgeAfter > 0 && c.Repository.PurgeInterval <= 0 {
		return fmt.Errorf("repository.purge_interval must be positive when purging is enabled")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string, or the SQLite
// path for the sqlite driver.
func (c *DatabaseConfig) ConnectionString() string {
	if c.Driver == DriverSQLite {
		return c.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// IsLocal reports whether the server runs in a developer environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "dev"
}
