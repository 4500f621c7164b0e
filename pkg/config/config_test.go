package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoadFile_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
port: "3480"
env: "test"
database:
  driver: "postgres"
  host: "db.example.com"
  port: 5432
  user: "sqoop"
  database: "repo"
  schema: "SQOOP"
`)
	t.Setenv("PORT", "4480")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PGPASSWORD", "s3cret")
	t.Setenv("BASE_URL", "")
	t.Setenv("METASTORE_REQUIRE_ENABLED", "false")

	cfg, err := LoadFile(path, "test-version")
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Port != "4480" {
		t.Errorf("expected Port=4480 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.BaseURL != "http://localhost:4480" {
		t.Errorf("expected BaseURL derived from PORT, got %s", cfg.BaseURL)
	}
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("expected Database.Host=db.example.com (from yaml), got %s", cfg.Database.Host)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("expected password from env")
	}
	if cfg.Repository.RequireEnabled {
		t.Errorf("expected require_enabled=false from env")
	}
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	for _, key := range []string{"METASTORE_DB_DRIVER", "SQLITE_PATH", "PORT", "METASTORE_AUTO_INSTALL", "METASTORE_PURGE_AFTER"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), "dev")
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "metastore.db", cfg.Database.SQLitePath)
	assert.Equal(t, "metastore.db", cfg.Database.ConnectionString())
	assert.Equal(t, "SQOOP", cfg.Database.Schema)
	assert.Equal(t, 5, cfg.Database.ConnectRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Database.ConnectDelay)
	assert.True(t, cfg.Repository.AutoInstall)
	assert.True(t, cfg.Repository.RequireEnabled)
	assert.Zero(t, cfg.Repository.PurgeAfter)
	assert.Equal(t, time.Hour, cfg.Repository.PurgeInterval)
	assert.Equal(t, "http://localhost:3480", cfg.BaseURL)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown driver",
			yaml:    "database:\n  driver: oracle\n",
			wantErr: "unsupported database driver",
		},
		{
			name:    "negative retries",
			yaml:    "database:\n  connect_retries: -1\n",
			wantErr: "connect_retries",
		},
		{
			name:    "purge without interval",
			yaml:    "repository:\n  purge_after: 24h\n  purge_interval: -1s\n",
			wantErr: "purge_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("METASTORE_DB_DRIVER", "")
			os.Unsetenv("METASTORE_DB_DRIVER")

			_, err := LoadFile(writeConfig(t, tt.yaml), "dev")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	c := DatabaseConfig{
		Driver:   DriverPostgres,
		Host:     "db.example.com",
		Port:     5433,
		User:     "sqoop",
		Password: "pw",
		Database: "repo",
		SSLMode:  "require",
	}
	assert.Equal(t, "host=db.example.com port=5433 user=sqoop password=pw dbname=repo sslmode=require", c.ConnectionString())
}
