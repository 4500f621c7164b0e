package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-metastore/pkg/config"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metastore"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-metastore/pkg/middleware"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand("1.2.3")
	require.NotNil(t, cmd)
	assert.Equal(t, "ekaya-metastore", cmd.Use)
	assert.Equal(t, "1.2.3", cmd.Version)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "config.yaml", configFlag.DefValue)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand("dev")
	for _, path := range [][]string{{"serve"}, {"schema"}, {"schema", "print"}, {"schema", "describe"}, {"schema", "install"}} {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestSchemaPrintFlags(t *testing.T) {
	cmd := NewRootCommand("dev")
	printCmd, _, err := cmd.Find([]string{"schema", "print"})
	require.NoError(t, err)

	driver := printCmd.Flags().Lookup("driver")
	require.NotNil(t, driver)
	assert.Equal(t, config.DriverPostgres, driver.DefValue)

	schemaFlag := printCmd.Flags().Lookup("schema")
	require.NotNil(t, schemaFlag)
	assert.Equal(t, schema.DefaultSchema, schemaFlag.DefValue)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSchemaPrint(t *testing.T) {
	out, err := execute(t, "schema", "print", "--driver", "postgres")
	require.NoError(t, err)
	assert.Contains(t, out, `CREATE SCHEMA`)
	assert.Contains(t, out, `"SQOOP"."SQ_SYSTEM"`)

	out, err = execute(t, "schema", "print", "--driver", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, `CREATE TABLE "SQ_SYSTEM"`)
	assert.Contains(t, out, "AUTOINCREMENT")
	assert.NotContains(t, out, "CREATE SCHEMA")
}

func TestSchemaPrint_UnknownDriver(t *testing.T) {
	_, err := execute(t, "schema", "print", "--driver", "oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestSchemaDescribe(t *testing.T) {
	out, err := execute(t, "schema", "describe")
	require.NoError(t, err)

	var tables []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &tables))
	assert.Len(t, tables, len(schema.Tables))
	assert.Contains(t, out, schema.TableSubmission)
}

func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "log:\n  level: error\ndatabase:\n  driver: sqlite\n  sqlite_path: " + dbPath + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSchemaInstall(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "repo.db")
	cfgPath := writeConfig(t, dbPath)

	out, err := execute(t, "--config", cfgPath, "schema", "install")
	require.NoError(t, err)
	assert.Equal(t, "repository layout version "+schema.Version+" installed\n", out)

	// Installing again keeps the layout.
	out, err = execute(t, "--config", cfgPath, "schema", "install")
	require.NoError(t, err)
	assert.Contains(t, out, schema.Version)
}

func TestNewRouter(t *testing.T) {
	cfg := &config.Config{
		Env: "test",
		Database: config.DatabaseConfig{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "repo.db"),
		},
		Repository: config.RepositoryConfig{AutoInstall: true, RequireEnabled: true},
	}
	reg := prometheus.NewRegistry()
	repo, err := metastore.Open(context.Background(), cfg, metrics.NewRecorder(reg), zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	srv := httptest.NewServer(NewRouter(cfg, repo, reg, zap.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	resp, err = http.Get(srv.URL + "/api/configurables/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
