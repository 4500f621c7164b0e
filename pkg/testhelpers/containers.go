package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
)

// PostgresTestImage is the PostgreSQL image used by integration tests.
const PostgresTestImage = "postgres:16-alpine"

// TestDB holds a shared PostgreSQL container.
type TestDB struct {
	Container testcontainers.Container
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error

	schemaSeq atomic.Int64
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresTestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "metastore",
			"POSTGRES_USER":     "sqoop",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://sqoop:test_password@%s:%s/metastore?sslmode=disable",
		host, port.Port())

	return &TestDB{
		Container: container,
		ConnStr:   connStr,
	}, nil
}

// NewPostgresDB connects to the shared container with a schema of its own,
// so every test starts from an empty layout. The connection is closed when
// the test ends.
func NewPostgresDB(t *testing.T) *database.DB {
	t.Helper()

	testDB := GetTestDB(t)
	schemaName := fmt.Sprintf("SQOOP_TEST_%d", schemaSeq.Add(1))

	var db *database.DB
	var err error
	// The server may still be finishing startup on first use.
	for i := 0; i < 10; i++ {
		db, err = database.NewConnection(context.Background(), &database.Config{
			Driver:         database.DriverPostgres,
			URL:            testDB.ConnStr,
			Schema:         schemaName,
			MaxConnections: 5,
		}, zap.NewNop())
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
