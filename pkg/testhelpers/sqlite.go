// Package testhelpers provides stores for testing ekaya-metastore components.
package testhelpers

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
)

// NewSQLiteDB opens an empty SQLite store in a temporary directory. The
// store is closed and removed when the test ends.
func NewSQLiteDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewConnection(context.Background(), &database.Config{
		Driver: database.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "metastore.db"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open SQLite store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
