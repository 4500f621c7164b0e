package database

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

// Supported store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ViolationKind classifies a constraint violation reported by the store.
type ViolationKind int

const (
	ViolationUnique ViolationKind = iota + 1
	ViolationForeignKey
	ViolationNotNull
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationUnique:
		return "unique"
	case ViolationForeignKey:
		return "foreign_key"
	case ViolationNotNull:
		return "not_null"
	}
	return "unknown"
}

// Violation describes a constraint violation.
type Violation struct {
	Kind ViolationKind
	// Constraint is the constraint name (PostgreSQL) or the
	// table.column list reported by SQLite.
	Constraint string
	Detail     string
}

// Dialect captures what differs between the supported stores.
type Dialect interface {
	schema.Dialect

	// Name is the configured driver name.
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	// DSN turns the configured URL into a driver DSN.
	DSN(url string) string
	// Rebind rewrites ? placeholders into the store's syntax.
	Rebind(query string) string
	// ForUpdate is appended to a SELECT to lock the selected rows.
	ForUpdate() string
	// LockTable returns the statement that serializes writers on a table,
	// or "" when the store already has a single writer.
	LockTable(table string) string
	// Setup runs per-pool initialization after the connection is established.
	Setup(ctx context.Context, q Querier) error
	// TableExists reports whether the table exists.
	TableExists(ctx context.Context, q Querier, table string) (bool, error)
	// Classify recognizes constraint violations in driver errors.
	Classify(err error) (Violation, bool)
}

// NewDialect returns the dialect for a driver name.
func NewDialect(driver, schemaName string) (Dialect, error) {
	switch driver {
	case DriverPostgres, "pgx", "postgresql":
		if schemaName == "" {
			schemaName = schema.DefaultSchema
		}
		return &postgresDialect{schemaName: schemaName}, nil
	case DriverSQLite, "sqlite3":
		return &sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
