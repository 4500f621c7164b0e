package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/logging"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a database/sql pool with the dialect of its store.
type DB struct {
	*sql.DB
	dialect Dialect
	logger  *zap.Logger
	queries sync.Map
}

// Config holds database connection configuration.
type Config struct {
	// Driver is "postgres" or "sqlite".
	Driver string
	// URL is a PostgreSQL connection string or a SQLite file path.
	URL             string
	Schema          string
	MaxConnections  int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewConnection opens and pings the store described by cfg.
func NewConnection(ctx context.Context, cfg *Config, logger *zap.Logger) (*DB, error) {
	dialect, err := NewDialect(cfg.Driver, cfg.Schema)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(dialect.DriverName(), dialect.DSN(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect.Name() == DriverSQLite {
		// One connection serializes writers and keeps :memory: stores alive.
		sqlDB.SetMaxOpenConns(1)
	} else {
		maxConns := cfg.MaxConnections
		if maxConns == 0 {
			maxConns = 25
		}
		sqlDB.SetMaxOpenConns(maxConns)
		sqlDB.SetMaxIdleConns(maxConns)
	}

	lifetime := cfg.MaxConnLifetime
	if lifetime == 0 {
		lifetime = time.Hour
	}
	sqlDB.SetConnMaxLifetime(lifetime)

	idle := cfg.MaxConnIdleTime
	if idle == 0 {
		idle = 30 * time.Minute
	}
	sqlDB.SetConnMaxIdleTime(idle)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := New(sqlDB, dialect, logger)
	if err := dialect.Setup(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	db.logger.Info("Connected to database",
		zap.String("driver", dialect.Name()),
		zap.String("url", logging.SanitizeConnectionString(cfg.URL)),
		zap.String("schema", dialect.Schema()))
	return db, nil
}

// New wraps an open pool.
func New(sqlDB *sql.DB, dialect Dialect, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: sqlDB, dialect: dialect, logger: logger}
}

// Dialect returns the dialect of the store.
func (db *DB) Dialect() Dialect { return db.dialect }

// SQL expands a query template for this store: {IDENT} tokens become quoted
// identifiers and ? placeholders are rebound. Results are cached. A template
// naming an unknown identifier is a programming error and panics.
func (db *DB) SQL(tmpl string) string {
	if q, ok := db.queries.Load(tmpl); ok {
		return q.(string)
	}
	q := db.dialect.Rebind(schema.MustExpand(db.dialect.Schema(), tmpl))
	db.queries.Store(tmpl, q)
	return q
}

// Violation classifies err as a constraint violation.
func (db *DB) Violation(err error) (Violation, bool) {
	if err == nil {
		return Violation{}, false
	}
	return db.dialect.Classify(err)
}

// LockTable serializes writers on table for the rest of the transaction in
// ctx. It is a no-op on stores with a single writer.
func (db *DB) LockTable(ctx context.Context, table string) error {
	stmt := db.dialect.LockTable(table)
	if stmt == "" {
		return nil
	}
	if _, err := db.Conn(ctx).ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to lock %s: %w", table, err)
	}
	return nil
}

// TableExists reports whether table exists in the store.
func (db *DB) TableExists(ctx context.Context, table string) (bool, error) {
	return db.dialect.TableExists(ctx, db.Conn(ctx), table)
}

// Close closes the pool.
func (db *DB) Close() error {
	return db.DB.Close()
}
