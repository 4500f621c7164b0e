package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// sqlitePragmas are applied to the single pooled connection on open.
var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

type sqliteDialect struct{}

func (d *sqliteDialect) Name() string                  { return DriverSQLite }
func (d *sqliteDialect) DriverName() string            { return "sqlite3" }
func (d *sqliteDialect) Schema() string                { return "" }
func (d *sqliteDialect) SerialType() string            { return "INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL" }
func (d *sqliteDialect) ForUpdate() string             { return "" }
func (d *sqliteDialect) LockTable(table string) string { return "" }
func (d *sqliteDialect) Rebind(query string) string    { return query }

// DSN turns a file path into a go-sqlite3 DSN with foreign keys enforced.
// ":memory:" and "file:" URLs are accepted as they are.
func (d *sqliteDialect) DSN(url string) string {
	params := "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if url != ":memory:" && !strings.HasPrefix(url, "file:") {
		url = "file:" + url
		params += "&_journal_mode=WAL"
	}
	if strings.Contains(url, "?") {
		return url + "&" + params
	}
	return url + "?" + params
}

func (d *sqliteDialect) Setup(ctx context.Context, q Querier) error {
	for _, pragma := range sqlitePragmas {
		if _, err := q.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	return nil
}

func (d *sqliteDialect) TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *sqliteDialect) Classify(err error) (Violation, bool) {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return Violation{}, false
	}
	v := Violation{Detail: sqliteErr.Error()}
	// Messages look like "UNIQUE constraint failed: SQ_LINK.SQ_LNK_NAME".
	if i := strings.Index(v.Detail, "failed: "); i >= 0 {
		v.Constraint = v.Detail[i+len("failed: "):]
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		v.Kind = ViolationUnique
	case sqlite3.ErrConstraintForeignKey:
		v.Kind = ViolationForeignKey
	case sqlite3.ErrConstraintNotNull:
		v.Kind = ViolationNotNull
	default:
		return Violation{}, false
	}
	return v, true
}
