package database

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

// SQLSTATE codes for integrity constraint violations.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
)

type postgresDialect struct {
	schemaName string
}

func (d *postgresDialect) Name() string          { return DriverPostgres }
func (d *postgresDialect) DriverName() string    { return "pgx" }
func (d *postgresDialect) DSN(url string) string { return url }
func (d *postgresDialect) Schema() string        { return d.schemaName }
func (d *postgresDialect) SerialType() string    { return "BIGSERIAL PRIMARY KEY NOT NULL" }
func (d *postgresDialect) ForUpdate() string     { return " FOR UPDATE" }

func (d *postgresDialect) LockTable(table string) string {
	return "LOCK TABLE " + schema.TableName(d.schemaName, table) + " IN SHARE ROW EXCLUSIVE MODE"
}

func (d *postgresDialect) Rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d *postgresDialect) Setup(ctx context.Context, q Querier) error {
	return nil
}

func (d *postgresDialect) TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2",
		d.schemaName, table).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *postgresDialect) Classify(err error) (Violation, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return Violation{}, false
	}
	v := Violation{Constraint: pgErr.ConstraintName, Detail: pgErr.Detail}
	switch pgErr.Code {
	case pgUniqueViolation:
		v.Kind = ViolationUnique
	case pgForeignKeyViolation:
		v.Kind = ViolationForeignKey
	case pgNotNullViolation:
		v.Kind = ViolationNotNull
		v.Constraint = pgErr.ColumnName
	default:
		return Violation{}, false
	}
	return v, true
}
