package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

func TestNewDialect(t *testing.T) {
	d, err := NewDialect("postgres", "")
	require.NoError(t, err)
	assert.Equal(t, schema.DefaultSchema, d.Schema())
	assert.Equal(t, "pgx", d.DriverName())

	d, err = NewDialect("sqlite", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "", d.Schema())

	_, err = NewDialect("mssql", "")
	assert.ErrorContains(t, err, "unsupported")
}

func TestPostgresDialect_Rebind(t *testing.T) {
	d := &postgresDialect{schemaName: "SQOOP"}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", d.Rebind("SELECT 1 WHERE a = ? AND b = ?"))
	assert.Equal(t, "SELECT 1", d.Rebind("SELECT 1"))
	assert.Equal(t, `LOCK TABLE "SQOOP"."SQ_CONFIGURABLE" IN SHARE ROW EXCLUSIVE MODE`, d.LockTable(schema.TableConfigurable))
}

func TestSQLiteDialect_DSN(t *testing.T) {
	d := &sqliteDialect{}
	assert.Equal(t, "file:/tmp/x.db?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL", d.DSN("/tmp/x.db"))
	assert.Equal(t, ":memory:?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", d.DSN(":memory:"))
	assert.Equal(t, "file:x?mode=memory&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", d.DSN("file:x?mode=memory"))
}

func TestCreateStatements_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".sql"),
	)

	for _, driver := range []string{DriverPostgres, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			d, err := NewDialect(driver, "")
			require.NoError(t, err)
			g.Assert(t, driver, []byte(schema.Script(schema.CreateStatements(d, schema.Tables))))
		})
	}
}

func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := NewConnection(context.Background(), &Config{
		Driver: DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "test.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteDialect_Classify(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	for _, tbl := range []string{schema.TableConfigurable, schema.TableConfig} {
		def, _ := schema.Lookup(tbl)
		_, err := db.ExecContext(ctx, schema.CreateTable(db.Dialect(), def))
		require.NoError(t, err)
	}

	insert := db.SQL("INSERT INTO {SQ_CONFIGURABLE} ({SQC_NAME}, {SQC_TYPE}, {SQC_CLASS}, {SQC_VERSION}) VALUES (?, ?, ?, ?)")
	_, err := db.ExecContext(ctx, insert, "jdbc", "CONNECTOR", "x.Jdbc", "1")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert, "jdbc", "CONNECTOR", "x.Jdbc", "1")
	v, ok := db.Violation(err)
	require.True(t, ok, "expected a constraint violation, got %v", err)
	assert.Equal(t, ViolationUnique, v.Kind)
	assert.Equal(t, "SQ_CONFIGURABLE.SQC_NAME", v.Constraint)

	_, err = db.ExecContext(ctx,
		db.SQL("INSERT INTO {SQ_CONFIG} ({SQ_CFG_CONFIGURABLE}, {SQ_CFG_NAME}, {SQ_CFG_TYPE}, {SQ_CFG_INDEX}) VALUES (?, ?, ?, ?)"),
		999, "connection", "LINK", 0)
	v, ok = db.Violation(err)
	require.True(t, ok, "expected a constraint violation, got %v", err)
	assert.Equal(t, ViolationForeignKey, v.Kind)

	_, ok = db.Violation(nil)
	assert.False(t, ok)
}

func TestTableExists(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	exists, err := db.TableExists(ctx, schema.TableSystem)
	require.NoError(t, err)
	assert.False(t, exists)

	def, _ := schema.Lookup(schema.TableSystem)
	_, err = db.ExecContext(ctx, schema.CreateTable(db.Dialect(), def))
	require.NoError(t, err)

	exists, err = db.TableExists(ctx, schema.TableSystem)
	require.NoError(t, err)
	assert.True(t, exists)
}
