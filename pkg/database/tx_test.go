package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

func createDirectionTable(t *testing.T, db *DB) {
	t.Helper()
	def, _ := schema.Lookup(schema.TableDirection)
	_, err := db.ExecContext(context.Background(), schema.CreateTable(db.Dialect(), def))
	require.NoError(t, err)
}

func countDirections(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), db.SQL("SELECT COUNT(*) FROM {SQ_DIRECTION}")).Scan(&n))
	return n
}

func TestWithTx_Commit(t *testing.T) {
	db := openSQLite(t)
	createDirectionTable(t, db)

	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		_, ok := GetTx(ctx)
		assert.True(t, ok)
		_, err := db.Conn(ctx).ExecContext(ctx, db.SQL("INSERT INTO {SQ_DIRECTION} ({SQD_NAME}) VALUES (?)"), "FROM")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countDirections(t, db))
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := openSQLite(t)
	createDirectionTable(t, db)

	notFound := apperrors.NotFound("direction", "SIDEWAYS")
	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		if _, err := db.Conn(ctx).ExecContext(ctx, db.SQL("INSERT INTO {SQ_DIRECTION} ({SQD_NAME}) VALUES (?)"), "FROM"); err != nil {
			return err
		}
		return notFound
	})
	assert.Same(t, notFound, err)
	assert.Equal(t, 0, countDirections(t, db))
}

func TestWithTx_UnclassifiedErrorBecomesTransactionError(t *testing.T) {
	db := openSQLite(t)
	createDirectionTable(t, db)

	cause := errors.New("disk on fire")
	err := db.WithTx(context.Background(), func(ctx context.Context) error { return cause })
	assert.ErrorIs(t, err, apperrors.ErrTransaction)
	assert.ErrorIs(t, err, cause)
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	db := openSQLite(t)
	createDirectionTable(t, db)

	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		outer, _ := GetTx(ctx)
		return db.WithTx(ctx, func(ctx context.Context) error {
			inner, _ := GetTx(ctx)
			assert.Same(t, outer, inner)
			_, err := db.Conn(ctx).ExecContext(ctx, db.SQL("INSERT INTO {SQ_DIRECTION} ({SQD_NAME}) VALUES (?)"), "TO")
			return err
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countDirections(t, db))
}
