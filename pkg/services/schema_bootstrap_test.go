package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/repositories"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
	"github.com/ekaya-inc/ekaya-metastore/pkg/testhelpers"
)

func TestSchemaService_InstallIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.registerJDBC(t)

	require.NoError(t, f.schema.Install(ctx))

	dirs, err := f.directions.ListDirections(ctx)
	require.NoError(t, err)
	assert.Len(t, dirs, 2)

	_, err = f.catalog.LookupByID(ctx, c.connector)
	assert.NoError(t, err, "reinstall keeps existing data")

	version, err := f.schema.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.Version, version)

	for _, table := range schema.Tables {
		exists, err := f.db.TableExists(ctx, table.Name)
		require.NoError(t, err)
		assert.True(t, exists, table.Name)
	}
}

func TestSchemaService_Verify(t *testing.T) {
	db := testhelpers.NewSQLiteDB(t)
	ctx := context.Background()
	repos := repositories.NewRegistry(db)
	svc := NewSchemaService(db, repos, DefaultOptions(), nil, nil)

	_, err := svc.Verify(ctx)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)

	require.NoError(t, svc.Install(ctx))
	require.NoError(t, repos.System.Set(ctx, schema.VersionKey, "0"))

	_, err = svc.Verify(ctx)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.ErrorIs(t, svc.Install(ctx), apperrors.ErrInvalidState)
}

func TestSchemaService_DDL(t *testing.T) {
	f := newFixture(t)

	stmts := f.schema.DDL()
	require.Len(t, stmts, len(schema.Tables), "SQLite has no schema statement")
	assert.True(t, strings.HasPrefix(stmts[0], `CREATE TABLE "SQ_SYSTEM"`))
	assert.Contains(t, stmts[1], "INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.Len(t, f.schema.Tables(), 15)
}
