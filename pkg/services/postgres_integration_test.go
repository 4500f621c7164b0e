//go:build integration

package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
	"github.com/ekaya-inc/ekaya-metastore/pkg/testhelpers"
)

func TestPostgres_JDBCTransfer(t *testing.T) {
	f := newFixtureOn(t, testhelpers.NewPostgresDB(t))
	ctx := context.Background()

	version, err := f.schema.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.Version, version)
	// A second install over the same schema is a no-op.
	require.NoError(t, f.schema.Install(ctx))

	jobID := f.newJob(t, "J1")
	subID, err := f.submissions.Create(ctx, jobID, "alice")
	require.NoError(t, err)
	require.NoError(t, f.counters.Record(ctx, subID, "FileSystemCounters", "BYTES_WRITTEN", 1024))
	require.NoError(t, f.submissions.UpdateStatus(ctx, subID, models.StatusUpdate{Status: models.StatusSucceeded, User: "engine"}))

	counters, err := f.counters.FetchForSubmission(ctx, subID)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), counters[models.CounterKey{Group: "FileSystemCounters", Name: "BYTES_WRITTEN"}])

	last, err := f.submissions.LastForJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, subID, last.ID)
}

func TestPostgres_ConstraintMapping(t *testing.T) {
	f := newFixtureOn(t, testhelpers.NewPostgresDB(t))
	ctx := context.Background()
	c := f.registerJDBC(t)

	_, err := f.catalog.Register(ctx, "jdbc", "org.example.Other", models.ConfigurableConnector, "2.0")
	require.ErrorIs(t, err, apperrors.ErrDuplicateName)

	link, err := f.links.CreateLink(ctx, "L1", c.connector, nil, "alice")
	require.NoError(t, err)
	_, err = f.jobs.CreateJob(ctx, "J1", link, link, nil, "alice")
	require.NoError(t, err)

	err = f.links.DeleteLink(ctx, link)
	require.ErrorIs(t, err, apperrors.ErrReferentialIntegrity)
}

func TestPostgres_ConcurrentDirectionBindings(t *testing.T) {
	f := newFixtureOn(t, testhelpers.NewPostgresDB(t))
	ctx := context.Background()
	c := f.registerJDBC(t)

	cfg, err := f.descriptors.DefineConfig(ctx, &c.connector, models.ConfigJob, "fromJobConfig", 0)
	require.NoError(t, err)
	dirs, err := f.directions.ListDirections(ctx)
	require.NoError(t, err)
	from := dirs[0].ID

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				errs[i] = f.descriptors.BindConfigDirection(ctx, cfg, from)
			} else {
				errs[i] = f.catalog.SetDirections(ctx, c.connector, []models.Direction{models.DirectionFrom})
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, 1, f.countRows(t, schema.TableConfigDirections))
	assert.Equal(t, 1, f.countRows(t, schema.TableConnectorDirections))
}
