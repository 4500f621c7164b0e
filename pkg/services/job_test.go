package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

// scopedJobCatalog extends the jdbc catalog with an "hdfs" connector and JOB
// configs scoped to each direction.
type scopedJobCatalog struct {
	jdbcCatalog
	hdfs           models.ConfigurableID
	jdbcFromTable  models.InputID // jdbc JOB input in a FROM config
	jdbcToTable    models.InputID // jdbc JOB input in a TO config
	hdfsOutput     models.ConfigID
	hdfsOutputDir  models.InputID // hdfs JOB input with no direction
	driverExtracts models.InputID // driver JOB input
	jdbcLink       models.LinkID
	hdfsLink       models.LinkID
}

// registerScopedJobs builds the catalog and one link per connector. Directions
// given for hdfs are declared before its link exists.
func (f *fixture) registerScopedJobs(t *testing.T, hdfsDirections ...models.Direction) scopedJobCatalog {
	t.Helper()
	ctx := context.Background()

	s := scopedJobCatalog{jdbcCatalog: f.registerJDBC(t)}
	var err error
	s.hdfs, err = f.catalog.Register(ctx, "hdfs", "org.example.Hdfs", models.ConfigurableConnector, "1")
	require.NoError(t, err)

	dirs, err := f.directions.ListDirections(ctx)
	require.NoError(t, err)

	fromCfg, err := f.descriptors.DefineConfig(ctx, &s.connector, models.ConfigJob, "fromJobConfig", 0)
	require.NoError(t, err)
	require.NoError(t, f.descriptors.BindConfigDirection(ctx, fromCfg, dirs[0].ID))
	s.jdbcFromTable = f.defineInput(t, fromCfg, "table", models.InputString)

	toCfg, err := f.descriptors.DefineConfig(ctx, &s.connector, models.ConfigJob, "toJobConfig", 1)
	require.NoError(t, err)
	require.NoError(t, f.descriptors.BindConfigDirection(ctx, toCfg, dirs[1].ID))
	s.jdbcToTable = f.defineInput(t, toCfg, "table", models.InputString)

	s.hdfsOutput, err = f.descriptors.DefineConfig(ctx, &s.hdfs, models.ConfigJob, "output", 0)
	require.NoError(t, err)
	s.hdfsOutputDir = f.defineInput(t, s.hdfsOutput, "dir", models.InputString)
	if len(hdfsDirections) > 0 {
		require.NoError(t, f.catalog.SetDirections(ctx, s.hdfs, hdfsDirections))
	}

	driverCfg, err := f.descriptors.DefineConfig(ctx, nil, models.ConfigJob, "throttling", 0)
	require.NoError(t, err)
	s.driverExtracts = f.defineInput(t, driverCfg, "extractors", models.InputString)

	s.jdbcLink, err = f.links.CreateLink(ctx, "jdbc-link", s.connector, models.InputValues{s.url: models.StringValue("jdbc:test")}, "alice")
	require.NoError(t, err)
	s.hdfsLink, err = f.links.CreateLink(ctx, "hdfs-link", s.hdfs, nil, "alice")
	require.NoError(t, err)
	return s
}

func TestJobService_DirectionScopedInputs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.registerScopedJobs(t)

	id, err := f.jobs.CreateJob(ctx, "J1", s.jdbcLink, s.hdfsLink, models.InputValues{
		s.jdbcFromTable:  models.StringValue("orders"),
		s.hdfsOutputDir:  models.StringValue("/data/orders"),
		s.driverExtracts: models.StringValue("4"),
	}, "alice")
	require.NoError(t, err)

	job, err := f.jobs.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Len(t, job.Values, 3)
	assert.Equal(t, "orders", job.Values[s.jdbcFromTable].String)

	_, err = f.jobs.CreateJob(ctx, "J2", s.jdbcLink, s.hdfsLink, models.InputValues{
		s.jdbcToTable: models.StringValue("orders"),
	}, "alice")
	assert.ErrorIs(t, err, apperrors.ErrValidation, "TO-scoped input cannot come from the from-link")

	_, err = f.jobs.CreateJob(ctx, "J3", s.hdfsLink, s.jdbcLink, models.InputValues{
		s.jdbcToTable:   models.StringValue("orders"),
		s.hdfsOutputDir: models.StringValue("/in"),
	}, "alice")
	assert.NoError(t, err)

	_, err = f.jobs.CreateJob(ctx, "J4", s.jdbcLink, s.hdfsLink, models.InputValues{
		s.url: models.StringValue("jdbc:test"),
	}, "alice")
	assert.ErrorIs(t, err, apperrors.ErrValidation, "LINK inputs do not belong to jobs")
}

func TestJobService_CreateJobReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.registerScopedJobs(t)

	_, err := f.jobs.CreateJob(ctx, "J1", 9999, s.hdfsLink, nil, "alice")
	assert.ErrorIs(t, err, apperrors.ErrUnknownReference)

	_, err = f.jobs.CreateJob(ctx, "J1", s.jdbcLink, 9999, nil, "alice")
	assert.ErrorIs(t, err, apperrors.ErrUnknownReference)

	_, err = f.jobs.CreateJob(ctx, "J1", s.jdbcLink, s.hdfsLink, models.InputValues{
		s.driverExtracts: models.StringValue(strings.Repeat("9", 1001)),
	}, "alice")
	assert.ErrorIs(t, err, apperrors.ErrValidation, "job values must fit their column")

	_, err = f.jobs.CreateJob(ctx, "J1", s.jdbcLink, s.hdfsLink, nil, "alice")
	require.NoError(t, err)
	_, err = f.jobs.CreateJob(ctx, "J1", s.jdbcLink, s.hdfsLink, nil, "alice")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateName)

	assert.Equal(t, 1, f.countRows(t, schema.TableJob))
}

func TestJobService_ConnectorDirections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.registerScopedJobs(t, models.DirectionTo)

	_, err := f.jobs.CreateJob(ctx, "J1", s.hdfsLink, s.jdbcLink, nil, "alice")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.jobs.CreateJob(ctx, "J1", s.jdbcLink, s.hdfsLink, nil, "alice")
	assert.NoError(t, err)
}

func TestJobService_DirectionsFrozenOnceUsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.registerScopedJobs(t)

	values := models.InputValues{s.hdfsOutputDir: models.StringValue("/data/orders")}
	id, err := f.jobs.CreateJob(ctx, "J1", s.jdbcLink, s.hdfsLink, values, "alice")
	require.NoError(t, err)

	dirs, err := f.directions.ListDirections(ctx)
	require.NoError(t, err)
	err = f.descriptors.BindConfigDirection(ctx, s.hdfsOutput, dirs[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrReferentialIntegrity)

	err = f.catalog.SetDirections(ctx, s.hdfs, []models.Direction{models.DirectionFrom})
	assert.ErrorIs(t, err, apperrors.ErrReferentialIntegrity)

	configs, err := f.descriptors.ConfigsFor(ctx, s.hdfs, models.ConfigJob)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Empty(t, configs[0].Directions)

	// The job still round-trips its own values.
	require.NoError(t, f.jobs.UpdateJob(ctx, id, values, "bob"))
	forms, err := f.jobs.JobForm(ctx, id)
	require.NoError(t, err)
	found := false
	for _, form := range forms {
		for _, c := range form.Configs {
			for _, in := range c.Inputs {
				if in.Input.ID == s.hdfsOutputDir && in.Value != nil {
					found = true
					assert.Equal(t, "/data/orders", in.Value.String)
				}
			}
		}
	}
	assert.True(t, found, "the hdfs output config stays in the TO form")
}

func TestJobService_DisabledLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.registerScopedJobs(t)
	require.NoError(t, f.links.SetEnabled(ctx, s.hdfsLink, false, "bob"))

	_, err := f.jobs.CreateJob(ctx, "J1", s.jdbcLink, s.hdfsLink, nil, "alice")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	lenient := newFixture(t, func(o *Options) { o.RequireEnabled = false })
	ls := lenient.registerScopedJobs(t)
	require.NoError(t, lenient.links.SetEnabled(ctx, ls.hdfsLink, false, "bob"))
	_, err = lenient.jobs.CreateJob(ctx, "J1", ls.jdbcLink, ls.hdfsLink, nil, "alice")
	assert.NoError(t, err)
}

func TestJobService_DeleteJobLeavesNoOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.registerScopedJobs(t)

	jobID, err := f.jobs.CreateJob(ctx, "J1", s.jdbcLink, s.hdfsLink, models.InputValues{
		s.jdbcFromTable: models.StringValue("orders"),
	}, "alice")
	require.NoError(t, err)
	keep, err := f.jobs.CreateJob(ctx, "J2", s.jdbcLink, s.hdfsLink, nil, "alice")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		sub, err := f.submissions.Create(ctx, jobID, "alice")
		require.NoError(t, err)
		require.NoError(t, f.counters.RecordAll(ctx, sub, models.Counters{
			{Group: "FileSystemCounters", Name: "BYTES_WRITTEN"}: 1024,
			{Group: "FileSystemCounters", Name: "BYTES_READ"}:    10,
		}))
	}
	kept, err := f.submissions.Create(ctx, keep, "alice")
	require.NoError(t, err)
	require.NoError(t, f.counters.Record(ctx, kept, "FileSystemCounters", "BYTES_READ", 1))

	require.NoError(t, f.jobs.DeleteJob(ctx, jobID))

	_, err = f.jobs.GetJob(ctx, jobID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 1, f.countRows(t, schema.TableSubmission))
	assert.Equal(t, 1, f.countRows(t, schema.TableCounterSubmission))
	assert.Equal(t, 0, f.countRows(t, schema.TableJobInput))

	var orphans int
	err = f.db.QueryRowContext(ctx, f.db.SQL(`SELECT COUNT(*) FROM {SQ_COUNTER_SUBMISSION} cs
		WHERE NOT EXISTS (SELECT 1 FROM {SQ_SUBMISSION} s WHERE s.{SQS_ID} = cs.{SQRS_SUBMISSION})`)).Scan(&orphans)
	require.NoError(t, err)
	assert.Zero(t, orphans)

	assert.ErrorIs(t, f.jobs.DeleteJob(ctx, jobID), apperrors.ErrNotFound)
}

func TestJobService_UpdateAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.registerScopedJobs(t)

	id, err := f.jobs.CreateJob(ctx, "J1", s.jdbcLink, s.hdfsLink, models.InputValues{
		s.jdbcFromTable: models.StringValue("orders"),
	}, "alice")
	require.NoError(t, err)

	require.NoError(t, f.jobs.UpdateJob(ctx, id, models.InputValues{s.hdfsOutputDir: models.StringValue("/out")}, "bob"))
	job, err := f.jobs.GetJobByName(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, models.InputValues{s.hdfsOutputDir: models.StringValue("/out")}, job.Values)
	assert.Equal(t, "bob", job.UpdateUser)

	assert.ErrorIs(t, f.jobs.UpdateJob(ctx, 9999, nil, "bob"), apperrors.ErrNotFound)

	require.NoError(t, f.jobs.SetEnabled(ctx, id, false, "bob"))
	job, err = f.jobs.GetJob(ctx, id)
	require.NoError(t, err)
	assert.False(t, job.Enabled)
	assert.Len(t, job.Values, 1)

	forLink, err := f.jobs.ListJobsForLink(ctx, s.hdfsLink)
	require.NoError(t, err)
	require.Len(t, forLink, 1)
	all, err := f.jobs.ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestJobService_JobForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.registerScopedJobs(t)

	id, err := f.jobs.CreateJob(ctx, "J1", s.jdbcLink, s.jdbcLink, models.InputValues{
		s.jdbcFromTable: models.StringValue("orders"),
		s.jdbcToTable:   models.StringValue("orders_copy"),
	}, "alice")
	require.NoError(t, err)

	forms, err := f.jobs.JobForm(ctx, id)
	require.NoError(t, err)
	require.Len(t, forms, 3)

	assert.Equal(t, models.DirectionFrom, forms[0].Direction)
	require.Len(t, forms[0].Configs, 1)
	assert.Equal(t, "fromJobConfig", forms[0].Configs[0].Config.Name)
	assert.Equal(t, "orders", forms[0].Configs[0].Inputs[0].Value.String)

	assert.Equal(t, models.DirectionTo, forms[1].Direction)
	require.Len(t, forms[1].Configs, 1)
	assert.Equal(t, "toJobConfig", forms[1].Configs[0].Config.Name)
	assert.Equal(t, "orders_copy", forms[1].Configs[0].Inputs[0].Value.String)

	assert.Equal(t, "driver", forms[2].Configurable.Name)
}
