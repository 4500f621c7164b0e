package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
	"github.com/ekaya-inc/ekaya-metastore/pkg/repositories"
	"github.com/ekaya-inc/ekaya-metastore/pkg/testhelpers"
)

// fixture wires every service over an installed SQLite store.
type fixture struct {
	db          *database.DB
	directions  DirectionService
	catalog     CatalogService
	descriptors DescriptorService
	links       LinkService
	jobs        JobService
	submissions SubmissionService
	counters    CounterService
	schema      SchemaService
}

// testClock advances one second per reading so creation order is total.
func testClock() func() time.Time {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var ticks atomic.Int64
	return func() time.Time {
		return start.Add(time.Duration(ticks.Add(1)) * time.Second)
	}
}

func newFixture(t *testing.T, configure ...func(*Options)) *fixture {
	t.Helper()
	return newFixtureOn(t, testhelpers.NewSQLiteDB(t), configure...)
}

func newFixtureOn(t *testing.T, db *database.DB, configure ...func(*Options)) *fixture {
	t.Helper()

	opts := DefaultOptions()
	opts.Now = testClock()
	for _, fn := range configure {
		fn(&opts)
	}
	repos := repositories.NewRegistry(db)
	recorder := metrics.NewRecorder(nil)
	logger := zap.NewNop()

	f := &fixture{
		db:          db,
		directions:  NewDirectionService(db, repos, opts, recorder, logger),
		catalog:     NewCatalogService(db, repos, opts, recorder, logger),
		descriptors: NewDescriptorService(db, repos, opts, recorder, logger),
		links:       NewLinkService(db, repos, opts, recorder, logger),
		jobs:        NewJobService(db, repos, opts, recorder, logger),
		submissions: NewSubmissionService(db, repos, opts, recorder, logger),
		counters:    NewCounterService(db, repos, opts, recorder, logger),
		schema:      NewSchemaService(db, repos, opts, recorder, logger),
	}
	require.NoError(t, f.schema.Install(context.Background()))
	return f
}

// countRows counts the rows of a table.
func (f *fixture) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	err := f.db.QueryRowContext(context.Background(), f.db.SQL("SELECT COUNT(*) FROM {"+table+"}")).Scan(&n)
	require.NoError(t, err)
	return n
}

// jdbcCatalog is a driver plus a "jdbc" connector supporting both directions
// with a LINK config "connection" holding a STRING input "url".
type jdbcCatalog struct {
	driver     models.ConfigurableID
	connector  models.ConfigurableID
	connection models.ConfigID
	url        models.InputID
}

func (f *fixture) registerJDBC(t *testing.T) jdbcCatalog {
	t.Helper()
	ctx := context.Background()

	var c jdbcCatalog
	var err error
	c.driver, err = f.catalog.Register(ctx, "driver", "org.example.Driver", models.ConfigurableDriver, "1.0")
	require.NoError(t, err)
	c.connector, err = f.catalog.Register(ctx, "jdbc", "org.example.JdbcConnector", models.ConfigurableConnector, "1.0")
	require.NoError(t, err)
	require.NoError(t, f.catalog.SetDirections(ctx, c.connector, []models.Direction{models.DirectionFrom, models.DirectionTo}))

	c.connection, err = f.descriptors.DefineConfig(ctx, &c.connector, models.ConfigLink, "connection", 0)
	require.NoError(t, err)
	c.url, err = f.descriptors.DefineInput(ctx, models.Input{
		ConfigID:  c.connection,
		Name:      "url",
		Type:      models.InputString,
		MaxLength: 200,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) defineInput(t *testing.T, configID models.ConfigID, name string, typ models.InputType) models.InputID {
	t.Helper()
	id, err := f.descriptors.DefineInput(context.Background(), models.Input{ConfigID: configID, Name: name, Type: typ})
	require.NoError(t, err)
	return id
}
