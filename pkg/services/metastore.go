package services

import (
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-metastore/pkg/repositories"
)

// Options tune repository policy shared by the metastore services.
type Options struct {
	// RequireEnabled rejects jobs over disabled links and submissions of
	// disabled jobs.
	RequireEnabled bool
	// Now is the clock used for audit dates. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the production policy.
func DefaultOptions() Options {
	return Options{RequireEnabled: true, Now: time.Now}
}

// now returns the audit timestamp: UTC, truncated to what both stores keep.
func (o Options) now() time.Time {
	clock := o.Now
	if clock == nil {
		clock = time.Now
	}
	return clock().UTC().Truncate(time.Microsecond)
}

// base holds what every metastore service needs.
type base struct {
	db      *database.DB
	repos   *repositories.Registry
	opts    Options
	metrics *metrics.Recorder
	logger  *zap.Logger
}

func newBase(db *database.DB, repos *repositories.Registry, opts Options, recorder *metrics.Recorder, logger *zap.Logger, name string) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		db:      db,
		repos:   repos,
		opts:    opts,
		metrics: recorder,
		logger:  logger.Named(name),
	}
}
