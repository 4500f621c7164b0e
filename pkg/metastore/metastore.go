// Package metastore opens a metadata repository and wires its services over
// one store connection.
package metastore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/config"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/logging"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-metastore/pkg/repositories"
	"github.com/ekaya-inc/ekaya-metastore/pkg/retry"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
	"github.com/ekaya-inc/ekaya-metastore/pkg/services"
)

// Repository is an open metadata repository.
type Repository struct {
	DB *database.DB

	Directions  services.DirectionService
	Catalog     services.CatalogService
	Descriptors services.DescriptorService
	Links       services.LinkService
	Jobs        services.JobService
	Submissions services.SubmissionService
	Counters    services.CounterService
	Schema      services.SchemaService

	logger  *zap.Logger
	stop    context.CancelFunc
	workers sync.WaitGroup
}

// New wires the services over an open store. It does not touch the layout.
func New(db *database.DB, opts services.Options, recorder *metrics.Recorder, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	repos := repositories.NewRegistry(db)
	return &Repository{
		DB:          db,
		Directions:  services.NewDirectionService(db, repos, opts, recorder, logger),
		Catalog:     services.NewCatalogService(db, repos, opts, recorder, logger),
		Descriptors: services.NewDescriptorService(db, repos, opts, recorder, logger),
		Links:       services.NewLinkService(db, repos, opts, recorder, logger),
		Jobs:        services.NewJobService(db, repos, opts, recorder, logger),
		Submissions: services.NewSubmissionService(db, repos, opts, recorder, logger),
		Counters:    services.NewCounterService(db, repos, opts, recorder, logger),
		Schema:      services.NewSchemaService(db, repos, opts, recorder, logger),
		logger:      logger,
	}
}

// DatabaseConfig maps the store section of the configuration to a
// connection config.
func DatabaseConfig(cfg *config.DatabaseConfig) *database.Config {
	return &database.Config{
		Driver:         cfg.Driver,
		URL:            cfg.ConnectionString(),
		Schema:         cfg.Schema,
		MaxConnections: cfg.MaxConnections,
	}
}

// ServiceOptions maps the repository policy section to service options.
func ServiceOptions(cfg *config.Config) services.Options {
	opts := services.DefaultOptions()
	opts.RequireEnabled = cfg.Repository.RequireEnabled
	return opts
}

// Open connects to the configured store, retrying while it comes up, then
// verifies the layout. With auto-install a missing layout is created.
func Open(ctx context.Context, cfg *config.Config, recorder *metrics.Recorder, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dbCfg := DatabaseConfig(&cfg.Database)
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.Database.ConnectRetries
	if cfg.Database.ConnectDelay > 0 {
		retryCfg.InitialDelay = cfg.Database.ConnectDelay
	}

	attempt := 0
	db, err := retry.DoWithResult(ctx, retryCfg, func() (*database.DB, error) {
		attempt++
		db, err := database.NewConnection(ctx, dbCfg, logger)
		if err != nil {
			logger.Warn("Store not reachable",
				zap.Int("attempt", attempt),
				zap.String("error", logging.SanitizeError(err)))
		}
		return db, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s store: %s", cfg.Database.Driver, logging.SanitizeError(err))
	}

	r := New(db, ServiceOptions(cfg), recorder, logger)

	if err := r.prepare(ctx, cfg.Repository.AutoInstall); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) prepare(ctx context.Context, autoInstall bool) error {
	version, err := r.Schema.Verify(ctx)
	if err == nil {
		r.logger.Info("Repository layout verified", zap.String("version", version))
		return nil
	}
	if !autoInstall || !errors.Is(err, apperrors.ErrInvalidState) {
		return err
	}

	exists, existsErr := r.DB.TableExists(ctx, schema.TableSystem)
	if existsErr != nil {
		return existsErr
	}
	if exists {
		// A layout with a foreign version is never rewritten.
		return err
	}

	r.logger.Info("Installing repository layout")
	return r.Schema.Install(ctx)
}

// StartPurger removes finished submissions older than retention every
// interval until Close. A zero retention does nothing.
func (r *Repository) StartPurger(retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 || r.stop != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.stop = cancel

	r.workers.Add(1)
	go func() {
		defer r.workers.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.Submissions.Purge(ctx, time.Now().Add(-retention)); err != nil && ctx.Err() == nil {
					r.logger.Error("Failed to purge submissions", zap.Error(err))
				}
			}
		}
	}()
}

// Close stops background work and closes the store.
func (r *Repository) Close() error {
	if r.stop != nil {
		r.stop()
		r.workers.Wait()
	}
	return r.DB.Close()
}
