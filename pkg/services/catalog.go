package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
	"github.com/ekaya-inc/ekaya-metastore/pkg/repositories"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

// CatalogService registers connectors and the driver.
type CatalogService interface {
	// Register adds a configurable. A taken name is reported by the unique
	// constraint as a duplicate. Only one DRIVER may exist.
	Register(ctx context.Context, name, className string, kind models.ConfigurableType, version string) (models.ConfigurableID, error)

	// SetDirections replaces the directions a connector supports.
	// An empty set means the connector supports every direction.
	SetDirections(ctx context.Context, id models.ConfigurableID, directions []models.Direction) error

	// LookupByName returns the configurable with its directions.
	LookupByName(ctx context.Context, name string) (*models.Configurable, error)

	// LookupByID returns the configurable with its directions.
	LookupByID(ctx context.Context, id models.ConfigurableID) (*models.Configurable, error)

	// List returns every configurable ordered by id.
	List(ctx context.Context) ([]models.Configurable, error)

	// Driver returns the registered driver.
	Driver(ctx context.Context) (*models.Configurable, error)

	// Unregister removes a configurable with its descriptors. It fails while
	// any link uses it or any stored value references one of its inputs.
	Unregister(ctx context.Context, id models.ConfigurableID) error
}

type catalogService struct {
	base
}

// NewCatalogService creates a new configurable catalog service.
func NewCatalogService(db *database.DB, repos *repositories.Registry, opts Options, recorder *metrics.Recorder, logger *zap.Logger) CatalogService {
	return &catalogService{base: newBase(db, repos, opts, recorder, logger, "catalog")}
}

var _ CatalogService = (*catalogService)(nil)

func (s *catalogService) Register(ctx context.Context, name, className string, kind models.ConfigurableType, version string) (id models.ConfigurableID, err error) {
	defer s.metrics.Track("configurable.register")(&err)

	c := &models.Configurable{Name: name, ClassName: className, Type: kind, Version: version}
	if err := validateStruct("configurable", name, c); err != nil {
		return 0, err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		if kind == models.ConfigurableDriver {
			if err := s.db.LockTable(ctx, schema.TableConfigurable); err != nil {
				return err
			}
			drivers, err := s.repos.Configurables.ListByType(ctx, models.ConfigurableDriver)
			if err != nil {
				return err
			}
			if len(drivers) > 0 {
				return apperrors.InvalidState("configurable", name, "driver %q is already registered", drivers[0].Name)
			}
		}
		return s.repos.Configurables.Create(ctx, c)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Registered configurable",
		zap.String("name", c.Name),
		zap.String("type", string(c.Type)),
		zap.Int64("id", int64(c.ID)))
	return c.ID, nil
}

func (s *catalogService) SetDirections(ctx context.Context, id models.ConfigurableID, directions []models.Direction) (err error) {
	defer s.metrics.Track("configurable.set_directions")(&err)

	return s.db.WithTx(ctx, func(ctx context.Context) error {
		// The pair has no unique key in the layout.
		if err := s.db.LockTable(ctx, schema.TableConnectorDirections); err != nil {
			return err
		}
		c, err := s.repos.Configurables.Get(ctx, id)
		if err != nil {
			return err
		}
		if c.Type != models.ConfigurableConnector {
			return apperrors.InvalidState("configurable", c.Name, "directions apply only to connectors")
		}
		n, err := s.repos.Configurables.CountLinks(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.ReferentialIntegrity("configurable", c.Name, "%d link(s) depend on its directions", n)
		}
		ids, err := resolveDirections(ctx, s.repos.Directions, directions)
		if err != nil {
			return err
		}
		return s.repos.Configurables.SetDirections(ctx, id, ids)
	})
}

func (s *catalogService) LookupByName(ctx context.Context, name string) (c *models.Configurable, err error) {
	defer s.metrics.Track("configurable.lookup")(&err)
	return s.repos.Configurables.GetByName(ctx, name)
}

func (s *catalogService) LookupByID(ctx context.Context, id models.ConfigurableID) (c *models.Configurable, err error) {
	defer s.metrics.Track("configurable.lookup")(&err)
	return s.repos.Configurables.Get(ctx, id)
}

func (s *catalogService) List(ctx context.Context) (out []models.Configurable, err error) {
	defer s.metrics.Track("configurable.list")(&err)
	return s.repos.Configurables.List(ctx)
}

func (s *catalogService) Driver(ctx context.Context) (c *models.Configurable, err error) {
	defer s.metrics.Track("configurable.driver")(&err)

	c, err = findDriver(ctx, s.repos.Configurables)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperrors.NotFound("configurable", string(models.ConfigurableDriver))
	}
	return c, nil
}

func (s *catalogService) Unregister(ctx context.Context, id models.ConfigurableID) (err error) {
	defer s.metrics.Track("configurable.unregister")(&err)

	var name string
	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		c, err := s.repos.Configurables.Get(ctx, id)
		if err != nil {
			return err
		}
		name = c.Name
		links, err := s.repos.Configurables.CountLinks(ctx, id)
		if err != nil {
			return err
		}
		if links > 0 {
			return apperrors.ReferentialIntegrity("configurable", c.Name, "used by %d link(s)", links)
		}
		return s.repos.Configurables.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Unregistered configurable", zap.String("name", name), zap.Int64("id", int64(id)))
	return nil
}

// findDriver returns the registered driver, or nil when there is none.
func findDriver(ctx context.Context, repo repositories.ConfigurableRepository) (*models.Configurable, error) {
	drivers, err := repo.ListByType(ctx, models.ConfigurableDriver)
	if err != nil {
		return nil, err
	}
	if len(drivers) == 0 {
		return nil, nil
	}
	return &drivers[0], nil
}

// getConfigurableRef loads a configurable referenced by another entity.
// A missing row is an unknown reference rather than a failed lookup.
func getConfigurableRef(ctx context.Context, repo repositories.ConfigurableRepository, id models.ConfigurableID) (*models.Configurable, error) {
	c, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.UnknownReference("configurable", id.String())
		}
		return nil, err
	}
	return c, nil
}
