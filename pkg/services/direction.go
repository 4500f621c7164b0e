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

// DirectionService manages the fixed set of transfer directions.
type DirectionService interface {
	// RegisterDirection returns the id of the direction, creating it when
	// absent. Only FROM and TO are accepted.
	RegisterDirection(ctx context.Context, name models.Direction) (models.DirectionID, error)

	// ListDirections returns the registered directions ordered by id.
	ListDirections(ctx context.Context) ([]models.DirectionRecord, error)
}

type directionService struct {
	base
}

// NewDirectionService creates a new direction service.
func NewDirectionService(db *database.DB, repos *repositories.Registry, opts Options, recorder *metrics.Recorder, logger *zap.Logger) DirectionService {
	return &directionService{base: newBase(db, repos, opts, recorder, logger, "directions")}
}

var _ DirectionService = (*directionService)(nil)

func (s *directionService) RegisterDirection(ctx context.Context, name models.Direction) (id models.DirectionID, err error) {
	defer s.metrics.Track("direction.register")(&err)

	if !name.Valid() {
		return 0, apperrors.Validation("direction", string(name), "must be %s or %s", models.DirectionFrom, models.DirectionTo)
	}
	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		if err := s.db.LockTable(ctx, schema.TableDirection); err != nil {
			return err
		}
		existing, err := s.repos.Directions.GetByName(ctx, name)
		if err == nil {
			id = existing.ID
			return nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		id, err = s.repos.Directions.Create(ctx, name)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *directionService) ListDirections(ctx context.Context) (out []models.DirectionRecord, err error) {
	defer s.metrics.Track("direction.list")(&err)
	return s.repos.Directions.List(ctx)
}

// resolveDirections maps direction names to their ids.
func resolveDirections(ctx context.Context, repo repositories.DirectionRepository, names []models.Direction) ([]models.DirectionID, error) {
	ids := make([]models.DirectionID, 0, len(names))
	for _, name := range names {
		if !name.Valid() {
			return nil, apperrors.Validation("direction", string(name), "must be %s or %s", models.DirectionFrom, models.DirectionTo)
		}
		d, err := repo.GetByName(ctx, name)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.UnknownReference("direction", string(name))
			}
			return nil, err
		}
		ids = append(ids, d.ID)
	}
	return ids, nil
}
