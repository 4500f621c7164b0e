package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
)

// DirectionRepository provides access to SQ_DIRECTION.
type DirectionRepository interface {
	GetByName(ctx context.Context, name models.Direction) (*models.DirectionRecord, error)
	Create(ctx context.Context, name models.Direction) (models.DirectionID, error)
	List(ctx context.Context) ([]models.DirectionRecord, error)
}

type directionRepository struct {
	db *database.DB
}

// NewDirectionRepository creates a new direction repository.
func NewDirectionRepository(db *database.DB) DirectionRepository {
	return &directionRepository{db: db}
}

var _ DirectionRepository = (*directionRepository)(nil)

func (r *directionRepository) GetByName(ctx context.Context, name models.Direction) (*models.DirectionRecord, error) {
	d := models.DirectionRecord{Name: name}
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL("SELECT {SQD_ID} FROM {SQ_DIRECTION} WHERE {SQD_NAME} = ?"), string(name)).Scan(&d.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("direction", string(name))
		}
		return nil, fmt.Errorf("failed to get direction: %w", err)
	}
	return &d, nil
}

func (r *directionRepository) Create(ctx context.Context, name models.Direction) (models.DirectionID, error) {
	var id models.DirectionID
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL("INSERT INTO {SQ_DIRECTION} ({SQD_NAME}) VALUES (?) RETURNING {SQD_ID}"), string(name)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create direction: %w", err)
	}
	return id, nil
}

func (r *directionRepository) List(ctx context.Context) ([]models.DirectionRecord, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		r.db.SQL("SELECT {SQD_ID}, {SQD_NAME} FROM {SQ_DIRECTION} ORDER BY {SQD_ID}"))
	if err != nil {
		return nil, fmt.Errorf("failed to list directions: %w", err)
	}
	defer rows.Close()

	var out []models.DirectionRecord
	for rows.Next() {
		var d models.DirectionRecord
		var name string
		if err := rows.Scan(&d.ID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan direction: %w", err)
		}
		d.Name = models.Direction(name)
		out = append(out, d)
	}
	return out, rows.Err()
}
