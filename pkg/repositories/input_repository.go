package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
)

// EnumSeparator joins enum values in SQI_ENUMVALS.
const EnumSeparator = ","

// InputRepository provides access to SQ_INPUT.
type InputRepository interface {
	Create(ctx context.Context, in *models.Input) error
	Get(ctx context.Context, id models.InputID) (*models.Input, error)
	// ListFor returns the inputs of a config ordered by index then id.
	ListFor(ctx context.Context, configID models.ConfigID) ([]models.Input, error)
	Delete(ctx context.Context, id models.InputID) error
}

type inputRepository struct {
	db *database.DB
}

// NewInputRepository creates a new input repository.
func NewInputRepository(db *database.DB) InputRepository {
	return &inputRepository{db: db}
}

var _ InputRepository = (*inputRepository)(nil)

const inputColumns = "{SQI_ID}, {SQI_CONFIG}, {SQI_NAME}, {SQI_INDEX}, {SQI_TYPE}, {SQI_STRMASK}, {SQI_STRLENGTH}, {SQI_ENUMVALS}"

func (r *inputRepository) Create(ctx context.Context, in *models.Input) error {
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL(`INSERT INTO {SQ_INPUT} ({SQI_NAME}, {SQI_CONFIG}, {SQI_INDEX}, {SQI_TYPE}, {SQI_STRMASK}, {SQI_STRLENGTH}, {SQI_ENUMVALS})
			VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING {SQI_ID}`),
		in.Name, int64(in.ConfigID), in.Index, string(in.Type), in.Sensitive, in.MaxLength,
		nullString(strings.Join(in.EnumValues, EnumSeparator)),
	).Scan(&in.ID)
	if err != nil {
		if appErr := classifyWrite(r.db, err, "input", in.Name); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to create input: %w", err)
	}
	return nil
}

func (r *inputRepository) Get(ctx context.Context, id models.InputID) (*models.Input, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL("SELECT "+inputColumns+" FROM {SQ_INPUT} WHERE {SQI_ID} = ?"), int64(id))
	in, err := scanInput(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("input", id.String())
		}
		return nil, fmt.Errorf("failed to get input: %w", err)
	}
	return in, nil
}

func (r *inputRepository) ListFor(ctx context.Context, configID models.ConfigID) ([]models.Input, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		r.db.SQL("SELECT "+inputColumns+" FROM {SQ_INPUT} WHERE {SQI_CONFIG} = ? ORDER BY {SQI_INDEX}, {SQI_ID}"),
		int64(configID))
	if err != nil {
		return nil, fmt.Errorf("failed to list inputs: %w", err)
	}
	defer rows.Close()

	var out []models.Input
	for rows.Next() {
		in, err := scanInput(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan input: %w", err)
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

func (r *inputRepository) Delete(ctx context.Context, id models.InputID) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, r.db.SQL("DELETE FROM {SQ_INPUT} WHERE {SQI_ID} = ?"), int64(id))
	if err != nil {
		if appErr := classifyDelete(r.db, err, "input", id.String()); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to delete input: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("input", id.String())
	}
	return nil
}

func scanInput(row rowScanner) (*models.Input, error) {
	var in models.Input
	var typ string
	var mask sql.NullBool
	var length sql.NullInt64
	var enums sql.NullString
	if err := row.Scan(&in.ID, &in.ConfigID, &in.Name, &in.Index, &typ, &mask, &length, &enums); err != nil {
		return nil, err
	}
	in.Type = models.InputType(typ)
	in.Sensitive = mask.Bool
	in.MaxLength = int(length.Int64)
	if enums.String != "" {
		in.EnumValues = strings.Split(enums.String, EnumSeparator)
	}
	return &in, nil
}
