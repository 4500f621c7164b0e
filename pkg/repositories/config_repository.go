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

// ConfigRepository provides access to SQ_CONFIG and SQ_CONFIG_DIRECTIONS.
type ConfigRepository interface {
	Create(ctx context.Context, cfg *models.Config) error
	Get(ctx context.Context, id models.ConfigID) (*models.Config, error)
	// ListFor returns the configs of a configurable in one category,
	// ordered by index then id, each with its directions.
	ListFor(ctx context.Context, configurableID models.ConfigurableID, t models.ConfigType) ([]models.Config, error)
	// BindDirection is idempotent.
	BindDirection(ctx context.Context, id models.ConfigID, direction models.DirectionID) error
	// Delete removes the config with its directions and inputs.
	Delete(ctx context.Context, id models.ConfigID) error
}

type configRepository struct {
	db *database.DB
}

// NewConfigRepository creates a new config repository.
func NewConfigRepository(db *database.DB) ConfigRepository {
	return &configRepository{db: db}
}

var _ ConfigRepository = (*configRepository)(nil)

const configColumns = "{SQ_CFG_ID}, {SQ_CFG_CONFIGURABLE}, {SQ_CFG_NAME}, {SQ_CFG_TYPE}, {SQ_CFG_INDEX}"

func (r *configRepository) Create(ctx context.Context, cfg *models.Config) error {
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL(`INSERT INTO {SQ_CONFIG} ({SQ_CFG_CONFIGURABLE}, {SQ_CFG_NAME}, {SQ_CFG_TYPE}, {SQ_CFG_INDEX})
			VALUES (?, ?, ?, ?) RETURNING {SQ_CFG_ID}`),
		int64(cfg.ConfigurableID), cfg.Name, string(cfg.Type), cfg.Index,
	).Scan(&cfg.ID)
	if err != nil {
		if appErr := classifyWrite(r.db, err, "config", cfg.Name); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to create config: %w", err)
	}
	return nil
}

func (r *configRepository) Get(ctx context.Context, id models.ConfigID) (*models.Config, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL("SELECT "+configColumns+" FROM {SQ_CONFIG} WHERE {SQ_CFG_ID} = ?"), int64(id))
	cfg, err := scanConfig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("config", id.String())
		}
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	dirs, err := r.directions(ctx, "c.{SQ_CFG_ID} = ?", int64(id))
	if err != nil {
		return nil, err
	}
	cfg.Directions = dirs[cfg.ID]
	return cfg, nil
}

func (r *configRepository) ListFor(ctx context.Context, configurableID models.ConfigurableID, t models.ConfigType) ([]models.Config, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		r.db.SQL("SELECT "+configColumns+` FROM {SQ_CONFIG}
			WHERE {SQ_CFG_CONFIGURABLE} = ? AND {SQ_CFG_TYPE} = ?
			ORDER BY {SQ_CFG_INDEX}, {SQ_CFG_ID}`),
		int64(configurableID), string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	var out []models.Config
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		out = append(out, *cfg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}

	dirs, err := r.directions(ctx, "c.{SQ_CFG_CONFIGURABLE} = ? AND c.{SQ_CFG_TYPE} = ?", int64(configurableID), string(t))
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Directions = dirs[out[i].ID]
	}
	return out, nil
}

func (r *configRepository) directions(ctx context.Context, where string, args ...any) (map[models.ConfigID]models.Directions, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		r.db.SQL(`SELECT c.{SQ_CFG_ID}, d.{SQD_NAME}
			FROM {SQ_CONFIG_DIRECTIONS} cd
			JOIN {SQ_CONFIG} c ON c.{SQ_CFG_ID} = cd.{SQ_CFG_DIR_CONFIG}
			JOIN {SQ_DIRECTION} d ON d.{SQD_ID} = cd.{SQ_CFG_DIR_DIRECTION}
			WHERE `+where+" ORDER BY d.{SQD_ID}"), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config directions: %w", err)
	}
	defer rows.Close()

	out := make(map[models.ConfigID]models.Directions)
	for rows.Next() {
		var id models.ConfigID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan config direction: %w", err)
		}
		out[id] = append(out[id], models.Direction(name))
	}
	return out, rows.Err()
}

func (r *configRepository) BindDirection(ctx context.Context, id models.ConfigID, direction models.DirectionID) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx,
		r.db.SQL(`INSERT INTO {SQ_CONFIG_DIRECTIONS} ({SQ_CFG_DIR_CONFIG}, {SQ_CFG_DIR_DIRECTION})
			SELECT CAST(? AS BIGINT), CAST(? AS BIGINT) WHERE NOT EXISTS (
				SELECT 1 FROM {SQ_CONFIG_DIRECTIONS} WHERE {SQ_CFG_DIR_CONFIG} = ? AND {SQ_CFG_DIR_DIRECTION} = ?)`),
		int64(id), int64(direction), int64(id), int64(direction))
	if err != nil {
		if appErr := classifyWrite(r.db, err, "config direction", id.String()); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to bind config direction: %w", err)
	}
	return nil
}

func (r *configRepository) Delete(ctx context.Context, id models.ConfigID) error {
	conn := r.db.Conn(ctx)
	for _, stmt := range []string{
		"DELETE FROM {SQ_CONFIG_DIRECTIONS} WHERE {SQ_CFG_DIR_CONFIG} = ?",
		"DELETE FROM {SQ_INPUT} WHERE {SQI_CONFIG} = ?",
	} {
		if _, err := conn.ExecContext(ctx, r.db.SQL(stmt), int64(id)); err != nil {
			if appErr := classifyDelete(r.db, err, "config", id.String()); appErr != nil {
				return appErr
			}
			return fmt.Errorf("failed to delete config: %w", err)
		}
	}
	res, err := conn.ExecContext(ctx, r.db.SQL("DELETE FROM {SQ_CONFIG} WHERE {SQ_CFG_ID} = ?"), int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("config", id.String())
	}
	return nil
}

func scanConfig(row rowScanner) (*models.Config, error) {
	var cfg models.Config
	var configurable sql.NullInt64
	var typ string
	if err := row.Scan(&cfg.ID, &configurable, &cfg.Name, &typ, &cfg.Index); err != nil {
		return nil, err
	}
	cfg.ConfigurableID = models.ConfigurableID(configurable.Int64)
	cfg.Type = models.ConfigType(typ)
	return &cfg, nil
}
