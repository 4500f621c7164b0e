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

// ConfigurableRepository provides access to SQ_CONFIGURABLE and
// SQ_CONNECTOR_DIRECTIONS.
type ConfigurableRepository interface {
	Create(ctx context.Context, c *models.Configurable) error
	Get(ctx context.Context, id models.ConfigurableID) (*models.Configurable, error)
	GetByName(ctx context.Context, name string) (*models.Configurable, error)
	List(ctx context.Context) ([]models.Configurable, error)
	ListByType(ctx context.Context, t models.ConfigurableType) ([]models.Configurable, error)
	SetDirections(ctx context.Context, id models.ConfigurableID, directions []models.DirectionID) error
	CountLinks(ctx context.Context, id models.ConfigurableID) (int, error)
	// Delete removes the configurable with its directions, configs, config
	// directions and inputs.
	Delete(ctx context.Context, id models.ConfigurableID) error
}

type configurableRepository struct {
	db *database.DB
}

// NewConfigurableRepository creates a new configurable repository.
func NewConfigurableRepository(db *database.DB) ConfigurableRepository {
	return &configurableRepository{db: db}
}

var _ ConfigurableRepository = (*configurableRepository)(nil)

const configurableColumns = "{SQC_ID}, {SQC_NAME}, {SQC_CLASS}, {SQC_TYPE}, {SQC_VERSION}"

func (r *configurableRepository) Create(ctx context.Context, c *models.Configurable) error {
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL(`INSERT INTO {SQ_CONFIGURABLE} ({SQC_NAME}, {SQC_CLASS}, {SQC_TYPE}, {SQC_VERSION})
			VALUES (?, ?, ?, ?) RETURNING {SQC_ID}`),
		c.Name, c.ClassName, string(c.Type), nullString(c.Version),
	).Scan(&c.ID)
	if err != nil {
		if appErr := classifyWrite(r.db, err, "configurable", c.Name); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to create configurable: %w", err)
	}
	return nil
}

func (r *configurableRepository) Get(ctx context.Context, id models.ConfigurableID) (*models.Configurable, error) {
	return r.getOne(ctx, "{SQC_ID}", int64(id), id.String())
}

func (r *configurableRepository) GetByName(ctx context.Context, name string) (*models.Configurable, error) {
	return r.getOne(ctx, "{SQC_NAME}", name, name)
}

func (r *configurableRepository) getOne(ctx context.Context, column string, arg any, key string) (*models.Configurable, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL("SELECT "+configurableColumns+" FROM {SQ_CONFIGURABLE} WHERE "+column+" = ?"), arg)
	c, err := scanConfigurable(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("configurable", key)
		}
		return nil, fmt.Errorf("failed to get configurable: %w", err)
	}
	dirs, err := r.directions(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Directions = dirs[c.ID]
	return c, nil
}

func (r *configurableRepository) List(ctx context.Context) ([]models.Configurable, error) {
	return r.list(ctx, "SELECT "+configurableColumns+" FROM {SQ_CONFIGURABLE} ORDER BY {SQC_ID}")
}

func (r *configurableRepository) ListByType(ctx context.Context, t models.ConfigurableType) ([]models.Configurable, error) {
	return r.list(ctx, "SELECT "+configurableColumns+" FROM {SQ_CONFIGURABLE} WHERE {SQC_TYPE} = ? ORDER BY {SQC_ID}", string(t))
}

func (r *configurableRepository) list(ctx context.Context, tmpl string, args ...any) ([]models.Configurable, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, r.db.SQL(tmpl), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list configurables: %w", err)
	}
	var out []models.Configurable
	for rows.Next() {
		c, err := scanConfigurable(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan configurable: %w", err)
		}
		out = append(out, *c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list configurables: %w", err)
	}

	dirs, err := r.directions(ctx, 0)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Directions = dirs[out[i].ID]
	}
	return out, nil
}

// directions loads the supported directions of one configurable, or of all
// configurables when id is zero.
func (r *configurableRepository) directions(ctx context.Context, id models.ConfigurableID) (map[models.ConfigurableID]models.Directions, error) {
	tmpl := `SELECT cd.{SQCD_CONNECTOR}, d.{SQD_NAME}
		FROM {SQ_CONNECTOR_DIRECTIONS} cd
		JOIN {SQ_DIRECTION} d ON d.{SQD_ID} = cd.{SQCD_DIRECTION}`
	var args []any
	if id != 0 {
		tmpl += " WHERE cd.{SQCD_CONNECTOR} = ?"
		args = append(args, int64(id))
	}
	tmpl += " ORDER BY d.{SQD_ID}"

	rows, err := r.db.Conn(ctx).QueryContext(ctx, r.db.SQL(tmpl), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load connector directions: %w", err)
	}
	defer rows.Close()

	out := make(map[models.ConfigurableID]models.Directions)
	for rows.Next() {
		var owner models.ConfigurableID
		var name string
		if err := rows.Scan(&owner, &name); err != nil {
			return nil, fmt.Errorf("failed to scan connector direction: %w", err)
		}
		out[owner] = append(out[owner], models.Direction(name))
	}
	return out, rows.Err()
}

// SetDirections replaces the supported direction set.
func (r *configurableRepository) SetDirections(ctx context.Context, id models.ConfigurableID, directions []models.DirectionID) error {
	conn := r.db.Conn(ctx)
	if _, err := conn.ExecContext(ctx,
		r.db.SQL("DELETE FROM {SQ_CONNECTOR_DIRECTIONS} WHERE {SQCD_CONNECTOR} = ?"), int64(id)); err != nil {
		return fmt.Errorf("failed to clear connector directions: %w", err)
	}
	insert := r.db.SQL("INSERT INTO {SQ_CONNECTOR_DIRECTIONS} ({SQCD_CONNECTOR}, {SQCD_DIRECTION}) VALUES (?, ?)")
	seen := make(map[models.DirectionID]bool, len(directions))
	for _, d := range directions {
		if seen[d] {
			continue
		}
		seen[d] = true
		if _, err := conn.ExecContext(ctx, insert, int64(id), int64(d)); err != nil {
			if appErr := classifyWrite(r.db, err, "direction", d.String()); appErr != nil {
				return appErr
			}
			return fmt.Errorf("failed to insert connector direction: %w", err)
		}
	}
	return nil
}

func (r *configurableRepository) CountLinks(ctx context.Context, id models.ConfigurableID) (int, error) {
	var n int
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL("SELECT COUNT(*) FROM {SQ_LINK} WHERE {SQ_LNK_CONFIGURABLE} = ?"), int64(id)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return n, nil
}

func (r *configurableRepository) Delete(ctx context.Context, id models.ConfigurableID) error {
	conn := r.db.Conn(ctx)
	stmts := []string{
		`DELETE FROM {SQ_CONFIG_DIRECTIONS} WHERE {SQ_CFG_DIR_CONFIG} IN
			(SELECT {SQ_CFG_ID} FROM {SQ_CONFIG} WHERE {SQ_CFG_CONFIGURABLE} = ?)`,
		`DELETE FROM {SQ_INPUT} WHERE {SQI_CONFIG} IN
			(SELECT {SQ_CFG_ID} FROM {SQ_CONFIG} WHERE {SQ_CFG_CONFIGURABLE} = ?)`,
		"DELETE FROM {SQ_CONFIG} WHERE {SQ_CFG_CONFIGURABLE} = ?",
		"DELETE FROM {SQ_CONNECTOR_DIRECTIONS} WHERE {SQCD_CONNECTOR} = ?",
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, r.db.SQL(stmt), int64(id)); err != nil {
			if appErr := classifyDelete(r.db, err, "configurable", id.String()); appErr != nil {
				return appErr
			}
			return fmt.Errorf("failed to delete configurable: %w", err)
		}
	}

	res, err := conn.ExecContext(ctx, r.db.SQL("DELETE FROM {SQ_CONFIGURABLE} WHERE {SQC_ID} = ?"), int64(id))
	if err != nil {
		if appErr := classifyDelete(r.db, err, "configurable", id.String()); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to delete configurable: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("configurable", id.String())
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfigurable(row rowScanner) (*models.Configurable, error) {
	var c models.Configurable
	var typ string
	var version sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &c.ClassName, &typ, &version); err != nil {
		return nil, err
	}
	c.Type = models.ConfigurableType(typ)
	c.Version = version.String
	return &c, nil
}
