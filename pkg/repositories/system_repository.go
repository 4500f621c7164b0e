package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
)

// SystemRepository reads and writes SQ_SYSTEM key/value metadata.
type SystemRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type systemRepository struct {
	db *database.DB
}

// NewSystemRepository creates a new system metadata repository.
func NewSystemRepository(db *database.DB) SystemRepository {
	return &systemRepository{db: db}
}

var _ SystemRepository = (*systemRepository)(nil)

func (r *systemRepository) Get(ctx context.Context, key string) (string, error) {
	var value sql.NullString
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL("SELECT {SQM_VALUE} FROM {SQ_SYSTEM} WHERE {SQM_KEY} = ?"), key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.NotFound("system key", key)
		}
		return "", fmt.Errorf("failed to read system key %s: %w", key, err)
	}
	return value.String, nil
}

// Set updates the key, inserting it when absent.
func (r *systemRepository) Set(ctx context.Context, key, value string) error {
	conn := r.db.Conn(ctx)
	res, err := conn.ExecContext(ctx,
		r.db.SQL("UPDATE {SQ_SYSTEM} SET {SQM_VALUE} = ? WHERE {SQM_KEY} = ?"), value, key)
	if err != nil {
		return fmt.Errorf("failed to update system key %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := conn.ExecContext(ctx,
		r.db.SQL("INSERT INTO {SQ_SYSTEM} ({SQM_KEY}, {SQM_VALUE}) VALUES (?, ?)"), key, value); err != nil {
		return fmt.Errorf("failed to insert system key %s: %w", key, err)
	}
	return nil
}
