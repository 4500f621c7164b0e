package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
)

// InputValueRepository stores the serialized values bound to a link or a job,
// keyed by (owner, input).
type InputValueRepository interface {
	// Replace swaps the owner's whole value set.
	Replace(ctx context.Context, ownerID int64, values map[models.InputID]string) error
	List(ctx context.Context, ownerID int64) (map[models.InputID]string, error)
	DeleteAll(ctx context.Context, ownerID int64) error
	CountForInput(ctx context.Context, id models.InputID) (int, error)
	CountForConfig(ctx context.Context, id models.ConfigID) (int, error)
}

type inputValueRepository struct {
	db *database.DB

	insert, list, deleteAll, countInput, countConfig string
}

// NewLinkInputRepository creates the repository over SQ_LINK_INPUT.
func NewLinkInputRepository(db *database.DB) InputValueRepository {
	return newInputValueRepository(db, "SQ_LINK_INPUT", "SQ_LNKI_LINK", "SQ_LNKI_INPUT", "SQ_LNKI_VALUE")
}

// NewJobInputRepository creates the repository over SQ_JOB_INPUT.
func NewJobInputRepository(db *database.DB) InputValueRepository {
	return newInputValueRepository(db, "SQ_JOB_INPUT", "SQBI_JOB", "SQBI_INPUT", "SQBI_VALUE")
}

func newInputValueRepository(db *database.DB, table, owner, input, value string) *inputValueRepository {
	t, o, i, v := "{"+table+"}", "{"+owner+"}", "{"+input+"}", "{"+value+"}"
	return &inputValueRepository{
		db:          db,
		insert:      "INSERT INTO " + t + " (" + o + ", " + i + ", " + v + ") VALUES (?, ?, ?)",
		list:        "SELECT " + i + ", " + v + " FROM " + t + " WHERE " + o + " = ?",
		deleteAll:   "DELETE FROM " + t + " WHERE " + o + " = ?",
		countInput:  "SELECT COUNT(*) FROM " + t + " WHERE " + i + " = ?",
		countConfig: "SELECT COUNT(*) FROM " + t + " v JOIN {SQ_INPUT} i ON i.{SQI_ID} = v." + i +
			" WHERE i.{SQI_CONFIG} = ?",
	}
}

var _ InputValueRepository = (*inputValueRepository)(nil)

func (r *inputValueRepository) Replace(ctx context.Context, ownerID int64, values map[models.InputID]string) error {
	if err := r.DeleteAll(ctx, ownerID); err != nil {
		return err
	}

	ids := make([]models.InputID, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	conn := r.db.Conn(ctx)
	insert := r.db.SQL(r.insert)
	for _, id := range ids {
		if _, err := conn.ExecContext(ctx, insert, ownerID, int64(id), values[id]); err != nil {
			if appErr := classifyWrite(r.db, err, "input", id.String()); appErr != nil {
				return appErr
			}
			return fmt.Errorf("failed to insert input value: %w", err)
		}
	}
	return nil
}

func (r *inputValueRepository) List(ctx context.Context, ownerID int64) (map[models.InputID]string, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, r.db.SQL(r.list), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list input values: %w", err)
	}
	defer rows.Close()

	out := make(map[models.InputID]string)
	for rows.Next() {
		var id models.InputID
		var v sql.NullString
		if err := rows.Scan(&id, &v); err != nil {
			return nil, fmt.Errorf("failed to scan input value: %w", err)
		}
		out[id] = v.String
	}
	return out, rows.Err()
}

func (r *inputValueRepository) DeleteAll(ctx context.Context, ownerID int64) error {
	if _, err := r.db.Conn(ctx).ExecContext(ctx, r.db.SQL(r.deleteAll), ownerID); err != nil {
		return fmt.Errorf("failed to delete input values: %w", err)
	}
	return nil
}

func (r *inputValueRepository) CountForInput(ctx context.Context, id models.InputID) (int, error) {
	return r.count(ctx, r.countInput, int64(id))
}

func (r *inputValueRepository) CountForConfig(ctx context.Context, id models.ConfigID) (int, error) {
	return r.count(ctx, r.countConfig, int64(id))
}

func (r *inputValueRepository) count(ctx context.Context, tmpl string, arg int64) (int, error) {
	var n int
	if err := r.db.Conn(ctx).QueryRowContext(ctx, r.db.SQL(tmpl), arg).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count input values: %w", err)
	}
	return n, nil
}
