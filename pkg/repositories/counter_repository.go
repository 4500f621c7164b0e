package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
)

// CounterRepository provides access to the counter tables.
type CounterRepository interface {
	// EnsureGroup registers the group name if absent and returns its id.
	EnsureGroup(ctx context.Context, name string) (int64, error)
	// EnsureCounter registers the counter name if absent and returns its id.
	EnsureCounter(ctx context.Context, name string) (int64, error)
	// Upsert writes the value, replacing any previous one.
	Upsert(ctx context.Context, submissionID models.SubmissionID, groupID, counterID, value int64) error
	ListForSubmission(ctx context.Context, submissionID models.SubmissionID) (models.Counters, error)
}

type counterRepository struct {
	db *database.DB
}

// NewCounterRepository creates a new counter repository.
func NewCounterRepository(db *database.DB) CounterRepository {
	return &counterRepository{db: db}
}

var _ CounterRepository = (*counterRepository)(nil)

func (r *counterRepository) EnsureGroup(ctx context.Context, name string) (int64, error) {
	return r.ensure(ctx, name,
		"INSERT INTO {SQ_COUNTER_GROUP} ({SQG_NAME}) VALUES (?) ON CONFLICT ({SQG_NAME}) DO NOTHING",
		"SELECT {SQG_ID} FROM {SQ_COUNTER_GROUP} WHERE {SQG_NAME} = ?")
}

func (r *counterRepository) EnsureCounter(ctx context.Context, name string) (int64, error) {
	return r.ensure(ctx, name,
		"INSERT INTO {SQ_COUNTER} ({SQR_NAME}) VALUES (?) ON CONFLICT ({SQR_NAME}) DO NOTHING",
		"SELECT {SQR_ID} FROM {SQ_COUNTER} WHERE {SQR_NAME} = ?")
}

func (r *counterRepository) ensure(ctx context.Context, name, insert, selectID string) (int64, error) {
	conn := r.db.Conn(ctx)
	if _, err := conn.ExecContext(ctx, r.db.SQL(insert), name); err != nil {
		return 0, fmt.Errorf("failed to register counter name %s: %w", name, err)
	}
	var id int64
	if err := conn.QueryRowContext(ctx, r.db.SQL(selectID), name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read counter name %s: %w", name, err)
	}
	return id, nil
}

func (r *counterRepository) Upsert(ctx context.Context, submissionID models.SubmissionID, groupID, counterID, value int64) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx,
		r.db.SQL(`INSERT INTO {SQ_COUNTER_SUBMISSION} ({SQRS_GROUP}, {SQRS_COUNTER}, {SQRS_SUBMISSION}, {SQRS_VALUE})
			VALUES (?, ?, ?, ?)
			ON CONFLICT ({SQRS_GROUP}, {SQRS_COUNTER}, {SQRS_SUBMISSION}) DO UPDATE SET {SQRS_VALUE} = excluded.{SQRS_VALUE}`),
		groupID, counterID, int64(submissionID), value)
	if err != nil {
		if appErr := classifyWrite(r.db, err, "submission", submissionID.String()); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to record counter: %w", err)
	}
	return nil
}

func (r *counterRepository) ListForSubmission(ctx context.Context, submissionID models.SubmissionID) (models.Counters, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		r.db.SQL(`SELECT g.{SQG_NAME}, c.{SQR_NAME}, cs.{SQRS_VALUE}
			FROM {SQ_COUNTER_SUBMISSION} cs
			JOIN {SQ_COUNTER_GROUP} g ON g.{SQG_ID} = cs.{SQRS_GROUP}
			JOIN {SQ_COUNTER} c ON c.{SQR_ID} = cs.{SQRS_COUNTER}
			WHERE cs.{SQRS_SUBMISSION} = ?`),
		int64(submissionID))
	if err != nil {
		return nil, fmt.Errorf("failed to list counters: %w", err)
	}
	defer rows.Close()

	out := make(models.Counters)
	for rows.Next() {
		var k models.CounterKey
		var v int64
		if err := rows.Scan(&k.Group, &k.Name, &v); err != nil {
			return nil, fmt.Errorf("failed to scan counter: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
