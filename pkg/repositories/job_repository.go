package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
)

// JobRepository provides access to SQ_JOB.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id models.JobID) (*models.Job, error)
	GetByName(ctx context.Context, name string) (*models.Job, error)
	List(ctx context.Context) ([]models.Job, error)
	// ListForLink returns the jobs reading from or writing to the link.
	ListForLink(ctx context.Context, id models.LinkID) ([]models.Job, error)
	Touch(ctx context.Context, id models.JobID, user string, at time.Time) error
	SetEnabled(ctx context.Context, id models.JobID, enabled bool, user string, at time.Time) error
	Delete(ctx context.Context, id models.JobID) error
}

type jobRepository struct {
	db *database.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *database.DB) JobRepository {
	return &jobRepository{db: db}
}

var _ JobRepository = (*jobRepository)(nil)

const jobColumns = `{SQB_ID}, {SQB_NAME}, {SQB_FROM_LINK}, {SQB_TO_LINK}, {SQB_CREATION_USER}, {SQB_CREATION_DATE},
	{SQB_UPDATE_USER}, {SQB_UPDATE_DATE}, {SQB_ENABLED}`

func (r *jobRepository) Create(ctx context.Context, job *models.Job) error {
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL(`INSERT INTO {SQ_JOB} ({SQB_NAME}, {SQB_FROM_LINK}, {SQB_TO_LINK}, {SQB_CREATION_USER}, {SQB_CREATION_DATE},
			{SQB_UPDATE_USER}, {SQB_UPDATE_DATE}, {SQB_ENABLED})
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING {SQB_ID}`),
		job.Name, int64(job.FromLinkID), int64(job.ToLinkID),
		nullString(job.CreationUser), nullTime(job.CreationDate),
		nullString(job.UpdateUser), nullTime(job.UpdateDate),
		job.Enabled,
	).Scan(&job.ID)
	if err != nil {
		if appErr := classifyWrite(r.db, err, "job", job.Name); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *jobRepository) Get(ctx context.Context, id models.JobID) (*models.Job, error) {
	return r.getOne(ctx, "{SQB_ID}", int64(id), id.String())
}

func (r *jobRepository) GetByName(ctx context.Context, name string) (*models.Job, error) {
	return r.getOne(ctx, "{SQB_NAME}", name, name)
}

func (r *jobRepository) getOne(ctx context.Context, column string, arg any, key string) (*models.Job, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL("SELECT "+jobColumns+" FROM {SQ_JOB} WHERE "+column+" = ?"), arg)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("job", key)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (r *jobRepository) List(ctx context.Context) ([]models.Job, error) {
	return r.list(ctx, "SELECT "+jobColumns+" FROM {SQ_JOB} ORDER BY {SQB_ID}")
}

func (r *jobRepository) ListForLink(ctx context.Context, id models.LinkID) ([]models.Job, error) {
	return r.list(ctx,
		"SELECT "+jobColumns+" FROM {SQ_JOB} WHERE {SQB_FROM_LINK} = ? OR {SQB_TO_LINK} = ? ORDER BY {SQB_ID}",
		int64(id), int64(id))
}

func (r *jobRepository) list(ctx context.Context, tmpl string, args ...any) ([]models.Job, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, r.db.SQL(tmpl), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

func (r *jobRepository) Touch(ctx context.Context, id models.JobID, user string, at time.Time) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx,
		r.db.SQL("UPDATE {SQ_JOB} SET {SQB_UPDATE_USER} = ?, {SQB_UPDATE_DATE} = ? WHERE {SQB_ID} = ?"),
		nullString(user), nullTime(at), int64(id))
	return r.checkUpdated(res, err, id)
}

func (r *jobRepository) SetEnabled(ctx context.Context, id models.JobID, enabled bool, user string, at time.Time) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx,
		r.db.SQL("UPDATE {SQ_JOB} SET {SQB_ENABLED} = ?, {SQB_UPDATE_USER} = ?, {SQB_UPDATE_DATE} = ? WHERE {SQB_ID} = ?"),
		enabled, nullString(user), nullTime(at), int64(id))
	return r.checkUpdated(res, err, id)
}

func (r *jobRepository) checkUpdated(res sql.Result, err error, id models.JobID) error {
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("job", id.String())
	}
	return nil
}

func (r *jobRepository) Delete(ctx context.Context, id models.JobID) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, r.db.SQL("DELETE FROM {SQ_JOB} WHERE {SQB_ID} = ?"), int64(id))
	if err != nil {
		if appErr := classifyDelete(r.db, err, "job", id.String()); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("job", id.String())
	}
	return nil
}

func scanJob(row rowScanner) (*models.Job, error) {
	var j models.Job
	var creator, updater sql.NullString
	var created, updated sql.NullTime
	var enabled sql.NullBool
	if err := row.Scan(&j.ID, &j.Name, &j.FromLinkID, &j.ToLinkID, &creator, &created, &updater, &updated, &enabled); err != nil {
		return nil, err
	}
	j.CreationUser = creator.String
	j.CreationDate = fromNullTime(created)
	j.UpdateUser = updater.String
	j.UpdateDate = fromNullTime(updated)
	j.Enabled = enabled.Bool
	return &j, nil
}
