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

// SubmissionRepository provides access to SQ_SUBMISSION.
type SubmissionRepository interface {
	Create(ctx context.Context, s *models.Submission) error
	Get(ctx context.Context, id models.SubmissionID) (*models.Submission, error)
	// GetForUpdate locks the row for the rest of the transaction in ctx.
	GetForUpdate(ctx context.Context, id models.SubmissionID) (*models.Submission, error)
	Update(ctx context.Context, s *models.Submission) error
	// ListForJob returns the job's submissions, newest first.
	ListForJob(ctx context.Context, jobID models.JobID) ([]models.Submission, error)
	ListByStatus(ctx context.Context, statuses ...models.SubmissionStatus) ([]models.Submission, error)
	// Delete removes the submission and its counters.
	Delete(ctx context.Context, id models.SubmissionID) error
	// DeleteForJob removes every submission of the job and their counters.
	DeleteForJob(ctx context.Context, jobID models.JobID) (int64, error)
	// DeleteUpdatedBefore removes submissions in the given statuses last
	// updated before the threshold, with their counters.
	DeleteUpdatedBefore(ctx context.Context, before time.Time, statuses ...models.SubmissionStatus) (int64, error)
}

type submissionRepository struct {
	db *database.DB
}

// NewSubmissionRepository creates a new submission repository.
func NewSubmissionRepository(db *database.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

var _ SubmissionRepository = (*submissionRepository)(nil)

const submissionColumns = `{SQS_ID}, {SQS_JOB}, {SQS_STATUS}, {SQS_CREATION_USER}, {SQS_CREATION_DATE},
	{SQS_UPDATE_USER}, {SQS_UPDATE_DATE}, {SQS_EXTERNAL_ID}, {SQS_EXTERNAL_LINK}, {SQS_ERROR_SUMMARY}, {SQS_ERROR_DETAILS}`

const newestFirst = " ORDER BY {SQS_CREATION_DATE} DESC, {SQS_ID} DESC"

func (r *submissionRepository) Create(ctx context.Context, s *models.Submission) error {
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL(`INSERT INTO {SQ_SUBMISSION} ({SQS_JOB}, {SQS_STATUS}, {SQS_CREATION_USER}, {SQS_CREATION_DATE},
			{SQS_UPDATE_USER}, {SQS_UPDATE_DATE}, {SQS_EXTERNAL_ID}, {SQS_EXTERNAL_LINK}, {SQS_ERROR_SUMMARY}, {SQS_ERROR_DETAILS})
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING {SQS_ID}`),
		int64(s.JobID), string(s.Status),
		nullString(s.CreationUser), nullTime(s.CreationDate),
		nullString(s.UpdateUser), nullTime(s.UpdateDate),
		nullString(s.ExternalID), nullString(s.ExternalLink),
		nullString(s.ErrorSummary), nullString(s.ErrorDetails),
	).Scan(&s.ID)
	if err != nil {
		if appErr := classifyWrite(r.db, err, "job", s.JobID.String()); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (r *submissionRepository) Get(ctx context.Context, id models.SubmissionID) (*models.Submission, error) {
	return r.get(ctx, id, "")
}

func (r *submissionRepository) GetForUpdate(ctx context.Context, id models.SubmissionID) (*models.Submission, error) {
	return r.get(ctx, id, r.db.Dialect().ForUpdate())
}

func (r *submissionRepository) get(ctx context.Context, id models.SubmissionID, suffix string) (*models.Submission, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL("SELECT "+submissionColumns+" FROM {SQ_SUBMISSION} WHERE {SQS_ID} = ?"+suffix), int64(id))
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("submission", id.String())
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return s, nil
}

func (r *submissionRepository) Update(ctx context.Context, s *models.Submission) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx,
		r.db.SQL(`UPDATE {SQ_SUBMISSION} SET {SQS_STATUS} = ?, {SQS_UPDATE_USER} = ?, {SQS_UPDATE_DATE} = ?,
			{SQS_EXTERNAL_ID} = ?, {SQS_EXTERNAL_LINK} = ?, {SQS_ERROR_SUMMARY} = ?, {SQS_ERROR_DETAILS} = ?
			WHERE {SQS_ID} = ?`),
		string(s.Status), nullString(s.UpdateUser), nullTime(s.UpdateDate),
		nullString(s.ExternalID), nullString(s.ExternalLink),
		nullString(s.ErrorSummary), nullString(s.ErrorDetails),
		int64(s.ID))
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("submission", s.ID.String())
	}
	return nil
}

func (r *submissionRepository) ListForJob(ctx context.Context, jobID models.JobID) ([]models.Submission, error) {
	return r.list(ctx, "SELECT "+submissionColumns+" FROM {SQ_SUBMISSION} WHERE {SQS_JOB} = ?"+newestFirst, int64(jobID))
}

func (r *submissionRepository) ListByStatus(ctx context.Context, statuses ...models.SubmissionStatus) ([]models.Submission, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	return r.list(ctx,
		"SELECT "+submissionColumns+" FROM {SQ_SUBMISSION} WHERE {SQS_STATUS} IN ("+placeholders(len(statuses))+")"+newestFirst,
		statusArgs(statuses)...)
}

func (r *submissionRepository) list(ctx context.Context, tmpl string, args ...any) ([]models.Submission, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, r.db.SQL(tmpl), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var out []models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *submissionRepository) Delete(ctx context.Context, id models.SubmissionID) error {
	conn := r.db.Conn(ctx)
	if _, err := conn.ExecContext(ctx,
		r.db.SQL("DELETE FROM {SQ_COUNTER_SUBMISSION} WHERE {SQRS_SUBMISSION} = ?"), int64(id)); err != nil {
		return fmt.Errorf("failed to delete submission counters: %w", err)
	}
	res, err := conn.ExecContext(ctx, r.db.SQL("DELETE FROM {SQ_SUBMISSION} WHERE {SQS_ID} = ?"), int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("submission", id.String())
	}
	return nil
}

func (r *submissionRepository) DeleteForJob(ctx context.Context, jobID models.JobID) (int64, error) {
	return r.deleteWhere(ctx, "{SQS_JOB} = ?", int64(jobID))
}

func (r *submissionRepository) DeleteUpdatedBefore(ctx context.Context, before time.Time, statuses ...models.SubmissionStatus) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	args := append([]any{before.UTC()}, statusArgs(statuses)...)
	return r.deleteWhere(ctx,
		"{SQS_UPDATE_DATE} < ? AND {SQS_STATUS} IN ("+placeholders(len(statuses))+")", args...)
}

func (r *submissionRepository) deleteWhere(ctx context.Context, where string, args ...any) (int64, error) {
	conn := r.db.Conn(ctx)
	if _, err := conn.ExecContext(ctx,
		r.db.SQL("DELETE FROM {SQ_COUNTER_SUBMISSION} WHERE {SQRS_SUBMISSION} IN (SELECT {SQS_ID} FROM {SQ_SUBMISSION} WHERE "+where+")"),
		args...); err != nil {
		return 0, fmt.Errorf("failed to delete submission counters: %w", err)
	}
	res, err := conn.ExecContext(ctx, r.db.SQL("DELETE FROM {SQ_SUBMISSION} WHERE "+where), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete submissions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func statusArgs(statuses []models.SubmissionStatus) []any {
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return args
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var s models.Submission
	var status string
	var creator, updater, extID, extLink, summary, details sql.NullString
	var created, updated sql.NullTime
	if err := row.Scan(&s.ID, &s.JobID, &status, &creator, &created, &updater, &updated,
		&extID, &extLink, &summary, &details); err != nil {
		return nil, err
	}
	s.Status = models.SubmissionStatus(status)
	s.CreationUser = creator.String
	s.CreationDate = fromNullTime(created)
	s.UpdateUser = updater.String
	s.UpdateDate = fromNullTime(updated)
	s.ExternalID = extID.String
	s.ExternalLink = extLink.String
	s.ErrorSummary = summary.String
	s.ErrorDetails = details.String
	return &s, nil
}
