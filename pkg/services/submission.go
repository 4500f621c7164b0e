package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
	"github.com/ekaya-inc/ekaya-metastore/pkg/repositories"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

// SubmissionService records the executions of jobs.
type SubmissionService interface {
	// Create starts a submission of the job in BOOTING.
	Create(ctx context.Context, jobID models.JobID, creator string) (models.SubmissionID, error)

	// UpdateStatus writes a status report. Any status is accepted until the
	// submission reaches SUCCEEDED or FAILED; after that the record is
	// immutable. Empty external and error fields keep their current values.
	// Error fields longer than their columns are truncated.
	UpdateStatus(ctx context.Context, id models.SubmissionID, update models.StatusUpdate) error

	// Get returns a submission by id.
	Get(ctx context.Context, id models.SubmissionID) (*models.Submission, error)

	// ListForJob returns the submissions of a job, newest first.
	ListForJob(ctx context.Context, jobID models.JobID) ([]models.Submission, error)

	// LastForJob returns the newest submission of a job.
	LastForJob(ctx context.Context, jobID models.JobID) (*models.Submission, error)

	// ListUnfinished returns the BOOTING and RUNNING submissions, newest first.
	ListUnfinished(ctx context.Context) ([]models.Submission, error)

	// Delete removes a submission with its counters.
	Delete(ctx context.Context, id models.SubmissionID) error

	// Purge removes finished submissions last updated before the threshold,
	// with their counters, and returns how many were removed.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type submissionService struct {
	base
}

// NewSubmissionService creates a new submission service.
func NewSubmissionService(db *database.DB, repos *repositories.Registry, opts Options, recorder *metrics.Recorder, logger *zap.Logger) SubmissionService {
	return &submissionService{base: newBase(db, repos, opts, recorder, logger, "submissions")}
}

var _ SubmissionService = (*submissionService)(nil)

func (s *submissionService) Create(ctx context.Context, jobID models.JobID, creator string) (id models.SubmissionID, err error) {
	defer s.metrics.Track("submission.create")(&err)

	if err := validateUser("submission", jobID.String(), creator, schema.TableSubmission, "SQS_CREATION_USER"); err != nil {
		return 0, err
	}

	now := s.opts.now()
	sub := &models.Submission{
		JobID:        jobID,
		Status:       models.StatusBooting,
		CreationUser: creator,
		CreationDate: now,
		UpdateUser:   creator,
		UpdateDate:   now,
	}
	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		job, err := s.repos.Jobs.Get(ctx, jobID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.UnknownReference("job", jobID.String())
			}
			return err
		}
		if s.opts.RequireEnabled && !job.Enabled {
			return apperrors.InvalidState("job", job.Name, "job is disabled")
		}
		return s.repos.Submissions.Create(ctx, sub)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Created submission", zap.Int64("id", int64(sub.ID)), zap.Int64("job_id", int64(jobID)))
	return sub.ID, nil
}

func (s *submissionService) UpdateStatus(ctx context.Context, id models.SubmissionID, update models.StatusUpdate) (err error) {
	defer s.metrics.Track("submission.update_status")(&err)

	if _, err := models.ParseSubmissionStatus(string(update.Status)); err != nil {
		return apperrors.Validation("submission", id.String(), "unknown status %q", update.Status)
	}
	if err := validateStruct("submission", id.String(), &update); err != nil {
		return err
	}

	var previous models.SubmissionStatus
	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		sub, err := s.repos.Submissions.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sub.Status.IsFinal() {
			return apperrors.InvalidState("submission", id.String(), "submission already %s", sub.Status)
		}
		previous = sub.Status

		sub.Status = update.Status
		sub.UpdateUser = update.User
		sub.UpdateDate = s.opts.now()
		if update.ExternalID != "" {
			sub.ExternalID = update.ExternalID
		}
		if update.ExternalLink != "" {
			sub.ExternalLink = update.ExternalLink
		}
		if update.ErrorSummary != "" {
			sub.ErrorSummary = truncateToColumn(update.ErrorSummary, schema.TableSubmission, "SQS_ERROR_SUMMARY")
		}
		if update.ErrorDetails != "" {
			sub.ErrorDetails = truncateToColumn(update.ErrorDetails, schema.TableSubmission, "SQS_ERROR_DETAILS")
		}
		return s.repos.Submissions.Update(ctx, sub)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Updated submission status",
		zap.Int64("id", int64(id)),
		zap.String("from", string(previous)),
		zap.String("to", string(update.Status)))
	return nil
}

func (s *submissionService) Get(ctx context.Context, id models.SubmissionID) (sub *models.Submission, err error) {
	defer s.metrics.Track("submission.get")(&err)
	return s.repos.Submissions.Get(ctx, id)
}

func (s *submissionService) ListForJob(ctx context.Context, jobID models.JobID) (out []models.Submission, err error) {
	defer s.metrics.Track("submission.list")(&err)

	if _, err := s.repos.Jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}
	return s.repos.Submissions.ListForJob(ctx, jobID)
}

func (s *submissionService) LastForJob(ctx context.Context, jobID models.JobID) (sub *models.Submission, err error) {
	defer s.metrics.Track("submission.last")(&err)

	subs, err := s.repos.Submissions.ListForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, apperrors.NotFound("submission", "job "+jobID.String())
	}
	return &subs[0], nil
}

func (s *submissionService) ListUnfinished(ctx context.Context) (out []models.Submission, err error) {
	defer s.metrics.Track("submission.list")(&err)
	return s.repos.Submissions.ListByStatus(ctx, models.StatusBooting, models.StatusRunning)
}

func (s *submissionService) Delete(ctx context.Context, id models.SubmissionID) (err error) {
	defer s.metrics.Track("submission.delete")(&err)

	return s.db.WithTx(ctx, func(ctx context.Context) error {
		return s.repos.Submissions.Delete(ctx, id)
	})
}

func (s *submissionService) Purge(ctx context.Context, before time.Time) (n int64, err error) {
	defer s.metrics.Track("submission.purge")(&err)

	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repos.Submissions.DeleteUpdatedBefore(ctx, before,
			models.StatusSucceeded, models.StatusFailed, models.StatusUnknown)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Purged submissions", zap.Int64("count", n), zap.Time("before", before))
	return n, nil
}
