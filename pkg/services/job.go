package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
	"github.com/ekaya-inc/ekaya-metastore/pkg/repositories"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

// JobService manages jobs: a FROM link and a TO link bound to JOB input
// values.
type JobService interface {
	// CreateJob persists the job and its values atomically. A value may bind
	// a JOB input of the driver, of the from-link connector when its config
	// applies to FROM, or of the to-link connector when its config applies
	// to TO.
	CreateJob(ctx context.Context, name string, fromLinkID, toLinkID models.LinkID, values models.InputValues, creator string) (models.JobID, error)

	// UpdateJob replaces the whole value set of a job.
	UpdateJob(ctx context.Context, id models.JobID, values models.InputValues, updater string) error

	// DeleteJob removes the job with its values, submissions and counters.
	DeleteJob(ctx context.Context, id models.JobID) error

	// SetEnabled toggles the job without touching its values.
	SetEnabled(ctx context.Context, id models.JobID, enabled bool, user string) error

	// GetJob returns the job with its values.
	GetJob(ctx context.Context, id models.JobID) (*models.Job, error)

	// GetJobByName returns the job with its values.
	GetJobByName(ctx context.Context, name string) (*models.Job, error)

	// ListJobs returns every job without values, ordered by id.
	ListJobs(ctx context.Context) ([]models.Job, error)

	// ListJobsForLink returns the jobs reading from or writing to a link.
	ListJobsForLink(ctx context.Context, id models.LinkID) ([]models.Job, error)

	// JobForm returns the from-connector, to-connector and driver JOB forms
	// with the job's current values.
	JobForm(ctx context.Context, id models.JobID) ([]models.Form, error)
}

type jobService struct {
	base
}

// NewJobService creates a new job service.
func NewJobService(db *database.DB, repos *repositories.Registry, opts Options, recorder *metrics.Recorder, logger *zap.Logger) JobService {
	return &jobService{base: newBase(db, repos, opts, recorder, logger, "jobs")}
}

var _ JobService = (*jobService)(nil)

// jobEnds are the resolved links of a job and their connectors.
type jobEnds struct {
	from, to                   *models.Link
	fromConnector, toConnector *models.Configurable
}

func (s *jobService) CreateJob(ctx context.Context, name string, fromLinkID, toLinkID models.LinkID, values models.InputValues, creator string) (id models.JobID, err error) {
	defer s.metrics.Track("job.create")(&err)

	now := s.opts.now()
	job := &models.Job{
		Name:         name,
		FromLinkID:   fromLinkID,
		ToLinkID:     toLinkID,
		CreationUser: creator,
		CreationDate: now,
		UpdateUser:   creator,
		UpdateDate:   now,
		Enabled:      true,
	}
	if err := validateStruct("job", name, job); err != nil {
		return 0, err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		ends, err := s.resolveEnds(ctx, fromLinkID, toLinkID)
		if err != nil {
			return err
		}
		if err := s.check(ends, name); err != nil {
			return err
		}
		stored, err := s.serializeValues(ctx, ends, name, values)
		if err != nil {
			return err
		}
		if err := s.repos.Jobs.Create(ctx, job); err != nil {
			return err
		}
		return s.repos.JobValues.Replace(ctx, int64(job.ID), stored)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Created job",
		zap.String("name", job.Name),
		zap.Int64("id", int64(job.ID)),
		zap.Int64("from_link", int64(fromLinkID)),
		zap.Int64("to_link", int64(toLinkID)))
	return job.ID, nil
}

// resolveEnds loads both links and their connectors.
func (s *jobService) resolveEnds(ctx context.Context, fromLinkID, toLinkID models.LinkID) (*jobEnds, error) {
	var ends jobEnds
	var err error
	if ends.from, err = getLinkRef(ctx, s.repos.Links, fromLinkID); err != nil {
		return nil, err
	}
	if ends.to, err = getLinkRef(ctx, s.repos.Links, toLinkID); err != nil {
		return nil, err
	}
	if ends.fromConnector, err = s.repos.Configurables.Get(ctx, ends.from.ConfigurableID); err != nil {
		return nil, err
	}
	if ends.toConnector, err = s.repos.Configurables.Get(ctx, ends.to.ConfigurableID); err != nil {
		return nil, err
	}
	return &ends, nil
}

// check applies the creation policy: both links enabled when required, and
// each connector supporting the side it is used on.
func (s *jobService) check(ends *jobEnds, name string) error {
	for _, link := range []*models.Link{ends.from, ends.to} {
		if s.opts.RequireEnabled && !link.Enabled {
			return apperrors.InvalidState("link", link.Name, "link is disabled")
		}
	}
	if !ends.fromConnector.Directions.Allows(models.DirectionFrom) {
		return apperrors.Validation("job", name, "connector %q does not support %s", ends.fromConnector.Name, models.DirectionFrom)
	}
	if !ends.toConnector.Directions.Allows(models.DirectionTo) {
		return apperrors.Validation("job", name, "connector %q does not support %s", ends.toConnector.Name, models.DirectionTo)
	}
	return nil
}

func (s *jobService) serializeValues(ctx context.Context, ends *jobEnds, name string, values models.InputValues) (map[models.InputID]string, error) {
	scope, err := jobScope(ctx, s.repos, ends.fromConnector.ID, ends.toConnector.ID)
	if err != nil {
		return nil, err
	}
	return scope.serialize(ctx, s.repos.Inputs, "job", name, values, schema.TableJobInput, "SQBI_VALUE")
}

func (s *jobService) UpdateJob(ctx context.Context, id models.JobID, values models.InputValues, updater string) (err error) {
	defer s.metrics.Track("job.update")(&err)

	if err := validateUser("job", id.String(), updater, schema.TableJob, "SQB_UPDATE_USER"); err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(ctx context.Context) error {
		job, err := s.repos.Jobs.Get(ctx, id)
		if err != nil {
			return err
		}
		ends, err := s.resolveEnds(ctx, job.FromLinkID, job.ToLinkID)
		if err != nil {
			return err
		}
		stored, err := s.serializeValues(ctx, ends, job.Name, values)
		if err != nil {
			return err
		}
		if err := s.repos.JobValues.Replace(ctx, int64(id), stored); err != nil {
			return err
		}
		return s.repos.Jobs.Touch(ctx, id, updater, s.opts.now())
	})
}

func (s *jobService) DeleteJob(ctx context.Context, id models.JobID) (err error) {
	defer s.metrics.Track("job.delete")(&err)

	var submissions int64
	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.repos.Jobs.Get(ctx, id); err != nil {
			return err
		}
		var err error
		if submissions, err = s.repos.Submissions.DeleteForJob(ctx, id); err != nil {
			return err
		}
		if err := s.repos.JobValues.DeleteAll(ctx, int64(id)); err != nil {
			return err
		}
		return s.repos.Jobs.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Deleted job", zap.Int64("id", int64(id)), zap.Int64("submissions", submissions))
	return nil
}

func (s *jobService) SetEnabled(ctx context.Context, id models.JobID, enabled bool, user string) (err error) {
	defer s.metrics.Track("job.set_enabled")(&err)

	if err := validateUser("job", id.String(), user, schema.TableJob, "SQB_UPDATE_USER"); err != nil {
		return err
	}
	return s.repos.Jobs.SetEnabled(ctx, id, enabled, user, s.opts.now())
}

func (s *jobService) GetJob(ctx context.Context, id models.JobID) (job *models.Job, err error) {
	defer s.metrics.Track("job.get")(&err)

	job, err = s.repos.Jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withValues(ctx, job)
}

func (s *jobService) GetJobByName(ctx context.Context, name string) (job *models.Job, err error) {
	defer s.metrics.Track("job.get")(&err)

	job, err = s.repos.Jobs.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.withValues(ctx, job)
}

func (s *jobService) withValues(ctx context.Context, job *models.Job) (*models.Job, error) {
	values, err := loadValues(ctx, s.repos, s.repos.JobValues, int64(job.ID))
	if err != nil {
		return nil, err
	}
	job.Values = values
	return job, nil
}

func (s *jobService) ListJobs(ctx context.Context) (out []models.Job, err error) {
	defer s.metrics.Track("job.list")(&err)
	return s.repos.Jobs.List(ctx)
}

func (s *jobService) ListJobsForLink(ctx context.Context, id models.LinkID) (out []models.Job, err error) {
	defer s.metrics.Track("job.list")(&err)
	return s.repos.Jobs.ListForLink(ctx, id)
}

func (s *jobService) JobForm(ctx context.Context, id models.JobID) (forms []models.Form, err error) {
	defer s.metrics.Track("job.form")(&err)

	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	ends, err := s.resolveEnds(ctx, job.FromLinkID, job.ToLinkID)
	if err != nil {
		return nil, err
	}

	sides := []struct {
		connector *models.Configurable
		direction models.Direction
	}{
		{ends.fromConnector, models.DirectionFrom},
		{ends.toConnector, models.DirectionTo},
	}
	for _, side := range sides {
		form, err := buildForm(ctx, s.repos, side.connector, models.ConfigJob, side.direction, job.Values)
		if err != nil {
			return nil, err
		}
		forms = append(forms, *form)
	}

	driver, err := findDriver(ctx, s.repos.Configurables)
	if err != nil {
		return nil, err
	}
	if driver != nil {
		form, err := buildForm(ctx, s.repos, driver, models.ConfigJob, "", job.Values)
		if err != nil {
			return nil, err
		}
		forms = append(forms, *form)
	}
	return forms, nil
}
