package services

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
	"github.com/ekaya-inc/ekaya-metastore/pkg/repositories"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

// CounterService records counters against submissions.
type CounterService interface {
	// Record writes one counter value, registering the group and counter
	// names on first use. The last write wins.
	Record(ctx context.Context, submissionID models.SubmissionID, group, counter string, value int64) error

	// RecordAll writes a batch of counter values in one transaction.
	RecordAll(ctx context.Context, submissionID models.SubmissionID, counters models.Counters) error

	// FetchForSubmission returns every counter recorded for a submission.
	FetchForSubmission(ctx context.Context, submissionID models.SubmissionID) (models.Counters, error)
}

type counterService struct {
	base
}

// NewCounterService creates a new counter service.
func NewCounterService(db *database.DB, repos *repositories.Registry, opts Options, recorder *metrics.Recorder, logger *zap.Logger) CounterService {
	return &counterService{base: newBase(db, repos, opts, recorder, logger, "counters")}
}

var _ CounterService = (*counterService)(nil)

func (s *counterService) Record(ctx context.Context, submissionID models.SubmissionID, group, counter string, value int64) (err error) {
	defer s.metrics.Track("counter.record")(&err)
	return s.recordAll(ctx, submissionID, models.Counters{{Group: group, Name: counter}: value})
}

func (s *counterService) RecordAll(ctx context.Context, submissionID models.SubmissionID, counters models.Counters) (err error) {
	defer s.metrics.Track("counter.record_all")(&err)
	return s.recordAll(ctx, submissionID, counters)
}

func (s *counterService) recordAll(ctx context.Context, submissionID models.SubmissionID, counters models.Counters) error {
	keys := make([]models.CounterKey, 0, len(counters))
	for k := range counters {
		if err := validateCounterKey(k); err != nil {
			return err
		}
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b models.CounterKey) int {
		return cmp.Or(cmp.Compare(a.Group, b.Group), cmp.Compare(a.Name, b.Name))
	})

	return s.db.WithTx(ctx, func(ctx context.Context) error {
		if err := s.requireSubmission(ctx, submissionID); err != nil {
			return err
		}
		groups := make(map[string]int64)
		for _, k := range keys {
			groupID, ok := groups[k.Group]
			if !ok {
				var err error
				if groupID, err = s.repos.Counters.EnsureGroup(ctx, k.Group); err != nil {
					return err
				}
				groups[k.Group] = groupID
			}
			counterID, err := s.repos.Counters.EnsureCounter(ctx, k.Name)
			if err != nil {
				return err
			}
			if err := s.repos.Counters.Upsert(ctx, submissionID, groupID, counterID, counters[k]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *counterService) FetchForSubmission(ctx context.Context, submissionID models.SubmissionID) (out models.Counters, err error) {
	defer s.metrics.Track("counter.fetch")(&err)

	if err := s.requireSubmission(ctx, submissionID); err != nil {
		return nil, err
	}
	return s.repos.Counters.ListForSubmission(ctx, submissionID)
}

func (s *counterService) requireSubmission(ctx context.Context, id models.SubmissionID) error {
	if _, err := s.repos.Submissions.Get(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.UnknownReference("submission", id.String())
		}
		return err
	}
	return nil
}

func validateCounterKey(k models.CounterKey) error {
	if k.Group == "" || k.Name == "" {
		return apperrors.Validation("counter", k.Group+"/"+k.Name, "group and counter names are required")
	}
	if !fitsColumn(k.Group, schema.TableCounterGroup, "SQG_NAME") {
		return apperrors.Validation("counter", k.Group, "group name exceeds %d characters",
			schema.Width(schema.TableCounterGroup, "SQG_NAME"))
	}
	if !fitsColumn(k.Name, schema.TableCounter, "SQR_NAME") {
		return apperrors.Validation("counter", k.Name, "counter name exceeds %d characters",
			schema.Width(schema.TableCounter, "SQR_NAME"))
	}
	return nil
}
