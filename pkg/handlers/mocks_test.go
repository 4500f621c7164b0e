package handlers

import (
	"context"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
)

type mockCatalog struct {
	configurables map[string]*models.Configurable
}

func (m *mockCatalog) LookupByName(ctx context.Context, name string) (*models.Configurable, error) {
	if c, ok := m.configurables[name]; ok {
		return c, nil
	}
	return nil, apperrors.NotFound("configurable", name)
}

type mockForms struct {
	forms map[models.ConfigType]*models.Form
	err   error
}

func (m *mockForms) Form(ctx context.Context, id models.ConfigurableID, category models.ConfigType) (*models.Form, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.forms[category], nil
}

type mockLinks struct {
	link  *models.Link
	forms []models.Form
	err   error
}

func (m *mockLinks) GetLink(ctx context.Context, id models.LinkID) (*models.Link, error) {
	if m.err != nil {
		return nil, m.err
	}
	l := *m.link
	return &l, nil
}

func (m *mockLinks) LinkForm(ctx context.Context, id models.LinkID) ([]models.Form, error) {
	return m.forms, nil
}

type mockJobs struct {
	job   *models.Job
	forms []models.Form
	err   error
}

func (m *mockJobs) GetJob(ctx context.Context, id models.JobID) (*models.Job, error) {
	if m.err != nil {
		return nil, m.err
	}
	j := *m.job
	return &j, nil
}

func (m *mockJobs) JobForm(ctx context.Context, id models.JobID) ([]models.Form, error) {
	return m.forms, nil
}

type mockInputs map[models.InputID]models.Input

func (m mockInputs) GetInput(ctx context.Context, id models.InputID) (*models.Input, error) {
	in, ok := m[id]
	if !ok {
		return nil, apperrors.NotFound("input", id.String())
	}
	return &in, nil
}

// mockSubmissions keeps submissions in memory and enforces final statuses.
type mockSubmissions struct {
	subs    map[models.SubmissionID]*models.Submission
	jobs    map[models.JobID]bool
	nextID  models.SubmissionID
	updates []models.StatusUpdate
}

func newMockSubmissions(jobs ...models.JobID) *mockSubmissions {
	m := &mockSubmissions{subs: map[models.SubmissionID]*models.Submission{}, jobs: map[models.JobID]bool{}}
	for _, j := range jobs {
		m.jobs[j] = true
	}
	return m
}

func (m *mockSubmissions) Create(ctx context.Context, jobID models.JobID, creator string) (models.SubmissionID, error) {
	if !m.jobs[jobID] {
		return 0, apperrors.UnknownReference("job", jobID.String())
	}
	m.nextID++
	m.subs[m.nextID] = &models.Submission{ID: m.nextID, JobID: jobID, Status: models.StatusBooting, CreationUser: creator}
	return m.nextID, nil
}

func (m *mockSubmissions) UpdateStatus(ctx context.Context, id models.SubmissionID, update models.StatusUpdate) error {
	sub, ok := m.subs[id]
	if !ok {
		return apperrors.NotFound("submission", id.String())
	}
	if _, err := models.ParseSubmissionStatus(string(update.Status)); err != nil {
		return apperrors.Validation("submission", id.String(), "unknown status %q", update.Status)
	}
	if sub.Status.IsFinal() {
		return apperrors.InvalidState("submission", id.String(), "submission already %s", sub.Status)
	}
	m.updates = append(m.updates, update)
	sub.Status = update.Status
	return nil
}

func (m *mockSubmissions) Get(ctx context.Context, id models.SubmissionID) (*models.Submission, error) {
	sub, ok := m.subs[id]
	if !ok {
		return nil, apperrors.NotFound("submission", id.String())
	}
	s := *sub
	return &s, nil
}

func (m *mockSubmissions) ListForJob(ctx context.Context, jobID models.JobID) ([]models.Submission, error) {
	if !m.jobs[jobID] {
		return nil, apperrors.NotFound("job", jobID.String())
	}
	var out []models.Submission
	for id := m.nextID; id > 0; id-- {
		if s, ok := m.subs[id]; ok && s.JobID == jobID {
			out = append(out, *s)
		}
	}
	return out, nil
}

type mockCounters struct {
	values map[models.SubmissionID]models.Counters
	err    error
}

func (m *mockCounters) RecordAll(ctx context.Context, id models.SubmissionID, counters models.Counters) error {
	if m.err != nil {
		return m.err
	}
	if m.values[id] == nil {
		m.values[id] = models.Counters{}
	}
	for k, v := range counters {
		m.values[id][k] = v
	}
	return nil
}

func (m *mockCounters) FetchForSubmission(ctx context.Context, id models.SubmissionID) (models.Counters, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.values[id], nil
}
