package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
)

// SubmissionStore records job executions.
type SubmissionStore interface {
	Create(ctx context.Context, jobID models.JobID, creator string) (models.SubmissionID, error)
	UpdateStatus(ctx context.Context, id models.SubmissionID, update models.StatusUpdate) error
	Get(ctx context.Context, id models.SubmissionID) (*models.Submission, error)
	ListForJob(ctx context.Context, jobID models.JobID) ([]models.Submission, error)
}

// CounterStore records the counters of a submission.
type CounterStore interface {
	RecordAll(ctx context.Context, submissionID models.SubmissionID, counters models.Counters) error
	FetchForSubmission(ctx context.Context, submissionID models.SubmissionID) (models.Counters, error)
}

// CreateSubmissionRequest is the body of POST /api/jobs/{id}/submissions.
type CreateSubmissionRequest struct {
	User string `json:"user"`
}

// CountersBody maps group -> counter -> value.
type CountersBody map[string]map[string]int64

// SubmissionHandler serves the execution engine's submission tracking.
type SubmissionHandler struct {
	submissions SubmissionStore
	counters    CounterStore
	logger      *zap.Logger
}

// NewSubmissionHandler creates a new submission handler.
func NewSubmissionHandler(submissions SubmissionStore, counters CounterStore, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, counters: counters, logger: logger}
}

// RegisterRoutes registers the submission routes on the given mux.
func (h *SubmissionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/jobs/{id}/submissions", h.ListForJob)
	mux.HandleFunc("POST /api/jobs/{id}/submissions", h.Create)
	mux.HandleFunc("GET /api/submissions/{id}", h.Get)
	mux.HandleFunc("PUT /api/submissions/{id}/status", h.UpdateStatus)
	mux.HandleFunc("GET /api/submissions/{id}/counters", h.GetCounters)
	mux.HandleFunc("POST /api/submissions/{id}/counters", h.RecordCounters)
}

// ListForJob handles GET /api/jobs/{id}/submissions
// Returns the submissions newest first.
func (h *SubmissionHandler) ListForJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := ParseJobID(w, r, h.logger)
	if !ok {
		return
	}

	subs, err := h.submissions.ListForJob(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to list submissions")
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}

	if err := WriteJSON(w, http.StatusOK, subs); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/jobs/{id}/submissions
func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	jobID, ok := ParseJobID(w, r, h.logger)
	if !ok {
		return
	}
	var req CreateSubmissionRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	id, err := h.submissions.Create(r.Context(), jobID, req.User)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to create submission")
		return
	}
	sub, err := h.submissions.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to load submission")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, sub); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/submissions/{id}
func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseSubmissionID(w, r, h.logger)
	if !ok {
		return
	}

	sub, err := h.submissions.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to get submission")
		return
	}

	if err := WriteJSON(w, http.StatusOK, sub); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateStatus handles PUT /api/submissions/{id}/status
// Responds 409 once the submission has finished.
func (h *SubmissionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseSubmissionID(w, r, h.logger)
	if !ok {
		return
	}
	var update models.StatusUpdate
	if !decodeBody(w, r, &update, h.logger) {
		return
	}

	if err := h.submissions.UpdateStatus(r.Context(), id, update); err != nil {
		writeServiceError(w, err, h.logger, "Failed to update submission status")
		return
	}
	sub, err := h.submissions.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to load submission")
		return
	}

	if err := WriteJSON(w, http.StatusOK, sub); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetCounters handles GET /api/submissions/{id}/counters
func (h *SubmissionHandler) GetCounters(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseSubmissionID(w, r, h.logger)
	if !ok {
		return
	}

	counters, err := h.counters.FetchForSubmission(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to fetch counters")
		return
	}

	if err := WriteJSON(w, http.StatusOK, CountersBody(counters.Nested())); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RecordCounters handles POST /api/submissions/{id}/counters
// Existing values are overwritten.
func (h *SubmissionHandler) RecordCounters(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseSubmissionID(w, r, h.logger)
	if !ok {
		return
	}
	var body CountersBody
	if !decodeBody(w, r, &body, h.logger) {
		return
	}

	if err := h.counters.RecordAll(r.Context(), id, models.CountersFromNested(body)); err != nil {
		writeServiceError(w, err, h.logger, "Failed to record counters")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
