package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
)

// LinkReader loads links with their values and forms.
type LinkReader interface {
	GetLink(ctx context.Context, id models.LinkID) (*models.Link, error)
	LinkForm(ctx context.Context, id models.LinkID) ([]models.Form, error)
}

// JobReader loads jobs with their values and forms.
type JobReader interface {
	GetJob(ctx context.Context, id models.JobID) (*models.Job, error)
	JobForm(ctx context.Context, id models.JobID) ([]models.Form, error)
}

// InputResolver resolves the descriptor behind a stored value.
type InputResolver interface {
	GetInput(ctx context.Context, id models.InputID) (*models.Input, error)
}

// LinkResponse is a link with the forms that describe its values.
type LinkResponse struct {
	Link  *models.Link  `json:"link"`
	Forms []models.Form `json:"forms"`
}

// JobResponse is a job with the forms that describe its values.
type JobResponse struct {
	Job   *models.Job   `json:"job"`
	Forms []models.Form `json:"forms"`
}

// InstanceHandler serves links and jobs to the execution engine.
// ?redact=true masks the values of sensitive inputs.
type InstanceHandler struct {
	links  LinkReader
	jobs   JobReader
	inputs InputResolver
	logger *zap.Logger
}

// NewInstanceHandler creates a new link and job handler.
func NewInstanceHandler(links LinkReader, jobs JobReader, inputs InputResolver, logger *zap.Logger) *InstanceHandler {
	return &InstanceHandler{links: links, jobs: jobs, inputs: inputs, logger: logger}
}

// RegisterRoutes registers the link and job routes on the given mux.
func (h *InstanceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/links/{id}", h.GetLink)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
}

// GetLink handles GET /api/links/{id}
func (h *InstanceHandler) GetLink(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseLinkID(w, r, h.logger)
	if !ok {
		return
	}
	redact, ok := parseRedact(w, r, h.logger)
	if !ok {
		return
	}

	link, err := h.links.GetLink(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to get link")
		return
	}
	forms, err := h.links.LinkForm(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to build link forms")
		return
	}

	if redact {
		if link.Values, err = h.redactValues(r.Context(), link.Values); err != nil {
			writeServiceError(w, err, h.logger, "Failed to redact link values")
			return
		}
		redactForms(forms)
	}

	if err := WriteJSON(w, http.StatusOK, LinkResponse{Link: link, Forms: forms}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *InstanceHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseJobID(w, r, h.logger)
	if !ok {
		return
	}
	redact, ok := parseRedact(w, r, h.logger)
	if !ok {
		return
	}

	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to get job")
		return
	}
	forms, err := h.jobs.JobForm(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to build job forms")
		return
	}

	if redact {
		if job.Values, err = h.redactValues(r.Context(), job.Values); err != nil {
			writeServiceError(w, err, h.logger, "Failed to redact job values")
			return
		}
		redactForms(forms)
	}

	if err := WriteJSON(w, http.StatusOK, JobResponse{Job: job, Forms: forms}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func parseRedact(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (bool, bool) {
	raw := r.URL.Query().Get("redact")
	if raw == "" {
		return false, true
	}
	redact, err := strconv.ParseBool(raw)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_redact", "redact must be a boolean"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false, false
	}
	return redact, true
}

// redactValues returns values with the value of every sensitive input
// masked. Sensitivity comes from each value's own descriptor, so values no
// form shows are masked too.
func (h *InstanceHandler) redactValues(ctx context.Context, values models.InputValues) (models.InputValues, error) {
	out := make(models.InputValues, len(values))
	for id, v := range values {
		in, err := h.inputs.GetInput(ctx, id)
		if err != nil {
			return nil, err
		}
		if in.Sensitive {
			v = v.Redacted()
		}
		out[id] = v
	}
	return out, nil
}

func redactForms(forms []models.Form) {
	for i := range forms {
		for j := range forms[i].Configs {
			inputs := forms[i].Configs[j].Inputs
			for k := range inputs {
				if inputs[k].Input.Sensitive && inputs[k].Value != nil {
					v := inputs[k].Value.Redacted()
					inputs[k].Value = &v
				}
			}
		}
	}
}
