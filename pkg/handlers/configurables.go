package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
)

// ConfigurableCatalog resolves registered configurables.
type ConfigurableCatalog interface {
	LookupByName(ctx context.Context, name string) (*models.Configurable, error)
}

// FormBuilder renders the config tree a configurable declares.
type FormBuilder interface {
	Form(ctx context.Context, configurableID models.ConfigurableID, category models.ConfigType) (*models.Form, error)
}

// ConfigurableResponse is a configurable with the LINK and JOB forms it declares.
type ConfigurableResponse struct {
	Configurable *models.Configurable `json:"configurable"`
	LinkForm     *models.Form         `json:"link_form"`
	JobForm      *models.Form         `json:"job_form"`
}

// ConfigurableHandler serves configurable lookups to the execution engine.
type ConfigurableHandler struct {
	catalog ConfigurableCatalog
	forms   FormBuilder
	logger  *zap.Logger
}

// NewConfigurableHandler creates a new configurable handler.
func NewConfigurableHandler(catalog ConfigurableCatalog, forms FormBuilder, logger *zap.Logger) *ConfigurableHandler {
	return &ConfigurableHandler{catalog: catalog, forms: forms, logger: logger}
}

// RegisterRoutes registers the configurable routes on the given mux.
func (h *ConfigurableHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/configurables/{name}", h.Get)
}

// Get handles GET /api/configurables/{name}
func (h *ConfigurableHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	c, err := h.catalog.LookupByName(r.Context(), name)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to resolve configurable")
		return
	}

	response := ConfigurableResponse{Configurable: c}
	if response.LinkForm, err = h.forms.Form(r.Context(), c.ID, models.ConfigLink); err != nil {
		writeServiceError(w, err, h.logger, "Failed to build link form")
		return
	}
	if response.JobForm, err = h.forms.Form(r.Context(), c.ID, models.ConfigJob); err != nil {
		writeServiceError(w, err, h.logger, "Failed to build job form")
		return
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
