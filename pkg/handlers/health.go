package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/config"
	"github.com/ekaya-inc/ekaya-metastore/pkg/logging"
)

// Pinger checks the store connection. *database.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Error  string `json:"error,omitempty"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
	Driver      string `json:"driver"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	store  Pinger
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. A nil store skips the store check.
func NewHealthHandler(cfg *config.Config, store Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, store: store, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// Returns 503 when the store does not answer within two seconds.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok", Store: "ok"}
	status := http.StatusOK

	if h.store == nil {
		response.Store = "unchecked"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.PingContext(ctx); err != nil {
			h.logger.Warn("Store health check failed", zap.String("error", logging.SanitizeError(err)))
			response = HealthResponse{Status: "unavailable", Store: "unreachable", Error: logging.SanitizeError(err)}
			status = http.StatusServiceUnavailable
		}
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "ekaya-metastore",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Driver:      h.cfg.Database.Driver,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
