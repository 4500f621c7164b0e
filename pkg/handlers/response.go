package handlers

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
)

// maxBodyBytes bounds request bodies; status reports and counter batches are small.
const maxBodyBytes = 1 << 20

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// StatusFor maps a repository error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrUnknownReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrDuplicateName),
		errors.Is(err, apperrors.ErrReferentialIntegrity),
		errors.Is(err, apperrors.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Internal errors are
// logged and their detail withheld from the client.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger, msg string) {
	status := StatusFor(err)
	code, message := apperrors.Code(err), err.Error()
	if status == http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
		code, message = "internal_error", msg
	}
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// decodeBody reads a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, logger *zap.Logger) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error()); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}
