package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
)

// ParseLinkID extracts the link id from path parameter: id
func ParseLinkID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.LinkID, bool) {
	id, ok := parseID(w, r, "id", "invalid_link_id", "Invalid link ID", logger)
	return models.LinkID(id), ok
}

// ParseJobID extracts the job id from path parameter: id
func ParseJobID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.JobID, bool) {
	id, ok := parseID(w, r, "id", "invalid_job_id", "Invalid job ID", logger)
	return models.JobID(id), ok
}

// ParseSubmissionID extracts the submission id from path parameter: id
func ParseSubmissionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.SubmissionID, bool) {
	id, ok := parseID(w, r, "id", "invalid_submission_id", "Invalid submission ID", logger)
	return models.SubmissionID(id), ok
}

// parseID parses a positive integer path parameter. On failure it writes a
// 400 and returns false.
func parseID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(pathParam), 10, 64)
	if err != nil || id <= 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return id, true
}
