package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseDatasetID extracts and validates the dataset ID from the request
// path. Returns uuid.Nil and false after writing an error response when
// the value is malformed. Expects path parameter: id
func ParseDatasetID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Debug("invalid dataset ID", zap.String("value", raw), zap.Error(err))
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_dataset_id", "Invalid dataset ID format"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
