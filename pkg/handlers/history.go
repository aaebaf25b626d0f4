package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/models"
	"github.com/insightql/insight-engine/pkg/repositories"
)

// HistoryResponse wraps the log entries for one dataset.
type HistoryResponse struct {
	Queries []*models.QueryLog `json:"queries"`
}

// HistoryHandler serves the query audit trail.
type HistoryHandler struct {
	queryLogs repositories.QueryLogRepository
	logger    *zap.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(queryLogs repositories.QueryLogRepository, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{queryLogs: queryLogs, logger: logger}
}

// RegisterRoutes registers the history handler's routes on the given mux.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/datasets/{id}/history", h.History)
}

// History handles GET /api/datasets/{id}/history
func (h *HistoryHandler) History(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	logs, err := h.queryLogs.ListByDataset(r.Context(), datasetID)
	if err != nil {
		h.logger.Error("Failed to list query history",
			zap.String("dataset_id", datasetID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list query history"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if logs == nil {
		logs = []*models.QueryLog{}
	}
	if err := WriteJSON(w, http.StatusOK, HistoryResponse{Queries: logs}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
