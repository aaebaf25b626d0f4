// Package handlers exposes the engine's HTTP API: the ask/execute/analyze
// pipeline endpoints, query history, and health probes.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/llm"
	"github.com/insightql/insight-engine/pkg/logging"
	"github.com/insightql/insight-engine/pkg/services"
)

// AskRequest is the POST body for a natural-language question.
type AskRequest struct {
	Question string `json:"question"`

	// Optional provider overrides. APIKey is only honored together
	// with UseUserKey.
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	UseUserKey bool   `json:"use_user_key,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	Tier       string `json:"tier,omitempty"`
}

// ExecuteRequest is the POST body for manual SQL execution.
type ExecuteRequest struct {
	SQL string `json:"sql"`
}

// AgentHandler serves the query pipeline endpoints.
type AgentHandler struct {
	agent  services.AgentService
	logger *zap.Logger
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(agent services.AgentService, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{agent: agent, logger: logger}
}

// RegisterRoutes registers the agent handler's routes on the given mux.
func (h *AgentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/datasets/{id}/ask", h.Ask)
	mux.HandleFunc("POST /api/datasets/{id}/execute", h.Execute)
	mux.HandleFunc("GET /api/datasets/{id}/analyze", h.Analyze)
}

// Ask handles POST /api/datasets/{id}/ask
func (h *AgentHandler) Ask(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.Question == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_question", "Question is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	opts := llm.Options{
		Provider:   llm.Provider(req.Provider),
		Model:      req.Model,
		UseUserKey: req.UseUserKey,
		APIKey:     req.APIKey,
		Tier:       llm.Tier(req.Tier),
	}
	if req.Provider != "" && req.Tier != "" &&
		!llm.IsProviderAllowedForTier(llm.Provider(req.Provider), llm.Tier(req.Tier)) {
		if err := ErrorResponse(w, http.StatusForbidden, "provider_not_allowed",
			"Provider not available for this tier"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	resp, err := h.agent.ProcessQuery(r.Context(), datasetID, req.Question, opts)
	if err != nil {
		status, code := statusFor(err)
		h.logger.Error("Query pipeline failed",
			zap.String("dataset_id", datasetID.String()),
			zap.String("error", logging.SanitizeError(err)))
		if err := ErrorResponse(w, status, code, logging.SanitizeError(err)); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Execute handles POST /api/datasets/{id}/execute
func (h *AgentHandler) Execute(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.SQL == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_sql", "SQL is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	resp, err := h.agent.RunSQL(r.Context(), datasetID, req.SQL)
	if err != nil {
		status, code := statusFor(err)
		if err := ErrorResponse(w, status, code, logging.SanitizeError(err)); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Analyze handles GET /api/datasets/{id}/analyze
func (h *AgentHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	analysis, err := h.agent.AnalyzeDataset(r.Context(), datasetID)
	if err != nil {
		status, code := statusFor(err)
		if err := ErrorResponse(w, status, code, logging.SanitizeError(err)); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, analysis); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
