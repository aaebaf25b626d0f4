package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/config"
	"github.com/insightql/insight-engine/pkg/dbtool"
)

// Pinger checks liveness of the remote execution server.
type Pinger interface {
	Ping(ctx context.Context) (*dbtool.PingResult, error)
}

var _ Pinger = (*dbtool.Client)(nil)

// HealthResponse reports service identity plus the state of the
// execution backend.
type HealthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	GoVersion   string `json:"go_version"`
	Environment string `json:"environment"`
	DBTool      string `json:"dbtool"`
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	cfg    *config.Config
	pinger Pinger
	logger *zap.Logger
}

func NewHealthHandler(cfg *config.Config, pinger Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, pinger: pinger, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
}

// Health answers plain liveness probes.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness, including whether the remote execution
// server answers a ping within a short window.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	dbtoolStatus := "ok"
	status := http.StatusOK

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, err := h.pinger.Ping(ctx); err != nil {
			h.logger.Warn("dbtool unreachable", zap.Error(err))
			dbtoolStatus = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	resp := HealthResponse{
		Status:      "ok",
		Service:     "insight-engine",
		Version:     h.cfg.Version,
		GoVersion:   runtime.Version(),
		Environment: h.cfg.Env,
		DBTool:      dbtoolStatus,
	}
	if status != http.StatusOK {
		resp.Status = "degraded"
	}

	if err := WriteJSON(w, status, resp); err != nil {
		h.logger.Error("Failed to encode readiness response", zap.Error(err))
	}
}
