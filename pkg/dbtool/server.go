package dbtool

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the dispatcher over the wire protocol: a single POST
// endpoint taking {tool, action, params} and answering {result} or
// {error, code, details}.
type Server struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewServer creates the protocol server over a dispatcher.
func NewServer(dispatcher *Dispatcher, logger *zap.Logger) *Server {
	return &Server{dispatcher: dispatcher, logger: logger}
}

// RegisterRoutes registers the server's routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /mcp_db", s.HandleTool)
	mux.HandleFunc("GET /health", s.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Health answers liveness probes.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HandleTool decodes one protocol request and dispatches it. An unknown
// tool name is a 404; action failures map their structured code to a
// status and keep the code in the body.
func (s *Server) HandleTool(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("tool handler panic", zap.Any("panic", rec))
			s.writeError(w, http.StatusInternalServerError,
				NewToolError(CodeUnknownError, fmt.Sprintf("internal error: %v", rec), nil))
		}
	}()

	var req ToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, NewToolError(CodeValidationError, "invalid request body", nil))
		return
	}

	if req.Tool != ToolName {
		s.writeError(w, http.StatusNotFound,
			NewToolError(CodeNotFound, "unknown tool: "+req.Tool, nil))
		return
	}

	// Action failures are all 500 on the wire; the structured code in
	// the body is the contract, and the client keys off it, not the
	// status.
	result, err := s.dispatcher.Dispatch(r.Context(), req.Action, req.Params)
	if err != nil {
		code := CodeOf(err)
		observeAction(req.Action, string(code), time.Since(start).Seconds())
		s.logger.Warn("tool action failed",
			zap.String("action", string(req.Action)),
			zap.String("code", string(code)),
			zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, toToolError(err))
		return
	}

	observeAction(req.Action, "OK", time.Since(start).Seconds())

	raw, err := json.Marshal(result)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError,
			NewToolError(CodeUnknownError, "encoding result", nil))
		return
	}
	s.writeJSON(w, http.StatusOK, ToolResponse{Result: raw})
}

func toToolError(err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return NewToolError(CodeUnknownError, err.Error(), nil)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, te *ToolError) {
	s.writeJSON(w, status, ErrorResponse{
		Error:   te.Message,
		Code:    te.Code,
		Details: te.Details,
	})
}
