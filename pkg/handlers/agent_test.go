package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/apperrors"
	"github.com/insightql/insight-engine/pkg/llm"
	"github.com/insightql/insight-engine/pkg/services"
)

type mockAgentService struct {
	ProcessQueryFunc   func(ctx context.Context, datasetID uuid.UUID, question string, opts llm.Options) (*services.QueryResponse, error)
	RunSQLFunc         func(ctx context.Context, datasetID uuid.UUID, sqlQuery string) (*services.ExecuteResponse, error)
	AnalyzeDatasetFunc func(ctx context.Context, datasetID uuid.UUID) (*services.DatasetAnalysis, error)
}

func (m *mockAgentService) ProcessQuery(ctx context.Context, datasetID uuid.UUID, question string, opts llm.Options) (*services.QueryResponse, error) {
	if m.ProcessQueryFunc != nil {
		return m.ProcessQueryFunc(ctx, datasetID, question, opts)
	}
	return &services.QueryResponse{Question: question, SQL: "SELECT 1", Summary: "one"}, nil
}

func (m *mockAgentService) RunSQL(ctx context.Context, datasetID uuid.UUID, sqlQuery string) (*services.ExecuteResponse, error) {
	if m.RunSQLFunc != nil {
		return m.RunSQLFunc(ctx, datasetID, sqlQuery)
	}
	return &services.ExecuteResponse{SQL: sqlQuery, RowCount: 0}, nil
}

func (m *mockAgentService) AnalyzeDataset(ctx context.Context, datasetID uuid.UUID) (*services.DatasetAnalysis, error) {
	if m.AnalyzeDatasetFunc != nil {
		return m.AnalyzeDatasetFunc(ctx, datasetID)
	}
	return &services.DatasetAnalysis{ID: datasetID}, nil
}

func newAgentMux(agent services.AgentService) *http.ServeMux {
	mux := http.NewServeMux()
	NewAgentHandler(agent, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestAsk_HappyPath(t *testing.T) {
	datasetID := uuid.New()
	var gotOpts llm.Options
	agent := &mockAgentService{
		ProcessQueryFunc: func(ctx context.Context, id uuid.UUID, question string, opts llm.Options) (*services.QueryResponse, error) {
			assert.Equal(t, datasetID, id)
			gotOpts = opts
			return &services.QueryResponse{
				Question: question,
				SQL:      "SELECT status FROM orders LIMIT 100",
				RowCount: 3,
				Summary:  "Three orders.",
			}, nil
		},
	}
	mux := newAgentMux(agent)

	body := `{"question":"how many orders?","provider":"groq","use_user_key":true,"api_key":"gk-1","tier":"free"}`
	req := httptest.NewRequest(http.MethodPost, "/api/datasets/"+datasetID.String()+"/ask", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, llm.ProviderGroq, gotOpts.Provider)
	assert.True(t, gotOpts.UseUserKey)
	assert.Equal(t, "gk-1", gotOpts.APIKey)

	var resp services.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Three orders.", resp.Summary)
}

func TestAsk_MissingQuestion(t *testing.T) {
	mux := newAgentMux(&mockAgentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/"+uuid.NewString()+"/ask", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_question")
}

func TestAsk_InvalidDatasetID(t *testing.T) {
	mux := newAgentMux(&mockAgentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/not-a-uuid/ask", strings.NewReader(`{"question":"x"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_dataset_id")
}

func TestAsk_TierForbidden(t *testing.T) {
	mux := newAgentMux(&mockAgentService{})

	body := `{"question":"x","provider":"anthropic","tier":"free"}`
	req := httptest.NewRequest(http.MethodPost, "/api/datasets/"+uuid.NewString()+"/ask", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "provider_not_allowed")
}

func TestAsk_ErrorTranslation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", fmt.Errorf("dataset: %w", apperrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{"unsafe sql", fmt.Errorf("%w: DROP", apperrors.ErrUnsafeSQL), http.StatusBadRequest, "unsafe_sql"},
		{"invalid sql", fmt.Errorf("%w: bad", apperrors.ErrInvalidSQL), http.StatusBadRequest, "invalid_sql"},
		{"connection", fmt.Errorf("%w: refused", apperrors.ErrConnection), http.StatusInternalServerError, "connection_error"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := &mockAgentService{
				ProcessQueryFunc: func(ctx context.Context, id uuid.UUID, q string, opts llm.Options) (*services.QueryResponse, error) {
					return nil, tt.err
				},
			}
			mux := newAgentMux(agent)

			req := httptest.NewRequest(http.MethodPost, "/api/datasets/"+uuid.NewString()+"/ask",
				strings.NewReader(`{"question":"x"}`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantCode)
		})
	}
}

func TestExecute_MissingSQL(t *testing.T) {
	mux := newAgentMux(&mockAgentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/"+uuid.NewString()+"/execute", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_sql")
}

func TestExecute_UnsafeSQLRejected(t *testing.T) {
	agent := &mockAgentService{
		RunSQLFunc: func(ctx context.Context, id uuid.UUID, sqlQuery string) (*services.ExecuteResponse, error) {
			return nil, fmt.Errorf("%w: dangerous keyword detected: DELETE", apperrors.ErrUnsafeSQL)
		},
	}
	mux := newAgentMux(agent)

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/"+uuid.NewString()+"/execute",
		strings.NewReader(`{"sql":"DELETE FROM orders"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsafe_sql")
}

func TestAnalyze(t *testing.T) {
	datasetID := uuid.New()
	agent := &mockAgentService{
		AnalyzeDatasetFunc: func(ctx context.Context, id uuid.UUID) (*services.DatasetAnalysis, error) {
			return &services.DatasetAnalysis{ID: id, Name: "sales", TableCount: 2, TotalColumns: 9, TotalRows: 1500}, nil
		},
	}
	mux := newAgentMux(agent)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+datasetID.String()+"/analyze", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var analysis services.DatasetAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	assert.Equal(t, 2, analysis.TableCount)
	assert.Equal(t, int64(1500), analysis.TotalRows)
}
