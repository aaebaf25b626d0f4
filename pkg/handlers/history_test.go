package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/models"
)

type mockQueryLogRepo struct {
	ListFunc func(ctx context.Context, datasetID uuid.UUID) ([]*models.QueryLog, error)
}

func (m *mockQueryLogRepo) Create(ctx context.Context, log *models.QueryLog) error { return nil }

func (m *mockQueryLogRepo) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.QueryLog, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, datasetID)
	}
	return nil, nil
}

func newHistoryMux(repo *mockQueryLogRepo) *http.ServeMux {
	mux := http.NewServeMux()
	NewHistoryHandler(repo, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestHistory_ReturnsEntries(t *testing.T) {
	datasetID := uuid.New()
	sqlText := "SELECT 1 LIMIT 100"
	repo := &mockQueryLogRepo{
		ListFunc: func(ctx context.Context, id uuid.UUID) ([]*models.QueryLog, error) {
			assert.Equal(t, datasetID, id)
			return []*models.QueryLog{
				{ID: uuid.New(), DatasetID: id, Question: "latest", SQL: &sqlText},
				{ID: uuid.New(), DatasetID: id, Question: "older", SQL: nil},
			}, nil
		},
	}
	mux := newHistoryMux(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+datasetID.String()+"/history", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Queries, 2)
	assert.Equal(t, "latest", resp.Queries[0].Question)
	assert.Nil(t, resp.Queries[1].SQL)
}

func TestHistory_EmptyIsEmptyArray(t *testing.T) {
	mux := newHistoryMux(&mockQueryLogRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+uuid.NewString()+"/history", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queries":[]}`, rec.Body.String())
}

func TestHistory_RepositoryError(t *testing.T) {
	repo := &mockQueryLogRepo{
		ListFunc: func(ctx context.Context, id uuid.UUID) ([]*models.QueryLog, error) {
			return nil, errors.New("db down")
		},
	}
	mux := newHistoryMux(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+uuid.NewString()+"/history", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}
