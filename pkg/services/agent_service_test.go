package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/apperrors"
	"github.com/insightql/insight-engine/pkg/config"
	"github.com/insightql/insight-engine/pkg/dbtool"
	"github.com/insightql/insight-engine/pkg/llm"
	"github.com/insightql/insight-engine/pkg/models"
)

type mockSchemaService struct {
	GetDatasetSchemaFunc func(ctx context.Context, datasetID uuid.UUID) (*models.Dataset, error)
	GetSampleRowsFunc    func(ctx context.Context, tableName string) ([]map[string]any, error)
}

func (m *mockSchemaService) GetDatasetSchema(ctx context.Context, datasetID uuid.UUID) (*models.Dataset, error) {
	if m.GetDatasetSchemaFunc != nil {
		return m.GetDatasetSchemaFunc(ctx, datasetID)
	}
	return testDataset(datasetID), nil
}

func (m *mockSchemaService) GetSampleRows(ctx context.Context, tableName string) ([]map[string]any, error) {
	if m.GetSampleRowsFunc != nil {
		return m.GetSampleRowsFunc(ctx, tableName)
	}
	return []map[string]any{{"id": 1, "status": "shipped"}}, nil
}

func (m *mockSchemaService) FormatSchema(dataset *models.Dataset) string {
	return "Table: orders\nColumns:\n  - id (INT)\n"
}

func (m *mockSchemaService) FormatSampleRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return "No sample data available"
	}
	return `[{"id": 1}]`
}

type mockExecutionClient struct {
	ExecuteQueryFunc func(ctx context.Context, sql string, params []any) (*dbtool.QueryResult, error)
	Calls            int
	LastSQL          string
}

func (m *mockExecutionClient) ExecuteQuery(ctx context.Context, sql string, params []any) (*dbtool.QueryResult, error) {
	m.Calls++
	m.LastSQL = sql
	if m.ExecuteQueryFunc != nil {
		return m.ExecuteQueryFunc(ctx, sql, params)
	}
	return &dbtool.QueryResult{
		Columns:  []string{"id"},
		Rows:     []map[string]any{{"id": 1}},
		RowCount: 1,
	}, nil
}

type mockQueryLogRepo struct {
	CreateFunc func(ctx context.Context, log *models.QueryLog) error
	Created    []*models.QueryLog
}

func (m *mockQueryLogRepo) Create(ctx context.Context, log *models.QueryLog) error {
	m.Created = append(m.Created, log)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, log)
	}
	return nil
}

func (m *mockQueryLogRepo) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.QueryLog, error) {
	return nil, nil
}

func testDataset(id uuid.UUID) *models.Dataset {
	return &models.Dataset{
		ID:   id,
		Name: "sales",
		Tables: []models.DatasetTable{
			{
				ID:       uuid.New(),
				Name:     "orders",
				RowCount: 1200,
				Columns: []models.DatasetColumn{
					{Name: "id", DataType: models.ColumnTypeInt},
					{Name: "status", DataType: models.ColumnTypeText, IsNullable: true},
				},
			},
		},
	}
}

func testQueryConfig() config.QueryConfig {
	return config.QueryConfig{DefaultRowLimit: 100, MaxRowLimit: 1000, StatementTimeoutMs: 5000}
}

func newTestAgent(schema SchemaService, gateway llm.TextGateway, client ExecutionClient, logs *mockQueryLogRepo) AgentService {
	if schema == nil {
		schema = &mockSchemaService{}
	}
	if gateway == nil {
		gateway = llm.NewMockGateway()
	}
	if client == nil {
		client = &mockExecutionClient{}
	}
	return NewAgentService(schema, gateway, client, logs, testQueryConfig(), zap.NewNop())
}

func TestProcessQuery_HappyPath(t *testing.T) {
	datasetID := uuid.New()
	gateway := llm.NewMockGateway()
	gateway.GenerateSQLFunc = func(ctx context.Context, prompt string, opts llm.Options) (string, *llm.UsageMetrics, error) {
		return "```sql\nSELECT status FROM orders\n```", &llm.UsageMetrics{
			TokensUsed: 120, EstimatedCost: 0.002,
			Provider: llm.ProviderOpenAI, Model: "gpt-4o-mini", UsedSystemKey: true,
		}, nil
	}
	gateway.SummarizeResultsFunc = func(ctx context.Context, prompt string, opts llm.Options) (string, *llm.UsageMetrics, error) {
		return "  Most orders are shipped.  ", &llm.UsageMetrics{TokensUsed: 80, EstimatedCost: 0.001}, nil
	}
	client := &mockExecutionClient{}
	logs := &mockQueryLogRepo{}

	agent := newTestAgent(nil, gateway, client, logs)
	resp, err := agent.ProcessQuery(context.Background(), datasetID, "which orders shipped?", llm.Options{})
	require.NoError(t, err)

	// Fences stripped, LIMIT appended before execution.
	assert.Equal(t, "SELECT status FROM orders LIMIT 100", resp.SQL)
	assert.Equal(t, resp.SQL, client.LastSQL)
	assert.Equal(t, "Most orders are shipped.", resp.Summary)

	// Usage aggregates both calls; provider identity from the SQL call.
	assert.Equal(t, 200, resp.Usage.TokensUsed)
	assert.InDelta(t, 0.003, resp.Usage.EstimatedCost, 1e-9)
	assert.Equal(t, llm.ProviderOpenAI, resp.Usage.Provider)
	assert.True(t, resp.Usage.UsedSystemKey)

	// Exactly one log entry, carrying the executed SQL.
	require.Len(t, logs.Created, 1)
	require.NotNil(t, logs.Created[0].SQL)
	assert.Equal(t, resp.SQL, *logs.Created[0].SQL)
	assert.Equal(t, "which orders shipped?", logs.Created[0].Question)
}

func TestProcessQuery_ValidationPrecedesExecution(t *testing.T) {
	gateway := llm.NewMockGateway()
	gateway.GenerateSQLFunc = func(ctx context.Context, prompt string, opts llm.Options) (string, *llm.UsageMetrics, error) {
		return "DROP TABLE orders", &llm.UsageMetrics{}, nil
	}
	client := &mockExecutionClient{}
	logs := &mockQueryLogRepo{}

	agent := newTestAgent(nil, gateway, client, logs)
	_, err := agent.ProcessQuery(context.Background(), uuid.New(), "remove everything", llm.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnsafeSQL)
	assert.Contains(t, err.Error(), "DROP")

	// Nothing unsafe ever reaches the execution client.
	assert.Equal(t, 0, client.Calls)

	// Failure is still logged exactly once, with no SQL recorded.
	require.Len(t, logs.Created, 1)
	assert.Nil(t, logs.Created[0].SQL)
}

func TestProcessQuery_DisallowedTableRejected(t *testing.T) {
	gateway := llm.NewMockGateway()
	gateway.GenerateSQLFunc = func(ctx context.Context, prompt string, opts llm.Options) (string, *llm.UsageMetrics, error) {
		return "SELECT * FROM accounts", &llm.UsageMetrics{}, nil
	}
	client := &mockExecutionClient{}
	logs := &mockQueryLogRepo{}

	agent := newTestAgent(nil, gateway, client, logs)
	_, err := agent.ProcessQuery(context.Background(), uuid.New(), "show accounts", llm.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnsafeSQL)
	assert.Contains(t, err.Error(), "accounts")
	assert.Equal(t, 0, client.Calls)
}

func TestProcessQuery_DatasetNotFound(t *testing.T) {
	schema := &mockSchemaService{
		GetDatasetSchemaFunc: func(ctx context.Context, datasetID uuid.UUID) (*models.Dataset, error) {
			return nil, fmt.Errorf("dataset %s: %w", datasetID, apperrors.ErrNotFound)
		},
	}
	logs := &mockQueryLogRepo{}

	agent := newTestAgent(schema, nil, nil, logs)
	_, err := agent.ProcessQuery(context.Background(), uuid.New(), "anything", llm.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.Len(t, logs.Created, 1)
	assert.Nil(t, logs.Created[0].SQL)
}

func TestProcessQuery_EmptyQuestion(t *testing.T) {
	logs := &mockQueryLogRepo{}
	agent := newTestAgent(nil, nil, nil, logs)

	_, err := agent.ProcessQuery(context.Background(), uuid.New(), "   ", llm.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMissingParameter)
	assert.Len(t, logs.Created, 1)
}

func TestProcessQuery_LoggingFailureNeverMasksResult(t *testing.T) {
	logs := &mockQueryLogRepo{
		CreateFunc: func(ctx context.Context, log *models.QueryLog) error {
			return errors.New("log table unavailable")
		},
	}
	gateway := llm.NewMockGateway()
	gateway.GenerateSQLFunc = func(ctx context.Context, prompt string, opts llm.Options) (string, *llm.UsageMetrics, error) {
		return "SELECT * FROM orders", &llm.UsageMetrics{}, nil
	}

	agent := newTestAgent(nil, gateway, nil, logs)
	resp, err := agent.ProcessQuery(context.Background(), uuid.New(), "show orders", llm.Options{})
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestProcessQuery_ExecutionErrorClassified(t *testing.T) {
	gateway := llm.NewMockGateway()
	gateway.GenerateSQLFunc = func(ctx context.Context, prompt string, opts llm.Options) (string, *llm.UsageMetrics, error) {
		return "SELECT * FROM orders", &llm.UsageMetrics{}, nil
	}

	tests := []struct {
		name     string
		toolErr  *dbtool.ToolError
		sentinel error
	}{
		{"connection", dbtool.NewToolError(dbtool.CodeConnectionError, "refused", nil), apperrors.ErrConnection},
		{"execution", dbtool.NewToolError(dbtool.CodeExecutionError, "bad column", nil), apperrors.ErrExecutionFailed},
		{"not found", dbtool.NewToolError(dbtool.CodeNotFound, "missing", nil), apperrors.ErrNotFound},
		{"validation", dbtool.NewToolError(dbtool.CodeValidationError, "rejected", nil), apperrors.ErrInvalidSQL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockExecutionClient{
				ExecuteQueryFunc: func(ctx context.Context, sql string, params []any) (*dbtool.QueryResult, error) {
					return nil, fmt.Errorf("calling executeQuery: %w", tt.toolErr)
				},
			}
			logs := &mockQueryLogRepo{}
			agent := newTestAgent(nil, gateway, client, logs)

			_, err := agent.ProcessQuery(context.Background(), uuid.New(), "show orders", llm.Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Len(t, logs.Created, 1)
		})
	}
}

func TestRunSQL_ValidationIsMandatory(t *testing.T) {
	client := &mockExecutionClient{}
	logs := &mockQueryLogRepo{}
	agent := newTestAgent(nil, nil, client, logs)

	_, err := agent.RunSQL(context.Background(), uuid.New(), "DELETE FROM orders")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnsafeSQL)
	assert.Equal(t, 0, client.Calls)
	require.Len(t, logs.Created, 1)
	assert.Nil(t, logs.Created[0].SQL)
}

func TestRunSQL_EmptyDatasetRejectsEveryTable(t *testing.T) {
	schema := &mockSchemaService{
		GetDatasetSchemaFunc: func(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
			return &models.Dataset{ID: id, Name: "empty"}, nil
		},
	}
	client := &mockExecutionClient{}
	logs := &mockQueryLogRepo{}
	agent := newTestAgent(schema, nil, client, logs)

	// An empty allow-list must not open access to arbitrary tables.
	_, err := agent.RunSQL(context.Background(), uuid.New(), "SELECT * FROM other_tenants_table")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 0, client.Calls)
	require.Len(t, logs.Created, 1)
	assert.Nil(t, logs.Created[0].SQL)
}

func TestRunSQL_LogsManualQuestionWithPreviewCap(t *testing.T) {
	rows := make([]map[string]any, 12)
	for i := range rows {
		rows[i] = map[string]any{"id": i}
	}
	client := &mockExecutionClient{
		ExecuteQueryFunc: func(ctx context.Context, sql string, params []any) (*dbtool.QueryResult, error) {
			return &dbtool.QueryResult{Columns: []string{"id"}, Rows: rows, RowCount: len(rows)}, nil
		},
	}
	logs := &mockQueryLogRepo{}
	agent := newTestAgent(nil, nil, client, logs)

	resp, err := agent.RunSQL(context.Background(), uuid.New(), "SELECT id FROM orders LIMIT 20")
	require.NoError(t, err)
	assert.Equal(t, 12, resp.RowCount)

	require.Len(t, logs.Created, 1)
	entry := logs.Created[0]
	assert.Equal(t, "Manual SQL Query", entry.Question)
	assert.Len(t, entry.ResultPreview, models.PreviewRowLimit)
}

func TestAnalyzeDataset(t *testing.T) {
	datasetID := uuid.New()
	schema := &mockSchemaService{
		GetDatasetSchemaFunc: func(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
			ds := testDataset(id)
			ds.Tables = append(ds.Tables, models.DatasetTable{
				Name:     "customers",
				RowCount: 300,
				Columns:  []models.DatasetColumn{{Name: "id", DataType: models.ColumnTypeInt}},
			})
			return ds, nil
		},
	}

	agent := newTestAgent(schema, nil, nil, &mockQueryLogRepo{})
	analysis, err := agent.AnalyzeDataset(context.Background(), datasetID)
	require.NoError(t, err)
	assert.Equal(t, 2, analysis.TableCount)
	assert.Equal(t, 3, analysis.TotalColumns)
	assert.Equal(t, int64(1500), analysis.TotalRows)
}
