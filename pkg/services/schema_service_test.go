package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/dbtool"
	"github.com/insightql/insight-engine/pkg/models"
)

func TestFormatSchema(t *testing.T) {
	svc := NewSchemaService(nil, nil, zap.NewNop())

	dataset := &models.Dataset{
		Name: "sales",
		Tables: []models.DatasetTable{
			{
				Name: "orders",
				Columns: []models.DatasetColumn{
					{Name: "id", DataType: models.ColumnTypeInt},
					{Name: "status", DataType: models.ColumnTypeText, IsNullable: true},
				},
			},
		},
	}

	want := "\nTable: orders\nColumns:\n" +
		"  - id (INT)\n" +
		"  - status (TEXT) [nullable]\n"
	assert.Equal(t, want, svc.FormatSchema(dataset))
}

func TestFormatSampleRows(t *testing.T) {
	svc := NewSchemaService(nil, nil, zap.NewNop())

	assert.Equal(t, "No sample data available", svc.FormatSampleRows(nil))
	assert.Equal(t, "No sample data available", svc.FormatSampleRows([]map[string]any{}))

	out := svc.FormatSampleRows([]map[string]any{{"id": 1}})
	assert.Contains(t, out, `"id": 1`)
}

func TestGetSampleRows_UsesBoundedQuery(t *testing.T) {
	client := &mockExecutionClient{
		ExecuteQueryFunc: func(ctx context.Context, sql string, params []any) (*dbtool.QueryResult, error) {
			assert.Equal(t, `SELECT * FROM "orders" LIMIT 3`, sql)
			return &dbtool.QueryResult{Rows: []map[string]any{{"id": 1}}, RowCount: 1}, nil
		},
	}
	svc := NewSchemaService(nil, client, zap.NewNop())

	rows, err := svc.GetSampleRows(context.Background(), "orders")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, client.Calls)
}

func TestGetDatasetSchema_DelegatesToRepository(t *testing.T) {
	datasetID := uuid.New()
	repo := &stubDatasetRepo{dataset: testDataset(datasetID)}
	svc := NewSchemaService(repo, nil, zap.NewNop())

	ds, err := svc.GetDatasetSchema(context.Background(), datasetID)
	require.NoError(t, err)
	assert.Equal(t, datasetID, ds.ID)
	assert.Equal(t, 1, repo.withTablesCalls)
}

type stubDatasetRepo struct {
	dataset         *models.Dataset
	withTablesCalls int
}

func (s *stubDatasetRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	return s.dataset, nil
}

func (s *stubDatasetRepo) GetWithTables(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	s.withTablesCalls++
	return s.dataset, nil
}

func (s *stubDatasetRepo) List(ctx context.Context, ownerID string) ([]*models.Dataset, error) {
	return []*models.Dataset{s.dataset}, nil
}
