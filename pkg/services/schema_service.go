package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/dbtool"
	"github.com/insightql/insight-engine/pkg/models"
	"github.com/insightql/insight-engine/pkg/repositories"
)

// SampleRowLimit caps how many rows are pulled per table for prompt context.
const SampleRowLimit = 3

// ExecutionClient is the slice of the dbtool client the services need.
type ExecutionClient interface {
	ExecuteQuery(ctx context.Context, sql string, params []any) (*dbtool.QueryResult, error)
}

var _ ExecutionClient = (*dbtool.Client)(nil)

// SchemaService loads dataset schemas and formats them for prompts.
type SchemaService interface {
	GetDatasetSchema(ctx context.Context, datasetID uuid.UUID) (*models.Dataset, error)
	GetSampleRows(ctx context.Context, tableName string) ([]map[string]any, error)
	FormatSchema(dataset *models.Dataset) string
	FormatSampleRows(rows []map[string]any) string
}

type schemaService struct {
	datasets repositories.DatasetRepository
	client   ExecutionClient
	logger   *zap.Logger
}

// NewSchemaService creates a SchemaService reading metadata from the
// engine database and sample rows through the dbtool protocol.
func NewSchemaService(datasets repositories.DatasetRepository, client ExecutionClient, logger *zap.Logger) SchemaService {
	return &schemaService{datasets: datasets, client: client, logger: logger}
}

var _ SchemaService = (*schemaService)(nil)

func (s *schemaService) GetDatasetSchema(ctx context.Context, datasetID uuid.UUID) (*models.Dataset, error) {
	return s.datasets.GetWithTables(ctx, datasetID)
}

// GetSampleRows pulls a few rows from one table through the remote
// execution gate, so sampling obeys the same safety rules as queries.
func (s *schemaService) GetSampleRows(ctx context.Context, tableName string) ([]map[string]any, error) {
	query := fmt.Sprintf(`SELECT * FROM "%s" LIMIT %d`, tableName, SampleRowLimit)
	result, err := s.client.ExecuteQuery(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("sampling table %q: %w", tableName, err)
	}
	return result.Rows, nil
}

// FormatSchema renders a dataset's tables as the text block the SQL
// generation prompt embeds.
func (s *schemaService) FormatSchema(dataset *models.Dataset) string {
	var b strings.Builder
	for _, table := range dataset.Tables {
		b.WriteString(fmt.Sprintf("\nTable: %s\n", table.Name))
		b.WriteString("Columns:\n")
		for _, column := range table.Columns {
			nullable := ""
			if column.IsNullable {
				nullable = " [nullable]"
			}
			b.WriteString(fmt.Sprintf("  - %s (%s)%s\n", column.Name, column.DataType, nullable))
		}
	}
	return b.String()
}

// FormatSampleRows renders sample rows as indented JSON for the prompt.
func (s *schemaService) FormatSampleRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return "No sample data available"
	}
	encoded, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		s.logger.Warn("failed to encode sample rows", zap.Error(err))
		return "No sample data available"
	}
	return string(encoded)
}
