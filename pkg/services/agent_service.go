package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/apperrors"
	"github.com/insightql/insight-engine/pkg/config"
	"github.com/insightql/insight-engine/pkg/dbtool"
	"github.com/insightql/insight-engine/pkg/llm"
	"github.com/insightql/insight-engine/pkg/logging"
	"github.com/insightql/insight-engine/pkg/models"
	"github.com/insightql/insight-engine/pkg/prompts"
	"github.com/insightql/insight-engine/pkg/repositories"
	"github.com/insightql/insight-engine/pkg/sqlguard"
)

// QueryResponse is the end-to-end pipeline result for one question.
type QueryResponse struct {
	Question string            `json:"question"`
	SQL      string            `json:"sql"`
	Rows     []map[string]any  `json:"rows"`
	RowCount int               `json:"row_count"`
	Summary  string            `json:"summary"`
	Usage    *llm.UsageMetrics `json:"usage"`
}

// ExecuteResponse is the result of a manual SQL execution.
type ExecuteResponse struct {
	SQL      string           `json:"sql"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// DatasetAnalysis is a metadata summary of one dataset.
type DatasetAnalysis struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	TableCount   int       `json:"table_count"`
	TotalColumns int       `json:"total_columns"`
	TotalRows    int64     `json:"total_rows"`
}

// AgentService runs the natural-language-to-SQL pipeline: introspect the
// dataset, generate SQL, validate it, execute it remotely, summarize the
// results, and record the outcome.
type AgentService interface {
	ProcessQuery(ctx context.Context, datasetID uuid.UUID, question string, opts llm.Options) (*QueryResponse, error)
	RunSQL(ctx context.Context, datasetID uuid.UUID, sqlQuery string) (*ExecuteResponse, error)
	AnalyzeDataset(ctx context.Context, datasetID uuid.UUID) (*DatasetAnalysis, error)
}

type agentService struct {
	schema    SchemaService
	gateway   llm.TextGateway
	client    ExecutionClient
	queryLogs repositories.QueryLogRepository
	queryCfg  config.QueryConfig
	logger    *zap.Logger
}

// NewAgentService creates the pipeline orchestrator with its dependencies.
func NewAgentService(
	schema SchemaService,
	gateway llm.TextGateway,
	client ExecutionClient,
	queryLogs repositories.QueryLogRepository,
	queryCfg config.QueryConfig,
	logger *zap.Logger,
) AgentService {
	return &agentService{
		schema:    schema,
		gateway:   gateway,
		client:    client,
		queryLogs: queryLogs,
		queryCfg:  queryCfg,
		logger:    logger,
	}
}

var _ AgentService = (*agentService)(nil)

// ProcessQuery runs the full pipeline for one question. Exactly one
// query log row is written per invocation, on success and on failure.
func (s *agentService) ProcessQuery(ctx context.Context, datasetID uuid.UUID, question string, opts llm.Options) (*QueryResponse, error) {
	if strings.TrimSpace(question) == "" {
		err := fmt.Errorf("question: %w", apperrors.ErrMissingParameter)
		s.logFailure(ctx, datasetID, question)
		return nil, err
	}

	dataset, err := s.schema.GetDatasetSchema(ctx, datasetID)
	if err != nil {
		s.logFailure(ctx, datasetID, question)
		return nil, fmt.Errorf("loading dataset schema: %w", err)
	}
	if len(dataset.Tables) == 0 {
		s.logFailure(ctx, datasetID, question)
		return nil, fmt.Errorf("dataset %s has no tables: %w", datasetID, apperrors.ErrNotFound)
	}

	samples, err := s.schema.GetSampleRows(ctx, dataset.Tables[0].Name)
	if err != nil {
		s.logFailure(ctx, datasetID, question)
		return nil, s.classify(fmt.Errorf("fetching sample rows: %w", err))
	}

	sqlPrompt := prompts.BuildSQLGenerationPrompt(prompts.SQLGenerationContext{
		DatasetName: dataset.Name,
		SchemaInfo:  s.schema.FormatSchema(dataset),
		SampleRows:  s.schema.FormatSampleRows(samples),
		Question:    question,
		RowLimit:    s.queryCfg.DefaultRowLimit,
	})

	rawSQL, usage, err := s.gateway.GenerateSQL(ctx, sqlPrompt, opts)
	if err != nil {
		s.logFailure(ctx, datasetID, question)
		return nil, fmt.Errorf("generating SQL: %w", err)
	}

	cleaned := sqlguard.CleanSQL(rawSQL)
	validation := sqlguard.Validate(cleaned, dataset.TableNames(), s.queryCfg.DefaultRowLimit)
	if !validation.IsValid {
		s.logFailure(ctx, datasetID, question)
		s.logger.Warn("generated SQL rejected",
			zap.String("dataset_id", datasetID.String()),
			zap.Strings("violations", validation.Errors),
			zap.String("sql", logging.SanitizeQuery(cleaned)))
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsafeSQL, strings.Join(validation.Errors, "; "))
	}

	result, err := s.client.ExecuteQuery(ctx, validation.ValidatedSQL, nil)
	if err != nil {
		s.logFailure(ctx, datasetID, question)
		return nil, s.classify(fmt.Errorf("executing query: %w", err))
	}

	summaryPrompt := prompts.BuildResultSummaryPrompt(prompts.ResultSummaryContext{
		Question: question,
		SQL:      validation.ValidatedSQL,
		RowCount: result.RowCount,
		Results:  result.Rows,
	})

	summary, summaryUsage, err := s.gateway.SummarizeResults(ctx, summaryPrompt, opts)
	if err != nil {
		s.logFailure(ctx, datasetID, question)
		return nil, fmt.Errorf("summarizing results: %w", err)
	}
	usage.Add(summaryUsage)

	s.logSuccess(ctx, datasetID, question, validation.ValidatedSQL, result.Rows)

	return &QueryResponse{
		Question: question,
		SQL:      validation.ValidatedSQL,
		Rows:     result.Rows,
		RowCount: result.RowCount,
		Summary:  strings.TrimSpace(summary),
		Usage:    usage,
	}, nil
}

// RunSQL executes caller-written SQL against a dataset. The statement
// passes the same validator as generated SQL before it leaves the
// process; there is no trusted bypass path.
func (s *agentService) RunSQL(ctx context.Context, datasetID uuid.UUID, sqlQuery string) (*ExecuteResponse, error) {
	const manualQuestion = "Manual SQL Query"

	dataset, err := s.schema.GetDatasetSchema(ctx, datasetID)
	if err != nil {
		s.logFailure(ctx, datasetID, manualQuestion)
		return nil, fmt.Errorf("loading dataset schema: %w", err)
	}
	// An empty allow-list would disable the table check entirely, so a
	// dataset without tables must not reach the validator.
	if len(dataset.Tables) == 0 {
		s.logFailure(ctx, datasetID, manualQuestion)
		return nil, fmt.Errorf("dataset %s has no tables: %w", datasetID, apperrors.ErrNotFound)
	}

	validation := sqlguard.Validate(sqlQuery, dataset.TableNames(), s.queryCfg.DefaultRowLimit)
	if !validation.IsValid {
		s.logFailure(ctx, datasetID, manualQuestion)
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsafeSQL, strings.Join(validation.Errors, "; "))
	}

	result, err := s.client.ExecuteQuery(ctx, validation.ValidatedSQL, nil)
	if err != nil {
		s.logFailure(ctx, datasetID, manualQuestion)
		return nil, s.classify(fmt.Errorf("executing query: %w", err))
	}

	s.logSuccess(ctx, datasetID, manualQuestion, validation.ValidatedSQL, result.Rows)

	return &ExecuteResponse{
		SQL:      validation.ValidatedSQL,
		Rows:     result.Rows,
		RowCount: result.RowCount,
	}, nil
}

// AnalyzeDataset returns a metadata summary without touching the target
// database.
func (s *agentService) AnalyzeDataset(ctx context.Context, datasetID uuid.UUID) (*DatasetAnalysis, error) {
	dataset, err := s.schema.GetDatasetSchema(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("loading dataset schema: %w", err)
	}

	analysis := &DatasetAnalysis{
		ID:         dataset.ID,
		Name:       dataset.Name,
		TableCount: len(dataset.Tables),
	}
	for _, table := range dataset.Tables {
		analysis.TotalColumns += len(table.Columns)
		analysis.TotalRows += table.RowCount
	}
	return analysis, nil
}

// logSuccess writes the single audit row for a completed invocation,
// keeping at most PreviewRowLimit result rows.
func (s *agentService) logSuccess(ctx context.Context, datasetID uuid.UUID, question, sqlQuery string, rows []map[string]any) {
	preview := rows
	if len(preview) > models.PreviewRowLimit {
		preview = preview[:models.PreviewRowLimit]
	}
	entry := &models.QueryLog{
		DatasetID:     datasetID,
		Question:      question,
		SQL:           &sqlQuery,
		ResultPreview: preview,
	}
	if err := s.queryLogs.Create(ctx, entry); err != nil {
		s.logger.Error("failed to write query log", zap.Error(err),
			zap.String("dataset_id", datasetID.String()))
	}
}

// logFailure writes the single audit row for a failed invocation. A
// logging failure is recorded and swallowed so it never masks the
// pipeline error.
func (s *agentService) logFailure(ctx context.Context, datasetID uuid.UUID, question string) {
	entry := &models.QueryLog{
		DatasetID: datasetID,
		Question:  question,
		SQL:       nil,
	}
	if err := s.queryLogs.Create(ctx, entry); err != nil {
		s.logger.Error("failed to write failure query log", zap.Error(err),
			zap.String("dataset_id", datasetID.String()))
	}
}

// classify maps remote execution failures onto the caller-facing error
// vocabulary while keeping the original error in the chain.
func (s *agentService) classify(err error) error {
	var te *dbtool.ToolError
	if !errors.As(err, &te) {
		return err
	}
	switch te.Code {
	case dbtool.CodeValidationError:
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidSQL, te.Message)
	case dbtool.CodeNotFound:
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, te.Message)
	case dbtool.CodeConnectionError:
		return fmt.Errorf("%w: %s", apperrors.ErrConnection, te.Message)
	default:
		return fmt.Errorf("%w: %s", apperrors.ErrExecutionFailed, te.Message)
	}
}
