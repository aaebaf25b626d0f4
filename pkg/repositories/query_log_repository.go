package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/insightql/insight-engine/pkg/database"
	"github.com/insightql/insight-engine/pkg/models"
)

// HistoryLimit caps how many log entries a history listing returns.
const HistoryLimit = 50

// QueryLogRepository persists the append-only query audit trail.
type QueryLogRepository interface {
	Create(ctx context.Context, log *models.QueryLog) error
	ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.QueryLog, error)
}

type queryLogRepository struct {
	db *database.DB
}

// NewQueryLogRepository creates a QueryLogRepository backed by the
// engine database.
func NewQueryLogRepository(db *database.DB) QueryLogRepository {
	return &queryLogRepository{db: db}
}

var _ QueryLogRepository = (*queryLogRepository)(nil)

// Create inserts one log entry, assigning ID and CreatedAt when unset.
func (r *queryLogRepository) Create(ctx context.Context, log *models.QueryLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	var preview []byte
	if log.ResultPreview != nil {
		encoded, err := json.Marshal(log.ResultPreview)
		if err != nil {
			return fmt.Errorf("failed to encode result preview: %w", err)
		}
		preview = encoded
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO query_logs (id, dataset_id, question, sql, result_preview, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		log.ID, log.DatasetID, log.Question, log.SQL, preview, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert query log: %w", err)
	}
	return nil
}

// ListByDataset returns the most recent entries for a dataset, newest
// first, capped at HistoryLimit.
func (r *queryLogRepository) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.QueryLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, dataset_id, question, sql, result_preview, created_at
		FROM query_logs
		WHERE dataset_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, datasetID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list query logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.QueryLog
	for rows.Next() {
		log := &models.QueryLog{}
		var preview []byte
		if err := rows.Scan(&log.ID, &log.DatasetID, &log.Question, &log.SQL, &preview, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan query log: %w", err)
		}
		if len(preview) > 0 {
			if err := json.Unmarshal(preview, &log.ResultPreview); err != nil {
				return nil, fmt.Errorf("failed to decode result preview: %w", err)
			}
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating query logs: %w", err)
	}
	return logs, nil
}
