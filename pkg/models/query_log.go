package models

import (
	"time"

	"github.com/google/uuid"
)

// PreviewRowLimit caps how many result rows are kept in a query log entry.
const PreviewRowLimit = 10

// QueryLog is an append-only record of one pipeline invocation.
// SQL is nil when the pipeline failed before a statement was produced.
// ResultPreview holds at most PreviewRowLimit rows, or nil on failure.
type QueryLog struct {
	ID            uuid.UUID        `json:"id"`
	DatasetID     uuid.UUID        `json:"dataset_id"`
	Question      string           `json:"question"`
	SQL           *string          `json:"sql"`
	ResultPreview []map[string]any `json:"result_preview,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
