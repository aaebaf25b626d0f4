package dbtool

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DatasetResolver maps dataset identifiers to the physical tables backing
// them, from the dataset metadata tables.
type DatasetResolver struct {
	pool *pgxpool.Pool
}

// NewDatasetResolver wires a resolver over an existing connection pool.
func NewDatasetResolver(pool *pgxpool.Pool) *DatasetResolver {
	return &DatasetResolver{pool: pool}
}

// Resolve returns the tables of one dataset, or NOT_FOUND when the
// dataset does not exist.
func (r *DatasetResolver) Resolve(ctx context.Context, datasetID string) (*DatasetTablesResponse, error) {
	const query = `
		SELECT dt.id, dt.name, dt.row_count
		FROM dataset_tables dt
		WHERE dt.dataset_id = $1
		ORDER BY dt.name
	`

	rows, err := r.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, NewToolError(CodeExecutionError, fmt.Sprintf("querying dataset tables: %v", err), nil)
	}
	defer rows.Close()

	tables := make([]DatasetTableInfo, 0)
	for rows.Next() {
		var t DatasetTableInfo
		if err := rows.Scan(&t.ID, &t.Name, &t.RowCount); err != nil {
			return nil, NewToolError(CodeExecutionError, fmt.Sprintf("scanning dataset table: %v", err), nil)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, NewToolError(CodeExecutionError, fmt.Sprintf("iterating dataset tables: %v", err), nil)
	}

	if len(tables) == 0 {
		return nil, NewToolError(CodeNotFound, fmt.Sprintf("dataset %q not found", datasetID), nil)
	}
	return &DatasetTablesResponse{DatasetID: datasetID, Tables: tables}, nil
}
