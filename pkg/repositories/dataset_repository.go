package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/insightql/insight-engine/pkg/apperrors"
	"github.com/insightql/insight-engine/pkg/database"
	"github.com/insightql/insight-engine/pkg/models"
)

// DatasetRepository provides read access to dataset metadata.
type DatasetRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	GetWithTables(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	List(ctx context.Context, ownerID string) ([]*models.Dataset, error)
}

type datasetRepository struct {
	db *database.DB
}

// NewDatasetRepository creates a DatasetRepository backed by the engine
// database.
func NewDatasetRepository(db *database.DB) DatasetRepository {
	return &datasetRepository{db: db}
}

var _ DatasetRepository = (*datasetRepository)(nil)

func (r *datasetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, owner_id, created_at
		FROM datasets
		WHERE id = $1`, id)

	ds := &models.Dataset{}
	if err := row.Scan(&ds.ID, &ds.Name, &ds.OwnerID, &ds.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("dataset %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return ds, nil
}

// GetWithTables loads a dataset together with its tables and columns, in
// stable name order. The column list feeds schema formatting, so order
// must not depend on insertion order.
func (r *datasetRepository) GetWithTables(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	ds, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, dataset_id, name, row_count
		FROM dataset_tables
		WHERE dataset_id = $1
		ORDER BY name`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list dataset tables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t models.DatasetTable
		if err := rows.Scan(&t.ID, &t.DatasetID, &t.Name, &t.RowCount); err != nil {
			return nil, fmt.Errorf("failed to scan dataset table: %w", err)
		}
		ds.Tables = append(ds.Tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dataset tables: %w", err)
	}

	for i := range ds.Tables {
		columns, err := r.tableColumns(ctx, ds.Tables[i].ID)
		if err != nil {
			return nil, err
		}
		ds.Tables[i].Columns = columns
	}
	return ds, nil
}

func (r *datasetRepository) tableColumns(ctx context.Context, tableID uuid.UUID) ([]models.DatasetColumn, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, table_id, dataset_id, name, data_type, is_nullable
		FROM dataset_columns
		WHERE table_id = $1
		ORDER BY ordinal_position`, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer rows.Close()

	var columns []models.DatasetColumn
	for rows.Next() {
		var c models.DatasetColumn
		var dataType string
		if err := rows.Scan(&c.ID, &c.TableID, &c.DatasetID, &c.Name, &dataType, &c.IsNullable); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		c.DataType = models.ParseColumnType(dataType)
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return columns, nil
}

func (r *datasetRepository) List(ctx context.Context, ownerID string) ([]*models.Dataset, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, owner_id, created_at
		FROM datasets
		WHERE owner_id = $1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*models.Dataset
	for rows.Next() {
		ds := &models.Dataset{}
		if err := rows.Scan(&ds.ID, &ds.Name, &ds.OwnerID, &ds.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating datasets: %w", err)
	}
	return datasets, nil
}
