package models

import (
	"time"

	"github.com/google/uuid"
)

// ColumnType is the closed set of primitive column kinds the engine
// understands. Anything the ingestion layer cannot classify is stored
// as ColumnTypeText.
type ColumnType string

const (
	ColumnTypeText  ColumnType = "TEXT"
	ColumnTypeInt   ColumnType = "INT"
	ColumnTypeFloat ColumnType = "FLOAT"
	ColumnTypeDate  ColumnType = "DATE"
	ColumnTypeBool  ColumnType = "BOOL"
)

// ParseColumnType maps a raw type string onto the known column kinds.
// Unrecognized types degrade to TEXT rather than failing.
func ParseColumnType(raw string) ColumnType {
	switch ColumnType(raw) {
	case ColumnTypeInt, ColumnTypeFloat, ColumnTypeDate, ColumnTypeBool:
		return ColumnType(raw)
	default:
		return ColumnTypeText
	}
}

// Dataset is a logical collection of tables uploaded by a user.
// Created by the ingestion layer; read-only to the query pipeline.
type Dataset struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	OwnerID   string         `json:"owner_id"`
	Tables    []DatasetTable `json:"tables,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DatasetTable is a physical table backing a dataset.
type DatasetTable struct {
	ID        uuid.UUID       `json:"id"`
	DatasetID uuid.UUID       `json:"dataset_id"`
	Name      string          `json:"name"` // sanitized SQL identifier
	RowCount  int64           `json:"row_count"`
	Columns   []DatasetColumn `json:"columns,omitempty"`
}

// DatasetColumn describes a single column of a dataset table.
type DatasetColumn struct {
	ID         uuid.UUID  `json:"id"`
	TableID    uuid.UUID  `json:"table_id"`
	DatasetID  uuid.UUID  `json:"dataset_id"`
	Name       string     `json:"name"`
	DataType   ColumnType `json:"data_type"`
	IsNullable bool       `json:"is_nullable"`
}

// TableNames returns the names of all tables in the dataset, in order.
// This is the allow-list handed to the SQL validator.
func (d *Dataset) TableNames() []string {
	names := make([]string, len(d.Tables))
	for i, t := range d.Tables {
		names[i] = t.Name
	}
	return names
}
