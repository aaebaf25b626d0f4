package dbtool

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog introspects the target database's tables and columns through
// information_schema, excluding system schemas.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog wires a catalog over an existing connection pool.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// ListTables returns the names of all user tables.
func (c *Catalog) ListTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY table_name
	`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, NewToolError(CodeExecutionError, fmt.Sprintf("querying tables: %v", err), nil)
	}
	defer rows.Close()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, NewToolError(CodeExecutionError, fmt.Sprintf("scanning table: %v", err), nil)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, NewToolError(CodeExecutionError, fmt.Sprintf("iterating tables: %v", err), nil)
	}
	return tables, nil
}

// ListColumns returns the columns of one table in ordinal order.
func (c *Catalog) ListColumns(ctx context.Context, tableName string) ([]ColumnSchema, error) {
	const query = `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_name = $1
		  AND table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY ordinal_position
	`

	rows, err := c.pool.Query(ctx, query, tableName)
	if err != nil {
		return nil, NewToolError(CodeExecutionError, fmt.Sprintf("querying columns: %v", err), nil)
	}
	defer rows.Close()

	columns := make([]ColumnSchema, 0)
	for rows.Next() {
		var col ColumnSchema
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable); err != nil {
			return nil, NewToolError(CodeExecutionError, fmt.Sprintf("scanning column: %v", err), nil)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, NewToolError(CodeExecutionError, fmt.Sprintf("iterating columns: %v", err), nil)
	}
	return columns, nil
}

// DescribeTable returns one table's schema, or NOT_FOUND when it has no
// columns in the catalog.
func (c *Catalog) DescribeTable(ctx context.Context, tableName string) (*TableSchema, error) {
	columns, err := c.ListColumns(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, NewToolError(CodeNotFound, fmt.Sprintf("table %q not found", tableName), nil)
	}
	return &TableSchema{Name: tableName, Columns: columns}, nil
}

// GetSchema returns the full catalog of user tables with their columns.
func (c *Catalog) GetSchema(ctx context.Context) (*SchemaResponse, error) {
	tables, err := c.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	schema := &SchemaResponse{Tables: make([]TableSchema, 0, len(tables))}
	for _, name := range tables {
		columns, err := c.ListColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		schema.Tables = append(schema.Tables, TableSchema{Name: name, Columns: columns})
	}
	return schema, nil
}
