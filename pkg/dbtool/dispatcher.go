package dbtool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Executor runs gated statements against the target database.
type Executor interface {
	Execute(ctx context.Context, sqlQuery string, params []any) (*QueryResult, error)
	Ping(ctx context.Context) error
}

// SchemaProvider introspects the target database's catalog.
type SchemaProvider interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, tableName string) ([]ColumnSchema, error)
	DescribeTable(ctx context.Context, tableName string) (*TableSchema, error)
	GetSchema(ctx context.Context) (*SchemaResponse, error)
}

// DatasetProvider resolves dataset identifiers to physical tables.
type DatasetProvider interface {
	Resolve(ctx context.Context, datasetID string) (*DatasetTablesResponse, error)
}

var (
	_ Executor        = (*SafeExecutor)(nil)
	_ SchemaProvider  = (*Catalog)(nil)
	_ DatasetProvider = (*DatasetResolver)(nil)
)

// Dispatcher routes protocol actions to their implementations.
type Dispatcher struct {
	executor Executor
	schema   SchemaProvider
	datasets DatasetProvider
	logger   *zap.Logger
}

// NewDispatcher wires a dispatcher over its action implementations.
func NewDispatcher(executor Executor, schema SchemaProvider, datasets DatasetProvider, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		executor: executor,
		schema:   schema,
		datasets: datasets,
		logger:   logger,
	}
}

// Dispatch executes one named action. Params are decoded per action;
// actions that take none ignore the payload.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, params json.RawMessage) (any, error) {
	switch action {
	case ActionPing:
		if err := d.executor.Ping(ctx); err != nil {
			return nil, err
		}
		return PingResult{OK: true, Timestamp: time.Now().UnixMilli()}, nil

	case ActionGetSchema:
		return d.schema.GetSchema(ctx)

	case ActionGetTables:
		return d.schema.ListTables(ctx)

	case ActionGetColumns:
		p, err := decodeParams[TableParams](params)
		if err != nil {
			return nil, err
		}
		if p.TableName == "" {
			return nil, NewToolError(CodeValidationError, "missing required parameter: tableName", nil)
		}
		return d.schema.ListColumns(ctx, p.TableName)

	case ActionDescribeTable:
		p, err := decodeParams[TableParams](params)
		if err != nil {
			return nil, err
		}
		if p.TableName == "" {
			return nil, NewToolError(CodeValidationError, "missing required parameter: tableName", nil)
		}
		return d.schema.DescribeTable(ctx, p.TableName)

	case ActionExecuteQuery:
		p, err := decodeParams[ExecuteQueryParams](params)
		if err != nil {
			return nil, err
		}
		if p.SQL == "" {
			return nil, NewToolError(CodeValidationError, "missing required parameter: sql", nil)
		}
		return d.executor.Execute(ctx, p.SQL, p.Params)

	case ActionGetDatasetTable:
		p, err := decodeParams[DatasetParams](params)
		if err != nil {
			return nil, err
		}
		if p.DatasetID == "" {
			return nil, NewToolError(CodeValidationError, "missing required parameter: datasetId", nil)
		}
		return d.datasets.Resolve(ctx, p.DatasetID)

	default:
		return nil, NewToolError(CodeValidationError, fmt.Sprintf("unknown action: %s", action), nil)
	}
}

func decodeParams[T any](raw json.RawMessage) (T, error) {
	var p T
	if len(raw) == 0 {
		return p, NewToolError(CodeValidationError, "missing params", nil)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, NewToolError(CodeValidationError, fmt.Sprintf("invalid params: %v", err), nil)
	}
	return p, nil
}
