// Package dbtool implements both sides of the remote execution protocol:
// the HTTP client the orchestrator calls, and the server that dispatches
// named database actions behind its own safety gate.
//
// The wire format is a single POST endpoint. Request body:
// {"tool": "database", "action": "...", "params": {...}}. Success bodies
// are {"result": ...}; failures are {"error": "...", "code": "...",
// "details": ...} with a code drawn from the closed ErrorCode set.
package dbtool

import "encoding/json"

// ToolName is the single tool the server exposes.
const ToolName = "database"

// Action names the operation a request dispatches to.
type Action string

const (
	ActionPing            Action = "ping"
	ActionGetSchema       Action = "getSchema"
	ActionGetTables       Action = "getTables"
	ActionGetColumns      Action = "getColumns"
	ActionDescribeTable   Action = "describeTable"
	ActionExecuteQuery    Action = "executeQuery"
	ActionGetDatasetTable Action = "getDatasetTable"
)

// ToolRequest is the wire request body.
type ToolRequest struct {
	Tool   string          `json:"tool"`
	Action Action          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ToolResponse is the wire success body.
type ToolResponse struct {
	Result json.RawMessage `json:"result"`
}

// ErrorResponse is the wire error body.
type ErrorResponse struct {
	Error   string    `json:"error"`
	Code    ErrorCode `json:"code,omitempty"`
	Details any       `json:"details,omitempty"`
}

// PingResult reports liveness and the server's clock.
type PingResult struct {
	OK        bool  `json:"ok"`
	Timestamp int64 `json:"timestamp"` // unix milliseconds
}

// QueryResult is the executeQuery result shape.
type QueryResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"rowCount"`
}

// ColumnSchema describes one column in catalog introspection results.
type ColumnSchema struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// TableSchema describes one table in catalog introspection results.
type TableSchema struct {
	Name    string         `json:"name"`
	Columns []ColumnSchema `json:"columns"`
}

// SchemaResponse is the getSchema result shape.
type SchemaResponse struct {
	Tables []TableSchema `json:"tables"`
}

// DatasetTableInfo is one table entry in a getDatasetTable result.
type DatasetTableInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RowCount int64  `json:"rowCount"`
}

// DatasetTablesResponse is the getDatasetTable result shape.
type DatasetTablesResponse struct {
	DatasetID string             `json:"datasetId"`
	Tables    []DatasetTableInfo `json:"tables"`
}

// Parameter payloads for actions that take arguments.
type (
	// TableParams names a table for getColumns/describeTable.
	TableParams struct {
		TableName string `json:"tableName"`
	}

	// ExecuteQueryParams carries the statement for executeQuery.
	ExecuteQueryParams struct {
		SQL    string `json:"sql"`
		Params []any  `json:"params,omitempty"`
	}

	// DatasetParams names a dataset for getDatasetTable.
	DatasetParams struct {
		DatasetID string `json:"datasetId"`
	}
)
