package dbtool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// RegisterMCPTools exposes the dispatcher's actions as MCP tools so
// agent clients can reach the same gated database surface the HTTP
// protocol serves. Both surfaces share one dispatcher, so the safety
// gate applies identically.
func RegisterMCPTools(s *server.MCPServer, d *Dispatcher, logger *zap.Logger) {
	registerNoParamTool(s, d, logger, "ping",
		"Check database connectivity and server liveness.", ActionPing)
	registerNoParamTool(s, d, logger, "get_schema",
		"Fetch the full schema of the target database: every user table with its columns and types.", ActionGetSchema)
	registerNoParamTool(s, d, logger, "get_tables",
		"List the names of all user tables in the target database.", ActionGetTables)
	registerTableTool(s, d, logger, "get_columns",
		"List the columns of one table with their types and nullability.", ActionGetColumns)
	registerTableTool(s, d, logger, "describe_table",
		"Describe one table's full schema.", ActionDescribeTable)
	registerExecuteQueryTool(s, d, logger)
	registerDatasetTool(s, d, logger)
}

func callDispatcher(ctx context.Context, d *Dispatcher, logger *zap.Logger, action Action, params any) (*mcp.CallToolResult, error) {
	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding %s params: %w", action, err)
		}
		raw = encoded
	}

	result, err := d.Dispatch(ctx, action, raw)
	if err != nil {
		logger.Warn("mcp tool failed",
			zap.String("action", string(action)),
			zap.String("code", string(CodeOf(err))),
			zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding %s result: %w", action, err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func registerNoParamTool(s *server.MCPServer, d *Dispatcher, logger *zap.Logger, name, description string, action Action) {
	tool := mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return callDispatcher(ctx, d, logger, action, nil)
	})
}

func registerTableTool(s *server.MCPServer, d *Dispatcher, logger *zap.Logger, name, description string, action Action) {
	tool := mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString("table_name",
			mcp.Required(),
			mcp.Description("Name of the table to inspect."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName, err := req.RequireString("table_name")
		if err != nil {
			return nil, err
		}
		return callDispatcher(ctx, d, logger, action, TableParams{TableName: tableName})
	})
}

func registerExecuteQueryTool(s *server.MCPServer, d *Dispatcher, logger *zap.Logger) {
	tool := mcp.NewTool("execute_query",
		mcp.WithDescription(
			"Execute a read-only SQL query against the target database. "+
				"Only single SELECT statements are accepted; anything mutating is rejected "+
				"and a row limit is enforced server-side."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SELECT statement to run."),
		),
		mcp.WithString("params",
			mcp.Description("Optional JSON array of positional query parameters."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlQuery, err := req.RequireString("sql")
		if err != nil {
			return nil, err
		}

		var queryParams []any
		if rawParams := req.GetString("params", ""); rawParams != "" {
			if err := json.Unmarshal([]byte(rawParams), &queryParams); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid params: %v", err)), nil
			}
		}

		return callDispatcher(ctx, d, logger, ActionExecuteQuery,
			ExecuteQueryParams{SQL: sqlQuery, Params: queryParams})
	})
}

func registerDatasetTool(s *server.MCPServer, d *Dispatcher, logger *zap.Logger) {
	tool := mcp.NewTool("get_dataset_table",
		mcp.WithDescription("Resolve a dataset identifier to the physical tables backing it."),
		mcp.WithString("dataset_id",
			mcp.Required(),
			mcp.Description("Identifier of the dataset to resolve."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		datasetID, err := req.RequireString("dataset_id")
		if err != nil {
			return nil, err
		}
		return callDispatcher(ctx, d, logger, ActionGetDatasetTable, DatasetParams{DatasetID: datasetID})
	})
}
