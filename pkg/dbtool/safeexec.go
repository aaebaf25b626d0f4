package dbtool

import (
	"context"
	"fmt"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/sqlguard"
)

// SafeExecutor runs statements against the target database behind the
// server's own safety gate. Validation here is independent of whatever
// the caller checked: a statement is screened again even when it already
// passed a client-side gate.
type SafeExecutor struct {
	pool            *pgxpool.Pool
	defaultRowLimit int
	statementTimeMs int
	logger          *zap.Logger
}

// NewSafeExecutor wires an executor over an existing connection pool.
func NewSafeExecutor(pool *pgxpool.Pool, defaultRowLimit, statementTimeMs int, logger *zap.Logger) *SafeExecutor {
	return &SafeExecutor{
		pool:            pool,
		defaultRowLimit: defaultRowLimit,
		statementTimeMs: statementTimeMs,
		logger:          logger,
	}
}

// screenParams rejects bound parameters carrying injection payloads.
// Parameters are bound server-side by the driver, but a screened value
// never reaches string interpolation downstream either.
func screenParams(params []any) error {
	for i, p := range params {
		s, ok := p.(string)
		if !ok {
			continue
		}
		if isSQLi, _ := libinjection.IsSQLi(s); isSQLi {
			return NewToolError(CodeValidationError,
				fmt.Sprintf("parameter %d rejected by injection screening", i+1), nil)
		}
	}
	return nil
}

// Execute validates and runs a read-only statement, returning collected
// rows. The statement runs under a transaction-local timeout so a
// runaway query cannot hold the connection.
func (e *SafeExecutor) Execute(ctx context.Context, sqlQuery string, params []any) (*QueryResult, error) {
	result := sqlguard.Validate(sqlQuery, nil, e.defaultRowLimit)
	if !result.IsValid {
		return nil, NewToolError(CodeValidationError,
			"query rejected: "+strings.Join(result.Errors, "; "), result.Errors)
	}
	if err := screenParams(params); err != nil {
		return nil, err
	}

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, NewToolError(CodeConnectionError,
			fmt.Sprintf("acquiring connection: %v", err), nil)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, NewToolError(CodeConnectionError,
			fmt.Sprintf("beginning transaction: %v", err), nil)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", e.statementTimeMs)); err != nil {
		return nil, NewToolError(CodeExecutionError,
			fmt.Sprintf("setting statement timeout: %v", err), nil)
	}

	rows, err := tx.Query(ctx, result.ValidatedSQL, params...)
	if err != nil {
		return nil, NewToolError(CodeExecutionError, fmt.Sprintf("executing query: %v", err), nil)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, NewToolError(CodeExecutionError,
				fmt.Sprintf("reading row values: %v", err), nil)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, NewToolError(CodeExecutionError, fmt.Sprintf("iterating rows: %v", err), nil)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, NewToolError(CodeExecutionError, fmt.Sprintf("committing: %v", err), nil)
	}

	e.logger.Debug("query executed",
		zap.Int("row_count", len(resultRows)),
		zap.Int("column_count", len(columns)))

	return &QueryResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// Ping verifies connectivity to the target database.
func (e *SafeExecutor) Ping(ctx context.Context) error {
	if err := e.pool.Ping(ctx); err != nil {
		return NewToolError(CodeConnectionError, fmt.Sprintf("pinging database: %v", err), nil)
	}
	return nil
}
