package dbtool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/config"
	"github.com/insightql/insight-engine/pkg/retry"
)

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// ResolveEndpoint turns the configured URL into the address the client
// calls. An explicit URL wins, with ${VAR} placeholders replaced from the
// environment; otherwise the endpoint is synthesized from the port. An
// unset placeholder variable or a missing URL and port is an error, so
// misconfiguration surfaces at construction rather than on the first call.
func ResolveEndpoint(cfg config.DBToolConfig) (string, error) {
	if cfg.URL != "" {
		var unset []string
		resolved := envVarPattern.ReplaceAllStringFunc(cfg.URL, func(m string) string {
			name := envVarPattern.FindStringSubmatch(m)[1]
			value, ok := os.LookupEnv(name)
			if !ok {
				unset = append(unset, name)
			}
			return value
		})
		if len(unset) > 0 {
			return "", fmt.Errorf("dbtool endpoint %q references unset variables: %s",
				cfg.URL, strings.Join(unset, ", "))
		}
		return resolved, nil
	}
	if cfg.Port == "" {
		return "", errors.New("dbtool endpoint unconfigured: set url or port")
	}
	return fmt.Sprintf("http://localhost:%s/mcp_db", cfg.Port), nil
}

// Client calls the remote execution server over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

// NewClient validates configuration up front so a misconfigured endpoint
// fails at startup rather than on the first query.
func NewClient(cfg config.DBToolConfig, logger *zap.Logger) (*Client, error) {
	endpoint, err := ResolveEndpoint(cfg)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("invalid dbtool endpoint %q: must be an http(s) URL", endpoint)
	}
	if cfg.RequestTimeoutMs <= 0 {
		return nil, fmt.Errorf("invalid dbtool request timeout: %d", cfg.RequestTimeoutMs)
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		timeout:    time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
		maxRetries: cfg.MaxRetries,
		baseDelay:  time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		logger:     logger,
	}, nil
}

// Endpoint reports the resolved endpoint the client calls.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// CallTool performs one protocol invocation, retrying transient failures
// with exponential backoff. Each attempt gets a fresh timeout window.
func (c *Client) CallTool(ctx context.Context, action Action, params any) (json.RawMessage, error) {
	var rawParams json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding %s params: %w", action, err)
		}
		rawParams = encoded
	}

	body, err := json.Marshal(ToolRequest{Tool: ToolName, Action: action, Params: rawParams})
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", action, err)
	}

	start := time.Now()
	policy := retry.Policy{MaxRetries: c.maxRetries, BaseDelay: c.baseDelay}
	onRetry := func(attempt int, delay time.Duration, err error) {
		c.logger.Debug("retrying dbtool call",
			zap.String("action", string(action)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	result, err := retry.Do(ctx, policy, isTransient, onRetry, func() (json.RawMessage, error) {
		return c.doRequest(ctx, body)
	})
	if err != nil {
		c.logger.Error("dbtool call failed",
			zap.String("action", string(action)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("calling %s: %w", action, err)
	}

	c.logger.Debug("dbtool call succeeded",
		zap.String("action", string(action)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) (json.RawMessage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewToolError(CodeConnectionError, err.Error(), nil)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewToolError(CodeConnectionError, fmt.Sprintf("reading response: %v", err), nil)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.Error != "" {
			code := errResp.Code
			if code == "" {
				code = CodeUnknownError
			}
			return nil, NewToolError(code, errResp.Error, errResp.Details)
		}
		return nil, NewToolError(CodeUnknownError,
			fmt.Sprintf("unexpected status %d from dbtool", resp.StatusCode), nil)
	}

	var toolResp ToolResponse
	if err := json.Unmarshal(respBody, &toolResp); err != nil {
		return nil, NewToolError(CodeUnknownError, fmt.Sprintf("decoding response: %v", err), nil)
	}
	return toolResp.Result, nil
}

// isTransient reports whether a failed attempt is worth retrying:
// cancellation/timeout, refused connections, DNS failures, and explicit
// CONNECTION_ERROR codes from the server.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var te *ToolError
	if errors.As(err, &te) && te.Code == CodeConnectionError {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out")
}

// Ping checks server liveness.
func (c *Client) Ping(ctx context.Context) (*PingResult, error) {
	raw, err := c.CallTool(ctx, ActionPing, nil)
	if err != nil {
		return nil, err
	}
	var result PingResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding ping result: %w", err)
	}
	return &result, nil
}

// GetSchema fetches the full table/column catalog.
func (c *Client) GetSchema(ctx context.Context) (*SchemaResponse, error) {
	raw, err := c.CallTool(ctx, ActionGetSchema, nil)
	if err != nil {
		return nil, err
	}
	var result SchemaResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding schema result: %w", err)
	}
	return &result, nil
}

// GetTables lists table names.
func (c *Client) GetTables(ctx context.Context) ([]string, error) {
	raw, err := c.CallTool(ctx, ActionGetTables, nil)
	if err != nil {
		return nil, err
	}
	var result []string
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding tables result: %w", err)
	}
	return result, nil
}

// GetColumns lists the columns of one table.
func (c *Client) GetColumns(ctx context.Context, tableName string) ([]ColumnSchema, error) {
	raw, err := c.CallTool(ctx, ActionGetColumns, TableParams{TableName: tableName})
	if err != nil {
		return nil, err
	}
	var result []ColumnSchema
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding columns result: %w", err)
	}
	return result, nil
}

// DescribeTable returns one table's full schema.
func (c *Client) DescribeTable(ctx context.Context, tableName string) (*TableSchema, error) {
	raw, err := c.CallTool(ctx, ActionDescribeTable, TableParams{TableName: tableName})
	if err != nil {
		return nil, err
	}
	var result TableSchema
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding table description: %w", err)
	}
	return &result, nil
}

// ExecuteQuery runs a statement through the server's safety gate.
func (c *Client) ExecuteQuery(ctx context.Context, sql string, params []any) (*QueryResult, error) {
	raw, err := c.CallTool(ctx, ActionExecuteQuery, ExecuteQueryParams{SQL: sql, Params: params})
	if err != nil {
		return nil, err
	}
	var result QueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding query result: %w", err)
	}
	return &result, nil
}

// GetDatasetTable resolves a dataset's physical tables.
func (c *Client) GetDatasetTable(ctx context.Context, datasetID string) (*DatasetTablesResponse, error) {
	raw, err := c.CallTool(ctx, ActionGetDatasetTable, DatasetParams{DatasetID: datasetID})
	if err != nil {
		return nil, err
	}
	var result DatasetTablesResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding dataset tables: %w", err)
	}
	return &result, nil
}
