package llm

import "context"

// MockGateway is a configurable TextGateway for tests.
// Set the function fields to control behavior.
type MockGateway struct {
	// GenerateSQLFunc is called when GenerateSQL is invoked.
	// If nil, returns "SELECT 1" with empty metrics.
	GenerateSQLFunc func(ctx context.Context, prompt string, opts Options) (string, *UsageMetrics, error)

	// SummarizeResultsFunc is called when SummarizeResults is invoked.
	// If nil, returns a fixed summary with empty metrics.
	SummarizeResultsFunc func(ctx context.Context, prompt string, opts Options) (string, *UsageMetrics, error)

	// Info is returned by ProviderInfo.
	Info ProviderInfo

	// Call tracking for verification.
	GenerateSQLCalls      int
	SummarizeResultsCalls int
	GenerateSQLPrompts    []string
	SummarizePrompts      []string
}

// NewMockGateway creates a mock with sensible defaults.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Info: ProviderInfo{Provider: ProviderOpenAI, Model: "mock-model"},
	}
}

// GenerateSQL implements TextGateway.
func (m *MockGateway) GenerateSQL(ctx context.Context, prompt string, opts Options) (string, *UsageMetrics, error) {
	m.GenerateSQLCalls++
	m.GenerateSQLPrompts = append(m.GenerateSQLPrompts, prompt)
	if m.GenerateSQLFunc != nil {
		return m.GenerateSQLFunc(ctx, prompt, opts)
	}
	return "SELECT 1", &UsageMetrics{Provider: m.Info.Provider, Model: m.Info.Model}, nil
}

// SummarizeResults implements TextGateway.
func (m *MockGateway) SummarizeResults(ctx context.Context, prompt string, opts Options) (string, *UsageMetrics, error) {
	m.SummarizeResultsCalls++
	m.SummarizePrompts = append(m.SummarizePrompts, prompt)
	if m.SummarizeResultsFunc != nil {
		return m.SummarizeResultsFunc(ctx, prompt, opts)
	}
	return "mock summary", &UsageMetrics{Provider: m.Info.Provider, Model: m.Info.Model}, nil
}

// ProviderInfo implements TextGateway.
func (m *MockGateway) ProviderInfo(opts Options) ProviderInfo {
	return m.Info
}

var _ TextGateway = (*MockGateway)(nil)
