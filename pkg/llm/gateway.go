package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Summaries read better with slightly higher temperature and need far
// fewer tokens than SQL generation.
const (
	summaryTemperature = 0.3
	summaryMaxTokens   = 500
)

// TextGateway is the interface the orchestrator uses for its two LLM calls.
// Use it for dependency injection to enable mocking in tests.
type TextGateway interface {
	// GenerateSQL produces a SQL statement for a generation prompt.
	GenerateSQL(ctx context.Context, prompt string, opts Options) (string, *UsageMetrics, error)

	// SummarizeResults produces a narrative answer for a summary prompt.
	SummarizeResults(ctx context.Context, prompt string, opts Options) (string, *UsageMetrics, error)

	// ProviderInfo reports the configuration a call with opts would use.
	ProviderInfo(opts Options) ProviderInfo
}

// Gateway resolves a provider per call through the Factory and reports
// usage metrics with estimated cost.
type Gateway struct {
	factory *Factory
	pricing PricingTable
	logger  *zap.Logger

	// newGenerator is a test seam; defaults to factory.CreateGenerator.
	newGenerator func(opts Options) (Generator, *ResolvedConfig, error)
}

// NewGateway creates a gateway over the factory.
func NewGateway(factory *Factory, pricing PricingTable, logger *zap.Logger) *Gateway {
	g := &Gateway{
		factory: factory,
		pricing: pricing,
		logger:  logger.Named("gateway"),
	}
	g.newGenerator = factory.CreateGenerator
	return g
}

// GenerateSQL implements TextGateway using the resolved temperature and
// token budget from configuration.
func (g *Gateway) GenerateSQL(ctx context.Context, prompt string, opts Options) (string, *UsageMetrics, error) {
	gen, resolved, err := g.newGenerator(opts)
	if err != nil {
		return "", nil, fmt.Errorf("create provider: %w", err)
	}

	result, err := gen.Generate(ctx, GenerateRequest{
		Prompt:      prompt,
		Temperature: resolved.Temperature,
		MaxTokens:   resolved.MaxTokens,
	})
	if err != nil {
		return "", nil, err
	}

	return result.Text, g.metricsFor(resolved, result), nil
}

// SummarizeResults implements TextGateway with the summary call profile.
func (g *Gateway) SummarizeResults(ctx context.Context, prompt string, opts Options) (string, *UsageMetrics, error) {
	gen, resolved, err := g.newGenerator(opts)
	if err != nil {
		return "", nil, fmt.Errorf("create provider: %w", err)
	}

	result, err := gen.Generate(ctx, GenerateRequest{
		Prompt:      prompt,
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return "", nil, err
	}

	return result.Text, g.metricsFor(resolved, result), nil
}

// ProviderInfo implements TextGateway.
func (g *Gateway) ProviderInfo(opts Options) ProviderInfo {
	return g.factory.ProviderInfo(opts)
}

func (g *Gateway) metricsFor(resolved *ResolvedConfig, result *GenerateResult) *UsageMetrics {
	return &UsageMetrics{
		TokensUsed:    result.TotalTokens,
		EstimatedCost: g.pricing.EstimateCost(resolved.Provider, result.TotalTokens),
		Provider:      resolved.Provider,
		Model:         resolved.Model,
		UsedSystemKey: resolved.UsingSystemKey,
	}
}

var _ TextGateway = (*Gateway)(nil)
