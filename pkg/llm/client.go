package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/config"
)

// GenerateRequest is one text-generation call.
type GenerateRequest struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// GenerateResult carries the model output and token usage for one call.
type GenerateResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Generator is the minimal interface over a concrete provider client.
// Use it for dependency injection to enable mocking in tests.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	Model() string
}

// OpenAI-compatible base URLs for providers that speak the OpenAI API.
const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	googleBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
)

// newGenerator instantiates the provider client for a resolved config.
func newGenerator(resolved *ResolvedConfig, cfg *config.LLMConfig, logger *zap.Logger) (Generator, error) {
	switch resolved.Provider {
	case ProviderOpenAI:
		if resolved.APIKey == "" {
			return nil, NewError(ErrorTypeAuth, "OpenAI API key is required", false, nil)
		}
		return newOpenAICompatClient(resolved.Provider, "", resolved, logger), nil

	case ProviderGroq:
		if resolved.APIKey == "" {
			return nil, NewError(ErrorTypeAuth, "Groq API key is required", false, nil)
		}
		return newOpenAICompatClient(resolved.Provider, groqBaseURL, resolved, logger), nil

	case ProviderGoogle:
		if resolved.APIKey == "" {
			return nil, NewError(ErrorTypeAuth, "Google API key is required", false, nil)
		}
		return newOpenAICompatClient(resolved.Provider, googleBaseURL, resolved, logger), nil

	case ProviderOllama:
		// Local endpoint, no credential required.
		return newOpenAICompatClient(resolved.Provider, cfg.OllamaBaseURL, resolved, logger), nil

	case ProviderAnthropic:
		if resolved.APIKey == "" {
			return nil, NewError(ErrorTypeAuth, "Anthropic API key is required", false, nil)
		}
		return newAnthropicClient(resolved, logger), nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", resolved.Provider)
	}
}

// openAICompatClient speaks the OpenAI chat-completion API. It serves the
// openai, groq, google, and ollama providers, which differ only in base URL
// and credential requirements.
type openAICompatClient struct {
	client   *openai.Client
	provider Provider
	model    string
	logger   *zap.Logger
}

func newOpenAICompatClient(provider Provider, baseURL string, resolved *ResolvedConfig, logger *zap.Logger) *openAICompatClient {
	clientConfig := openai.DefaultConfig(resolved.APIKey)
	if baseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return &openAICompatClient{
		client:   openai.NewClientWithConfig(clientConfig),
		provider: provider,
		model:    resolved.Model,
		logger:   logger.Named(string(provider)),
	}
}

func (c *openAICompatClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Float64("temperature", req.Temperature))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, ClassifyError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResult{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func (c *openAICompatClient) Model() string {
	return c.model
}

var _ Generator = (*openAICompatClient)(nil)
