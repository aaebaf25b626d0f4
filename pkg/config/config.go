package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for insight-engine processes.
// Configuration comes from config.yaml with environment variable overrides.
// Secrets (API keys, database password) must only come from environment
// variables (yaml:"-" fields).
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3100"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// LLM provider configuration
	LLM LLMConfig `yaml:"llm"`

	// Query safety limits
	Query QueryConfig `yaml:"query"`

	// Remote execution tool endpoint (client side)
	DBTool DBToolConfig `yaml:"dbtool"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`
}

// LLMConfig holds provider selection defaults and system key pools.
// Key lists are comma-separated to allow round-robin across multiple
// keys per provider.
type LLMConfig struct {
	DefaultProvider string  `yaml:"default_provider" env:"LLM_PROVIDER" env-default:"openai"`
	DefaultModel    string  `yaml:"default_model" env:"LLM_MODEL" env-default:""`
	MaxTokens       int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"2000"`
	Temperature     float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.1"`

	OpenAIKeys    string `yaml:"-" env:"OPENAI_API_KEY"`    // Secret - not in YAML
	AnthropicKeys string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	GoogleKeys    string `yaml:"-" env:"GOOGLE_API_KEY"`    // Secret - not in YAML
	GroqKeys      string `yaml:"-" env:"GROQ_API_KEY"`      // Secret - not in YAML

	OllamaBaseURL string `yaml:"ollama_base_url" env:"OLLAMA_BASE_URL" env-default:"http://localhost:11434/v1"`
	OllamaModel   string `yaml:"ollama_model" env:"OLLAMA_MODEL" env-default:"llama3.1:8b"`
}

// QueryConfig holds row limits and the execution-side statement timeout.
type QueryConfig struct {
	DefaultRowLimit    int `yaml:"default_row_limit" env:"QUERY_RESULT_LIMIT" env-default:"100"`
	MaxRowLimit        int `yaml:"max_row_limit" env:"QUERY_MAX_LIMIT" env-default:"1000"`
	StatementTimeoutMs int `yaml:"statement_timeout_ms" env:"QUERY_STATEMENT_TIMEOUT_MS" env-default:"5000"`
}

// DBToolConfig configures the remote execution client and server.
// URL may contain ${VAR} placeholders resolved against the environment.
// When URL is empty the endpoint is synthesized from Port.
type DBToolConfig struct {
	URL              string `yaml:"url" env:"DBTOOL_URL" env-default:""`
	Port             string `yaml:"port" env:"DBTOOL_PORT" env-default:""`
	RequestTimeoutMs int    `yaml:"request_timeout_ms" env:"DBTOOL_REQUEST_TIMEOUT_MS" env-default:"10000"`
	MaxRetries       int    `yaml:"max_retries" env:"DBTOOL_MAX_RETRIES" env-default:"3"`
	RetryBaseDelayMs int    `yaml:"retry_base_delay_ms" env:"DBTOOL_RETRY_BASE_DELAY_MS" env-default:"200"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"insight"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"insight_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// URL builds a postgres connection URL from the configuration.
func (d *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// KeysFor returns the configured system keys for a provider name,
// split on commas with whitespace and empty entries dropped.
func (l *LLMConfig) KeysFor(provider string) []string {
	var raw string
	switch provider {
	case "openai":
		raw = l.OpenAIKeys
	case "anthropic":
		raw = l.AnthropicKeys
	case "google":
		raw = l.GoogleKeys
	case "groq":
		raw = l.GroqKeys
	default:
		return nil
	}

	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Load reads configuration from config.yaml with environment variable
// overrides. When config.yaml is absent, configuration comes from the
// environment alone.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if cfg.Query.DefaultRowLimit <= 0 || cfg.Query.DefaultRowLimit > cfg.Query.MaxRowLimit {
		return nil, fmt.Errorf("default_row_limit must be in (0, %d], got %d",
			cfg.Query.MaxRowLimit, cfg.Query.DefaultRowLimit)
	}

	return cfg, nil
}
