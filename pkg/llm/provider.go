// Package llm is the model provider gateway: it resolves a provider, model,
// and API key for each request (system key pool or BYOK), builds the
// concrete client, and reports usage metrics per call.
package llm

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderGroq      Provider = "groq"
	ProviderOllama    Provider = "ollama"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderGroq, ProviderOllama:
		return true
	}
	return false
}

// Tier is a user subscription tier. Tiers widen monotonically:
// every provider allowed for a lower tier is allowed for the higher ones
// that list it.
type Tier string

const (
	TierGuest      Tier = "guest"
	TierFree       Tier = "free"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// tierProviders maps each tier to the providers it may use.
var tierProviders = map[Tier][]Provider{
	TierGuest:      {ProviderOllama, ProviderGoogle},
	TierFree:       {ProviderOpenAI, ProviderGoogle, ProviderGroq},
	TierPremium:    {ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderGroq},
	TierEnterprise: {ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderGroq, ProviderOllama},
}

// IsProviderAllowedForTier reports whether a tier may use a provider.
// Unknown tiers get the free-tier provider set.
func IsProviderAllowedForTier(provider Provider, tier Tier) bool {
	allowed, ok := tierProviders[tier]
	if !ok {
		allowed = tierProviders[TierFree]
	}
	for _, p := range allowed {
		if p == provider {
			return true
		}
	}
	return false
}

// Options are the caller-supplied, per-request provider preferences.
// Never persisted.
type Options struct {
	UserID string
	Tier   Tier

	// UseUserKey selects BYOK: the caller's APIKey is used instead of the
	// system pool.
	UseUserKey bool
	APIKey     string

	// Overrides for the configured defaults.
	Provider Provider
	Model    string
}

// ResolvedConfig is the normalized configuration for one LLM call.
type ResolvedConfig struct {
	Provider       Provider
	Model          string
	APIKey         string
	MaxTokens      int
	Temperature    float64
	UsingSystemKey bool
}

// ProviderInfo describes a resolved configuration without exposing the key.
// Used for request execution decisions and observability; computing it makes
// no network calls.
type ProviderInfo struct {
	Provider       Provider `json:"provider"`
	Model          string   `json:"model"`
	MaxTokens      int      `json:"max_tokens"`
	Temperature    float64  `json:"temperature"`
	UsingSystemKey bool     `json:"using_system_key"`
	HasAPIKey      bool     `json:"has_api_key"`
}

// UsageMetrics is produced per LLM call and aggregated by the orchestrator.
type UsageMetrics struct {
	TokensUsed    int      `json:"tokens_used"`
	EstimatedCost float64  `json:"estimated_cost"`
	Provider      Provider `json:"provider"`
	Model         string   `json:"model"`
	UsedSystemKey bool     `json:"used_system_key"`
}

// Add folds another call's usage into m, keeping m's provider identity.
func (m *UsageMetrics) Add(other *UsageMetrics) {
	if other == nil {
		return
	}
	m.TokensUsed += other.TokensUsed
	m.EstimatedCost += other.EstimatedCost
}

// defaultModels gives the per-provider model used when the caller and the
// configuration supply none.
var defaultModels = map[Provider]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-3-5-sonnet-20241022",
	ProviderGoogle:    "gemini-1.5-flash",
	ProviderGroq:      "llama-3.1-8b-instant",
}
