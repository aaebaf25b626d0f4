package llm

import (
	"sync"

	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/config"
)

// keyPool is a round-robin rotated list of system credentials for one
// provider. index points at the key returned by the next draw.
type keyPool struct {
	keys  []string
	index int
}

// next returns the current key and advances the cursor.
func (p *keyPool) next() string {
	key := p.keys[p.index]
	p.index = (p.index + 1) % len(p.keys)
	return key
}

// Factory resolves per-request provider configuration and owns the
// process-wide system key pools. Construct one at process start and share
// it; the pool counters are serialized behind mu.
type Factory struct {
	cfg    *config.LLMConfig
	logger *zap.Logger

	mu       sync.Mutex
	pools    map[Provider]*keyPool
	poolInit bool
}

// NewFactory creates a factory. Pools are populated lazily on first use.
func NewFactory(cfg *config.LLMConfig, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger.Named("llm"),
		pools:  make(map[Provider]*keyPool),
	}
}

// initPools loads key pools from configuration. Idempotent; caller holds mu.
func (f *Factory) initPools() {
	if f.poolInit {
		return
	}

	for _, provider := range []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderGroq} {
		keys := f.cfg.KeysFor(string(provider))
		if len(keys) == 0 {
			continue
		}
		f.pools[provider] = &keyPool{keys: keys}
		f.logger.Info("Loaded system keys",
			zap.String("provider", string(provider)),
			zap.Int("count", len(keys)))
	}

	f.poolInit = true
}

// nextSystemKey draws the next key for a provider via round-robin, or ""
// when no system key is configured. The read-modify-write on the pool
// cursor happens under mu so concurrent requests cycle fairly.
func (f *Factory) nextSystemKey(provider Provider) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.initPools()

	pool, ok := f.pools[provider]
	if !ok || len(pool.keys) == 0 {
		return ""
	}
	return pool.next()
}

// Resolve builds the normalized configuration for one call.
// Provider: explicit option, else configured default, else openai.
// Model: explicit option, else per-provider default.
// Key: BYOK when the caller supplied one, else the system pool; when the
// resolved provider has no system key, fall back to the local ollama
// provider and its default model.
func (f *Factory) Resolve(opts Options) *ResolvedConfig {
	provider := opts.Provider
	if provider == "" || !provider.Valid() {
		provider = Provider(f.cfg.DefaultProvider)
	}
	if !provider.Valid() {
		provider = ProviderOpenAI
	}

	model := opts.Model
	if model == "" {
		model = f.defaultModel(provider)
	}

	var apiKey string
	if opts.UseUserKey {
		// BYOK: the caller's key is used as-is. An empty key is a caller
		// error surfaced by the provider constructor, not a reason to
		// silently draw from the system pool.
		apiKey = opts.APIKey
	} else {
		apiKey = f.nextSystemKey(provider)
		if apiKey == "" && provider != ProviderOllama {
			f.logger.Warn("No system key available, falling back to ollama",
				zap.String("provider", string(provider)))
			provider = ProviderOllama
			model = f.cfg.OllamaModel
		}
	}

	return &ResolvedConfig{
		Provider:       provider,
		Model:          model,
		APIKey:         apiKey,
		MaxTokens:      f.cfg.MaxTokens,
		Temperature:    f.cfg.Temperature,
		UsingSystemKey: !opts.UseUserKey,
	}
}

// ProviderInfo reports the resolved configuration without making any
// network call.
func (f *Factory) ProviderInfo(opts Options) ProviderInfo {
	resolved := f.Resolve(opts)
	return ProviderInfo{
		Provider:       resolved.Provider,
		Model:          resolved.Model,
		MaxTokens:      resolved.MaxTokens,
		Temperature:    resolved.Temperature,
		UsingSystemKey: resolved.UsingSystemKey,
		HasAPIKey:      resolved.APIKey != "",
	}
}

// defaultModel picks the model used when neither the caller nor the
// configuration names one.
func (f *Factory) defaultModel(provider Provider) string {
	if provider == ProviderOllama {
		return f.cfg.OllamaModel
	}
	if provider == ProviderOpenAI && f.cfg.DefaultModel != "" {
		return f.cfg.DefaultModel
	}
	return defaultModels[provider]
}

// CreateGenerator resolves options and instantiates the concrete provider
// client. Constructors fail fast when required credentials are absent.
func (f *Factory) CreateGenerator(opts Options) (Generator, *ResolvedConfig, error) {
	resolved := f.Resolve(opts)

	gen, err := newGenerator(resolved, f.cfg, f.logger)
	if err != nil {
		return nil, nil, err
	}
	return gen, resolved, nil
}
