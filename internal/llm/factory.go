package llm

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/observability"
)

// Default generation settings shared by every provider.
const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 1000
	defaultTimeout     = 60 * time.Second
)

// Options holds the generation settings shared by every provider.
type Options struct {
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens caps the completion length where the vendor API accepts it.
	MaxTokens int
	// Timeout bounds a single API call.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Temperature < 0 {
		o.Temperature = defaultTemperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaultMaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return o
}

// FactoryConfig holds the parameters needed to build the providers and the selector.
// This is defined in the llm package to avoid importing the config package,
// keeping the llm package free of infrastructure dependencies.
type FactoryConfig struct {
	// Policy is the selection policy ("fixed", "fallback" or "manual").
	Policy string
	// Provider is the preferred provider name.
	Provider string
	// FallbackProvider is the second provider tried by the fallback policy.
	FallbackProvider string
	// Temperature is the LLM temperature setting.
	Temperature float64
	// MaxTokens caps completion length.
	MaxTokens int
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration
	// Gemini contains Gemini-specific settings.
	Gemini GeminiConfig
	// Mistral contains Mistral-specific settings.
	Mistral MistralConfig
	// Ollama contains Ollama-specific settings.
	Ollama OllamaConfig
}

func (c FactoryConfig) options() Options {
	return Options{Temperature: c.Temperature, MaxTokens: c.MaxTokens, Timeout: c.Timeout}
}

// NewProviders creates one provider per supported vendor, keyed by identity.
// Providers without credentials are still built; they report themselves unavailable.
func NewProviders(cfg FactoryConfig, logger zerolog.Logger, metrics *observability.Metrics) (map[domain.ProviderID]Provider, error) {
	opts := cfg.options()

	gemini, err := NewGeminiProvider(cfg.Gemini, opts, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("creating gemini provider: %w", err)
	}

	return map[domain.ProviderID]Provider{
		domain.ProviderGemini:  gemini,
		domain.ProviderMistral: NewMistralProvider(cfg.Mistral, opts, logger, metrics),
		domain.ProviderOllama:  NewOllamaProvider(cfg.Ollama, opts, logger, metrics),
	}, nil
}

// NewSelectorFromConfig builds every provider and wraps them in a Selector
// applying the configured policy.
func NewSelectorFromConfig(cfg FactoryConfig, logger zerolog.Logger, metrics *observability.Metrics) (*Selector, error) {
	providers, err := NewProviders(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	policy, err := ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}

	preferred := domain.DefaultProvider()
	if cfg.Provider != "" {
		if preferred, err = domain.ParseProviderID(cfg.Provider); err != nil {
			return nil, fmt.Errorf("llm provider: %w", err)
		}
	}

	var fallback domain.ProviderID
	if policy == PolicyFallback {
		if fallback, err = domain.ParseProviderID(cfg.FallbackProvider); err != nil {
			return nil, fmt.Errorf("llm fallback provider: %w", err)
		}
	}

	return NewSelector(providers, SelectorConfig{
		Policy:    policy,
		Preferred: preferred,
		Fallback:  fallback,
	}, logger, metrics)
}
