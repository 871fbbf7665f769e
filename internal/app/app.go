// Package app wires configuration into the runtime components shared by the
// server and the CLI: metrics, the PubMed client, the LLM providers behind
// their selector, the assistant façade and the event publisher.
package app

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-explorer/internal/assistant"
	"github.com/helixir/pubmed-explorer/internal/config"
	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/events"
	"github.com/helixir/pubmed-explorer/internal/llm"
	"github.com/helixir/pubmed-explorer/internal/observability"
	"github.com/helixir/pubmed-explorer/internal/papersources/pubmed"
	"github.com/helixir/pubmed-explorer/internal/pipeline"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "pubmed_explorer"

// App holds the wired components.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Metrics   *observability.Metrics
	Source    *pubmed.Client
	Selector  *llm.Selector
	Assistant *assistant.Assistant
	Publisher events.Publisher
}

// Option customizes Build.
type Option func(*buildOptions)

type buildOptions struct {
	publisher events.Publisher
	metrics   *observability.Metrics
}

// WithPublisher replaces the configured event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(o *buildOptions) { o.publisher = p }
}

// WithMetrics supplies a metrics instance instead of registering a new one.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *buildOptions) { o.metrics = m }
}

// Build creates every component from cfg. Metrics are registered only when
// cfg.Metrics.Enabled is set and none were supplied.
func Build(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	metrics := o.metrics
	if metrics == nil && cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(MetricsNamespace)
	}

	source := pubmed.New(pubmed.Config{
		BaseURL:        cfg.PubMed.BaseURL,
		APIKey:         cfg.PubMed.APIKey,
		Timeout:        cfg.PubMed.Timeout,
		RateLimit:      cfg.PubMed.RateLimit,
		KeyedRateLimit: cfg.PubMed.KeyedRateLimit,
		BurstSize:      cfg.PubMed.BurstSize,
		MaxRetries:     cfg.PubMed.MaxRetries,
		DefaultCount:   cfg.PubMed.DefaultCount,
		MaxCount:       cfg.PubMed.MaxCount,
	}, logger, metrics)

	selector, err := llm.NewSelectorFromConfig(factoryConfig(cfg.LLM), logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("create llm selector: %w", err)
	}

	publisher := o.publisher
	if publisher == nil {
		publisher, err = events.New(cfg.Events.Enabled, events.Config{
			Brokers:      cfg.Events.Brokers,
			Topic:        cfg.Events.Topic,
			BatchTimeout: cfg.Events.BatchTimeout,
		}, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("create event publisher: %w", err)
		}
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Source:   source,
		Selector: selector,
		Assistant: assistant.New(selector,
			assistant.WithLogger(logger),
			assistant.WithMetrics(metrics),
		),
		Publisher: publisher,
	}, nil
}

// PipelineDependencies returns the collaborators for a pipeline.Coordinator.
func (a *App) PipelineDependencies() pipeline.Dependencies {
	return pipeline.Dependencies{
		Source:         a.Source,
		Assistant:      a.Assistant,
		Publisher:      a.Publisher,
		Logger:         a.Logger,
		Metrics:        a.Metrics,
		DefaultCount:   a.Config.PubMed.DefaultCount,
		MaxCount:       a.Config.PubMed.MaxCount,
		Provider:       a.preferredProvider(),
		PublishTimeout: a.Config.Events.PublishTimeout,
	}
}

// Coordinator creates a pipeline coordinator for one consumer.
func (a *App) Coordinator() *pipeline.Coordinator {
	return pipeline.New(a.PipelineDependencies())
}

// Close releases the event publisher.
func (a *App) Close() error {
	if a.Publisher == nil {
		return nil
	}
	return a.Publisher.Close()
}

func (a *App) preferredProvider() domain.ProviderID {
	if a.Selector.Policy() == llm.PolicyFixed {
		return domain.DefaultProvider()
	}
	return a.Selector.Preferred()
}

func factoryConfig(c config.LLMConfig) llm.FactoryConfig {
	return llm.FactoryConfig{
		Policy:           c.Policy,
		Provider:         c.Provider,
		FallbackProvider: c.FallbackProvider,
		Temperature:      c.Temperature,
		MaxTokens:        c.MaxTokens,
		Timeout:          c.Timeout,
		Gemini: llm.GeminiConfig{
			APIKey:  c.Gemini.APIKey,
			Model:   c.Gemini.Model,
			BaseURL: c.Gemini.BaseURL,
		},
		Mistral: llm.MistralConfig{
			APIKey:  c.Mistral.APIKey,
			Model:   c.Mistral.Model,
			BaseURL: c.Mistral.BaseURL,
		},
		Ollama: llm.OllamaConfig{
			Model:        c.Ollama.Model,
			BaseURL:      c.Ollama.BaseURL,
			ProbeTimeout: c.Ollama.ProbeTimeout,
		},
	}
}
