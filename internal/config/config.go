// Package config provides configuration management for the PubMed explorer.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/llm"
)

// EnvPrefix is the prefix shared by every environment variable the service reads.
const EnvPrefix = "PUBMEDAI"

// Config holds all configuration for the PubMed explorer.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains provider selection and per-provider settings.
	LLM LLMConfig `mapstructure:"llm"`
	// PubMed contains NCBI E-utilities settings.
	PubMed PubMedConfig `mapstructure:"pubmed"`
	// Events contains Kafka event publishing settings.
	Events EventsConfig `mapstructure:"events"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	// Streaming endpoints ignore it.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	// Policy is the selection policy (fixed, fallback, manual).
	Policy string `mapstructure:"policy"`
	// Provider is the preferred provider (gemini, mistral, ollama).
	Provider string `mapstructure:"provider"`
	// FallbackProvider is the provider tried when the preferred one is
	// unavailable. Only used by the fallback policy.
	FallbackProvider string `mapstructure:"fallback_provider"`
	// Timeout bounds a single provider call.
	Timeout time.Duration `mapstructure:"timeout"`
	// Temperature is the sampling temperature sent to every provider.
	Temperature float64 `mapstructure:"temperature"`
	// MaxTokens caps completion length where the provider supports it.
	MaxTokens int `mapstructure:"max_tokens"`
	// Gemini contains Google Gemini settings.
	Gemini GeminiConfig `mapstructure:"gemini"`
	// Mistral contains Mistral settings.
	Mistral MistralConfig `mapstructure:"mistral"`
	// Ollama contains local Ollama settings.
	Ollama OllamaConfig `mapstructure:"ollama"`
}

// GeminiConfig holds Google Gemini settings.
type GeminiConfig struct {
	// APIKey is the Gemini API key (loaded from PUBMEDAI_LLM_GEMINI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the Gemini model name.
	Model string `mapstructure:"model"`
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string `mapstructure:"base_url"`
}

// MistralConfig holds Mistral settings.
type MistralConfig struct {
	// APIKey is the Mistral API key (loaded from PUBMEDAI_LLM_MISTRAL_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the Mistral model name.
	Model string `mapstructure:"model"`
	// BaseURL is the Mistral chat API base URL.
	BaseURL string `mapstructure:"base_url"`
}

// OllamaConfig holds local Ollama settings.
type OllamaConfig struct {
	// Model is the Ollama model tag.
	Model string `mapstructure:"model"`
	// BaseURL is the Ollama server address, without the /v1 suffix.
	BaseURL string `mapstructure:"base_url"`
	// ProbeTimeout bounds the availability probe.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// PubMedConfig holds NCBI E-utilities settings.
type PubMedConfig struct {
	// APIKey is the NCBI API key (loaded from PUBMEDAI_PUBMED_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// BaseURL is the E-utilities base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for a single E-utilities request.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second without an API key.
	RateLimit float64 `mapstructure:"rate_limit"`
	// KeyedRateLimit is the maximum requests per second with an API key.
	KeyedRateLimit float64 `mapstructure:"keyed_rate_limit"`
	// BurstSize is the limiter burst.
	BurstSize int `mapstructure:"burst_size"`
	// MaxRetries is the number of retries on transient failures (default: 0).
	MaxRetries int `mapstructure:"max_retries"`
	// DefaultCount is the result count used when a request leaves it unset.
	DefaultCount int `mapstructure:"default_count"`
	// MaxCount is the upper bound for a requested result count.
	MaxCount int `mapstructure:"max_count"`
}

// EventsConfig holds Kafka publisher settings.
type EventsConfig struct {
	// Enabled controls whether pipeline events are published.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic pipeline events go to.
	Topic string `mapstructure:"topic"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// PublishTimeout bounds a single publish so a slow broker cannot stall a search.
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pubmed-explorer")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.LLM.Gemini.APIKey = os.Getenv(EnvPrefix + "_LLM_GEMINI_API_KEY")
	cfg.LLM.Mistral.APIKey = os.Getenv(EnvPrefix + "_LLM_MISTRAL_API_KEY")
	cfg.PubMed.APIKey = os.Getenv(EnvPrefix + "_PUBMED_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// LLM defaults
	v.SetDefault("llm.policy", string(llm.PolicyManual))
	v.SetDefault("llm.provider", string(domain.ProviderGemini))
	v.SetDefault("llm.fallback_provider", string(domain.ProviderOllama))
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 1000)
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.gemini.model", "gemini-2.5-flash")
	v.SetDefault("llm.gemini.base_url", "")
	v.SetDefault("llm.mistral.model", "mistral-tiny")
	v.SetDefault("llm.mistral.base_url", "https://api.mistral.ai/v1/")
	v.SetDefault("llm.ollama.model", "gpt-oss:20b-cloud")
	v.SetDefault("llm.ollama.base_url", "http://localhost:11434")
	v.SetDefault("llm.ollama.probe_timeout", "3s")

	// PubMed defaults
	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.timeout", "30s")
	v.SetDefault("pubmed.rate_limit", 3.0)        // NCBI allows 3 req/sec without an API key
	v.SetDefault("pubmed.keyed_rate_limit", 10.0) // and 10 req/sec with one
	v.SetDefault("pubmed.burst_size", 1)
	v.SetDefault("pubmed.max_retries", 0)
	v.SetDefault("pubmed.default_count", 10)
	v.SetDefault("pubmed.max_count", 100)

	// Events defaults
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "events.pubmed_explorer.searches")
	v.SetDefault("events.batch_timeout", "10ms")
	v.SetDefault("events.publish_timeout", "2s")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if err := c.LLM.validate(); err != nil {
		return err
	}

	if c.PubMed.BaseURL == "" {
		return fmt.Errorf("pubmed base_url is required")
	}
	if c.PubMed.RateLimit <= 0 {
		return fmt.Errorf("pubmed rate_limit must be positive")
	}
	if c.PubMed.MaxRetries < 0 {
		return fmt.Errorf("pubmed max_retries must not be negative")
	}
	if c.PubMed.MaxCount <= 0 {
		return fmt.Errorf("pubmed max_count must be positive")
	}
	if c.PubMed.DefaultCount <= 0 || c.PubMed.DefaultCount > c.PubMed.MaxCount {
		return fmt.Errorf("pubmed default_count (%d) must be between 1 and max_count (%d)", c.PubMed.DefaultCount, c.PubMed.MaxCount)
	}

	if c.Events.Enabled {
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("events brokers are required when events are enabled")
		}
		if c.Events.Topic == "" {
			return fmt.Errorf("events topic is required when events are enabled")
		}
	}

	return nil
}

func (c *LLMConfig) validate() error {
	policy, err := llm.ParsePolicy(c.Policy)
	if err != nil {
		return fmt.Errorf("invalid LLM policy: %w", err)
	}
	preferred, err := domain.ParseProviderID(c.Provider)
	if err != nil {
		return fmt.Errorf("unknown LLM provider: %w", err)
	}
	if policy == llm.PolicyFallback {
		fallback, err := domain.ParseProviderID(c.FallbackProvider)
		if err != nil {
			return fmt.Errorf("unknown LLM fallback provider: %w", err)
		}
		if fallback == preferred {
			return fmt.Errorf("LLM fallback provider must differ from the preferred provider %q", c.Provider)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("LLM timeout must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("LLM temperature must be between 0 and 2")
	}
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama base_url is required")
	}
	return nil
}
