package llm

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/observability"
)

// Default values for the Ollama provider.
const (
	defaultOllamaBaseURL      = "http://localhost:11434"
	defaultOllamaModel        = "gpt-oss:20b-cloud"
	defaultOllamaProbeTimeout = 3 * time.Second
)

// OllamaConfig holds the parameters needed to create an Ollama provider.
type OllamaConfig struct {
	// Model is the local model name (e.g., "gpt-oss:20b-cloud").
	Model string
	// BaseURL is the Ollama server root, without the /v1 suffix.
	BaseURL string
	// ProbeTimeout bounds the availability check.
	ProbeTimeout time.Duration
}

// OllamaProvider talks to a local Ollama server through its OpenAI-compatible
// endpoint. Availability is a live GET /api/tags probe. Titles are translated
// one request at a time and a failed item keeps its original title.
type OllamaProvider struct {
	*chatCore
	baseURL      string
	probeClient  *http.Client
	probeTimeout time.Duration
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg OllamaConfig, opts Options, logger zerolog.Logger, metrics *observability.Metrics) *OllamaProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}

	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = defaultOllamaProbeTimeout
	}

	opts = opts.withDefaults()
	clientConfig := openai.DefaultConfig("ollama")
	clientConfig.BaseURL = baseURL + "/v1"
	clientConfig.HTTPClient = &http.Client{Timeout: opts.Timeout}

	p := &OllamaProvider{
		chatCore:     newChatCore(domain.ProviderOllama, model, logger, metrics),
		baseURL:      baseURL,
		probeClient:  &http.Client{Timeout: probeTimeout},
		probeTimeout: probeTimeout,
	}
	p.perItemTitles = true
	p.client = &ollamaCompleter{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: float32(opts.Temperature),
	}
	return p
}

// Available reports whether the Ollama server answers GET /api/tags with a 2xx status.
func (p *OllamaProvider) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.probeClient.Do(req)
	if err != nil {
		p.logger.Debug().Err(err).Msg("ollama probe failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

type ollamaCompleter struct {
	client      *openai.Client
	model       string
	temperature float32
}

func (o *ollamaCompleter) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: o.temperature,
		Stream:      false,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
