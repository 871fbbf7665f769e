package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/observability"
)

// Default values for the Mistral provider.
const (
	defaultMistralBaseURL = "https://api.mistral.ai/v1/"
	defaultMistralModel   = "mistral-tiny"
)

// MistralConfig holds the parameters needed to create a Mistral provider.
// This is defined in the llm package to avoid importing the config package.
type MistralConfig struct {
	// APIKey is the Mistral API key. An empty key makes the provider unavailable.
	APIKey string
	// Model is the model identifier (e.g., "mistral-tiny").
	Model string
	// BaseURL is the API base URL (empty means default).
	BaseURL string
}

// MistralProvider talks to Mistral's OpenAI-compatible chat completions API.
// Titles are translated one request at a time; a failed request returns the
// whole batch untranslated.
type MistralProvider struct {
	*chatCore
	apiKey string
}

// NewMistralProvider creates a new Mistral provider.
func NewMistralProvider(cfg MistralConfig, opts Options, logger zerolog.Logger, metrics *observability.Metrics) *MistralProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultMistralBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	model := cfg.Model
	if model == "" {
		model = defaultMistralModel
	}

	opts = opts.withDefaults()
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
		option.WithMaxRetries(0),
	)

	p := &MistralProvider{
		chatCore: newChatCore(domain.ProviderMistral, model, logger, metrics),
		apiKey:   cfg.APIKey,
	}
	p.client = &mistralCompleter{
		client:      &client,
		model:       openai.ChatModel(model),
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     opts.Timeout,
	}
	return p
}

// Available reports whether an API key is configured.
func (p *MistralProvider) Available(_ context.Context) bool {
	return p.apiKey != ""
}

type mistralCompleter struct {
	client      *openai.Client
	model       openai.ChatModel
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

func (m *mistralCompleter) complete(ctx context.Context, system, user string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model:       m.model,
		Messages:    buildMessages(system, user),
		Temperature: openai.Float(m.temperature),
		MaxTokens:   openai.Int(int64(m.maxTokens)),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func buildMessages(system, user string) []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(system),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(user),
				},
			},
		},
	}
}
