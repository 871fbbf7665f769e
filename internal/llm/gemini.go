package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/observability"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig holds the parameters needed to create a Gemini provider.
type GeminiConfig struct {
	// APIKey is the Gemini API key. An empty key makes the provider unavailable.
	APIKey string
	// Model is the model identifier (e.g., "gemini-2.5-flash").
	Model string
	// BaseURL overrides the Gemini API endpoint (empty means default).
	BaseURL string
}

// GeminiProvider talks to the Gemini API through the genai SDK. Titles are
// translated in a single call constrained to a JSON array of strings.
type GeminiProvider struct {
	*chatCore
	gen *geminiCompleter
}

// NewGeminiProvider creates a new Gemini provider. Without an API key no SDK
// client is built and the provider reports itself unavailable.
func NewGeminiProvider(cfg GeminiConfig, opts Options, logger zerolog.Logger, metrics *observability.Metrics) (*GeminiProvider, error) {
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	opts = opts.withDefaults()
	gen := &geminiCompleter{
		model:       model,
		temperature: float32(opts.Temperature),
		timeout:     opts.Timeout,
	}

	if cfg.APIKey != "" {
		clientCfg := &genai.ClientConfig{
			APIKey:     cfg.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: &http.Client{Timeout: opts.Timeout},
		}
		if cfg.BaseURL != "" {
			clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
		}
		client, err := genai.NewClient(context.Background(), clientCfg)
		if err != nil {
			return nil, &APIError{Provider: string(domain.ProviderGemini), Message: err.Error()}
		}
		gen.client = client
	}

	p := &GeminiProvider{
		chatCore: newChatCore(domain.ProviderGemini, model, logger, metrics),
		gen:      gen,
	}
	p.client = gen
	return p, nil
}

// Available reports whether an API key is configured.
func (p *GeminiProvider) Available(_ context.Context) bool {
	return p.gen.client != nil
}

// TranslateTitles translates every title in one request. Any failure or a
// count mismatch returns the titles untranslated.
func (p *GeminiProvider) TranslateTitles(ctx context.Context, titles []string) ([]string, error) {
	if len(titles) == 0 {
		return titles, nil
	}

	system, user := BuildBatchTitleTranslationPrompt(titles)
	start := time.Now()
	text, err := p.gen.generate(ctx, system, user, titleArraySchema())
	if err != nil {
		if ctx.Err() != nil {
			return titles, ctx.Err()
		}
		err = normalizeError(string(p.id), err)
		p.metrics.RecordLLMRequestFailed(string(p.id), OperationTranslateTitles, errorType(err))
		p.fallback(OperationTranslateTitles, err)
		return titles, nil
	}
	p.metrics.RecordLLMRequest(string(p.id), OperationTranslateTitles, time.Since(start).Seconds())

	var translated []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &translated); err != nil {
		p.logger.Warn().Err(err).Msg("gemini returned malformed title array")
		p.fallback(OperationTranslateTitles, nil)
		return titles, nil
	}

	out, ok := sameLength(titles, translated)
	if !ok {
		p.logger.Warn().
			Int("expected", len(titles)).
			Int("got", len(translated)).
			Msg("gemini title count mismatch")
		p.fallback(OperationTranslateTitles, nil)
	}
	return out, nil
}

func titleArraySchema() *genai.Schema {
	return &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	}
}

type geminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

func (g *geminiCompleter) complete(ctx context.Context, system, user string) (string, error) {
	return g.generate(ctx, system, user, nil)
}

// generate runs one GenerateContent call. A non-nil schema requests JSON output.
func (g *geminiCompleter) generate(ctx context.Context, system, user string, schema *genai.Schema) (string, error) {
	if g.client == nil {
		return "", &APIError{Provider: string(domain.ProviderGemini), StatusCode: http.StatusUnauthorized, Message: "api key missing"}
	}

	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
	}
	if schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	}

	resp, err := g.client.Models.GenerateContent(reqCtx, g.model, genai.Text(user), cfg)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
