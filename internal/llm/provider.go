// Package llm provides the LLM provider clients used for query translation,
// title translation, layperson summaries and query optimization.
//
// Each supported vendor (Gemini, Mistral, Ollama) implements Provider with
// identical semantics. Operations are best effort: transport failures are
// logged and replaced by a documented fallback value, and the only error a
// provider returns is the cancellation of its context.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/observability"
)

// Operation names used in logs and metrics.
const (
	OperationTranslateQuery  = "translate_query"
	OperationTranslateTitles = "translate_titles"
	OperationSummarize       = "summarize"
	OperationOptimizeQuery   = "optimize_query"
)

// MaxOptimizedQueryLength is the longest optimized query accepted from a model.
const MaxOptimizedQueryLength = 300

// Fixed user-facing messages returned by Summarize.
const (
	// NoAbstractMessage is returned without any network call when the article has no abstract.
	NoAbstractMessage = "К сожалению, для этой статьи нет доступной аннотации (abstract), поэтому ИИ не может составить резюме."
	// SummaryErrorMessage is returned when the provider call fails.
	SummaryErrorMessage = "Произошла ошибка при генерации описания."
	// SummaryEmptyMessage is returned when the provider answers with no text.
	SummaryEmptyMessage = "Не удалось создать краткое содержание."
)

// Provider is an LLM backend able to serve the four assistant operations.
type Provider interface {
	// ID returns the provider identity.
	ID() domain.ProviderID

	// Model returns the model identifier being used.
	Model() string

	// Available performs the cheap availability probe for the provider.
	Available(ctx context.Context) bool

	// TranslateQuery translates a search query to English. The original query
	// is returned when translation fails or yields nothing.
	TranslateQuery(ctx context.Context, query string) (string, error)

	// TranslateTitles translates article titles to Russian. The result always
	// has the same length and order as titles.
	TranslateTitles(ctx context.Context, titles []string) ([]string, error)

	// Summarize explains an article to a non-specialist in Russian.
	Summarize(ctx context.Context, title, abstract string) (string, error)

	// OptimizeQuery compresses a long query into PubMed search terms.
	OptimizeQuery(ctx context.Context, query string) (string, error)
}

// UnavailableMessage returns the human-readable message shown instead of a
// summary when the provider cannot be used.
func UnavailableMessage(id domain.ProviderID) string {
	switch id {
	case domain.ProviderGemini:
		return "API Key is missing. Cannot generate summary."
	case domain.ProviderMistral:
		return "Ключ Mistral API не настроен. Проверьте переменную PUBMEDAI_LLM_MISTRAL_API_KEY."
	case domain.ProviderOllama:
		return "Локальный ИИ (Ollama) недоступен. Проверьте, запущен ли Ollama сервер."
	}
	return "ИИ-провайдер недоступен."
}

// completer issues one system+user chat call against a vendor API.
type completer interface {
	complete(ctx context.Context, system, user string) (string, error)
}

// chatCore implements the operations shared by every provider on top of a
// single-turn completer. Vendors embed it and override what differs.
type chatCore struct {
	id      domain.ProviderID
	model   string
	client  completer
	logger  zerolog.Logger
	metrics *observability.Metrics

	// perItemTitles keeps the remaining titles translating after one item fails.
	perItemTitles bool
}

func newChatCore(id domain.ProviderID, model string, logger zerolog.Logger, metrics *observability.Metrics) *chatCore {
	return &chatCore{
		id:      id,
		model:   model,
		logger:  observability.WithProviderContext(logger.With().Str("component", "llm").Logger(), string(id), model),
		metrics: metrics,
	}
}

// ID returns the provider identity.
func (c *chatCore) ID() domain.ProviderID {
	return c.id
}

// Model returns the model identifier being used.
func (c *chatCore) Model() string {
	return c.model
}

// call runs one completion, recording latency and failures.
func (c *chatCore) call(ctx context.Context, operation, system, user string) (string, error) {
	start := time.Now()
	text, err := c.client.complete(ctx, system, user)
	if err != nil {
		err = normalizeError(string(c.id), err)
		c.metrics.RecordLLMRequestFailed(string(c.id), operation, errorType(err))
		return "", err
	}
	c.metrics.RecordLLMRequest(string(c.id), operation, time.Since(start).Seconds())
	return text, nil
}

// fallback logs a swallowed failure and counts the fallback.
func (c *chatCore) fallback(operation string, err error) {
	event := c.logger.Warn().Str("operation", operation)
	if err != nil {
		event = event.Err(err)
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			event = event.Bool("transient", apiErr.IsTransient())
			if apiErr.IsQuotaExceeded() {
				event = event.Bool("quota_exceeded", true)
			}
		}
	}
	event.Msg("llm call degraded to fallback")
	c.metrics.RecordLLMFallback(string(c.id), operation)
}

// TranslateQuery translates a search query to English.
func (c *chatCore) TranslateQuery(ctx context.Context, query string) (string, error) {
	system, user := BuildQueryTranslationPrompt(query)
	text, err := c.call(ctx, OperationTranslateQuery, system, user)
	if err != nil {
		if ctx.Err() != nil {
			return query, ctx.Err()
		}
		c.fallback(OperationTranslateQuery, err)
		return query, nil
	}
	if translated := strings.TrimSpace(text); translated != "" {
		return translated, nil
	}
	c.fallback(OperationTranslateQuery, nil)
	return query, nil
}

// TranslateTitles translates titles one at a time, preserving order.
func (c *chatCore) TranslateTitles(ctx context.Context, titles []string) ([]string, error) {
	if len(titles) == 0 {
		return titles, nil
	}

	translated := make([]string, len(titles))
	for i, title := range titles {
		system, user := BuildTitleTranslationPrompt(title)
		text, err := c.call(ctx, OperationTranslateTitles, system, user)
		if err != nil {
			if ctx.Err() != nil {
				return titles, ctx.Err()
			}
			if !c.perItemTitles {
				c.fallback(OperationTranslateTitles, err)
				return titles, nil
			}
			c.logger.Warn().Err(err).Int("index", i).Msg("title translation failed, keeping original")
			translated[i] = title
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			translated[i] = t
		} else {
			translated[i] = title
		}
	}
	return translated, nil
}

// Summarize explains an article to a non-specialist.
func (c *chatCore) Summarize(ctx context.Context, title, abstract string) (string, error) {
	if strings.TrimSpace(abstract) == "" {
		return NoAbstractMessage, nil
	}

	system, user := BuildSummaryPrompt(title, abstract)
	text, err := c.call(ctx, OperationSummarize, system, user)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.fallback(OperationSummarize, err)
		return SummaryErrorMessage, nil
	}
	if strings.TrimSpace(text) == "" {
		return SummaryEmptyMessage, nil
	}
	return text, nil
}

// OptimizeQuery compresses a long query into PubMed search terms.
func (c *chatCore) OptimizeQuery(ctx context.Context, query string) (string, error) {
	system, user := BuildOptimizePrompt(query)
	text, err := c.call(ctx, OperationOptimizeQuery, system, user)
	if err != nil {
		if ctx.Err() != nil {
			return query, ctx.Err()
		}
		c.fallback(OperationOptimizeQuery, err)
		return query, nil
	}
	return acceptOptimized(query, text), nil
}

// acceptOptimized returns the model output when it is usable, otherwise the input.
func acceptOptimized(input, output string) string {
	optimized := strings.TrimSpace(output)
	if optimized == "" || len([]rune(optimized)) > MaxOptimizedQueryLength {
		return input
	}
	return optimized
}

// sameLength returns translated when it matches titles position for position,
// otherwise titles unchanged.
func sameLength(titles, translated []string) ([]string, bool) {
	if len(translated) != len(titles) {
		return titles, false
	}
	out := make([]string, len(titles))
	for i := range titles {
		if t := strings.TrimSpace(translated[i]); t != "" {
			out[i] = t
		} else {
			out[i] = titles[i]
		}
	}
	return out, true
}
