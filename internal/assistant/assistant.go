// Package assistant is the single entry point consumers use for LLM work.
//
// Every operation resolves a provider through the selection policy, invokes
// it, and reconciles provider differences: errors other than cancellation are
// turned into the operation's fallback value, so all providers behave alike.
// When the policy finds no usable provider, query operations fail with
// domain.ErrProviderUnavailable while summaries return a readable message.
package assistant

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/llm"
	"github.com/helixir/pubmed-explorer/internal/observability"
)

// Selector resolves the provider for a call.
type Selector interface {
	Select(ctx context.Context) (llm.Provider, error)
}

// StatusReporter is implemented by selectors that can describe their providers.
type StatusReporter interface {
	Policy() llm.Policy
	Preferred() domain.ProviderID
	Candidates() []domain.ProviderID
	Statuses(ctx context.Context) []llm.ProviderStatus
}

// ProvidersInfo describes the active policy and every provider. Candidates
// lists the providers the policy may route to, in the order they are tried.
type ProvidersInfo struct {
	Policy     llm.Policy           `json:"policy"`
	Preferred  domain.ProviderID    `json:"preferred"`
	Candidates []domain.ProviderID  `json:"candidates"`
	Providers  []llm.ProviderStatus `json:"providers"`
}

// Routable reports whether any provider the policy may route to is available.
func (i ProvidersInfo) Routable() bool {
	for _, id := range i.Candidates {
		for _, p := range i.Providers {
			if p.ID == id && p.Available {
				return true
			}
		}
	}
	return false
}

// Assistant exposes query translation, title translation, summaries and query
// optimization on top of a provider Selector.
type Assistant struct {
	selector Selector
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// Option configures optional Assistant dependencies.
type Option func(*Assistant)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Assistant) { a.logger = logger.With().Str("component", "assistant").Logger() }
}

// WithMetrics attaches metrics. A nil value disables recording.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(a *Assistant) { a.metrics = metrics }
}

// New creates an Assistant.
func New(selector Selector, opts ...Option) *Assistant {
	a := &Assistant{
		selector: selector,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TranslateQuery translates a search query into English. It fails with
// domain.ErrProviderUnavailable when no provider may be used.
func (a *Assistant) TranslateQuery(ctx context.Context, query string) (string, error) {
	p, err := a.selector.Select(ctx)
	if err != nil {
		return "", err
	}

	start := time.Now()
	translated, err := p.TranslateQuery(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		a.reconciled(p, llm.OperationTranslateQuery, err)
		return query, nil
	}
	a.done(p, llm.OperationTranslateQuery, start).Str("translated_query", translated).Msg("query translated")
	return translated, nil
}

// OptimizeQuery compresses a long query into PubMed search terms. It fails
// with domain.ErrProviderUnavailable when no provider may be used.
func (a *Assistant) OptimizeQuery(ctx context.Context, query string) (string, error) {
	p, err := a.selector.Select(ctx)
	if err != nil {
		return "", err
	}

	start := time.Now()
	optimized, err := p.OptimizeQuery(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		a.reconciled(p, llm.OperationOptimizeQuery, err)
		return query, nil
	}
	a.done(p, llm.OperationOptimizeQuery, start).Str("optimized_query", optimized).Msg("query optimized")
	return optimized, nil
}

// TranslateTitles translates titles into Russian. The result always has the
// length of titles. When no provider may be used it returns
// domain.ErrProviderUnavailable and the caller keeps the titles unenriched.
func (a *Assistant) TranslateTitles(ctx context.Context, titles []string) ([]string, error) {
	if len(titles) == 0 {
		return titles, nil
	}

	p, err := a.selector.Select(ctx)
	if err != nil {
		return titles, err
	}

	start := time.Now()
	translated, err := p.TranslateTitles(ctx, titles)
	if err != nil {
		if ctx.Err() != nil {
			return titles, ctx.Err()
		}
		a.reconciled(p, llm.OperationTranslateTitles, err)
		return titles, nil
	}
	if len(translated) != len(titles) {
		a.reconciled(p, llm.OperationTranslateTitles, errors.New("title count mismatch"))
		return titles, nil
	}
	a.done(p, llm.OperationTranslateTitles, start).Int("titles", len(titles)).Msg("titles translated")
	return translated, nil
}

// Summarize explains an article to a non-specialist. An article without an
// abstract gets llm.NoAbstractMessage before any provider is probed. When no
// provider may be used, the provider's unavailability message is returned in
// place of a summary. The only error is context cancellation.
func (a *Assistant) Summarize(ctx context.Context, article domain.Article) (string, error) {
	if !article.HasAbstract() {
		return llm.NoAbstractMessage, nil
	}

	logger := observability.WithArticleContext(a.logger, article.ID)
	p, err := a.selector.Select(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var unavailable *domain.ProviderUnavailableError
		if errors.As(err, &unavailable) {
			logger.Warn().Str("provider", string(unavailable.Provider)).Msg("summary provider unavailable")
			return llm.UnavailableMessage(unavailable.Provider), nil
		}
		logger.Warn().Err(err).Msg("summary provider selection failed")
		return llm.SummaryErrorMessage, nil
	}

	start := time.Now()
	summary, err := p.Summarize(ctx, article.Title, article.Abstract)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		a.reconciled(p, llm.OperationSummarize, err)
		return llm.SummaryErrorMessage, nil
	}
	a.done(p, llm.OperationSummarize, start).Str("pmid", article.ID).Msg("summary generated")
	return summary, nil
}

// Providers describes the selection policy and probes every provider.
func (a *Assistant) Providers(ctx context.Context) (ProvidersInfo, error) {
	reporter, ok := a.selector.(StatusReporter)
	if !ok {
		return ProvidersInfo{}, errors.New("selector does not report provider status")
	}
	return ProvidersInfo{
		Policy:     reporter.Policy(),
		Preferred:  reporter.Preferred(),
		Candidates: reporter.Candidates(),
		Providers:  reporter.Statuses(ctx),
	}, nil
}

func (a *Assistant) done(p llm.Provider, operation string, start time.Time) *zerolog.Event {
	return a.logger.Debug().
		Str("provider", string(p.ID())).
		Str("model", p.Model()).
		Str("operation", operation).
		Dur("duration", time.Since(start))
}

// reconciled logs a provider error replaced by the operation's fallback.
func (a *Assistant) reconciled(p llm.Provider, operation string, err error) {
	a.logger.Warn().
		Err(err).
		Str("provider", string(p.ID())).
		Str("operation", operation).
		Msg("provider error replaced by fallback")
	a.metrics.RecordLLMFallback(string(p.ID()), operation)
}
