// Package pipeline sequences a user search: query translation, PubMed
// search, then title translation, publishing an immutable State snapshot
// after every step.
//
// Stages run strictly one after another. Each Search call owns a guard
// token; Clear or a newer Search replaces the token, and any result that
// arrives for a stale token is discarded with ErrSuperseded instead of being
// applied to state.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/events"
	"github.com/helixir/pubmed-explorer/internal/observability"
	"github.com/helixir/pubmed-explorer/internal/papersources"
	"github.com/helixir/pubmed-explorer/internal/papersources/pubmed"
)

// ErrSuperseded is returned by Search when Clear or a newer Search replaced
// it before it finished. Its late results were not applied.
var ErrSuperseded = fmt.Errorf("search superseded: %w", domain.ErrCancelled)

// Default result count bounds.
const (
	DefaultCount = 10
	MaxCount     = 100
)

// DefaultPublishTimeout bounds one event publish when Dependencies leaves it unset.
const DefaultPublishTimeout = 2 * time.Second

// Assistant is the LLM façade used by the pipeline.
type Assistant interface {
	TranslateQuery(ctx context.Context, query string) (string, error)
	TranslateTitles(ctx context.Context, titles []string) ([]string, error)
	Summarize(ctx context.Context, article domain.Article) (string, error)
}

// Dependencies are the collaborators shared by every Coordinator.
type Dependencies struct {
	Source    papersources.ArticleSource
	Assistant Assistant
	// Publisher may be nil, which disables events.
	Publisher events.Publisher
	Logger    zerolog.Logger
	// Metrics may be nil.
	Metrics *observability.Metrics
	// Provider labels search.completed events. It is informational only.
	Provider domain.ProviderID
	// DefaultCount and MaxCount bound Request.Count. Zero values use the package defaults.
	DefaultCount int
	MaxCount     int
	// PublishTimeout bounds each event publish. Zero uses DefaultPublishTimeout.
	PublishTimeout time.Duration
}

// Coordinator runs searches for one consumer. It is cheap to create; servers
// create one per request so concurrent clients never supersede each other.
//
// Observers registered with Subscribe are called synchronously, in order,
// with every new snapshot. They must not block or call back into the
// Coordinator.
type Coordinator struct {
	deps Dependencies

	mu        sync.Mutex
	token     string
	observers map[int]func(State)
	nextObs   int

	state atomic.Pointer[State]
}

// New creates a Coordinator in the idle state.
func New(deps Dependencies) *Coordinator {
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	if deps.DefaultCount <= 0 {
		deps.DefaultCount = DefaultCount
	}
	if deps.MaxCount <= 0 {
		deps.MaxCount = MaxCount
	}
	if deps.DefaultCount > deps.MaxCount {
		deps.DefaultCount = deps.MaxCount
	}
	if deps.PublishTimeout <= 0 {
		deps.PublishTimeout = DefaultPublishTimeout
	}
	deps.Logger = deps.Logger.With().Str("component", "pipeline").Logger()

	c := &Coordinator{
		deps:      deps,
		observers: make(map[int]func(State)),
	}
	c.state.Store(idleState())
	return c
}

// Current returns the latest snapshot.
func (c *Coordinator) Current() State {
	return *c.state.Load()
}

// Subscribe registers fn for every future snapshot and returns a function
// that removes it.
func (c *Coordinator) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Clear abandons any in-flight search and resets the state to idle.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.state.Load().Loading {
		c.deps.Metrics.RecordSearchSuperseded()
		c.deps.Logger.Debug().Str("search_id", c.token).Msg("in-flight search cleared")
	}
	c.token = ""
	c.publishLocked(idleState())
}

// Search runs one search to completion and returns its final snapshot.
//
// Query translation or PubMed failures end the search in StageFailed with the
// error message in State.Error, and the error is returned. Title translation
// failures keep the untranslated results.
func (c *Coordinator) Search(ctx context.Context, req Request) (State, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return c.Current(), domain.NewValidationError("query", "must not be empty")
	}
	count := c.clampCount(req.Count)

	token := uuid.NewString()
	start := time.Now()
	logger := observability.WithSearchContext(c.deps.Logger, token, query)
	ctx = observability.WithSearchID(ctx, token)

	c.begin(token, &State{
		SearchID:  token,
		Query:     query,
		Count:     count,
		Stage:     StageTranslating,
		Loading:   true,
		Articles:  []domain.Article{},
		UpdatedAt: time.Now().UTC(),
	})
	c.deps.Metrics.RecordSearchStarted()
	c.emit(ctx, logger, domain.EventTypeSearchStarted, token, domain.SearchStartedPayload{Query: query, Count: count})
	logger.Info().Int("count", count).Msg("search started")

	translated, err := c.deps.Assistant.TranslateQuery(ctx, query)
	if !c.isCurrent(token) {
		return c.superseded(logger)
	}
	if err != nil {
		return c.fail(ctx, logger, token, query, "translate", start, err)
	}

	c.apply(token, func(s *State) {
		s.TranslatedQuery = translated
		s.Stage = StageSearching
		s.Phase = pubmed.PhaseIdle
	})

	searchCtx := pubmed.WithPhaseObserver(ctx, func(p pubmed.Phase) {
		c.apply(token, func(s *State) { s.Phase = p })
	})
	result, err := c.deps.Source.Search(searchCtx, papersources.SearchParams{
		Query:      translated,
		MaxResults: count,
		APIKey:     req.AccessKey,
	})
	if !c.isCurrent(token) {
		return c.superseded(logger)
	}
	if err != nil {
		return c.fail(ctx, logger, token, query, "search", start, err)
	}

	articles := result.Articles
	if articles == nil {
		articles = []domain.Article{}
	}
	logger.Info().Int("articles", len(articles)).Int("total", result.TotalResults).Msg("search results received")

	if len(articles) == 0 {
		final := c.apply(token, func(s *State) {
			s.Stage = StageDone
			s.Loading = false
			s.Articles = articles
			s.TotalResults = result.TotalResults
		})
		c.complete(ctx, logger, token, query, translated, articles, start)
		return final, nil
	}

	c.apply(token, func(s *State) {
		s.Stage = StageResults
		s.Articles = articles
		s.TotalResults = result.TotalResults
	})

	enriched, translatedCount := c.translateTitles(ctx, logger, articles)
	if !c.isCurrent(token) {
		return c.superseded(logger)
	}

	final := c.apply(token, func(s *State) {
		s.Stage = StageDone
		s.Loading = false
		s.Articles = enriched
	})
	c.emit(ctx, logger, domain.EventTypeTitlesTranslated, token, domain.TitlesTranslatedPayload{
		Total:      len(enriched),
		Translated: translatedCount,
	})
	c.complete(ctx, logger, token, query, translated, enriched, start)
	return final, nil
}

// Explain returns a layperson summary of article.
func (c *Coordinator) Explain(ctx context.Context, article domain.Article) (string, error) {
	return c.deps.Assistant.Summarize(ctx, article)
}

// ExplainByID fetches an article from PubMed and summarizes it.
func (c *Coordinator) ExplainByID(ctx context.Context, id string) (domain.Article, string, error) {
	logger := observability.WithArticleContext(c.deps.Logger, id)
	article, err := c.deps.Source.GetByID(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Msg("article lookup failed")
		return domain.Article{}, "", err
	}
	summary, err := c.deps.Assistant.Summarize(ctx, *article)
	if err != nil {
		return *article, "", err
	}
	logger.Debug().Bool("has_abstract", article.HasAbstract()).Msg("article explained")
	return *article, summary, nil
}

// translateTitles builds the enriched article list. Failures leave the
// articles without translated titles.
func (c *Coordinator) translateTitles(ctx context.Context, logger zerolog.Logger, articles []domain.Article) ([]domain.Article, int) {
	titles := domain.Titles(articles)
	translated, err := c.deps.Assistant.TranslateTitles(ctx, titles)
	if err != nil || len(translated) != len(articles) {
		logger.Warn().Err(err).Msg("title translation skipped")
		return articles, 0
	}

	enriched := make([]domain.Article, len(articles))
	count := 0
	for i, a := range articles {
		enriched[i] = a.WithTranslatedTitle(translated[i])
		if enriched[i].TranslatedTitle != "" {
			count++
		}
	}
	return enriched, count
}

func (c *Coordinator) clampCount(n int) int {
	if n <= 0 {
		return c.deps.DefaultCount
	}
	if n > c.deps.MaxCount {
		return c.deps.MaxCount
	}
	return n
}

// begin installs token as the current search and publishes its first snapshot.
func (c *Coordinator) begin(token string, s *State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.state.Load().Loading {
		c.deps.Metrics.RecordSearchSuperseded()
	}
	c.token = token
	c.publishLocked(s)
}

func (c *Coordinator) isCurrent(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token == token
}

// apply publishes a copy of the current state modified by fn, provided token
// still owns the state. It returns the resulting snapshot.
func (c *Coordinator) apply(token string, fn func(*State)) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != token {
		return *c.state.Load()
	}
	next := *c.state.Load()
	fn(&next)
	next.UpdatedAt = time.Now().UTC()
	c.publishLocked(&next)
	return next
}

func (c *Coordinator) publishLocked(s *State) {
	c.state.Store(s)
	for _, fn := range c.orderedObservers() {
		fn(*s)
	}
}

func (c *Coordinator) orderedObservers() []func(State) {
	fns := make([]func(State), 0, len(c.observers))
	for id := 0; id < c.nextObs; id++ {
		if fn, ok := c.observers[id]; ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

func (c *Coordinator) superseded(logger zerolog.Logger) (State, error) {
	logger.Info().Msg("search superseded, discarding late result")
	return c.Current(), ErrSuperseded
}

func (c *Coordinator) fail(ctx context.Context, logger zerolog.Logger, token, query, stage string, start time.Time, err error) (State, error) {
	final := c.apply(token, func(s *State) {
		s.Stage = StageFailed
		s.Loading = false
		s.Articles = []domain.Article{}
		s.Error = err.Error()
	})

	c.deps.Metrics.RecordSearchFailed(stage, time.Since(start).Seconds())
	logger.Error().Err(err).Str("stage", stage).Msg("search failed")
	c.emit(ctx, logger, domain.EventTypeSearchFailed, token, domain.SearchFailedPayload{
		Query: query,
		Stage: stage,
		Error: err.Error(),
	})
	return final, fmt.Errorf("%s: %w", stage, err)
}

func (c *Coordinator) complete(ctx context.Context, logger zerolog.Logger, token, query, translated string, articles []domain.Article, start time.Time) {
	duration := time.Since(start)
	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}

	c.deps.Metrics.RecordSearchCompleted(len(articles), duration.Seconds())
	logger.Info().Int("articles", len(articles)).Dur("duration", duration).Msg("search completed")
	c.emit(ctx, logger, domain.EventTypeSearchCompleted, token, domain.SearchCompletedPayload{
		Query:           query,
		TranslatedQuery: translated,
		ArticleIDs:      ids,
		Provider:        c.deps.Provider,
		DurationMs:      duration.Milliseconds(),
	})
}

// emit publishes an event. Failures are logged and otherwise ignored. The
// publish survives cancellation of ctx but is bounded by PublishTimeout.
func (c *Coordinator) emit(ctx context.Context, logger zerolog.Logger, eventType, searchID string, payload any) {
	event, err := domain.NewEvent(eventType, searchID, payload)
	if err != nil {
		logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.deps.PublishTimeout)
	defer cancel()
	if err := c.deps.Publisher.Publish(pubCtx, event); err != nil {
		logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}
