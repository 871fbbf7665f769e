package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/observability"
	"github.com/helixir/pubmed-explorer/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key.
	DefaultRateLimit = papersources.AnonymousRate

	// DefaultKeyedRateLimit applies to requests that carry an API key.
	DefaultKeyedRateLimit = papersources.KeyedRate

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultCount is the number of articles requested when the caller leaves it unset.
	DefaultCount = 10

	// MaxResultsLimit is the maximum retmax accepted by ESearch.
	MaxResultsLimit = 10000

	sourceName = "PubMed"

	endpointESearch = "esearch"
	endpointEFetch  = "efetch"

	// maxErrorBody bounds how much of an error response ends up in an error message.
	maxErrorBody = 512
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key. A key passed in SearchParams wins over it.
	APIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second without an API key.
	RateLimit float64

	// KeyedRateLimit is the maximum requests per second with an API key.
	KeyedRateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the number of retries for transient failures. Zero by default.
	MaxRetries int

	// DefaultCount is used when SearchParams.MaxResults is zero.
	DefaultCount int

	// MaxCount caps SearchParams.MaxResults.
	MaxCount int
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.KeyedRateLimit == 0 {
		c.KeyedRateLimit = max(DefaultKeyedRateLimit, c.RateLimit)
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.DefaultCount <= 0 {
		c.DefaultCount = DefaultCount
	}
	if c.MaxCount <= 0 || c.MaxCount > MaxResultsLimit {
		c.MaxCount = MaxResultsLimit
	}
}

// Client implements papersources.ArticleSource for PubMed.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// Compile-time check that Client implements ArticleSource.
var _ papersources.ArticleSource = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:        cfg.Timeout,
		RateLimit:      cfg.RateLimit,
		KeyedRateLimit: cfg.KeyedRateLimit,
		BurstSize:      cfg.BurstSize,
		MaxRetries:     cfg.MaxRetries,
		UserAgent:      "Helixir-PubMedExplorer/1.0 (mailto:support@helixir.io)",
	})
	return NewWithHTTPClient(cfg, httpClient, logger, metrics)
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "pubmed").Logger(),
		metrics:    metrics,
	}
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// Search queries PubMed in two phases: esearch.fcgi resolves the query to
// PMIDs, then a single efetch.fcgi call retrieves every record, which is
// parsed tolerantly.
//
// Zero matching PMIDs is an empty result, not an error. A failure in either
// network phase returns an error matching domain.ErrSearchFailed and no
// articles.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, domain.NewValidationError("query", "must not be empty")
	}

	start := time.Now()
	count := c.effectiveCount(params.MaxResults)
	apiKey := c.apiKey(params.APIKey)
	log := observability.FromContext(ctx, c.logger)

	notifyPhase(ctx, PhaseIDSearching)
	ids, total, err := c.esearch(ctx, query, count, apiKey)
	if err != nil {
		notifyPhase(ctx, PhaseFailed)
		log.Warn().Err(err).Str("term", query).Msg("pubmed id search failed")
		return nil, domain.NewSearchError(endpointESearch, err)
	}

	if len(ids) == 0 {
		notifyPhase(ctx, PhaseDone)
		log.Debug().Str("term", query).Msg("pubmed search matched no articles")
		return &papersources.SearchResult{
			Articles:       []domain.Article{},
			IDs:            []string{},
			TotalResults:   total,
			SearchDuration: time.Since(start),
		}, nil
	}

	notifyPhase(ctx, PhaseDetailFetching)
	body, err := c.efetch(ctx, ids, apiKey)
	if err != nil {
		notifyPhase(ctx, PhaseFailed)
		log.Warn().Err(err).Int("ids", len(ids)).Msg("pubmed detail fetch failed")
		return nil, domain.NewSearchError(endpointEFetch, err)
	}

	notifyPhase(ctx, PhaseParsing)
	parsed := c.parse(log, body)
	notifyPhase(ctx, PhaseDone)

	articles := parsed.Articles
	if articles == nil {
		articles = []domain.Article{}
	}

	log.Debug().
		Int("ids", len(ids)).
		Int("articles", len(articles)).
		Int("total", total).
		Dur("duration", time.Since(start)).
		Msg("pubmed search completed")

	return &papersources.SearchResult{
		Articles:       articles,
		IDs:            ids,
		TotalResults:   total,
		Skipped:        parsed.Skipped,
		SearchDuration: time.Since(start),
	}, nil
}

// GetByID retrieves a single article by its PMID.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("id", "must not be empty")
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return nil, domain.NewValidationError("id", "must be a numeric PMID")
	}

	body, err := c.efetch(ctx, []string{id}, c.config.APIKey)
	if err != nil {
		return nil, domain.NewSearchError(endpointEFetch, err)
	}

	parsed := c.parse(observability.FromContext(ctx, c.logger), body)
	for _, a := range parsed.Articles {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, domain.NewNotFoundError("article", id)
}

func (c *Client) parse(log zerolog.Logger, body []byte) parseResult {
	parsed := parseArticleSet(body)
	if parsed.Err != nil {
		log.Warn().Err(parsed.Err).
			Int("parsed", len(parsed.Articles)).
			Msg("pubmed efetch document ended abnormally, keeping parsed records")
	}
	if parsed.Skipped > 0 {
		log.Warn().Int("skipped", parsed.Skipped).Msg("skipped malformed pubmed records")
		c.metrics.RecordPubMedRecordsSkipped(parsed.Skipped)
	}
	return parsed
}

// esearch resolves a query to PMIDs.
func (c *Client) esearch(ctx context.Context, term string, count int, apiKey string) ([]string, int, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("term", term)
	q.Set("retmax", strconv.Itoa(count))
	q.Set("retmode", "json")
	if apiKey != "" {
		q.Set("api_key", apiKey)
	}

	body, err := c.get(ctx, endpointESearch, q)
	if err != nil {
		return nil, 0, err
	}

	var resp eSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, domain.NewExternalAPIError(sourceName, http.StatusOK, "malformed esearch response", err)
	}
	if resp.Result.Error != "" {
		return nil, 0, domain.NewExternalAPIError(sourceName, http.StatusOK, resp.Result.Error, nil)
	}

	ids := make([]string, 0, len(resp.Result.IDList))
	for _, id := range resp.Result.IDList {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	total, err := strconv.Atoi(resp.Result.Count)
	if err != nil {
		total = len(ids)
	}
	if errs := resp.Result.ErrorList; errs != nil && len(errs.PhrasesNotFound) > 0 {
		c.logger.Debug().Strs("phrases", errs.PhrasesNotFound).Msg("pubmed phrases not found")
	}
	return ids, total, nil
}

// efetch retrieves the XML records for the given PMIDs in one request.
func (c *Client) efetch(ctx context.Context, pmids []string, apiKey string) ([]byte, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	if apiKey != "" {
		q.Set("api_key", apiKey)
	}
	return c.get(ctx, endpointEFetch, q)
}

// get calls an E-utilities endpoint and treats any non-200 status as failure.
func (c *Client) get(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	u := fmt.Sprintf("%s/%s.fcgi?%s", c.config.BaseURL, endpoint, q.Encode())

	start := time.Now()
	body, status, err := c.httpClient.Get(ctx, u)
	c.metrics.RecordPubMedRequest(endpoint, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordPubMedRequestFailed(endpoint, "network")
		return nil, err
	}
	if status != http.StatusOK {
		c.metrics.RecordPubMedRequestFailed(endpoint, fmt.Sprintf("http_%d", status))
		var cause error
		if status == http.StatusTooManyRequests {
			cause = domain.ErrRateLimited
		}
		return nil, domain.NewExternalAPIError(sourceName, status, truncate(string(body), maxErrorBody), cause)
	}
	return body, nil
}

func (c *Client) effectiveCount(requested int) int {
	switch {
	case requested <= 0:
		return c.config.DefaultCount
	case requested > c.config.MaxCount:
		return c.config.MaxCount
	default:
		return requested
	}
}

func (c *Client) apiKey(override string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}
	return c.config.APIKey
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
