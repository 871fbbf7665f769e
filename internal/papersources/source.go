// Package papersources provides the shared plumbing for bibliographic search
// backends: the source contract, a rate-limited HTTP client, and search
// parameter types. The PubMed implementation lives in the pubmed subpackage.
//
// Example usage:
//
//	source := pubmed.New(cfg, logger, metrics)
//	result, err := source.Search(ctx, papersources.SearchParams{
//		Query:      "diabetes mellitus type 2",
//		MaxResults: 10,
//	})
package papersources

import (
	"context"
	"time"

	"github.com/helixir/pubmed-explorer/internal/domain"
)

// SearchParams defines the parameters of a bibliographic search.
type SearchParams struct {
	// Query is the backend query string (required).
	Query string

	// MaxResults limits the number of articles returned.
	// A value of 0 uses the source's default limit.
	MaxResults int

	// APIKey overrides the configured access key for this call only.
	APIKey string
}

// SearchResult contains the results from a search.
type SearchResult struct {
	// Articles holds the parsed records in backend order. It is empty, not
	// an error, when nothing matched.
	Articles []domain.Article

	// IDs are the identifiers returned by the id-search phase.
	IDs []string

	// TotalResults is the backend's total match count for the query.
	TotalResults int

	// Skipped counts records the parser dropped as malformed.
	Skipped int

	// SearchDuration is the time taken by every phase together.
	SearchDuration time.Duration
}

// ArticleSource is a bibliographic search backend.
type ArticleSource interface {
	// Search runs the id-search, detail-fetch, and parse phases. A failure
	// in either network phase returns an error matching
	// domain.ErrSearchFailed and no articles.
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// GetByID retrieves a single article.
	// Returns an error matching domain.ErrNotFound if the article does not exist.
	GetByID(ctx context.Context, id string) (*domain.Article, error)

	// Name returns a human-readable name for logging and metrics.
	Name() string
}
