package httpserver

import (
	"time"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/llm"
	"github.com/helixir/pubmed-explorer/internal/pipeline"
)

// Response types for JSON serialization.

type articleResponse struct {
	PMID            string   `json:"pmid"`
	Title           string   `json:"title"`
	TranslatedTitle string   `json:"translated_title,omitempty"`
	Authors         []string `json:"authors"`
	Journal         string   `json:"journal,omitempty"`
	Year            string   `json:"year,omitempty"`
	Abstract        string   `json:"abstract,omitempty"`
	URL             string   `json:"url"`
}

type searchResponse struct {
	SearchID        string            `json:"search_id"`
	Query           string            `json:"query"`
	TranslatedQuery string            `json:"translated_query"`
	Stage           string            `json:"stage"`
	Phase           string            `json:"phase,omitempty"`
	Loading         bool              `json:"loading"`
	TotalResults    int               `json:"total_results"`
	Articles        []articleResponse `json:"articles"`
	Error           string            `json:"error,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type translateTitlesResponse struct {
	Titles []string `json:"titles"`
}

type summaryResponse struct {
	PMID    string `json:"pmid,omitempty"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type optimizeResponse struct {
	Query     string `json:"query"`
	Optimized string `json:"optimized"`
}

type providerResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	Available bool   `json:"available"`
	Preferred bool   `json:"preferred"`
}

type providersResponse struct {
	Policy     string             `json:"policy"`
	Preferred  string             `json:"preferred"`
	Candidates []string           `json:"candidates"`
	Providers  []providerResponse `json:"providers"`
}

type readinessResponse struct {
	Status     string          `json:"status"`
	Policy     string          `json:"policy"`
	Candidates []string        `json:"candidates"`
	Providers  map[string]bool `json:"providers"`
}

// Converter functions

func providerIDsToStrings(ids []domain.ProviderID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func domainArticleToResponse(a domain.Article) articleResponse {
	authors := a.Authors
	if authors == nil {
		authors = []string{}
	}
	return articleResponse{
		PMID:            a.ID,
		Title:           a.Title,
		TranslatedTitle: a.TranslatedTitle,
		Authors:         authors,
		Journal:         a.Venue,
		Year:            a.Year,
		Abstract:        a.Abstract,
		URL:             a.URL,
	}
}

func stateToResponse(s pipeline.State) searchResponse {
	articles := make([]articleResponse, len(s.Articles))
	for i, a := range s.Articles {
		articles[i] = domainArticleToResponse(a)
	}
	return searchResponse{
		SearchID:        s.SearchID,
		Query:           s.Query,
		TranslatedQuery: s.TranslatedQuery,
		Stage:           string(s.Stage),
		Phase:           string(s.Phase),
		Loading:         s.Loading,
		TotalResults:    s.TotalResults,
		Articles:        articles,
		Error:           s.Error,
		UpdatedAt:       s.UpdatedAt,
	}
}

func providerStatusToResponse(p llm.ProviderStatus) providerResponse {
	return providerResponse{
		ID:        string(p.ID),
		Name:      p.Name,
		Model:     p.Model,
		Available: p.Available,
		Preferred: p.Preferred,
	}
}
