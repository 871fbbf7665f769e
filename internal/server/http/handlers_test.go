package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-explorer/internal/assistant"
	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/events"
	"github.com/helixir/pubmed-explorer/internal/llm"
	"github.com/helixir/pubmed-explorer/internal/papersources"
	"github.com/helixir/pubmed-explorer/internal/pipeline"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockAssistant implements Assistant for HTTP handler tests.
type mockAssistant struct {
	translateQueryFn  func(ctx context.Context, query string) (string, error)
	translateTitlesFn func(ctx context.Context, titles []string) ([]string, error)
	summarizeFn       func(ctx context.Context, article domain.Article) (string, error)
	optimizeFn        func(ctx context.Context, query string) (string, error)
	providersFn       func(ctx context.Context) (assistant.ProvidersInfo, error)
}

func (m *mockAssistant) TranslateQuery(ctx context.Context, query string) (string, error) {
	if m.translateQueryFn != nil {
		return m.translateQueryFn(ctx, query)
	}
	return "diabetes", nil
}

func (m *mockAssistant) TranslateTitles(ctx context.Context, titles []string) ([]string, error) {
	if m.translateTitlesFn != nil {
		return m.translateTitlesFn(ctx, titles)
	}
	out := make([]string, len(titles))
	for i, t := range titles {
		out[i] = "RU " + t
	}
	return out, nil
}

func (m *mockAssistant) Summarize(ctx context.Context, article domain.Article) (string, error) {
	if m.summarizeFn != nil {
		return m.summarizeFn(ctx, article)
	}
	if !article.HasAbstract() {
		return llm.NoAbstractMessage, nil
	}
	return "plain summary", nil
}

func (m *mockAssistant) OptimizeQuery(ctx context.Context, query string) (string, error) {
	if m.optimizeFn != nil {
		return m.optimizeFn(ctx, query)
	}
	return "optimized terms", nil
}

func (m *mockAssistant) Providers(ctx context.Context) (assistant.ProvidersInfo, error) {
	if m.providersFn != nil {
		return m.providersFn(ctx)
	}
	return assistant.ProvidersInfo{
		Policy:     llm.PolicyManual,
		Preferred:  domain.ProviderGemini,
		Candidates: []domain.ProviderID{domain.ProviderGemini},
		Providers: []llm.ProviderStatus{
			{ID: domain.ProviderGemini, Name: "Gemini", Model: "gemini-2.5-flash", Available: true, Preferred: true},
			{ID: domain.ProviderMistral, Name: "Mistral", Model: "mistral-tiny"},
			{ID: domain.ProviderOllama, Name: "Ollama", Model: "gpt-oss:20b-cloud"},
		},
	}, nil
}

// mockSource implements papersources.ArticleSource for HTTP handler tests.
type mockSource struct {
	searchFn  func(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error)
	getByIDFn func(ctx context.Context, id string) (*domain.Article, error)
}

func (m *mockSource) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, params)
	}
	articles := testArticles()
	return &papersources.SearchResult{Articles: articles, TotalResults: len(articles)}, nil
}

func (m *mockSource) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	for _, a := range testArticles() {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, domain.NewNotFoundError("article", id)
}

func (m *mockSource) Name() string { return "mock" }

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func testArticles() []domain.Article {
	return []domain.Article{
		{ID: "1", Title: "Diabetes outcomes", Authors: []string{"Smith J"}, Venue: "Diabetes Care", Year: "2023", Abstract: "Background.", URL: domain.ArticleURL("1")},
		{ID: "2", Title: "Metformin in older adults", Year: "2022", URL: domain.ArticleURL("2")},
	}
}

// newTestHTTPServer creates a Server configured for testing with mocked dependencies.
func newTestHTTPServer(ai Assistant, source papersources.ArticleSource, publisher events.Publisher) *Server {
	return NewServer(Config{Address: ":0"}, Dependencies{
		Source:    source,
		Assistant: ai,
		Publisher: publisher,
	}, zerolog.Nop())
}

// serveHTTP dispatches a request through the test server's router and returns the recorder.
func serveHTTP(s *Server, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, r)
	return rr
}

func postJSON(t *testing.T, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("failed to encode request body: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, path, &buf)
}

// decodeJSON decodes a JSON response body into the given target.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeJSON(t, rr, &body)
	return body["error"]
}

// ---------------------------------------------------------------------------
// Tests: search
// ---------------------------------------------------------------------------

func TestSearch_Success(t *testing.T) {
	var captured papersources.SearchParams
	source := &mockSource{
		searchFn: func(_ context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
			captured = params
			return &papersources.SearchResult{Articles: testArticles(), TotalResults: 42}, nil
		},
	}
	publisher := &events.MemoryPublisher{}
	srv := newTestHTTPServer(&mockAssistant{}, source, publisher)

	rr := serveHTTP(srv, postJSON(t, "/api/v1/search", map[string]interface{}{
		"query": "диабет", "count": 5, "api_key": "ncbi-key",
	}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp searchResponse
	decodeJSON(t, rr, &resp)

	if resp.Query != "диабет" || resp.TranslatedQuery != "diabetes" {
		t.Errorf("unexpected query fields: %q / %q", resp.Query, resp.TranslatedQuery)
	}
	if resp.Stage != "done" || resp.Loading {
		t.Errorf("expected done stage and not loading, got %q loading=%v", resp.Stage, resp.Loading)
	}
	if resp.TotalResults != 42 {
		t.Errorf("expected total_results 42, got %d", resp.TotalResults)
	}
	if len(resp.Articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(resp.Articles))
	}
	if resp.Articles[0].TranslatedTitle != "RU Diabetes outcomes" {
		t.Errorf("unexpected translated title %q", resp.Articles[0].TranslatedTitle)
	}
	if resp.Articles[1].URL != "https://pubmed.ncbi.nlm.nih.gov/2/" {
		t.Errorf("unexpected url %q", resp.Articles[1].URL)
	}
	if captured.Query != "diabetes" || captured.MaxResults != 5 || captured.APIKey != "ncbi-key" {
		t.Errorf("unexpected search params: %+v", captured)
	}
	if got := len(publisher.Types()); got != 3 {
		t.Errorf("expected 3 events, got %d", got)
	}
}

func TestSearch_Validation(t *testing.T) {
	srv := newTestHTTPServer(&mockAssistant{}, &mockSource{}, nil)

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "invalid json", body: `{"query":`, wantMsg: "invalid JSON request body"},
		{name: "missing query", body: `{"count":3}`, wantMsg: "query is required"},
		{name: "negative count", body: `{"query":"x","count":-1}`, wantMsg: "count must be at least 0"},
		{name: "blank query", body: `{"query":"   "}`, wantMsg: "validation error: query: must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(tt.body))
			rr := serveHTTP(srv, req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if msg := errorMessage(t, rr); msg != tt.wantMsg {
				t.Errorf("expected error %q, got %q", tt.wantMsg, msg)
			}
		})
	}
}

func TestSearch_ProviderUnavailable(t *testing.T) {
	ai := &mockAssistant{
		translateQueryFn: func(context.Context, string) (string, error) {
			return "", domain.NewProviderUnavailableError(domain.ProviderMistral, "manual")
		},
	}
	srv := newTestHTTPServer(ai, &mockSource{}, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/v1/search", map[string]string{"query": "диабет"}))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rr.Code, rr.Body.String())
	}
	if msg := errorMessage(t, rr); !strings.Contains(msg, "mistral") {
		t.Errorf("expected provider in message, got %q", msg)
	}
}

func TestSearch_PubMedFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "upstream error",
			err:      domain.NewExternalAPIError("PubMed", 500, "boom", nil),
			wantCode: http.StatusBadGateway,
			wantMsg:  "PubMed API error (status 500): boom",
		},
		{
			name:     "rate limited",
			err:      domain.NewExternalAPIError("PubMed", 429, "API rate limit exceeded", domain.ErrRateLimited),
			wantCode: http.StatusTooManyRequests,
			wantMsg:  "API rate limit exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &mockSource{
				searchFn: func(context.Context, papersources.SearchParams) (*papersources.SearchResult, error) {
					return nil, domain.NewSearchError("esearch", tt.err)
				},
			}
			srv := newTestHTTPServer(&mockAssistant{}, source, nil)

			rr := serveHTTP(srv, postJSON(t, "/api/v1/search", map[string]string{"query": "диабет"}))
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rr.Code, rr.Body.String())
			}
			var resp searchResponse
			decodeJSON(t, rr, &resp)
			if resp.Stage != "failed" || resp.Loading {
				t.Errorf("expected failed, settled state, got %+v", resp)
			}
			if !strings.Contains(resp.Error, tt.wantMsg) {
				t.Errorf("expected upstream message %q in %q", tt.wantMsg, resp.Error)
			}
			if resp.Query != "диабет" {
				t.Errorf("expected query echoed, got %q", resp.Query)
			}
		})
	}
}

func TestSearch_EmptyResult(t *testing.T) {
	source := &mockSource{
		searchFn: func(context.Context, papersources.SearchParams) (*papersources.SearchResult, error) {
			return &papersources.SearchResult{Articles: []domain.Article{}}, nil
		},
	}
	srv := newTestHTTPServer(&mockAssistant{}, source, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/v1/search", map[string]string{"query": "zzzqqq"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"articles":[]`) {
		t.Errorf("expected empty articles array, got %s", rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Tests: translateTitles
// ---------------------------------------------------------------------------

func TestTranslateTitles_Success(t *testing.T) {
	srv := newTestHTTPServer(&mockAssistant{}, &mockSource{}, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/v1/titles/translate", map[string][]string{"titles": {"A", "B", ""}}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp translateTitlesResponse
	decodeJSON(t, rr, &resp)
	if len(resp.Titles) != 3 || resp.Titles[0] != "RU A" {
		t.Errorf("unexpected titles %v", resp.Titles)
	}
}

func TestTranslateTitles_Empty(t *testing.T) {
	srv := newTestHTTPServer(&mockAssistant{}, &mockSource{}, nil)

	rr := serveHTTP(srv, httptest.NewRequest(http.MethodPost, "/api/v1/titles/translate", strings.NewReader(`{"titles":[]}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"titles":[]`) {
		t.Errorf("expected empty titles array, got %s", rr.Body.String())
	}
}

func TestTranslateTitles_TooMany(t *testing.T) {
	srv := newTestHTTPServer(&mockAssistant{}, &mockSource{}, nil)

	titles := make([]string, 201)
	rr := serveHTTP(srv, postJSON(t, "/api/v1/titles/translate", map[string][]string{"titles": titles}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// Tests: summarize
// ---------------------------------------------------------------------------

func TestSummarize_ByContent(t *testing.T) {
	var got domain.Article
	ai := &mockAssistant{
		summarizeFn: func(_ context.Context, a domain.Article) (string, error) {
			got = a
			return "explained", nil
		},
	}
	srv := newTestHTTPServer(ai, &mockSource{}, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/v1/summaries", map[string]string{"title": "T", "abstract": "A"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp summaryResponse
	decodeJSON(t, rr, &resp)
	if resp.Summary != "explained" || resp.Title != "T" {
		t.Errorf("unexpected response %+v", resp)
	}
	if got.Title != "T" || got.Abstract != "A" {
		t.Errorf("assistant received %+v", got)
	}
}

func TestSummarize_NoAbstract(t *testing.T) {
	srv := newTestHTTPServer(&mockAssistant{}, &mockSource{}, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/v1/summaries", map[string]string{"title": "T"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp summaryResponse
	decodeJSON(t, rr, &resp)
	if resp.Summary != llm.NoAbstractMessage {
		t.Errorf("expected no-abstract message, got %q", resp.Summary)
	}
}

func TestSummarize_ByPMID(t *testing.T) {
	srv := newTestHTTPServer(&mockAssistant{}, &mockSource{}, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/v1/summaries", map[string]string{"pmid": "1"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp summaryResponse
	decodeJSON(t, rr, &resp)
	if resp.PMID != "1" || resp.Title != "Diabetes outcomes" || resp.Summary != "plain summary" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSummarize_UnknownPMID(t *testing.T) {
	srv := newTestHTTPServer(&mockAssistant{}, &mockSource{}, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/v1/summaries", map[string]string{"pmid": "999"}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSummarize_Validation(t *testing.T) {
	srv := newTestHTTPServer(&mockAssistant{}, &mockSource{}, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/v1/summaries", map[string]string{"abstract": "A"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != "title is required when pmid is absent" {
		t.Errorf("unexpected message %q", msg)
	}

	rr = serveHTTP(srv, postJSON(t, "/api/v1/summaries", map[string]string{"pmid": "abc"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric pmid, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// Tests: optimizeQuery and listProviders
// ---------------------------------------------------------------------------

func TestOptimizeQuery(t *testing.T) {
	var got string
	ai := &mockAssistant{
		optimizeFn: func(_ context.Context, q string) (string, error) {
			got = q
			return "heart failure AND elderly", nil
		},
	}
	srv := newTestHTTPServer(ai, &mockSource{}, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/v1/queries/optimize", map[string]string{"query": "  treatment of heart failure in elderly patients  "}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp optimizeResponse
	decodeJSON(t, rr, &resp)
	if resp.Optimized != "heart failure AND elderly" {
		t.Errorf("unexpected optimized query %q", resp.Optimized)
	}
	if got != "treatment of heart failure in elderly patients" {
		t.Errorf("expected trimmed query, got %q", got)
	}
}

func TestOptimizeQuery_ProviderUnavailable(t *testing.T) {
	ai := &mockAssistant{
		optimizeFn: func(context.Context, string) (string, error) {
			return "", domain.NewProviderUnavailableError(domain.ProviderOllama, "manual")
		},
	}
	srv := newTestHTTPServer(ai, &mockSource{}, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/v1/queries/optimize", map[string]string{"query": "q"}))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestListProviders(t *testing.T) {
	srv := newTestHTTPServer(&mockAssistant{}, &mockSource{}, nil)

	rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp providersResponse
	decodeJSON(t, rr, &resp)
	if resp.Policy != "manual" || resp.Preferred != "gemini" {
		t.Errorf("unexpected policy fields %+v", resp)
	}
	if len(resp.Providers) != 3 || !resp.Providers[0].Available || resp.Providers[1].Available {
		t.Errorf("unexpected providers %+v", resp.Providers)
	}
}

// ---------------------------------------------------------------------------
// Tests: health and readiness
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	srv := newTestHTTPServer(&mockAssistant{}, &mockSource{}, nil)

	rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestReadyz(t *testing.T) {
	statuses := func(policy llm.Policy, candidates []domain.ProviderID, available ...domain.ProviderID) func(context.Context) (assistant.ProvidersInfo, error) {
		return func(context.Context) (assistant.ProvidersInfo, error) {
			info := assistant.ProvidersInfo{Policy: policy, Preferred: candidates[0], Candidates: candidates}
			for _, id := range domain.AllProviders() {
				st := llm.ProviderStatus{ID: id, Preferred: id == candidates[0]}
				for _, a := range available {
					if a == id {
						st.Available = true
					}
				}
				info.Providers = append(info.Providers, st)
			}
			return info, nil
		}
	}
	ids := func(ids ...domain.ProviderID) []domain.ProviderID { return ids }

	tests := []struct {
		name     string
		fn       func(context.Context) (assistant.ProvidersInfo, error)
		wantCode int
	}{
		{name: "manual preferred available", fn: statuses(llm.PolicyManual, ids(domain.ProviderOllama), domain.ProviderOllama), wantCode: http.StatusOK},
		{name: "manual preferred missing", fn: statuses(llm.PolicyManual, ids(domain.ProviderMistral), domain.ProviderGemini), wantCode: http.StatusServiceUnavailable},
		{name: "fixed uses default", fn: statuses(llm.PolicyFixed, ids(domain.ProviderGemini), domain.ProviderGemini), wantCode: http.StatusOK},
		{name: "fallback second candidate", fn: statuses(llm.PolicyFallback, ids(domain.ProviderGemini, domain.ProviderMistral), domain.ProviderMistral), wantCode: http.StatusOK},
		{name: "fallback only third provider available", fn: statuses(llm.PolicyFallback, ids(domain.ProviderGemini, domain.ProviderMistral), domain.ProviderOllama), wantCode: http.StatusServiceUnavailable},
		{name: "nothing available", fn: statuses(llm.PolicyFallback, ids(domain.ProviderGemini, domain.ProviderMistral)), wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestHTTPServer(&mockAssistant{providersFn: tt.fn}, &mockSource{}, nil)
			rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rr.Code, rr.Body.String())
			}
			var resp readinessResponse
			decodeJSON(t, rr, &resp)
			if len(resp.Providers) != 3 {
				t.Errorf("expected 3 providers listed, got %v", resp.Providers)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Tests: writeDomainError
// ---------------------------------------------------------------------------

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "not found", err: domain.NewNotFoundError("article", "1"), wantCode: http.StatusNotFound},
		{name: "validation", err: domain.NewValidationError("query", "bad"), wantCode: http.StatusBadRequest},
		{name: "provider unavailable", err: domain.NewProviderUnavailableError(domain.ProviderGemini, "manual"), wantCode: http.StatusServiceUnavailable},
		{name: "search failed", err: domain.NewSearchError("efetch", context.DeadlineExceeded), wantCode: http.StatusBadGateway},
		{name: "rate limited", err: domain.ErrRateLimited, wantCode: http.StatusTooManyRequests},
		{name: "rate limited search", err: domain.NewSearchError("esearch", domain.NewExternalAPIError("PubMed", 429, "slow down", domain.ErrRateLimited)), wantCode: http.StatusTooManyRequests},
		{name: "superseded", err: pipeline.ErrSuperseded, wantCode: http.StatusConflict},
		{name: "cancelled", err: context.Canceled, wantCode: http.StatusConflict},
		{name: "deadline", err: context.DeadlineExceeded, wantCode: http.StatusGatewayTimeout},
		{name: "unknown", err: bytes.ErrTooLarge, wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeDomainError(rr, tt.err)
			if rr.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rr.Code)
			}
		})
	}
}
