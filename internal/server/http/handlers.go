package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/pipeline"
)

const maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies

// validate checks request bodies. Field names in messages use JSON tags.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type searchRequest struct {
	Query  string `json:"query" validate:"required,max=2000"`
	Count  int    `json:"count" validate:"gte=0"`
	APIKey string `json:"api_key" validate:"omitempty,max=128"`
}

type translateTitlesRequest struct {
	Titles []string `json:"titles" validate:"required,max=200"`
}

type summaryRequest struct {
	PMID     string `json:"pmid" validate:"omitempty,numeric,max=20"`
	Title    string `json:"title" validate:"required_without=PMID,max=2000"`
	Abstract string `json:"abstract" validate:"max=100000"`
}

type optimizeRequest struct {
	Query string `json:"query" validate:"required,max=10000"`
}

// search handles POST /api/v1/search. It runs the whole pipeline and
// returns the final snapshot.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	final, err := s.coordinator().Search(r.Context(), pipeline.Request{
		Query:     req.Query,
		Count:     req.Count,
		AccessKey: req.APIKey,
	})
	if err != nil {
		if errors.Is(err, domain.ErrSearchFailed) {
			writeJSON(w, searchFailureStatus(err), stateToResponse(final))
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(final))
}

// searchFailureStatus maps a failed PubMed phase to a status code. The failed
// state carries the upstream message, so it is returned as the body.
func searchFailureStatus(err error) int {
	if errors.Is(err, domain.ErrRateLimited) {
		return http.StatusTooManyRequests
	}
	return http.StatusBadGateway
}

// translateTitles handles POST /api/v1/titles/translate.
func (s *Server) translateTitles(w http.ResponseWriter, r *http.Request) {
	var req translateTitlesRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	translated, err := s.deps.Assistant.TranslateTitles(r.Context(), req.Titles)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if translated == nil {
		translated = []string{}
	}
	writeJSON(w, http.StatusOK, translateTitlesResponse{Titles: translated})
}

// summarize handles POST /api/v1/summaries. A pmid fetches the article from
// PubMed first; otherwise title and abstract are summarized as given.
func (s *Server) summarize(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	c := s.coordinator()
	if req.PMID != "" {
		article, summary, err := c.ExplainByID(r.Context(), req.PMID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summaryResponse{PMID: article.ID, Title: article.Title, Summary: summary})
		return
	}

	summary, err := c.Explain(r.Context(), domain.Article{Title: req.Title, Abstract: req.Abstract})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Title: req.Title, Summary: summary})
}

// optimizeQuery handles POST /api/v1/queries/optimize.
func (s *Server) optimizeQuery(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeDomainError(w, domain.NewValidationError("query", "must not be empty"))
		return
	}

	optimized, err := s.deps.Assistant.OptimizeQuery(r.Context(), query)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, optimizeResponse{Query: query, Optimized: optimized})
}

// listProviders handles GET /api/v1/providers.
func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Assistant.Providers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := providersResponse{
		Policy:     string(info.Policy),
		Preferred:  string(info.Preferred),
		Candidates: providerIDsToStrings(info.Candidates),
		Providers:  make([]providerResponse, len(info.Providers)),
	}
	for i, p := range info.Providers {
		resp.Providers[i] = providerStatusToResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeRequest reads and validates a JSON body, writing a 400 response on
// failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

// writeValidationError turns validator errors into a single readable message.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	writeError(w, http.StatusBadRequest, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "required_without":
		return fmt.Sprintf("%s is required when %s is absent", fe.Field(), strings.ToLower(fe.Param()))
	case "max":
		return fmt.Sprintf("%s must be at most %s long", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "numeric":
		return fe.Field() + " must be numeric"
	default:
		return fe.Field() + " is invalid"
	}
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrProviderUnavailable):
		var pe *domain.ProviderUnavailableError
		if errors.As(err, &pe) {
			writeError(w, http.StatusServiceUnavailable, pe.Error())
		} else {
			writeError(w, http.StatusServiceUnavailable, "llm provider unavailable")
		}
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrSearchFailed):
		var ext *domain.ExternalAPIError
		if errors.As(err, &ext) {
			writeError(w, http.StatusBadGateway, ext.Error())
		} else {
			writeError(w, http.StatusBadGateway, "pubmed search failed")
		}
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, context.Canceled):
		writeError(w, http.StatusConflict, "operation cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "operation timed out")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
