// Package httpserver provides the HTTP REST API for the PubMed explorer.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-explorer/internal/assistant"
	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/events"
	"github.com/helixir/pubmed-explorer/internal/observability"
	"github.com/helixir/pubmed-explorer/internal/papersources"
	"github.com/helixir/pubmed-explorer/internal/pipeline"
)

// Assistant is the LLM façade used by the HTTP handlers.
type Assistant interface {
	pipeline.Assistant
	OptimizeQuery(ctx context.Context, query string) (string, error)
	Providers(ctx context.Context) (assistant.ProvidersInfo, error)
}

// Dependencies are the collaborators shared by all requests.
type Dependencies struct {
	Source    papersources.ArticleSource
	Assistant Assistant
	// Publisher may be nil.
	Publisher events.Publisher
	// Metrics may be nil.
	Metrics      *observability.Metrics
	DefaultCount int
	MaxCount     int
	// Provider labels search events with the preferred LLM provider.
	Provider domain.ProviderID
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	deps       Dependencies
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Dependencies, logger zerolog.Logger) *Server {
	s := &Server{
		deps:   deps,
		logger: logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(accessLogMiddleware(s.logger))
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.search)
		r.Get("/search/stream", s.streamSearch)
		r.Post("/titles/translate", s.translateTitles)
		r.Post("/summaries", s.summarize)
		r.Post("/queries/optimize", s.optimizeQuery)
		r.Get("/providers", s.listProviders)
	})

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// coordinator returns a fresh pipeline coordinator for one request, so
// concurrent clients never supersede each other's searches.
func (s *Server) coordinator() *pipeline.Coordinator {
	return pipeline.New(pipeline.Dependencies{
		Source:       s.deps.Source,
		Assistant:    s.deps.Assistant,
		Publisher:    s.deps.Publisher,
		Logger:       s.logger,
		Metrics:      s.deps.Metrics,
		DefaultCount: s.deps.DefaultCount,
		MaxCount:     s.deps.MaxCount,
		Provider:     s.deps.Provider,
	})
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports whether the selection policy can currently route
// LLM calls to one of its candidates, listing every provider's availability.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Assistant.Providers(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}

	resp := readinessResponse{
		Status:     "ready",
		Policy:     string(info.Policy),
		Candidates: providerIDsToStrings(info.Candidates),
		Providers:  make(map[string]bool, len(info.Providers)),
	}
	for _, p := range info.Providers {
		resp.Providers[string(p.ID)] = p.Available
	}

	if !info.Routable() {
		resp.Status = "not_ready"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
