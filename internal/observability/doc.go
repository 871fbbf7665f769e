// Package observability provides logging and metrics support for the
// PubMed explorer.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//
// Add pipeline context to a logger:
//
//	logger = observability.WithSearchContext(logger, searchID, query)
//	logger = observability.WithProviderContext(logger, "mistral", "mistral-tiny")
//
// # Metrics
//
//	metrics := observability.NewMetrics("pubmed_explorer")
//	metrics.RecordSearchStarted()
//	metrics.RecordLLMRequest("gemini", "translate_titles", elapsed.Seconds())
//
// A nil *Metrics is valid and records nothing.
//
// # Context Helpers
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithSearchID(ctx, searchID)
//	logger = observability.FromContext(ctx, logger)
//
// # Standard Fields
//
//   - request_id: HTTP request identifier
//   - search_id: pipeline search guard token
//   - query: user query as typed
//   - provider, model: LLM provider and model
//   - pmid: PubMed article identifier
package observability
