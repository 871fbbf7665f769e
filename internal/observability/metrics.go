package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the PubMed explorer.
// Metrics are organized by subsystem: pipeline searches, PubMed requests,
// LLM provider calls, and event publishing. All metrics are registered via
// promauto with the default Prometheus registry.
//
// Every Record method is safe to call on a nil *Metrics, which lets
// components run without metrics in tests and in the CLI.
type Metrics struct {
	// SearchesStarted counts pipeline searches initiated.
	SearchesStarted prometheus.Counter

	// SearchesCompleted counts pipeline searches that reached the enriched stage.
	SearchesCompleted prometheus.Counter

	// SearchesFailed counts pipeline searches that failed, labeled by stage.
	SearchesFailed *prometheus.CounterVec

	// SearchesEmpty counts searches that completed with zero articles.
	SearchesEmpty prometheus.Counter

	// SearchesSuperseded counts searches whose results were discarded because
	// a newer search or a clear replaced them.
	SearchesSuperseded prometheus.Counter

	// SearchDuration observes end-to-end search duration in seconds.
	SearchDuration prometheus.Histogram

	// ArticlesPerSearch observes the number of articles returned per search.
	ArticlesPerSearch prometheus.Histogram

	// PubMedRequestsTotal counts E-utilities requests, labeled by endpoint.
	PubMedRequestsTotal *prometheus.CounterVec

	// PubMedRequestsFailed counts failed E-utilities requests, labeled by endpoint and error type.
	PubMedRequestsFailed *prometheus.CounterVec

	// PubMedRequestDuration observes E-utilities request duration in seconds, labeled by endpoint.
	PubMedRequestDuration *prometheus.HistogramVec

	// PubMedRecordsSkipped counts article records dropped by the tolerant parser.
	PubMedRecordsSkipped prometheus.Counter

	// LLMRequestsTotal counts LLM operations, labeled by provider and operation.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM operations, labeled by provider, operation, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM operation duration in seconds, labeled by provider and operation.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMFallbacks counts operations that returned their documented fallback value.
	LLMFallbacks *prometheus.CounterVec

	// ProviderUnavailable counts selections that found no usable provider, labeled by preferred provider.
	ProviderUnavailable *prometheus.CounterVec

	// EventsPublished counts pipeline events published, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts pipeline events that could not be published, labeled by event type.
	EventsFailed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Searches
		SearchesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of pipeline searches started",
		}),
		SearchesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of pipeline searches completed",
		}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of pipeline searches that failed",
		}, []string{"stage"}),
		SearchesEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_empty_total",
			Help:      "Total number of pipeline searches with no matching articles",
		}),
		SearchesSuperseded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_superseded_total",
			Help:      "Total number of pipeline searches discarded by a newer search or clear",
		}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of pipeline searches in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		ArticlesPerSearch: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "articles_per_search",
			Help:      "Number of articles returned per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}),

		// PubMed
		PubMedRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pubmed_requests_total",
			Help:      "Total number of PubMed E-utilities requests",
		}, []string{"endpoint"}),
		PubMedRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pubmed_requests_failed_total",
			Help:      "Total number of failed PubMed E-utilities requests",
		}, []string{"endpoint", "error_type"}),
		PubMedRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pubmed_request_duration_seconds",
			Help:      "Duration of PubMed E-utilities requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		PubMedRecordsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pubmed_records_skipped_total",
			Help:      "Total number of malformed PubMed article records skipped",
		}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM operations",
		}, []string{"provider", "operation"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM operations",
		}, []string{"provider", "operation", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM operations in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider", "operation"}),
		LLMFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_fallbacks_total",
			Help:      "Total number of LLM operations that returned their fallback value",
		}, []string{"provider", "operation"}),
		ProviderUnavailable: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_provider_unavailable_total",
			Help:      "Total number of provider selections with no usable provider",
		}, []string{"provider"}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of pipeline events published",
		}, []string{"type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of pipeline events that failed to publish",
		}, []string{"type"}),
	}
}

// RecordSearchStarted records that a pipeline search has started.
func (m *Metrics) RecordSearchStarted() {
	if m == nil {
		return
	}
	m.SearchesStarted.Inc()
}

// RecordSearchCompleted records a completed search and its article count.
func (m *Metrics) RecordSearchCompleted(articleCount int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchesCompleted.Inc()
	m.SearchDuration.Observe(durationSeconds)
	m.ArticlesPerSearch.Observe(float64(articleCount))
	if articleCount == 0 {
		m.SearchesEmpty.Inc()
	}
}

// RecordSearchFailed records a search that failed in the given stage.
func (m *Metrics) RecordSearchFailed(stage string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchesFailed.WithLabelValues(stage).Inc()
	m.SearchDuration.Observe(durationSeconds)
}

// RecordSearchSuperseded records a search whose results were discarded.
func (m *Metrics) RecordSearchSuperseded() {
	if m == nil {
		return
	}
	m.SearchesSuperseded.Inc()
}

// RecordPubMedRequest records a request to an E-utilities endpoint.
func (m *Metrics) RecordPubMedRequest(endpoint string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.PubMedRequestsTotal.WithLabelValues(endpoint).Inc()
	m.PubMedRequestDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordPubMedRequestFailed records a failed request to an E-utilities endpoint.
func (m *Metrics) RecordPubMedRequestFailed(endpoint, errorType string) {
	if m == nil {
		return
	}
	m.PubMedRequestsFailed.WithLabelValues(endpoint, errorType).Inc()
}

// RecordPubMedRecordsSkipped records malformed article records dropped while parsing.
func (m *Metrics) RecordPubMedRecordsSkipped(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.PubMedRecordsSkipped.Add(float64(count))
}

// RecordLLMRequest records an LLM operation.
func (m *Metrics) RecordLLMRequest(provider, operation string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(provider, operation).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, operation).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed LLM operation.
func (m *Metrics) RecordLLMRequestFailed(provider, operation, errorType string) {
	if m == nil {
		return
	}
	m.LLMRequestsFailed.WithLabelValues(provider, operation, errorType).Inc()
}

// RecordLLMFallback records an LLM operation that returned its fallback value.
func (m *Metrics) RecordLLMFallback(provider, operation string) {
	if m == nil {
		return
	}
	m.LLMFallbacks.WithLabelValues(provider, operation).Inc()
}

// RecordProviderUnavailable records a selection that found no usable provider.
func (m *Metrics) RecordProviderUnavailable(provider string) {
	if m == nil {
		return
	}
	m.ProviderUnavailable.WithLabelValues(provider).Inc()
}

// RecordEventPublished records a published pipeline event.
func (m *Metrics) RecordEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records a pipeline event that could not be published.
func (m *Metrics) RecordEventFailed(eventType string) {
	if m == nil {
		return
	}
	m.EventsFailed.WithLabelValues(eventType).Inc()
}
