// Package metrics defines the Prometheus collectors used by the question
// search services and serves them for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TierNone labels resolutions where every tier came back empty.
const TierNone = "none"

// Metrics holds all Prometheus collectors for the services.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	ResolutionTierTotal   *prometheus.CounterVec
	OverlapLookupDuration *prometheus.HistogramVec
	SearchQueriesTotal    *prometheus.CounterVec
	SearchLatency         *prometheus.HistogramVec
	SearchResultsCount    prometheus.Histogram
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	TokenSetsIndexedTotal *prometheus.CounterVec
	TokenSetSize          *prometheus.HistogramVec
	MemoryIndexQuestions  prometheus.Gauge
	IndexReloadsTotal     *prometheus.CounterVec
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates all collectors and registers them on reg. Passing nil uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ResolutionTierTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resolution_tier_total",
				Help: "Query resolutions by the tier that produced the candidate set (tokens, bigrams, trigrams, none).",
			},
			[]string{"tier"},
		),
		OverlapLookupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "overlap_lookup_duration_seconds",
				Help:    "Latency of a single overlap lookup against the token store.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"tier"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total searches by result type (hit, zero_result, no_match, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Question search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Total matching questions per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "resolution_cache_hits_total",
				Help: "Total number of resolution cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "resolution_cache_misses_total",
				Help: "Total number of resolution cache misses.",
			},
		),
		TokenSetsIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_sets_indexed_total",
				Help: "Token sets written to the token store by status.",
			},
			[]string{"status"},
		),
		TokenSetSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "token_set_size",
				Help:    "Sequence length per field of indexed token sets.",
				Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500},
			},
			[]string{"field"},
		),
		MemoryIndexQuestions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_index_questions",
				Help: "Questions held by the in-memory token index.",
			},
		),
		IndexReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memory_index_reloads_total",
				Help: "In-memory token index reloads by status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ResolutionTierTotal,
		m.OverlapLookupDuration,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.TokenSetsIndexedTotal,
		m.TokenSetSize,
		m.MemoryIndexQuestions,
		m.IndexReloadsTotal,
		m.CircuitBreakerState,
	)

	return m
}
