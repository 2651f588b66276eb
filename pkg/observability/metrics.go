package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the analysis service.
// The Record helpers accept a nil receiver, so components that were not
// handed a recorder can call them unconditionally.
type Metrics struct {
	// Pipeline metrics
	AnalysisRuns  *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	StageErrors   *prometheus.CounterVec

	// Ingestion metrics
	DocumentsIngested *prometheus.CounterVec
	IngestionFailures *prometheus.CounterVec
	ChunksCreated     prometheus.Counter
	IngestionDuration prometheus.Histogram

	// Provider metrics
	EmbeddingRequests  *prometheus.CounterVec
	EmbeddingDuration  prometheus.Histogram
	GenerativeRequests *prometheus.CounterVec
	GenerativeDuration prometheus.Histogram
	CacheLookups       *prometheus.CounterVec
	CircuitBreakerOpen *prometheus.GaugeVec
	RateLimitHits      prometheus.Counter

	// Search metrics
	SearchRequests    prometheus.Counter
	SearchDuration    prometheus.Histogram
	SearchResultCount prometheus.Histogram
	SearchErrors      prometheus.Counter

	// Streaming metrics
	StreamEventsDropped prometheus.Counter

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Ranking metrics
	RankingRuns     *prometheus.CounterVec
	CompaniesRanked prometheus.Gauge
}

// NewMetrics creates and registers all collectors on the given registerer.
// Pass nil to use the default registry; tests pass a fresh one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AnalysisRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glasshouse_analysis_runs_total",
			Help: "Total number of analysis runs by terminal status",
		}, []string{"status"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "glasshouse_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7min
		}, []string{"stage"}),
		StageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glasshouse_stage_errors_total",
			Help: "Total number of stage failures by stage",
		}, []string{"stage"}),

		DocumentsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glasshouse_documents_ingested_total",
			Help: "Total number of documents ingested by source type",
		}, []string{"source_type"}),
		IngestionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glasshouse_ingestion_failures_total",
			Help: "Total number of failed ingestion items by source type",
		}, []string{"source_type"}),
		ChunksCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "glasshouse_chunks_created_total",
			Help: "Total number of chunks created",
		}),
		IngestionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "glasshouse_ingestion_duration_seconds",
			Help:    "Duration of ingestion batches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),

		EmbeddingRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glasshouse_embedding_requests_total",
			Help: "Total number of embedding requests by provider and status",
		}, []string{"provider", "status"}),
		EmbeddingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "glasshouse_embedding_duration_seconds",
			Help:    "Duration of embedding calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		GenerativeRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glasshouse_generative_requests_total",
			Help: "Total number of generative calls by provider and status",
		}, []string{"provider", "status"}),
		GenerativeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "glasshouse_generative_duration_seconds",
			Help:    "Duration of generative calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4min
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glasshouse_embedding_cache_lookups_total",
			Help: "Embedding cache lookups by tier and outcome",
		}, []string{"tier", "outcome"}),
		CircuitBreakerOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "glasshouse_circuit_breaker_open",
			Help: "Circuit breaker state (1 = open, 0 = closed)",
		}, []string{"service"}),
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "glasshouse_rate_limit_hits_total",
			Help: "Total number of provider rate limit waits",
		}),

		SearchRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "glasshouse_search_requests_total",
			Help: "Total number of vector searches",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "glasshouse_search_duration_seconds",
			Help:    "Duration of vector searches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		}),
		SearchResultCount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "glasshouse_search_results_count",
			Help:    "Number of results returned per search",
			Buckets: prometheus.LinearBuckets(0, 2, 11), // 0 to 20
		}),
		SearchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "glasshouse_search_errors_total",
			Help: "Total number of failed vector searches",
		}),

		StreamEventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "glasshouse_stream_events_dropped_total",
			Help: "Progress events dropped due to slow consumers",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glasshouse_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "glasshouse_http_request_duration_seconds",
			Help:    "HTTP request duration by method and route",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"method", "route"}),

		RankingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glasshouse_ranking_runs_total",
			Help: "Total ranking snapshot rebuilds by status",
		}, []string{"status"}),
		CompaniesRanked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "glasshouse_companies_ranked",
			Help: "Number of companies in the latest ranking snapshot",
		}),
	}
}

// RecordStage records one stage execution.
func (m *Metrics) RecordStage(stage string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
	if err != nil {
		m.StageErrors.WithLabelValues(stage).Inc()
	}
}

// RecordRun records a terminal pipeline outcome.
func (m *Metrics) RecordRun(status string) {
	if m == nil {
		return
	}
	m.AnalysisRuns.WithLabelValues(status).Inc()
}

// RecordEmbedding records one embedding provider call.
func (m *Metrics) RecordEmbedding(provider string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EmbeddingRequests.WithLabelValues(provider, status).Inc()
	m.EmbeddingDuration.Observe(seconds)
}

// RecordGenerative records one generative provider call.
func (m *Metrics) RecordGenerative(provider string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.GenerativeRequests.WithLabelValues(provider, status).Inc()
	m.GenerativeDuration.Observe(seconds)
}

// RecordCacheLookup records an embedding cache lookup outcome for a tier.
func (m *Metrics) RecordCacheLookup(tier string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookups.WithLabelValues(tier, outcome).Inc()
}

// RecordSearch records one vector search.
func (m *Metrics) RecordSearch(resultCount int, seconds float64, err error) {
	if m == nil {
		return
	}
	m.SearchRequests.Inc()
	m.SearchDuration.Observe(seconds)
	m.SearchResultCount.Observe(float64(resultCount))
	if err != nil {
		m.SearchErrors.Inc()
	}
}

// RecordRateLimitHit counts one throttled provider call.
func (m *Metrics) RecordRateLimitHit() {
	if m == nil {
		return
	}
	m.RateLimitHits.Inc()
}

// RecordStreamDropped counts one progress event dropped on overflow.
func (m *Metrics) RecordStreamDropped() {
	if m == nil {
		return
	}
	m.StreamEventsDropped.Inc()
}

// RecordIngestion records per-source-type counters for one ingestion batch.
func (m *Metrics) RecordIngestion(sourceType string, ingested, failed, chunks int) {
	if m == nil {
		return
	}
	m.DocumentsIngested.WithLabelValues(sourceType).Add(float64(ingested))
	if failed > 0 {
		m.IngestionFailures.WithLabelValues(sourceType).Add(float64(failed))
	}
	m.ChunksCreated.Add(float64(chunks))
}

// RecordIngestionBatch records the wall time of one ingestion batch.
func (m *Metrics) RecordIngestionBatch(seconds float64) {
	if m == nil {
		return
	}
	m.IngestionDuration.Observe(seconds)
}

// RecordRankingRun records one ranking snapshot rebuild.
func (m *Metrics) RecordRankingRun(status string, companies int) {
	if m == nil {
		return
	}
	m.RankingRuns.WithLabelValues(status).Inc()
	if status == "ok" {
		m.CompaniesRanked.Set(float64(companies))
	}
}

// SetCircuitBreakerState flips the breaker gauge for a service.
func (m *Metrics) SetCircuitBreakerState(service string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1.0
	}
	m.CircuitBreakerOpen.WithLabelValues(service).Set(v)
}

// RecordHTTP records one served request.
func (m *Metrics) RecordHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(seconds)
}
