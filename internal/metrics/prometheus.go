package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by callers
const (
	StageQuery    = "query"
	StageFallback = "fallback"
	StageIndex    = "index"

	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"

	SourceAdd     = "add"
	SourceImport  = "import"
	SourceReembed = "reembed"
)

// latencyBuckets covers a cache hit through a slow LLM call, in milliseconds
var latencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Retrieval
	queries       *prometheus.CounterVec
	queryLatency  *prometheus.HistogramVec
	queryCache    *prometheus.CounterVec
	embedFailures *prometheus.CounterVec
	storageErrors *prometheus.CounterVec

	// Generation
	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec

	// Indexing
	eventsIndexed *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid the default global registerer.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	customRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "eventsage",
		histogramBuckets: latencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.queries = m.counterVec("queries_total",
		"Total number of answered queries by retrieval strategy", "strategy")
	m.queryLatency = m.histogramVec("query_duration_milliseconds",
		"Retrieval latency in milliseconds by strategy", "strategy")
	m.queryCache = m.counterVec("query_cache_total",
		"Query cache lookups by result", "result")
	m.embedFailures = m.counterVec("embedding_failures_total",
		"Embedding failures by pipeline stage", "stage")
	m.storageErrors = m.counterVec("storage_errors_total",
		"Storage query failures by retrieval strategy", "strategy")

	m.llmRequests = m.counterVec("llm_requests_total",
		"Answer generation requests by provider and outcome", "provider", "outcome")
	m.llmLatency = m.histogramVec("llm_duration_milliseconds",
		"Answer generation latency in milliseconds", "provider")

	m.eventsIndexed = m.counterVec("events_indexed_total",
		"Events written to the index by source", "source")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
}

// RecordQuery counts one routed query and its latency.
func RecordQuery(strategy string, latencyMs float64) {
	globalManager.queries.WithLabelValues(strategy).Inc()
	globalManager.queryLatency.WithLabelValues(strategy).Observe(latencyMs)
}

// RecordQueryCache records a query cache hit or miss.
func RecordQueryCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.queryCache.WithLabelValues(result).Inc()
}

// RecordEmbeddingFailure increments the embedding failure counter.
func RecordEmbeddingFailure(stage string) {
	globalManager.embedFailures.WithLabelValues(stage).Inc()
}

// RecordStorageError increments the storage error counter.
func RecordStorageError(strategy string) {
	globalManager.storageErrors.WithLabelValues(strategy).Inc()
}

// RecordLLMRequest records one answer generation call.
func RecordLLMRequest(provider, outcome string, latencyMs float64) {
	globalManager.llmRequests.WithLabelValues(provider, outcome).Inc()
	globalManager.llmLatency.WithLabelValues(provider).Observe(latencyMs)
}

// RecordEventsIndexed adds n to the indexed events counter.
func RecordEventsIndexed(source string, n int) {
	globalManager.eventsIndexed.WithLabelValues(source).Add(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
