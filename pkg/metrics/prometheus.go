// Package metrics provides Prometheus metrics for the ladder rating service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes used as label values.
const (
	OutcomeSuccess   = "success"
	OutcomeFetchErr  = "fetch_error"
	OutcomeDataErr   = "data_error"
	OutcomeCancelled = "cancelled"
)

// Cache lookup results used as label values.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
	CacheError = "error"
)

// Manager manages all Prometheus metrics for the ladder service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Refresh pipeline
	refreshTotal     *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	lastRefreshUnix  prometheus.Gauge
	snapshotPlayers  prometheus.Gauge
	snapshotMatches  prometheus.Gauge
	rowsSkippedTotal prometheus.Counter

	// Source fetch and row cache
	fetchLatency  prometheus.Histogram
	fetchErrors   *prometheus.CounterVec
	cacheRequests *prometheus.CounterVec

	// Ranking index
	rankedPlayers       prometheus.Gauge
	indexBuildDuration  prometheus.Histogram
	rankingQueryLatency prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ladder",
		subsystem:        "ratings",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.refreshTotal = auto.NewCounterVec(m.counterOpts("refresh_total", "Refresh attempts by outcome"), []string{"outcome"})
	m.refreshDuration = auto.NewHistogram(m.histogramOpts("refresh_duration_milliseconds", "End-to-end refresh duration in milliseconds", m.histogramBuckets))
	m.lastRefreshUnix = auto.NewGauge(m.gaugeOpts("last_refresh_unix", "Unix timestamp of the last published snapshot"))
	m.snapshotPlayers = auto.NewGauge(m.gaugeOpts("snapshot_players", "Players in the published snapshot"))
	m.snapshotMatches = auto.NewGauge(m.gaugeOpts("snapshot_matches", "Matches replayed into the published snapshot"))
	m.rowsSkippedTotal = auto.NewCounter(m.counterOpts("rows_skipped_total", "Malformed source rows dropped during parsing"))

	m.fetchLatency = auto.NewHistogram(m.histogramOpts("fetch_latency_milliseconds", "Source fetch latency in milliseconds", m.histogramBuckets))
	m.fetchErrors = auto.NewCounterVec(m.counterOpts("fetch_errors_total", "Source fetch failures by reason"), []string{"reason"})
	m.cacheRequests = auto.NewCounterVec(m.counterOpts("row_cache_requests_total", "Row cache lookups by result"), []string{"result"})

	m.rankedPlayers = auto.NewGauge(m.gaugeOpts("ranked_players", "Players in the most recently built ranking index"))
	m.indexBuildDuration = auto.NewHistogram(m.histogramOpts("index_build_duration_milliseconds", "Ranking index build duration in milliseconds", m.histogramBuckets))
	m.rankingQueryLatency = auto.NewHistogram(m.histogramOpts("ranking_query_latency_milliseconds", "Ranking query latency in milliseconds", m.histogramBuckets))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds", "Latency of failed operations in milliseconds", m.histogramBuckets),
		[]string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordRefresh counts a refresh attempt with its outcome.
func RecordRefresh(outcome string) {
	globalManager.refreshTotal.WithLabelValues(outcome).Inc()
}

// RecordRefreshDuration records refresh duration in milliseconds.
func RecordRefreshDuration(ms float64) {
	globalManager.refreshDuration.Observe(ms)
}

// UpdateSnapshot publishes the size of the current snapshot.
func UpdateSnapshot(players, matches int) {
	globalManager.snapshotPlayers.Set(float64(players))
	globalManager.snapshotMatches.Set(float64(matches))
}

// UpdateLastRefreshUnix sets the publish time of the current snapshot.
func UpdateLastRefreshUnix(sec float64) {
	globalManager.lastRefreshUnix.Set(sec)
}

// RecordRowsSkipped adds n dropped rows.
func RecordRowsSkipped(n int) {
	if n > 0 {
		globalManager.rowsSkippedTotal.Add(float64(n))
	}
}

// RecordFetchLatency records source fetch latency in milliseconds.
func RecordFetchLatency(ms float64) {
	globalManager.fetchLatency.Observe(ms)
}

// RecordFetchError counts a failed source fetch.
func RecordFetchError(reason string) {
	globalManager.fetchErrors.WithLabelValues(reason).Inc()
}

// RecordCacheResult counts a row cache lookup.
func RecordCacheResult(result string) {
	globalManager.cacheRequests.WithLabelValues(result).Inc()
}

// UpdateRankedPlayers sets the size of the latest ranking index.
func UpdateRankedPlayers(n int) {
	globalManager.rankedPlayers.Set(float64(n))
}

// RecordIndexBuildDuration records ranking index build time in milliseconds.
func RecordIndexBuildDuration(ms float64) {
	globalManager.indexBuildDuration.Observe(ms)
}

// RecordRankingQueryLatency records a ranking lookup in milliseconds.
func RecordRankingQueryLatency(ms float64) {
	globalManager.rankingQueryLatency.Observe(ms)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent increments the error counter for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType increments the error counter for a type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint increments the error counter for an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records how long a failed operation took.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the current memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
