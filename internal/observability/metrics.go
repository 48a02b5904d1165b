// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Evaluation sources.
const (
	SourceCache    = "cache"
	SourceComputed = "computed"
	SourceDefault  = "default"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Decision metrics
	EvaluationsTotal  *prometheus.CounterVec
	EvaluationLatency prometheus.Histogram
	SignalFallbacks   *prometheus.CounterVec
	DecisionsByAction *prometheus.CounterVec

	// Cache metrics
	CacheEntries   prometheus.Gauge
	CacheEvictions *prometheus.CounterVec
	CacheErrors    prometheus.Counter

	// Retention metrics
	EventsProcessed  *prometheus.CounterVec
	FlowsExecuted    *prometheus.CounterVec
	FlowsBlocked     *prometheus.CounterVec
	DispatchFailures *prometheus.CounterVec
	TrackedUsers     prometheus.Gauge

	// Ingestion metrics
	EventsReceived    *prometheus.CounterVec
	EventDecodeErrors *prometheus.CounterVec
	SourceReconnects  *prometheus.CounterVec

	// Analytics metrics
	AnalyticsWriteErrors *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastEventProcessed prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "growth_engine"
	}

	return &Metrics{
		EvaluationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "brain",
			Name:      "evaluations_total",
			Help:      "Total number of evaluations by result source",
		}, []string{"source"}),
		EvaluationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "brain",
			Name:      "evaluation_latency_seconds",
			Help:      "Latency of uncached evaluations in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SignalFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "fallbacks_total",
			Help:      "Total number of signal groups replaced by defaults",
		}, []string{"group"}),
		DecisionsByAction: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "brain",
			Name:      "decisions_total",
			Help:      "Total number of computed decisions by segment and action",
		}, []string{"segment", "action"}),

		CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current number of cached decisions",
		}),
		CacheEvictions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of cache evictions by reason",
		}, []string{"reason"}),
		CacheErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Total number of remote cache errors treated as misses",
		}),

		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "events_processed_total",
			Help:      "Total number of retention events processed by type",
		}, []string{"event_type"}),
		FlowsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "flows_executed_total",
			Help:      "Total number of executed flows by type and channel",
		}, []string{"flow_type", "channel"}),
		FlowsBlocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "flows_blocked_total",
			Help:      "Total number of flows blocked by the scheduler by reason",
		}, []string{"reason"}),
		DispatchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "failures_total",
			Help:      "Total number of failed channel dispatches",
		}, []string{"channel"}),
		TrackedUsers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "tracked_users",
			Help:      "Number of users with in-memory scheduler state",
		}),

		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_received_total",
			Help:      "Total number of events received by source",
		}, []string{"source"}),
		EventDecodeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "decode_errors_total",
			Help:      "Total number of undecodable or invalid events by source",
		}, []string{"source"}),
		SourceReconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "reconnects_total",
			Help:      "Total number of source reconnect attempts",
		}, []string{"source"}),

		AnalyticsWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "write_errors_total",
			Help:      "Total number of failed analytics writes",
		}, []string{"kind"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastEventProcessed: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_event_processed_timestamp",
			Help:      "Unix timestamp of the last processed retention event",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEvaluation records one Evaluate call by result source.
func RecordEvaluation(source string, elapsed time.Duration) {
	DefaultMetrics.EvaluationsTotal.WithLabelValues(source).Inc()
	if source == SourceComputed {
		DefaultMetrics.EvaluationLatency.Observe(elapsed.Seconds())
	}
}

// RecordDecision records a freshly computed decision.
func RecordDecision(segment, action string) {
	DefaultMetrics.DecisionsByAction.WithLabelValues(segment, action).Inc()
}

// RecordSignalFallback records a signal group replaced by defaults.
func RecordSignalFallback(group string) {
	DefaultMetrics.SignalFallbacks.WithLabelValues(group).Inc()
}

// UpdateCacheEntries sets the cached decisions gauge.
func UpdateCacheEntries(n int) {
	DefaultMetrics.CacheEntries.Set(float64(n))
}

// RecordCacheEviction records evicted cache entries.
func RecordCacheEviction(reason string, n int) {
	if n <= 0 {
		return
	}
	DefaultMetrics.CacheEvictions.WithLabelValues(reason).Add(float64(n))
}

// RecordCacheError records a remote cache failure.
func RecordCacheError() {
	DefaultMetrics.CacheErrors.Inc()
}

// RecordEventProcessed records a processed retention event.
func RecordEventProcessed(eventType string) {
	DefaultMetrics.EventsProcessed.WithLabelValues(eventType).Inc()
	DefaultMetrics.LastEventProcessed.SetToCurrentTime()
}

// RecordFlowExecuted records an admitted flow.
func RecordFlowExecuted(flowType, channel string) {
	DefaultMetrics.FlowsExecuted.WithLabelValues(flowType, channel).Inc()
}

// RecordFlowBlocked records a flow rejected by the scheduler.
func RecordFlowBlocked(reason string) {
	DefaultMetrics.FlowsBlocked.WithLabelValues(reason).Inc()
}

// RecordDispatchFailure records a failed channel dispatch.
func RecordDispatchFailure(channel string) {
	DefaultMetrics.DispatchFailures.WithLabelValues(channel).Inc()
}

// UpdateTrackedUsers sets the scheduler tracked users gauge.
func UpdateTrackedUsers(n int) {
	DefaultMetrics.TrackedUsers.Set(float64(n))
}

// RecordEventReceived records an event read from a source.
func RecordEventReceived(source string) {
	DefaultMetrics.EventsReceived.WithLabelValues(source).Inc()
}

// RecordEventDecodeError records an event that could not be decoded or validated.
func RecordEventDecodeError(source string) {
	DefaultMetrics.EventDecodeErrors.WithLabelValues(source).Inc()
}

// RecordReconnect records a source reconnect attempt.
func RecordReconnect(source string) {
	DefaultMetrics.SourceReconnects.WithLabelValues(source).Inc()
}

// RecordAnalyticsError records a failed analytics write.
func RecordAnalyticsError(kind string) {
	DefaultMetrics.AnalyticsWriteErrors.WithLabelValues(kind).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
