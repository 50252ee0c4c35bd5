package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "txfeed"

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to the components that record metrics. Every
// recording method is safe to call on a nil *Metrics.
type Metrics struct {
	// Solana RPC
	rpcCallsTotal        *prometheus.CounterVec
	rpcCallDuration      *prometheus.HistogramVec
	rpcRateLimitHits     *prometheus.CounterVec
	rpcRetries           *prometheus.CounterVec
	rpcSignaturesPerCall *prometheus.HistogramVec

	// Reconciliation passes
	passesTotal           *prometheus.CounterVec
	passDuration          *prometheus.HistogramVec
	transactionsFetched   *prometheus.CounterVec
	activitiesClassified  *prometheus.CounterVec
	statusChangesEmitted  *prometheus.CounterVec
	activitiesPersisted   *prometheus.GaugeVec
	backendRequestsTotal  *prometheus.CounterVec
	backendRequestLatency *prometheus.HistogramVec

	// Storage
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec

	// HTTP
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        *prometheus.CounterVec

	// NATS
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "solana_rpc_calls_total",
				Help:      "Solana RPC calls by method, status and endpoint",
			},
			[]string{"method", "status", "endpoint"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "solana_rpc_call_duration_seconds",
				Help:      "Duration of Solana RPC calls in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		rpcRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "solana_rpc_rate_limit_hits_total",
				Help:      "Solana RPC responses rejected with HTTP 429",
			},
			[]string{"endpoint"},
		),
		rpcRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "solana_rpc_retries_total",
				Help:      "Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),
		rpcSignaturesPerCall: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "solana_rpc_signatures_per_call",
				Help:      "Signatures returned per getSignaturesForAddress call",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 1000},
			},
			[]string{"endpoint"},
		),

		passesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_passes_total",
				Help:      "Reconciliation passes by outcome (ok, failed, abandoned)",
			},
			[]string{"outcome"},
		),
		passDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_pass_duration_seconds",
				Help:      "Duration of reconciliation passes in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		transactionsFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_fetched_total",
				Help:      "Parsed transactions requested from the chain, by result (found, missing)",
			},
			[]string{"result"},
		),
		activitiesClassified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activities_classified_total",
				Help:      "Activities produced by the classifier, by activity type",
			},
			[]string{"type"},
		),
		statusChangesEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_changes_emitted_total",
				Help:      "Status changes emitted for backend-linked activities",
			},
			[]string{"status"},
		),
		activitiesPersisted: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "activities_persisted",
				Help:      "Activities in the committed merged set after the last pass",
			},
			[]string{"network"},
		),
		backendRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_requests_total",
				Help:      "Requests to the orders backend by operation and status",
			},
			[]string{"operation", "status"},
		),
		backendRequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Duration of orders backend requests in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"operation"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Duration of database queries in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_operations_total",
				Help:      "Database operations by status",
			},
			[]string{"operation", "status"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Activity cache lookups by result (hit, miss, error)",
			},
			[]string{"result"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by handler, method and status class",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sse_active_connections",
				Help:      "Open status-stream SSE connections",
			},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sse_events_sent_total",
				Help:      "SSE events written to clients",
			},
			[]string{"event_type"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nats_messages_published_total",
				Help:      "Status change events published to NATS",
			},
			[]string{"status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "nats_publish_duration_seconds",
				Help:      "Duration of NATS publish operations in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"status"},
		),
	}
}

// Solana RPC

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	if m == nil {
		return
	}
	m.rpcCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.rpcCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a 429 from an RPC endpoint.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	if m == nil {
		return
	}
	m.rpcRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	if m == nil {
		return
	}
	m.rpcRetries.WithLabelValues(method, reason).Inc()
}

// RecordRPCSignaturesPerCall records the number of signatures fetched.
func (m *Metrics) RecordRPCSignaturesPerCall(endpoint string, count float64) {
	if m == nil {
		return
	}
	m.rpcSignaturesPerCall.WithLabelValues(endpoint).Observe(count)
}

// Reconciliation

// RecordPass records the outcome and duration of one reconciliation pass.
func (m *Metrics) RecordPass(outcome string, duration float64) {
	if m == nil {
		return
	}
	m.passesTotal.WithLabelValues(outcome).Inc()
	m.passDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordTransactionsFetched records how many requested transactions came back.
func (m *Metrics) RecordTransactionsFetched(found, missing int) {
	if m == nil {
		return
	}
	m.transactionsFetched.WithLabelValues("found").Add(float64(found))
	m.transactionsFetched.WithLabelValues("missing").Add(float64(missing))
}

// RecordActivityClassified records one classifier output by activity type.
func (m *Metrics) RecordActivityClassified(activityType string) {
	if m == nil {
		return
	}
	m.activitiesClassified.WithLabelValues(activityType).Inc()
}

// RecordStatusChange records one emitted status change.
func (m *Metrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChangesEmitted.WithLabelValues(status).Inc()
}

// RecordActivitiesPersisted sets the size of the last committed set.
func (m *Metrics) RecordActivitiesPersisted(network string, count int) {
	if m == nil {
		return
	}
	m.activitiesPersisted.WithLabelValues(network).Set(float64(count))
}

// RecordBackendRequest records a call to the orders backend.
func (m *Metrics) RecordBackendRequest(operation string, duration float64, err error) {
	if m == nil {
		return
	}
	m.backendRequestsTotal.WithLabelValues(operation, errorStatus(err)).Inc()
	m.backendRequestLatency.WithLabelValues(operation).Observe(duration)
}

// Storage

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation string, duration float64, err error) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(operation).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, errorStatus(err)).Inc()
}

// RecordCacheLookup records an activity cache lookup result.
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// HTTP

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange adjusts the open SSE connection count by delta.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	if m == nil {
		return
	}
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(eventType string) {
	if m == nil {
		return
	}
	m.sseEventsSent.WithLabelValues(eventType).Inc()
}

// NATS

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(status).Inc()
	m.natsPublishDuration.WithLabelValues(status).Observe(duration)
}

func errorStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
