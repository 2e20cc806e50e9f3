package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics for the storefront. All metrics live in the default
// registry and are exposed via /metrics.

var (
	// httpRequestsTotal counts requests by method, route pattern and status.
	//
	// Labels: method, path (/admin/products/{id}), status
	// Type: Counter
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration measures request latency.
	//
	// Labels: method, path
	// Type: Histogram
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpResponseSize tracks response sizes. AI media responses dominate.
	//
	// Labels: method, path
	// Type: Histogram
	// Buckets: Exponential from 100 bytes to 100 MB
	httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// clientSessions tracks live client sessions in the registry.
	//
	// Type: Gauge
	clientSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_client_sessions",
			Help: "Number of live client sessions",
		},
	)

	// gateAttemptsTotal counts passcode submissions.
	//
	// Labels: result (granted, denied, throttled)
	// Type: Counter
	gateAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_gate_attempts_total",
			Help: "Total number of passcode submissions",
		},
		[]string{"result"},
	)

	// visitorSnapshotsTotal counts visitor snapshots written to the log.
	//
	// Labels: outcome (complete, partial)
	// Type: Counter
	visitorSnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_visitor_snapshots_total",
			Help: "Total number of visitor snapshots captured",
		},
		[]string{"outcome"},
	)

	// storeOperationsTotal counts persistence store operations.
	//
	// Labels: operation (load_config, save_products, ...), status (success, default, error)
	// Type: Counter
	storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of persistence store operations",
		},
		[]string{"operation", "status"},
	)

	// storeOperationDuration measures persistence store latency.
	//
	// Labels: operation
	// Type: Histogram
	storeOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Persistence store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpResponseSize)
	prometheus.MustRegister(clientSessions)
	prometheus.MustRegister(gateAttemptsTotal)
	prometheus.MustRegister(visitorSnapshotsTotal)
	prometheus.MustRegister(storeOperationsTotal)
	prometheus.MustRegister(storeOperationDuration)
}

// Metrics records count, latency and response size for every request.
//
// The path label is the matched chi route pattern, so product IDs and
// other path parameters do not create new series. Unmatched requests are
// labelled "unmatched".
//
// Example Prometheus queries:
//
//	# Denied passcode rate
//	rate(storefront_gate_attempts_total{result="denied"}[5m])
//
//	# P95 latency of the AI studio
//	histogram_quantile(0.95, rate(http_request_duration_seconds_bucket{path=~"/ai/.*"}[5m]))
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			path := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			httpResponseSize.WithLabelValues(r.Method, path).Observe(float64(ww.BytesWritten()))
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// MetricsHandler returns the Prometheus scrape handler.
//
// Usage:
//
//	r.Get("/metrics", middleware.MetricsHandler().ServeHTTP)
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// SetClientSessions sets the live session gauge. Wired to
// SessionService.OnChange.
func SetClientSessions(count int) {
	clientSessions.Set(float64(count))
}

// IncrementGateAttempts counts one passcode submission. Wired to
// AppService.OnGateAttempt.
func IncrementGateAttempts(result string) {
	gateAttemptsTotal.WithLabelValues(result).Inc()
}

// IncrementVisitorSnapshots counts one captured snapshot. Wired to
// Collector.OnCapture.
func IncrementVisitorSnapshots(outcome string) {
	visitorSnapshotsTotal.WithLabelValues(outcome).Inc()
}

// RecordStoreOperation records one persistence store operation. It matches
// store.Recorder.
func RecordStoreOperation(operation, status string, duration time.Duration) {
	storeOperationsTotal.WithLabelValues(operation, status).Inc()
	storeOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
