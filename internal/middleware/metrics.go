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

// Prometheus metrics, registered in the default registry and exposed via
// the /metrics endpoint.
var (
	// Labels: method, path (route pattern), status
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// activeSessions is refreshed by the refresh-gauges job from Redis.
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_active_sessions",
			Help: "Number of active device sessions",
		},
	)

	// Labels: result (success, invalid_credentials, conflict, ...)
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "result"},
	)

	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_refresh_total",
			Help: "Total number of token refresh attempts",
		},
		[]string{"result"},
	)

	websocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifications_websocket_connections",
			Help: "Number of open notification websocket connections",
		},
	)

	// Labels: event, delivery (socket, mailbox, dropped)
	notificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of realtime notifications emitted",
		},
		[]string{"event", "delivery"},
	)

	// Labels: job, result (success, error)
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_job_runs_total",
			Help: "Total number of background job runs",
		},
		[]string{"job", "result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpResponseSize)
	prometheus.MustRegister(activeSessions)
	prometheus.MustRegister(authAttemptsTotal)
	prometheus.MustRegister(tokenRefreshTotal)
	prometheus.MustRegister(websocketConnections)
	prometheus.MustRegister(notificationsSentTotal)
	prometheus.MustRegister(jobRunsTotal)
}

// Metrics creates middleware for collecting HTTP metrics. Paths are
// labelled with the matched chi route pattern, so /applications/{id} is one
// series no matter how many ids are requested.
//
// Example Prometheus queries:
//
//	# Error rate percentage
//	sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m]))
//
//	# P95 latency
//	histogram_quantile(0.95, rate(http_request_duration_seconds_bucket[5m]))
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			path := routePattern(r)
			status := strconv.Itoa(ww.Status())

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
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

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// IncrementAuthAttempts counts a password, registration or OAuth attempt.
//
//	middleware.IncrementAuthAttempts("password", "invalid_credentials")
func IncrementAuthAttempts(method, result string) {
	authAttemptsTotal.WithLabelValues(method, result).Inc()
}

// IncrementTokenRefresh counts a token refresh attempt by result.
func IncrementTokenRefresh(result string) {
	tokenRefreshTotal.WithLabelValues(result).Inc()
}

// SetActiveSessions sets the active device sessions gauge.
func SetActiveSessions(count float64) {
	activeSessions.Set(count)
}

// SetWebsocketConnections sets the open websocket connections gauge.
func SetWebsocketConnections(count float64) {
	websocketConnections.Set(count)
}

// RecordNotification counts one emitted event and how it was delivered.
func RecordNotification(event, delivery string) {
	notificationsSentTotal.WithLabelValues(event, delivery).Inc()
}

// RecordJobRun counts one run of a background job.
func RecordJobRun(job string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	jobRunsTotal.WithLabelValues(job, result).Inc()
}
