package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the console gateway.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	gateDecisions  *prometheus.CounterVec
	menuRebuilds   *prometheus.CounterVec
	panelFetchErrs *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics instance with all gateway metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		gateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_gate_decisions_total",
				Help: "Panel entitlement decisions by panel and outcome",
			},
			[]string{"panel", "outcome"},
		),

		menuRebuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_menu_rebuilds_total",
				Help: "Menu aggregation passes by render outcome",
			},
			[]string{"rendered"},
		),

		panelFetchErrs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_panel_fetch_errors_total",
				Help: "Panel source failures by panel",
			},
			[]string{"panel"},
		),

		registry: registry,
	}

	// Register all metrics
	registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.gateDecisions,
		m.menuRebuilds,
		m.panelFetchErrs,
	)

	return m
}

// RecordHTTPRequest records metrics for a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordGateDecision records one panel entitlement decision.
func (m *Metrics) RecordGateDecision(panel, outcome string) {
	m.gateDecisions.WithLabelValues(panel, outcome).Inc()
}

// RecordMenuRebuild records one menu aggregation pass.
func (m *Metrics) RecordMenuRebuild(rendered bool) {
	m.menuRebuilds.WithLabelValues(strconv.FormatBool(rendered)).Inc()
}

// RecordPanelFetchError records a panel source failure.
func (m *Metrics) RecordPanelFetchError(panel string) {
	m.panelFetchErrs.WithLabelValues(panel).Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsMiddleware wraps an HTTP handler to record request metrics.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		m.RecordHTTPRequest(r.Method, getEndpointName(r.URL.Path), strconv.Itoa(wrapped.statusCode), duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// getEndpointName extracts a normalized, bounded-cardinality endpoint name
// from the path. Panel names are collapsed into one label value.
func getEndpointName(path string) string {
	switch {
	case path == "/healthz":
		return "healthz"
	case path == "/metrics":
		return "metrics"
	case path == "/api/ui/config":
		return "ui_config"
	case path == "/api/ui/auth/menus":
		return "auth_menus"
	case len(path) > len("/api/ui/panels/") && path[:len("/api/ui/panels/")] == "/api/ui/panels/":
		return "panel_data"
	default:
		return "unknown"
	}
}
