package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST METRICS
// ══════════════════════════════════════════════════════════════════════════════

// requestMetrics holds the Prometheus collectors for the HTTP layer. Routes
// are labeled by mux pattern, not raw path, to keep cardinality bounded.
type requestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

func newRequestMetrics(reg prometheus.Registerer) *requestMetrics {
	m := &requestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gamification",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gamification",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by method and route.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "gamification",
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "HTTP requests currently being served.",
			},
		),
	}

	reg.MustRegister(m.requestsTotal, m.requestDuration, m.inFlight)
	return m
}

// middleware records per-request metrics. routeOf resolves the matched mux
// pattern for a request; the middleware sits outside the mux and cannot read
// it from the request itself.
func (m *requestMetrics) middleware(next http.Handler, routeOf func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := routeOf(r)
		if route == "" {
			route = "unmatched"
		}

		m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
