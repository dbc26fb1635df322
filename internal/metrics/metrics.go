// Package metrics exposes Prometheus collectors for the HTTP layer and the
// pantry domain.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantrytracker_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pantrytracker_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantrytracker_registrations_total",
		Help: "Completed registrations by mode (join or create)",
	}, []string{"mode"})

	itemUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantrytracker_pantry_item_upserts_total",
		Help: "Pantry item add-or-update calls by result (created or merged)",
	}, []string{"result"})

	catalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantrytracker_catalog_requests_total",
		Help: "Branded catalog lookups by result (hit, miss or error)",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func ObserveRegistration(mode string) {
	registrations.WithLabelValues(mode).Inc()
}

func ObserveItemUpsert(created bool) {
	result := "merged"
	if created {
		result = "created"
	}
	itemUpserts.WithLabelValues(result).Inc()
}

func ObserveCatalogRequest(result string) {
	catalogRequests.WithLabelValues(result).Inc()
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMetricsMiddleware instruments requests with Prometheus metrics. It must
// wrap the ServeMux directly so the matched route pattern is visible after the
// request is served; the pattern keeps the path label bounded.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		ObserveHTTPRequest(r.Method, path, strconv.Itoa(ww.status), time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
