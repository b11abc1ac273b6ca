// Package observability exposes Prometheus metrics for the HTTP API.
package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total number of HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doubloon_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doubloon_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// ActiveRequests tracks currently active requests
	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "doubloon_http_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"path"},
	)

	// ImportedRowsTotal counts statement rows by import outcome
	ImportedRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doubloon_import_rows_total",
			Help: "Statement rows processed by outcome",
		},
		[]string{"provider", "outcome"},
	)

	// ClassificationsTotal counts AI classification attempts by outcome
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doubloon_classifications_total",
			Help: "AI classification attempts by outcome",
		},
		[]string{"outcome"},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// MetricsMiddleware collects Prometheus metrics for every request. Path
// labels stay bounded because the API surface is a fixed set of routes
// plus UUID path segments, which are collapsed before labeling.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		path := collapseIDs(r.URL.Path)
		ActiveRequests.WithLabelValues(path).Inc()
		defer ActiveRequests.WithLabelValues(path).Dec()

		start := time.Now()
		next.ServeHTTP(rec, r)

		RequestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

// collapseIDs replaces UUID path segments with a placeholder.
func collapseIDs(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if _, err := uuid.Parse(segment); err == nil {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
