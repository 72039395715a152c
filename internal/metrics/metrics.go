// Package metrics exposes Prometheus collectors for the book service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	searchesTotal              *prometheus.CounterVec
	searchResultsCount         *prometheus.HistogramVec
	downloadsTotal             *prometheus.CounterVec
	downloadBytesTotal         prometheus.Counter
	rateLimitedTotal           *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		searchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookfetch_searches_total",
				Help: "Total discovery requests, labeled by winning source and status.",
			},
			[]string{"source", "status"},
		)

		searchResultsCount = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookfetch_search_results",
				Help:    "Histogram of result counts per discovery request.",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
			[]string{"source"},
		)

		downloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookfetch_downloads_total",
				Help: "Total retrieval requests, labeled by status.",
			},
			[]string{"status"},
		)

		downloadBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bookfetch_download_bytes_total",
				Help: "Total bytes streamed to callers.",
			},
		)

		rateLimitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookfetch_rate_limited_total",
				Help: "Total requests denied by the admission governor, labeled by endpoint.",
			},
			[]string{"endpoint"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSearch records one discovery request outcome.
func ObserveSearch(source, status string, results int) {
	searchesTotal.WithLabelValues(source, status).Inc()
	if status == "ok" {
		searchResultsCount.WithLabelValues(source).Observe(float64(results))
	}
}

// ObserveDownload records one retrieval request outcome.
func ObserveDownload(status string, bytesStreamed int64) {
	downloadsTotal.WithLabelValues(status).Inc()
	if bytesStreamed > 0 {
		downloadBytesTotal.Add(float64(bytesStreamed))
	}
}

// ObserveRateLimited increments the governor denial counter for an endpoint.
func ObserveRateLimited(endpoint string) {
	rateLimitedTotal.WithLabelValues(endpoint).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
