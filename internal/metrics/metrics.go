// Package metrics exposes Prometheus collectors for the preloader service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal              *prometheus.CounterVec
	httpRequestDurationSeconds     *prometheus.HistogramVec
	registryFetchesTotal           *prometheus.CounterVec
	registryFetchDurationSeconds   prometheus.Histogram
	redirectsTotal                 *prometheus.CounterVec
	redirectTargetsTotal           *prometheus.CounterVec
	activeSessions                 prometheus.Gauge
	navigationJournalFailuresTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		registryFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preloader_registry_fetches_total",
				Help: "Registry list fetches, labeled by result.",
			},
			[]string{"result"},
		)

		registryFetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "preloader_registry_fetch_duration_seconds",
				Help:    "Latency of registry list fetches.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
		)

		redirectsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preloader_redirects_total",
				Help: "Resolved redirects, labeled by the step that matched.",
			},
			[]string{"step"},
		)

		redirectTargetsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preloader_redirect_targets_total",
				Help: "Resolved redirects, labeled by target host.",
			},
			[]string{"host"},
		)

		activeSessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "preloader_active_sessions",
				Help: "Number of live preload sessions.",
			},
		)

		navigationJournalFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "preloader_navigation_journal_failures_total",
				Help: "Navigation records that could not be written to the journal.",
			},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a target URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRegistryFetch records one registry round trip.
func ObserveRegistryFetch(err error, duration time.Duration) {
	Init()
	result := "success"
	if err != nil {
		result = "error"
	}
	registryFetchesTotal.WithLabelValues(result).Inc()
	registryFetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveRedirect counts a navigation produced by step towards target.
func ObserveRedirect(step, target string) {
	Init()
	redirectsTotal.WithLabelValues(step).Inc()
	redirectTargetsTotal.WithLabelValues(SanitizeHost(target)).Inc()
}

// ObserveJournalFailure counts a navigation record the journal rejected.
func ObserveJournalFailure() {
	Init()
	navigationJournalFailuresTotal.Inc()
}

// IncActiveSessions increments the live session gauge.
func IncActiveSessions() {
	Init()
	activeSessions.Inc()
}

// DecActiveSessions decrements the live session gauge.
func DecActiveSessions() {
	Init()
	activeSessions.Dec()
}
