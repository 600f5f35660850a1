// Package metrics exposes Prometheus collectors for the harvester.
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
	harvestItemsTotal          *prometheus.CounterVec
	harvestCommentsTotal       *prometheus.CounterVec
	harvestPagesTotal          *prometheus.CounterVec
	harvestKeywordsTotal       *prometheus.CounterVec
	harvestScrollRoundsTotal   *prometheus.CounterVec
	harvestEscalationsTotal    prometheus.Counter
	harvestInFlight            prometheus.Gauge
	harvestFetchSeconds        *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_items_total",
				Help: "Content items handled, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		harvestCommentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_comments_total",
				Help: "Comments handled, labeled by status.",
			},
			[]string{"status"},
		)

		harvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_pages_total",
				Help: "Source pages requested, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		harvestKeywordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_keywords_total",
				Help: "Keywords finished by the pager, labeled by terminal state.",
			},
			[]string{"state"},
		)

		harvestScrollRoundsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_scroll_rounds_total",
				Help: "Scroll collector rounds, labeled by whether new keys were found.",
			},
			[]string{"outcome"},
		)

		harvestEscalationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_scroll_escalations_total",
				Help: "Aggressive interaction sequences performed by the scroll collector.",
			},
		)

		harvestInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvest_scheduler_in_flight",
				Help: "Number of scheduler units currently running.",
			},
		)

		harvestFetchSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_fetch_duration_seconds",
				Help:    "Histogram of source fetch latencies, labeled by stage.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"stage"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem counts a content item outcome ("stored" or "dropped").
func ObserveItem(kind, status string) {
	Init()
	harvestItemsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveComments counts n comments with the given outcome.
func ObserveComments(status string, n int) {
	Init()
	if n <= 0 {
		return
	}
	harvestCommentsTotal.WithLabelValues(status).Add(float64(n))
}

// ObservePage counts one page request against a source.
func ObservePage(source, status string) {
	Init()
	harvestPagesTotal.WithLabelValues(source, status).Inc()
}

// ObserveKeyword counts a keyword reaching a terminal state.
func ObserveKeyword(state string) {
	Init()
	harvestKeywordsTotal.WithLabelValues(state).Inc()
}

// ObserveScrollRound counts one collector round.
func ObserveScrollRound(found bool) {
	Init()
	outcome := "empty"
	if found {
		outcome = "found"
	}
	harvestScrollRoundsTotal.WithLabelValues(outcome).Inc()
}

// ObserveEscalation counts one aggressive interaction sequence.
func ObserveEscalation() {
	Init()
	harvestEscalationsTotal.Inc()
}

// IncInFlight increments the scheduler in-flight gauge.
func IncInFlight() {
	Init()
	harvestInFlight.Inc()
}

// DecInFlight decrements the scheduler in-flight gauge.
func DecInFlight() {
	Init()
	harvestInFlight.Dec()
}

// ObserveFetch records the latency of one source fetch.
func ObserveFetch(stage string, duration time.Duration) {
	Init()
	harvestFetchSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
