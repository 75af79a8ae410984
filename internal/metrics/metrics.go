// Package metrics defines the Prometheus metrics exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Parse outcome labels.
const (
	OutcomeAdded        = "added"
	OutcomeIncomplete   = "incomplete"
	OutcomeInvalid      = "invalid"
	OutcomeUserNotFound = "user_not_found"
	OutcomeError        = "error"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestLatency *prometheus.HistogramVec

	// Parse metrics
	ParseOutcomes     *prometheus.CounterVec
	ExtractionLatency prometheus.Histogram
	AuthFailures      prometheus.Counter

	// Background work
	JobsProcessed *prometheus.CounterVec
	DBUp          prometheus.Gauge
}

// New creates the metrics on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expenses_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		}, []string{"route", "method", "status"}),

		HTTPRequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "expenses_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		ParseOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expenses_parse_outcomes_total",
			Help: "Parse requests by outcome",
		}, []string{"outcome"}),

		// Model calls are slow; buckets go up to a minute.
		ExtractionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "expenses_extraction_duration_seconds",
			Help:    "Extraction engine latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "expenses_auth_failures_total",
			Help: "Requests rejected for a missing or invalid API key",
		}),

		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expenses_jobs_processed_total",
			Help: "Background jobs by type and final status",
		}, []string{"type", "status"}),

		DBUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "expenses_db_up",
			Help: "1 when the last database probe succeeded, 0 otherwise",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
