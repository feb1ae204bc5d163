package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes recorded in voiceclone_requests_total.
const (
	outcomeSuccess        = "success"
	outcomeBadRequest     = "bad_request"
	outcomeTooLarge       = "too_large"
	outcomeSynthesisError = "synthesis_error"
	outcomeInternalError  = "internal_error"
)

// Metrics holds the service collectors. Each instance owns its registry so
// several servers can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	requests           *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	synthesisDuration  prometheus.Histogram
	inFlight           prometheus.Gauge
	archiveFailures    prometheus.Counter
}

// NewMetrics creates and registers the service metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceclone_requests_total",
			Help: "Total number of /process requests by outcome",
		}, []string{"outcome"}),
		extractionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voiceclone_extraction_duration_seconds",
			Help:    "Text extraction latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind"}),
		synthesisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceclone_synthesis_duration_seconds",
			Help:    "Voice-cloning synthesis latency in seconds",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voiceclone_requests_in_flight",
			Help: "Number of /process requests being handled",
		}),
		archiveFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceclone_archive_failures_total",
			Help: "Total number of results that could not be archived",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
