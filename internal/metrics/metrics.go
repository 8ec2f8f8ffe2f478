// Package metrics exposes Prometheus collectors for resolve batches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the srafetch collectors on a private registry so that
// several instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	pipelinesTotal   *prometheus.CounterVec
	descriptorsTotal prometheus.Counter
	lineFailures     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestErrors    *prometheus.CounterVec
	inFlight         prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.pipelinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srafetch_pipelines_total",
			Help: "Finished accession pipelines by outcome",
		},
		[]string{"outcome"},
	)
	m.descriptorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "srafetch_descriptors_total",
		Help: "Download descriptors produced",
	})
	m.lineFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srafetch_line_failures_total",
			Help: "Input lines skipped by parse failure kind",
		},
		[]string{"kind"},
	)
	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "srafetch_request_duration_seconds",
			Help:    "Archive request latency by service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	m.requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srafetch_request_errors_total",
			Help: "Failed archive requests by service",
		},
		[]string{"service"},
	)
	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "srafetch_pipelines_in_flight",
		Help: "Pipelines currently running",
	})

	m.registry.MustRegister(
		m.pipelinesTotal,
		m.descriptorsTotal,
		m.lineFailures,
		m.requestDuration,
		m.requestErrors,
		m.inFlight,
	)
	return m
}

// PipelineStarted increments the in-flight gauge.
func (m *Metrics) PipelineStarted() {
	m.inFlight.Inc()
}

// PipelineFinished records a completed pipeline and its descriptor count.
func (m *Metrics) PipelineFinished(outcome string, descriptors int) {
	m.inFlight.Dec()
	m.pipelinesTotal.WithLabelValues(outcome).Inc()
	m.descriptorsTotal.Add(float64(descriptors))
}

// LineSkipped counts an unparsable input line.
func (m *Metrics) LineSkipped(kind string) {
	m.lineFailures.WithLabelValues(kind).Inc()
}

// ObserveRequest records one archive request against service ("geo" or "ena").
func (m *Metrics) ObserveRequest(service string, d time.Duration, err error) {
	m.requestDuration.WithLabelValues(service).Observe(d.Seconds())
	if err != nil {
		m.requestErrors.WithLabelValues(service).Inc()
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
