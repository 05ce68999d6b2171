// Package metrics exposes batch and validation counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "titlegen"

// Metrics holds the collectors on a private registry. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	registry      *prometheus.Registry
	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
	records       *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	engineErrors  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Generation batches by outcome.",
		}, []string{"outcome"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time spent on one generation batch, validation included.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Processed records by final status.",
		}, []string{"status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_transitions_total",
			Help:      "Validation state machine transitions.",
		}, []string{"event", "to"}),
		engineErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Failed generation calls.",
		}),
	}
	m.registry.MustRegister(
		m.batches,
		m.batchDuration,
		m.records,
		m.transitions,
		m.engineErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry is exposed for tests and for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// BatchDone records one batch. outcome is "ok" or "failed".
func (m *Metrics) BatchDone(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(outcome).Inc()
	m.batchDuration.Observe(took.Seconds())
	if outcome == "failed" {
		m.engineErrors.Inc()
	}
}

// RecordDone counts a record under its validation status, or "failed".
func (m *Metrics) RecordDone(status string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(status).Inc()
}

// Transition has the shape of a validation transition hook.
func (m *Metrics) Transition(event, _, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event, to).Inc()
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
