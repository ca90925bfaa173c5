// Package metrics exposes Prometheus instrumentation for the verification
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	outcomes         *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	lookupDuration   *prometheus.HistogramVec
	anomalies        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmatrace",
			Subsystem: "verification",
			Name:      "outcomes_total",
			Help:      "Verification attempts by classification result.",
		}, []string{"result"}),
		pipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pharmatrace",
			Subsystem: "verification",
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end verification pipeline latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		lookupDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pharmatrace",
			Subsystem: "verification",
			Name:      "lookup_duration_seconds",
			Help:      "Latency of evidence lookups by source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		anomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmatrace",
			Subsystem: "verification",
			Name:      "anomalies_total",
			Help:      "Anomaly detector hits by detector.",
		}, []string{"detector"}),
	}
}

func (m *Metrics) ObserveOutcome(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(result).Inc()
	m.pipelineDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveLookup(source string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.lookupDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

func (m *Metrics) AnomalyDetected(detector string) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(detector).Inc()
}
