package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "risk_engine"

// Metrics is the Prometheus sink for scoring and calibration telemetry.
// It satisfies scoring.Recorder and calibration.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	evaluations       *prometheus.CounterVec
	fallbacks         prometheus.Counter
	evalLatency       prometheus.Histogram
	calibrationRuns   *prometheus.CounterVec
	weightAdjustments prometheus.Counter
}

// NewMetrics registers the engine collectors, plus the Go runtime and
// process collectors, on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluations served, by final classification.",
		}, []string{"classification"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_fallbacks_total",
			Help:      "Evaluations whose score matched no tier range.",
		}),
		evalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent scoring one answer set.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		calibrationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibration_runs_total",
			Help:      "Calibration runs, by outcome.",
		}, []string{"status"}),
		weightAdjustments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weight_adjustments_total",
			Help:      "Question weights changed by calibration.",
		}),
	}
	reg.MustRegister(
		m.evaluations, m.fallbacks, m.evalLatency, m.calibrationRuns, m.weightAdjustments,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveEvaluation records one evaluation.
func (m *Metrics) ObserveEvaluation(classification string, fallback bool, elapsed time.Duration) {
	m.evaluations.WithLabelValues(classification).Inc()
	if fallback {
		m.fallbacks.Inc()
	}
	m.evalLatency.Observe(elapsed.Seconds())
}

// ObserveCalibration records one calibration run.
func (m *Metrics) ObserveCalibration(status string, adjustments int) {
	m.calibrationRuns.WithLabelValues(status).Inc()
	if adjustments > 0 {
		m.weightAdjustments.Add(float64(adjustments))
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
