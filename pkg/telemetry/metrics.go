// Package telemetry exports run metrics in Prometheus textfile format and
// spans through OpenTelemetry. Both are written to files; espboot serves
// nothing.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "espboot"

// Metrics holds the collectors for one run on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	stageDuration *prometheus.GaugeVec
	artifacts     *prometheus.CounterVec
	steps         *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	lastRun       prometheus.Gauge
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Orchestrator runs by terminal state.",
		}, []string{"state"}),
		stageDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each orchestrator stage.",
		}, []string{"stage"}),
		artifacts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_artifacts_total",
			Help:      "Tracked artifacts visited by the cleaner, by outcome.",
		}, []string{"role", "outcome"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_steps_total",
			Help:      "Toolchain invocations by step and result.",
		}, []string{"step", "result"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_step_duration_seconds",
			Help:      "Duration of toolchain invocations.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"step"}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStage records the duration of an orchestrator stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// ObserveArtifact counts one cleaner result.
func (m *Metrics) ObserveArtifact(role, outcome string) {
	m.artifacts.WithLabelValues(role, outcome).Inc()
}

// ObserveStep counts one toolchain invocation.
func (m *Metrics) ObserveStep(step string, d time.Duration, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.steps.WithLabelValues(step, result).Inc()
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// ObserveRun records the terminal state of a run.
func (m *Metrics) ObserveRun(state string, finished time.Time) {
	m.runs.WithLabelValues(state).Inc()
	m.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes every metric to path for node_exporter's textfile
// collector. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
