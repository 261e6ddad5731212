// Package telemetry exposes prometheus metrics for the report engine.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry records run, stage and provider metrics. A nil *Telemetry is a
// valid no-op recorder so the engine can run without monitoring wired.
type Telemetry struct {
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	stageDuration *prometheus.HistogramVec
	providerCalls *prometheus.CounterVec
	fallbacks     prometheus.Counter
}

// New registers the engine metrics on reg.
func New(reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mainos_runs_total",
			Help: "Report runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mainos_run_duration_seconds",
			Help:    "End-to-end report run duration.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mainos_stage_duration_seconds",
			Help:    "Pipeline stage duration.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mainos_provider_calls_total",
			Help: "Model invocations by provider and outcome.",
		}, []string{"provider", "outcome"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mainos_provider_fallbacks_total",
			Help: "Primary-to-fallback provider downgrades.",
		}),
	}
	reg.MustRegister(t.runsTotal, t.runDuration, t.stageDuration, t.providerCalls, t.fallbacks)
	return t
}

// RecordRun records a completed run with its outcome label.
func (t *Telemetry) RecordRun(outcome string, d time.Duration) {
	if t == nil {
		return
	}
	t.runsTotal.WithLabelValues(outcome).Inc()
	t.runDuration.Observe(d.Seconds())
}

// RecordStage records one stage pass.
func (t *Telemetry) RecordStage(stage string, d time.Duration) {
	if t == nil {
		return
	}
	t.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordProviderCall records one model invocation.
func (t *Telemetry) RecordProviderCall(provider, outcome string) {
	if t == nil {
		return
	}
	t.providerCalls.WithLabelValues(provider, outcome).Inc()
}

// RecordFallback records a provider downgrade.
func (t *Telemetry) RecordFallback() {
	if t == nil {
		return
	}
	t.fallbacks.Inc()
}
