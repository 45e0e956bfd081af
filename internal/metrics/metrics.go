// Package metrics exposes the orchestration engine's ambient
// observability surface: a small, process-local set of Prometheus
// collectors an external scrape endpoint can read. This is ambient
// infrastructure, not the excluded HTTP upload surface — no HTTP
// handler lives in this package, only the registry and collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the Orchestrator and Job Registry
// update during normal operation.
type Metrics struct {
	Registry *prometheus.Registry

	ActiveJobs       prometheus.Gauge
	JobsTotal        *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	StageOutcomes    *prometheus.CounterVec
	SweeperReclaimed prometheus.Counter
	SweeperErrors    prometheus.Counter
}

// New builds and registers every collector against a fresh registry,
// namespaced "texforge".
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		ActiveJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "texforge",
			Subsystem: "orchestrator",
			Name:      "active_jobs",
			Help:      "Number of jobs currently in status pending or running.",
		}),
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "texforge",
			Subsystem: "orchestrator",
			Name:      "jobs_total",
			Help:      "Total jobs submitted, labeled by terminal status.",
		}, []string{"status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "texforge",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage invocation.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14), // ~0.1s .. ~13min
		}, []string{"stage"}),
		StageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "texforge",
			Subsystem: "pipeline",
			Name:      "stage_outcomes_total",
			Help:      "Stage completions, labeled by stage and outcome.",
		}, []string{"stage", "outcome"}),
		SweeperReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "texforge",
			Subsystem: "sweeper",
			Name:      "jobs_reclaimed_total",
			Help:      "Jobs transitioned to cleaned by the retention sweeper.",
		}),
		SweeperErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "texforge",
			Subsystem: "sweeper",
			Name:      "cleanup_errors_total",
			Help:      "Directory deletion failures encountered by the sweeper (logged, never fatal).",
		}),
	}

	reg.MustRegister(
		m.ActiveJobs,
		m.JobsTotal,
		m.StageDuration,
		m.StageOutcomes,
		m.SweeperReclaimed,
		m.SweeperErrors,
	)

	return m
}

// NoOp returns a Metrics whose collectors exist but are never exposed
// via a scrape endpoint, for callers (tests, texctl) that don't run a
// metrics server.
func NoOp() *Metrics {
	return New()
}
