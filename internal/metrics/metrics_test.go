package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersAllCollectorsExactlyOnce(t *testing.T) {
	m := New()
	// Vector collectors only appear in Gather output once a labeled
	// child exists.
	m.StageDuration.WithLabelValues("analyze").Observe(1)
	m.StageOutcomes.WithLabelValues("analyze", "completed").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}

	want := []string{
		"texforge_orchestrator_active_jobs",
		"texforge_pipeline_stage_duration_seconds",
		"texforge_pipeline_stage_outcomes_total",
		"texforge_sweeper_jobs_reclaimed_total",
		"texforge_sweeper_cleanup_errors_total",
	}
	for _, n := range want {
		if !names[n] {
			t.Errorf("expected metric family %s to be registered, got families: %v", n, names)
		}
	}
}

func TestNew_DoubleRegistrationWouldPanic(t *testing.T) {
	m := New()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected registering the same collector twice to panic")
		}
	}()
	m.Registry.MustRegister(m.ActiveJobs)
}

func TestJobsTotal_IncrementsPerStatusLabel(t *testing.T) {
	m := New()
	m.JobsTotal.WithLabelValues("completed").Inc()
	m.JobsTotal.WithLabelValues("completed").Inc()
	m.JobsTotal.WithLabelValues("failed").Inc()

	if got := testutil.ToFloat64(m.JobsTotal.WithLabelValues("completed")); got != 2 {
		t.Fatalf("expected 2 completed jobs counted, got %v", got)
	}
	if got := testutil.ToFloat64(m.JobsTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed job counted, got %v", got)
	}
}
