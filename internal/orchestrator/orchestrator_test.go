package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/texforge/texforge/internal/domain"
	"github.com/texforge/texforge/internal/metrics"
	"github.com/texforge/texforge/pkg/config"
	texerrors "github.com/texforge/texforge/pkg/errors"
	"github.com/texforge/texforge/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig
	cfg.Storage.UploadRoot = filepath.Join(dir, "uploads")
	cfg.Storage.OutputRoot = filepath.Join(dir, "outputs")
	cfg.Tools.CompilerPath = "/bin/true"
	cfg.Tools.ConverterPath = "/bin/true"
	cfg.Tools.VectorizerPath = "/bin/true"
	cfg.Tools.PackageInstallerPath = "/bin/true"
	cfg.Orchestrator.MaxConcurrent = 1
	cfg.Orchestrator.SweepIntervalSeconds = 3600
	cfg.Orchestrator.RetentionHours = 24
	return &cfg
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o := New(testConfig(t), logger.New(), metrics.NoOp())
	t.Cleanup(func() {
		o.Shutdown(2 * time.Second)
	})
	return o
}

func TestSubmit_RejectsWhenAtCapacity(t *testing.T) {
	o := newTestOrchestrator(t)

	running := domain.NewJob("blocker", "blocker.zip", domain.Options{})
	running.Status = domain.StatusRunning
	if err := o.registry.Insert(running); err != nil {
		t.Fatalf("failed to seed blocking job: %v", err)
	}

	_, err := o.Submit(context.Background(), "/nonexistent/archive.zip", "archive.zip", domain.Options{})
	if err == nil {
		t.Fatal("expected admission to fail while at capacity")
	}
	kind, ok := texerrors.GetConversionErrorKind(err)
	if !ok || kind != texerrors.KindCapacityExceeded {
		t.Fatalf("expected KindCapacityExceeded, got %v (ok=%v)", kind, ok)
	}
}

func TestCancel_IsIdempotentOnTerminalJob(t *testing.T) {
	o := newTestOrchestrator(t)

	job := domain.NewJob("done-job", "paper.zip", domain.Options{})
	job.Status = domain.StatusCompleted
	now := time.Now()
	job.CompletedAt = &now
	if err := o.registry.Insert(job); err != nil {
		t.Fatal(err)
	}

	if err := o.Cancel("done-job"); err != nil {
		t.Fatalf("first cancel: unexpected error: %v", err)
	}
	if err := o.Cancel("done-job"); err != nil {
		t.Fatalf("second cancel: unexpected error: %v", err)
	}

	got, err := o.registry.Get("done-job")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected cancel on a completed job to be a no-op, got status %s", got.Status)
	}
}

func TestCancel_UnknownJobReturnsNotFound(t *testing.T) {
	o := newTestOrchestrator(t)

	err := o.Cancel("does-not-exist")
	if err == nil {
		t.Fatal("expected an error for an unknown job id")
	}
	kind, ok := texerrors.GetConversionErrorKind(err)
	if !ok || kind != texerrors.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v (ok=%v)", kind, ok)
	}
}

func TestResult_BranchesOnEveryTerminalStatus(t *testing.T) {
	o := newTestOrchestrator(t)

	completed := domain.NewJob("job-completed", "a.zip", domain.Options{})
	completed.Status = domain.StatusCompleted
	completed.Result = &domain.ConversionResult{HTMLPath: "out/index.html"}
	mustInsert(t, o, completed)

	failed := domain.NewJob("job-failed", "b.zip", domain.Options{})
	failed.Status = domain.StatusFailed
	failed.ConversionFailure = &domain.ConversionFailure{Kind: "CompilerFailure", Message: "boom"}
	mustInsert(t, o, failed)

	cancelled := domain.NewJob("job-cancelled", "c.zip", domain.Options{})
	cancelled.Status = domain.StatusCancelled
	mustInsert(t, o, cancelled)

	cleaned := domain.NewJob("job-cleaned", "d.zip", domain.Options{})
	cleaned.Status = domain.StatusCleaned
	mustInsert(t, o, cleaned)

	pending := domain.NewJob("job-pending", "e.zip", domain.Options{})
	mustInsert(t, o, pending)

	if res, failure, err := o.Result("job-completed"); err != nil || failure != nil || res.HTMLPath != "out/index.html" {
		t.Fatalf("completed branch mismatch: res=%v failure=%v err=%v", res, failure, err)
	}

	if res, failure, err := o.Result("job-failed"); err != nil || res != nil || failure.Message != "boom" {
		t.Fatalf("failed branch mismatch: res=%v failure=%v err=%v", res, failure, err)
	}

	if res, failure, err := o.Result("job-cancelled"); err != nil || res != nil || failure == nil || failure.Kind != string(texerrors.KindCancelled) {
		t.Fatalf("cancelled branch mismatch: res=%v failure=%v err=%v", res, failure, err)
	}

	if _, _, err := o.Result("job-cleaned"); err == nil {
		t.Fatal("expected an error for a cleaned job's result")
	}

	if _, _, err := o.Result("job-pending"); !texerrors.IsConversionError(err) {
		t.Fatalf("expected a ConversionError for a non-terminal job, got %v", err)
	}
}

func mustInsert(t *testing.T, o *Orchestrator, job *domain.Job) {
	t.Helper()
	if err := o.registry.Insert(job); err != nil {
		t.Fatalf("failed to seed job %s: %v", job.ID, err)
	}
}

func TestSweepOnce_ReclaimsOldTerminalJobAndFlipsToCleaned(t *testing.T) {
	o := newTestOrchestrator(t)

	workDir := filepath.Join(o.cfg.Storage.UploadRoot, "old-job")
	outputDir := filepath.Join(o.cfg.Storage.OutputRoot, "old-job")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		t.Fatal(err)
	}

	job := domain.NewJob("old-job", "old.zip", domain.Options{})
	job.Status = domain.StatusCompleted
	job.WorkDir = workDir
	job.OutputDir = outputDir
	past := time.Now().Add(-48 * time.Hour)
	job.CompletedAt = &past
	mustInsert(t, o, job)

	o.sweepOnce()

	got, err := o.registry.Get("old-job")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusCleaned {
		t.Fatalf("expected status cleaned after sweep, got %s", got.Status)
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Fatalf("expected work dir to be removed, stat err: %v", err)
	}
	if _, err := os.Stat(outputDir); !os.IsNotExist(err) {
		t.Fatalf("expected output dir to be removed, stat err: %v", err)
	}
}

func TestSweepOnce_LeavesRecentTerminalJobUntouched(t *testing.T) {
	o := newTestOrchestrator(t)

	job := domain.NewJob("recent-job", "recent.zip", domain.Options{})
	job.Status = domain.StatusCompleted
	recent := time.Now()
	job.CompletedAt = &recent
	mustInsert(t, o, job)

	o.sweepOnce()

	got, err := o.registry.Get("recent-job")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected a recently-completed job to survive the sweep untouched, got %s", got.Status)
	}
}

func TestSettleCancelled_RaceBetweenTwoCancelsSettlesOnce(t *testing.T) {
	o := newTestOrchestrator(t)

	job := domain.NewJob("race-job", "race.zip", domain.Options{})
	job.Status = domain.StatusRunning
	mustInsert(t, o, job)

	done := make(chan error, 2)
	go func() { done <- o.settleCancelled("race-job") }()
	go func() { done <- o.settleCancelled("race-job") }()

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	got, err := o.registry.Get("race-job")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("expected exactly one cancellation to settle, got status %s", got.Status)
	}
}
