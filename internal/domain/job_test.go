package domain

import (
	"testing"
	"time"
)

func TestNewJob_InitializesPendingStages(t *testing.T) {
	job := NewJob("job-1", "paper.zip", Options{})

	if job.Status != StatusPending {
		t.Fatalf("expected status pending, got %s", job.Status)
	}
	if len(job.Stages) != len(OrderedStages) {
		t.Fatalf("expected %d stages, got %d", len(OrderedStages), len(job.Stages))
	}
	for _, s := range job.Stages {
		if s.Status != StageStatusPending {
			t.Errorf("stage %s: expected pending, got %s", s.Name, s.Status)
		}
	}
}

func TestStageByName(t *testing.T) {
	job := NewJob("job-1", "paper.zip", Options{})

	stage := job.StageByName(StageCompile)
	if stage == nil {
		t.Fatal("expected to find compile stage")
	}
	if stage.Name != StageCompile {
		t.Fatalf("expected compile, got %s", stage.Name)
	}

	if job.StageByName("bogus") != nil {
		t.Fatal("expected nil for unknown stage name")
	}
}

func TestOverall_AllPendingIsZero(t *testing.T) {
	job := NewJob("job-1", "paper.zip", Options{})
	if got := job.Overall(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestOverall_CompletedStagesContribute(t *testing.T) {
	job := NewJob("job-1", "paper.zip", Options{})
	job.Stages[0].Status = StageStatusCompleted
	job.Stages[1].Status = StageStatusSkipped
	job.Stages[2].Status = StageStatusRunning
	job.Stages[2].Progress = 50

	// (2 completed/skipped * 100 + 50) / 5 stages = 50
	if got := job.Overall(); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}

func TestOverall_CompletedJobIsAlwaysFullyProgressed(t *testing.T) {
	job := NewJob("job-1", "paper.zip", Options{})
	job.Status = StatusCompleted
	if got := job.Overall(); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
}

func TestOverall_ElapsedTimeFloorsProgress(t *testing.T) {
	job := NewJob("job-1", "paper.zip", Options{})
	started := time.Now().Add(-3 * time.Minute)
	job.StartedAt = &started

	if got := job.Overall(); got < 2 {
		t.Fatalf("expected elapsed floor of at least 2, got %d", got)
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelled, StatusCleaned}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	nonTerminal := []Status{StatusPending, StatusRunning}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("expected %s to not be terminal", s)
		}
	}
}

func TestDeepCopy_IsIndependent(t *testing.T) {
	job := NewJob("job-1", "paper.zip", Options{})
	job.Result = &ConversionResult{
		Assets:      []string{"a.svg"},
		Warnings:    []string{"w1"},
		Diagnostics: map[string]string{"k": "v"},
	}

	cp := job.DeepCopy()
	cp.Result.Assets[0] = "mutated"
	cp.Result.Diagnostics["k"] = "mutated"
	cp.Stages[0].Status = StageStatusCompleted

	if job.Result.Assets[0] == "mutated" {
		t.Fatal("mutating the copy's assets affected the original")
	}
	if job.Result.Diagnostics["k"] == "mutated" {
		t.Fatal("mutating the copy's diagnostics affected the original")
	}
	if job.Stages[0].Status == StageStatusCompleted {
		t.Fatal("mutating the copy's stages affected the original")
	}
}

func TestDeepCopy_Nil(t *testing.T) {
	var job *Job
	if job.DeepCopy() != nil {
		t.Fatal("expected nil copy of nil job")
	}
}
