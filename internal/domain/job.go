// Package domain holds the core value types shared by the orchestrator
// and every pipeline stage: the Job record, its Stage sub-records, and
// the request/response shapes attached to a Job at each lifecycle point.
package domain

import (
	"time"
)

// Status is the lifecycle state of a Job. Transitions follow a strict
// graph: pending -> running -> completed, with failed reachable from
// running, cancelled reachable from pending or running, and cleaned
// reachable from any terminal state via the sweeper.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusCleaned   Status = "cleaned"
)

// IsTerminal reports whether the status is one from which no further
// pipeline progress occurs.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusCleaned:
		return true
	default:
		return false
	}
}

// StageName identifies one entry in the fixed pipeline sequence.
type StageName string

const (
	StageAnalyze     StageName = "analyze"
	StageCompile     StageName = "compile"
	StageConvert     StageName = "convert"
	StagePostprocess StageName = "postprocess"
	StageValidate    StageName = "validate"
)

// OrderedStages is the fixed, strictly-ordered pipeline sequence every
// Job runs through.
var OrderedStages = []StageName{StageAnalyze, StageCompile, StageConvert, StagePostprocess, StageValidate}

// StageStatus is the lifecycle state of a single Stage record.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// Stage records the progress and outcome of one pipeline stage within a
// Job.
type Stage struct {
	Name        StageName
	Status      StageStatus
	Progress    int // 0-100, contribution of this stage alone
	StartedAt   *time.Time
	EndedAt     *time.Time
	Error       string
	Diagnostics map[string]string
}

// Options carries the closed set of recognized submission options named
// in the external interface contract.
type Options struct {
	SkipImages        bool
	MaxProcessingTime time.Duration // ceiling on the computed timeout budget, if provided
	OutputFormat      string        // only "html" is currently supported
}

// Job is the orchestration engine's central record: one submission's
// identity, ownership of its working/output directories, its pipeline
// progress, and its terminal result or error.
type Job struct {
	ID                 string
	OriginalFilename   string
	WorkDir            string
	OutputDir          string
	Status             Status
	Stages             []Stage
	TimeoutSeconds     int
	CreatedAt          time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	Options            Options
	Result             *ConversionResult
	ConversionFailure  *ConversionFailure
}

// NewJob builds a pending Job ready for admission. The caller is
// responsible for assigning WorkDir/OutputDir once directory creation
// succeeds.
func NewJob(id, originalFilename string, opts Options) *Job {
	stages := make([]Stage, len(OrderedStages))
	for i, name := range OrderedStages {
		stages[i] = Stage{Name: name, Status: StageStatusPending}
	}
	return &Job{
		ID:               id,
		OriginalFilename: originalFilename,
		Status:           StatusPending,
		Stages:           stages,
		CreatedAt:        time.Now(),
		Options:          opts,
	}
}

// StageByName returns a pointer into j.Stages for the named stage, or
// nil if the name is not part of the fixed pipeline sequence.
func (j *Job) StageByName(name StageName) *Stage {
	for i := range j.Stages {
		if j.Stages[i].Name == name {
			return &j.Stages[i]
		}
	}
	return nil
}

// Overall computes the 0-100 progress reported to external callers: the
// fraction of stages that have completed or been skipped, plus the
// current running stage's own contribution, floored by an
// elapsed-time-based minimum so long-running jobs always show forward
// motion.
func (j *Job) Overall() int {
	total := len(j.Stages)
	if total == 0 {
		return 0
	}

	finished := 0
	currentContribution := 0
	for _, s := range j.Stages {
		switch s.Status {
		case StageStatusCompleted, StageStatusSkipped:
			finished++
		case StageStatusRunning:
			currentContribution = s.Progress
		}
	}

	pct := (finished*100 + currentContribution) / total
	if j.Status == StatusCompleted {
		pct = 100
	}

	if floor := j.elapsedFloor(); floor > pct {
		pct = floor
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// elapsedFloor implements the time-based progress minimums: >=1% after
// 30s, >=2% after 2m, >=3% after 5m, >=4% after 10m of elapsed job time.
func (j *Job) elapsedFloor() int {
	if j.StartedAt == nil {
		return 0
	}
	elapsed := time.Since(*j.StartedAt)
	switch {
	case elapsed >= 10*time.Minute:
		return 4
	case elapsed >= 5*time.Minute:
		return 3
	case elapsed >= 2*time.Minute:
		return 2
	case elapsed >= 30*time.Second:
		return 1
	default:
		return 0
	}
}

// DeepCopy returns an independent copy of the Job suitable for handing
// to a caller outside the registry's lock; no field of the copy shares
// storage with the original.
func (j *Job) DeepCopy() *Job {
	if j == nil {
		return nil
	}

	cp := *j
	cp.Stages = make([]Stage, len(j.Stages))
	for i, s := range j.Stages {
		sc := s
		if s.StartedAt != nil {
			t := *s.StartedAt
			sc.StartedAt = &t
		}
		if s.EndedAt != nil {
			t := *s.EndedAt
			sc.EndedAt = &t
		}
		if s.Diagnostics != nil {
			sc.Diagnostics = make(map[string]string, len(s.Diagnostics))
			for k, v := range s.Diagnostics {
				sc.Diagnostics[k] = v
			}
		}
		cp.Stages[i] = sc
	}

	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		r.Assets = append([]string(nil), j.Result.Assets...)
		r.Warnings = append([]string(nil), j.Result.Warnings...)
		if j.Result.Diagnostics != nil {
			r.Diagnostics = make(map[string]string, len(j.Result.Diagnostics))
			for k, v := range j.Result.Diagnostics {
				r.Diagnostics[k] = v
			}
		}
		cp.Result = &r
	}
	if j.ConversionFailure != nil {
		f := *j.ConversionFailure
		f.Suggestions = append([]string(nil), j.ConversionFailure.Suggestions...)
		cp.ConversionFailure = &f
	}

	return &cp
}
