package orchestrator

import (
	"context"
	"time"

	"github.com/texforge/texforge/internal/domain"
	texerrors "github.com/texforge/texforge/pkg/errors"
)

// beginStage transitions the named stage to running under the registry
// lock, recording its start time, unless the Job has already reached a
// terminal status (a race with Cancel). Returns false when the caller
// should stop running the pipeline.
func (o *Orchestrator) beginStage(ctx context.Context, jobID string, stage domain.StageName) bool {
	proceed := true
	_ = o.registry.Mutate(jobID, func(j *domain.Job) {
		if j.Status.IsTerminal() {
			proceed = false
			return
		}
		if ctx.Err() != nil {
			proceed = false
			return
		}
		now := time.Now()
		if s := j.StageByName(stage); s != nil {
			s.Status = domain.StageStatusRunning
			s.StartedAt = &now
		}
	})
	if !proceed {
		o.settleCancelled(jobID)
		return false
	}
	return true
}

// endStageCompleted marks stage completed with full progress and
// records its duration metric.
func (o *Orchestrator) endStageCompleted(ctx context.Context, jobID string, stage domain.StageName, diagnostics map[string]string) {
	var duration time.Duration
	_ = o.registry.Mutate(jobID, func(j *domain.Job) {
		now := time.Now()
		if s := j.StageByName(stage); s != nil {
			if s.StartedAt != nil {
				duration = now.Sub(*s.StartedAt)
			}
			s.Status = domain.StageStatusCompleted
			s.Progress = 100
			s.EndedAt = &now
			if diagnostics != nil {
				s.Diagnostics = diagnostics
			}
		}
	})
	o.observeStage(stage, "completed", duration)
}

// endStageSkipped marks stage skipped (a recoverable failure that does
// not fail the job outright, e.g. a non-fatal compiler error) with the
// given reason recorded on the Stage.
func (o *Orchestrator) endStageSkipped(jobID string, stage domain.StageName, reason string, diagnostics map[string]string) {
	var duration time.Duration
	_ = o.registry.Mutate(jobID, func(j *domain.Job) {
		now := time.Now()
		if s := j.StageByName(stage); s != nil {
			if s.StartedAt != nil {
				duration = now.Sub(*s.StartedAt)
			}
			s.Status = domain.StageStatusSkipped
			s.Progress = 100
			s.EndedAt = &now
			s.Error = reason
			s.Diagnostics = diagnostics
		}
	})
	o.observeStage(stage, "skipped", duration)
}

func (o *Orchestrator) observeStage(stage domain.StageName, outcome string, duration time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.StageOutcomes.WithLabelValues(string(stage), outcome).Inc()
	if duration > 0 {
		o.metrics.StageDuration.WithLabelValues(string(stage)).Observe(duration.Seconds())
	}
}

// settleFailed transitions jobID to failed, attaching a ConversionFailure
// built from kind/message/cause. It is a no-op if the job is already
// terminal, so a failure racing a concurrent Cancel never overwrites a
// cancelled outcome.
func (o *Orchestrator) settleFailed(jobID string, stage domain.StageName, kind texerrors.Kind, message string, cause error) {
	diag := map[string]string{}
	if cause != nil {
		diag["cause"] = cause.Error()
	}
	o.settleFailedWithDiagnostics(jobID, stage, kind, message, diag)
}

// settleFailedWithDiagnostics is settleFailed with caller-supplied
// diagnostics (captured stderr, exit code, inferred cause) instead of a
// bare Go error.
func (o *Orchestrator) settleFailedWithDiagnostics(jobID string, stage domain.StageName, kind texerrors.Kind, message string, diagnostics map[string]string) {
	settled := false
	_ = o.registry.Mutate(jobID, func(j *domain.Job) {
		if j.Status.IsTerminal() {
			return
		}
		now := time.Now()
		j.Status = domain.StatusFailed
		j.CompletedAt = &now
		j.ConversionFailure = &domain.ConversionFailure{
			Kind:        string(kind),
			Message:     message,
			Stage:       stage,
			Suggestions: suggestionsFor(kind, diagnostics["stderr"]),
			Stderr:      diagnostics["stderr"],
		}
		if s := j.StageByName(stage); s != nil && s.Status != domain.StageStatusCompleted {
			s.Status = domain.StageStatusFailed
			s.EndedAt = &now
			s.Error = message
			s.Diagnostics = diagnostics
		}
		settled = true
	})
	if settled {
		o.observeStage(stage, "failed", 0)
		if o.metrics != nil {
			o.metrics.JobsTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
		}
	}
}

// settleCompleted transitions jobID to completed with result, a no-op
// if the job already reached a terminal state.
func (o *Orchestrator) settleCompleted(jobID string, result *domain.ConversionResult) {
	settled := false
	_ = o.registry.Mutate(jobID, func(j *domain.Job) {
		if j.Status.IsTerminal() {
			return
		}
		now := time.Now()
		j.Status = domain.StatusCompleted
		j.CompletedAt = &now
		j.Result = result
		settled = true
	})
	if settled && o.metrics != nil {
		o.metrics.JobsTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()
	}
}

// settleCancelled transitions jobID to cancelled unless it is already
// terminal. Both Cancel and a worker observing ctx.Done() call this, so
// it must be the single, idempotent funnel for the cancelled outcome:
// whichever caller runs first wins, and the loser's call is a no-op.
func (o *Orchestrator) settleCancelled(jobID string) error {
	settled := false
	err := o.registry.Mutate(jobID, func(j *domain.Job) {
		if j.Status.IsTerminal() {
			return
		}
		now := time.Now()
		j.Status = domain.StatusCancelled
		j.CompletedAt = &now
		for i := range j.Stages {
			if j.Stages[i].Status == domain.StageStatusRunning {
				j.Stages[i].Status = domain.StageStatusFailed
				j.Stages[i].Error = "cancelled"
				j.Stages[i].EndedAt = &now
			}
		}
		settled = true
	})
	if err != nil {
		return err
	}
	if settled && o.metrics != nil {
		o.metrics.JobsTotal.WithLabelValues(string(domain.StatusCancelled)).Inc()
	}
	return nil
}
