package orchestrator

import (
	"os"
	"time"

	"github.com/texforge/texforge/internal/domain"
)

// runSweeper is the background retention loop: every
// SweepIntervalSeconds it reclaims terminal jobs older than
// RetentionHours by deleting their working/output directories and
// transitioning them to cleaned. It never removes the Job record
// itself, so Status/Result remain queryable against a cleaned job.
func (o *Orchestrator) runSweeper() {
	defer close(o.sweeperDone)

	interval := time.Duration(o.cfg.Orchestrator.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.sweeperStop:
			return
		case <-ticker.C:
			o.sweepOnce()
		}
	}
}

func (o *Orchestrator) sweepOnce() {
	retention := time.Duration(o.cfg.Orchestrator.RetentionHours) * time.Hour
	cutoff := time.Now().Add(-retention)

	eligible := o.registry.TerminalBefore(func(j *domain.Job) bool {
		return j.CompletedAt != nil && j.CompletedAt.Before(cutoff)
	})

	for _, job := range eligible {
		if err := os.RemoveAll(job.WorkDir); err != nil {
			o.logger.Warn("sweeper failed to remove work dir", "jobID", job.ID, "error", err)
			if o.metrics != nil {
				o.metrics.SweeperErrors.Inc()
			}
		}
		if err := os.RemoveAll(job.OutputDir); err != nil {
			o.logger.Warn("sweeper failed to remove output dir", "jobID", job.ID, "error", err)
			if o.metrics != nil {
				o.metrics.SweeperErrors.Inc()
			}
		}

		_ = o.registry.Mutate(job.ID, func(j *domain.Job) {
			j.Status = domain.StatusCleaned
		})
		if o.metrics != nil {
			o.metrics.SweeperReclaimed.Inc()
		}
	}
}
