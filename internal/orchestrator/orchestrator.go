// Package orchestrator implements the Conversion Orchestration Engine's
// public contract: Submit, Status, Cancel, and Result, admission
// control, and the sequential stage pipeline each admitted Job runs
// through (spec §4.1). It is the composition root that wires the
// Archive Extractor, Project Analyzer, Package Installer, Timeout
// Calculator, Compilation/Conversion stages, Post-Processor, and Asset
// Converter together around the Job Registry.
package orchestrator

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/texforge/texforge/internal/analyzer"
	"github.com/texforge/texforge/internal/archive"
	"github.com/texforge/texforge/internal/assetconv"
	"github.com/texforge/texforge/internal/domain"
	"github.com/texforge/texforge/internal/metrics"
	"github.com/texforge/texforge/internal/packages"
	"github.com/texforge/texforge/internal/postprocess"
	"github.com/texforge/texforge/internal/process"
	"github.com/texforge/texforge/internal/registry"
	"github.com/texforge/texforge/internal/stages"
	"github.com/texforge/texforge/internal/timeoutcalc"
	"github.com/texforge/texforge/pkg/config"
	texerrors "github.com/texforge/texforge/pkg/errors"
	"github.com/texforge/texforge/pkg/logger"
)

// Orchestrator is the engine's composition root and public entry point.
type Orchestrator struct {
	cfg      *config.Config
	registry *registry.Registry
	logger   *logger.Logger
	metrics  *metrics.Metrics

	runner       *process.Runner
	extractor    *archive.Extractor
	analyzer     *analyzer.Analyzer
	installer    *packages.Installer
	compiler     *stages.Compiler
	converter    *stages.Converter
	postproc     *postprocess.Processor
	assetConv    *assetconv.Converter
	timeoutCalc  *timeoutcalc.Calculator

	cancelFuncs sync.Map // job id -> context.CancelFunc

	wg           sync.WaitGroup
	sweeperStop  chan struct{}
	sweeperDone  chan struct{}
	shuttingDown chan struct{}
	shutdownOnce sync.Once
}

// New wires every collaborator from cfg and returns an Orchestrator
// ready to accept Submit calls and run its sweeper.
func New(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *Orchestrator {
	reg := registry.New(log)
	runner := process.NewRunner(log)
	pkgCache := packages.NewCache(packages.DefaultTTL, packages.DefaultMaxEntries)

	o := &Orchestrator{
		cfg:          cfg,
		registry:     reg,
		logger:       log.WithField("component", "orchestrator"),
		metrics:      m,
		runner:       runner,
		extractor: archive.New(archive.Limits{
			MaxExpansionRatio:     cfg.Archive.MaxExpansionRatio,
			MaxExpandedBytes:      cfg.Archive.MaxExpandedBytes,
			MaxMemberCount:        cfg.Archive.MaxMemberCount,
			MaxPathComponentBytes: cfg.Archive.MaxPathComponentBytes,
			Timeout:               time.Duration(cfg.Archive.ExtractTimeoutSeconds) * time.Second,
		}, log),
		analyzer:    analyzer.New(analyzer.MaxDepth, log),
		installer:   packages.New(runner, cfg.Tools.PackageInstallerPath, pkgCache, log),
		compiler:    stages.NewCompiler(runner, cfg.Tools.CompilerPath, log),
		converter:   stages.NewConverter(runner, cfg.Tools.ConverterPath, log),
		timeoutCalc: timeoutcalc.New(),
		sweeperStop: make(chan struct{}),
		sweeperDone: make(chan struct{}),
		shuttingDown: make(chan struct{}),
	}

	o.assetConv = assetconv.New(runner, cfg.Tools.VectorizerPath, cfg.Tools.CompilerPath, log)
	o.postproc = postprocess.New(o.assetConv, log)

	go o.runSweeper()

	return o
}

// Registry exposes the underlying Job Registry for read-only callers;
// all mutation still goes through the Orchestrator.
func (o *Orchestrator) Registry() *registry.Registry { return o.registry }

// Submit admits a new Job from archivePath if the engine is below
// MaxConcurrent, creating its working/output directories atomically
// with its registry insertion, then schedules its pipeline execution on
// a dedicated worker goroutine. Dispatch happens after the admission
// lock is released.
func (o *Orchestrator) Submit(ctx context.Context, archivePath, originalFilename string, opts domain.Options) (string, error) {
	select {
	case <-o.shuttingDown:
		return "", texerrors.NewConversionError(texerrors.KindCapacityExceeded, "", "", "engine is shutting down, not admitting new jobs", nil)
	default:
	}

	id := uuid.New().String()
	job := domain.NewJob(id, originalFilename, opts)
	job.WorkDir = o.cfg.JobWorkDir(id)
	job.OutputDir = o.cfg.JobOutputDir(id)

	if err := o.registry.InsertIfUnderCapacity(job, o.cfg.Orchestrator.MaxConcurrent); err != nil {
		return "", texerrors.NewConversionError(texerrors.KindCapacityExceeded, "", "", "admission capacity exceeded", err)
	}

	if err := o.materializeJobDirs(job, archivePath); err != nil {
		// Directory creation failed after registry insertion succeeded:
		// roll back the insertion so the two never disagree, per the
		// atomicity requirement in spec §4.1.
		_ = o.registry.Remove(id)
		return "", texerrors.NewConversionError(texerrors.KindInternal, id, "", "failed to create job directories", err)
	}

	if o.metrics != nil {
		o.metrics.ActiveJobs.Set(float64(o.registry.ActiveCount()))
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runJob(id)
	}()

	return id, nil
}

// materializeJobDirs creates the job's working and output directory
// tree and copies the submitted archive into the upload area, per the
// on-disk layout in spec §6.
func (o *Orchestrator) materializeJobDirs(job *domain.Job, archivePath string) error {
	extractedDir := filepath.Join(job.WorkDir, "extracted")
	if err := os.MkdirAll(extractedDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(job.OutputDir, "assets"), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(job.OutputDir, "converter"), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(job.OutputDir, "compiler"), 0o755); err != nil {
		return err
	}

	dest := filepath.Join(job.WorkDir, job.OriginalFilename)
	return copyFile(archivePath, dest)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// StatusSnapshot is the externally-visible view of a Job returned by
// Status, matching the Status interface contract in spec §6.
type StatusSnapshot struct {
	JobID     string
	Status    domain.Status
	Progress  int
	Stages    []domain.Stage
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status returns a consistent snapshot of the Job's current state.
func (o *Orchestrator) Status(jobID string) (*StatusSnapshot, error) {
	job, err := o.registry.Get(jobID)
	if err != nil {
		return nil, texerrors.NewConversionError(texerrors.KindNotFound, jobID, "", "job not found", err)
	}

	updatedAt := job.CreatedAt
	if job.StartedAt != nil {
		updatedAt = *job.StartedAt
	}
	for _, s := range job.Stages {
		if s.EndedAt != nil && s.EndedAt.After(updatedAt) {
			updatedAt = *s.EndedAt
		}
		if s.StartedAt != nil && s.StartedAt.After(updatedAt) {
			updatedAt = *s.StartedAt
		}
	}
	if job.CompletedAt != nil && job.CompletedAt.After(updatedAt) {
		updatedAt = *job.CompletedAt
	}

	return &StatusSnapshot{
		JobID:     job.ID,
		Status:    job.Status,
		Progress:  job.Overall(),
		Stages:    job.Stages,
		Message:   statusMessage(job),
		CreatedAt: job.CreatedAt,
		UpdatedAt: updatedAt,
	}, nil
}

func statusMessage(job *domain.Job) string {
	if job.Status == domain.StatusFailed && job.ConversionFailure != nil {
		return job.ConversionFailure.Message
	}
	if job.Status == domain.StatusCompleted {
		return "conversion complete"
	}
	return ""
}

// Cancel marks job as cancelled, idempotently. If the job is running,
// its active stage's process group is signaled to terminate within the
// Process Runner's fixed grace period (process.KillGracePeriod) before a
// hard kill. No-op on jobs already in
// a terminal state.
func (o *Orchestrator) Cancel(jobID string) error {
	job, err := o.registry.Get(jobID)
	if err != nil {
		return texerrors.NewConversionError(texerrors.KindNotFound, jobID, "", "job not found", err)
	}
	if job.Status.IsTerminal() {
		return nil
	}

	if cancelVal, ok := o.cancelFuncs.Load(jobID); ok {
		cancelVal.(context.CancelFunc)()
	}

	// The job is settled here directly, whether pending or running; a
	// worker whose cancellation checks observe ctx.Done() also calls
	// settleCancelled. Both paths funnel through settleCancelled's
	// terminal-state guard, so a race between the two can never
	// double-transition or revert a decision.
	return o.settleCancelled(jobID)
}

// Result returns the terminal outcome of a completed or failed Job.
func (o *Orchestrator) Result(jobID string) (*domain.ConversionResult, *domain.ConversionFailure, error) {
	job, err := o.registry.Get(jobID)
	if err != nil {
		return nil, nil, texerrors.NewConversionError(texerrors.KindNotFound, jobID, "", "job not found", err)
	}

	switch job.Status {
	case domain.StatusCompleted:
		return job.Result, nil, nil
	case domain.StatusFailed:
		return nil, job.ConversionFailure, nil
	case domain.StatusCancelled:
		return nil, &domain.ConversionFailure{Kind: string(texerrors.KindCancelled), Message: "job was cancelled"}, nil
	case domain.StatusCleaned:
		return nil, nil, texerrors.NewConversionError(texerrors.KindNotFound, jobID, "", "job artifacts have been cleaned up", nil)
	default:
		return nil, nil, texerrors.NewConversionError(texerrors.KindNotReady, jobID, "", "conversion still in progress", texerrors.ErrResultNotReady)
	}
}

// Shutdown stops admitting new jobs, cancels every running job, stops
// the sweeper, and waits up to drain for in-flight workers to settle,
// per spec §6 "Exit conditions".
func (o *Orchestrator) Shutdown(drain time.Duration) {
	o.shutdownOnce.Do(func() {
		close(o.shuttingDown)
	})

	for _, job := range o.registry.List(registry.Filter{}) {
		if !job.Status.IsTerminal() {
			_ = o.Cancel(job.ID)
		}
	}

	close(o.sweeperStop)
	<-o.sweeperDone

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drain):
		o.logger.Warn("shutdown drain period elapsed with workers still running")
	}
}
