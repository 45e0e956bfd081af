package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/texforge/texforge/internal/domain"
	"github.com/texforge/texforge/internal/postprocess"
	"github.com/texforge/texforge/internal/stages"
	"github.com/texforge/texforge/internal/timeoutcalc"
	texerrors "github.com/texforge/texforge/pkg/errors"
)

// runJob executes one Job's entire pipeline on its own goroutine. It
// owns the job's cancellation context for its whole lifetime and always
// leaves the Job in a terminal status before returning.
func (o *Orchestrator) runJob(id string) {
	log := o.logger.WithField("jobID", id)

	job, err := o.registry.Get(id)
	if err != nil {
		log.Error("runJob: job vanished before start", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.cancelFuncs.Store(id, cancel)
	defer func() {
		o.cancelFuncs.Delete(id)
		cancel()
		if o.metrics != nil {
			o.metrics.ActiveJobs.Set(float64(o.registry.ActiveCount()))
		}
	}()

	if ctx.Err() != nil {
		o.settleCancelled(id)
		return
	}

	extractedDir := filepath.Join(job.WorkDir, "extracted")
	archivePath := filepath.Join(job.WorkDir, job.OriginalFilename)

	budget, err := o.timeoutCalc.Compute(job.WorkDir, int(job.Options.MaxProcessingTime.Seconds()))
	if err != nil {
		budget = budgetFallback()
	}
	_ = o.registry.Mutate(id, func(j *domain.Job) { j.TimeoutSeconds = budget.TotalSeconds })

	ctx, cancelBudget := context.WithTimeout(ctx, time.Duration(budget.TotalSeconds)*time.Second)
	defer cancelBudget()

	_ = o.registry.Mutate(id, func(j *domain.Job) {
		if j.Status.IsTerminal() {
			return
		}
		now := time.Now()
		j.StartedAt = &now
		j.Status = domain.StatusRunning
	})

	// --- analyze ---
	if !o.beginStage(ctx, id, domain.StageAnalyze) {
		return
	}
	if err := o.extractArchive(ctx, archivePath, extractedDir); err != nil {
		o.settleFailed(id, domain.StageAnalyze, texerrors.KindUnsafeArchive, "archive rejected by safety policy", err)
		return
	}
	project, err := o.analyzer.Analyze(extractedDir)
	if err != nil {
		o.settleFailed(id, domain.StageAnalyze, texerrors.KindNoMainSource, "no main LaTeX source file found", err)
		return
	}
	o.installer.EnsureAvailable(ctx, project.DeclaredPackages)
	o.endStageCompleted(ctx, id, domain.StageAnalyze, nil)

	// --- compile ---
	if !o.beginStage(ctx, id, domain.StageCompile) {
		return
	}
	compilerOutDir := filepath.Join(job.OutputDir, "compiler")
	compileTimeout := time.Duration(budget.RemainderSeconds/3) * time.Second
	compileRes, err := o.compiler.Run(ctx, filepath.Join(extractedDir, filepath.FromSlash(project.MainSourceFile)), extractedDir, compilerOutDir, compileTimeout)
	if err != nil || (compileRes != nil && compileRes.Recoverable) {
		diag := map[string]string{}
		if compileRes != nil {
			diag["stderr"] = boundStderr(compileRes.Stderr)
			diag["exit_code"] = itoa(compileRes.ExitCode)
		}
		if ctx.Err() != nil {
			o.settleCancelled(id)
			return
		}
		o.endStageSkipped(id, domain.StageCompile, "compilation failed, continuing without a compiled PDF", diag)
	} else {
		o.endStageCompleted(ctx, id, domain.StageCompile, nil)
	}
	if ctx.Err() != nil {
		o.settleCancelled(id)
		return
	}

	// --- convert ---
	if !o.beginStage(ctx, id, domain.StageConvert) {
		return
	}
	converterOutDir := filepath.Join(job.OutputDir, "converter")
	searchPaths := stages.SearchPaths(extractedDir, project.SupportingFiles, 8)
	convertTimeout := time.Duration(budget.ConverterSeconds) * time.Second
	convertRes, err := o.converter.Run(ctx, filepath.Join(extractedDir, filepath.FromSlash(project.MainSourceFile)), searchPaths, converterOutDir, convertTimeout)
	if err != nil {
		o.settleFailed(id, domain.StageConvert, texerrors.KindConverterFailure, "converter invocation failed to start", err)
		return
	}
	if convertRes.ExitCode != 0 || convertRes.TimedOut {
		if convertRes.Cancelled || ctx.Err() != nil {
			o.settleCancelled(id)
			return
		}
		diag := map[string]string{
			"stderr":    boundStderr(convertRes.Stderr),
			"exit_code": itoa(convertRes.ExitCode),
			"cause":     inferCause(convertRes.Stderr),
		}
		o.settleFailedWithDiagnostics(id, domain.StageConvert, texerrors.KindConverterFailure, "TeX to HTML conversion failed", diag)
		return
	}
	o.endStageCompleted(ctx, id, domain.StageConvert, nil)
	if ctx.Err() != nil {
		o.settleCancelled(id)
		return
	}

	// --- postprocess ---
	if !o.beginStage(ctx, id, domain.StagePostprocess) {
		return
	}
	rawHTML, err := os.ReadFile(convertRes.HTMLPath)
	if err != nil {
		o.settleFailed(id, domain.StagePostprocess, texerrors.KindPostProcessingError, "converter produced no HTML output", err)
		return
	}

	finalHTMLPath := filepath.Join(job.OutputDir, "final.html")
	ppResult, err := o.postproc.Process(postprocess.ProcessContext{Ctx: ctx, JobID: id}, rawHTML, postprocess.Options{
		SkipAssetConversion: job.Options.SkipImages,
		BaseDir:             job.OutputDir,
		AssetOutputDir:      "assets",
		MaxConcurrentAssets: 4,
	})
	if err != nil {
		o.settleFailed(id, domain.StagePostprocess, texerrors.KindPostProcessingError, "post-processing failed", err)
		return
	}
	if err := os.WriteFile(finalHTMLPath, ppResult.HTML, 0o644); err != nil {
		o.settleFailed(id, domain.StagePostprocess, texerrors.KindPostProcessingError, "failed to write final HTML", err)
		return
	}
	o.endStageCompleted(ctx, id, domain.StagePostprocess, map[string]string{"parse_error": ppResult.Diagnostics["parse_error"]})
	if ctx.Err() != nil {
		o.settleCancelled(id)
		return
	}

	// --- validate ---
	if !o.beginStage(ctx, id, domain.StageValidate) {
		return
	}
	warnings := append([]string{}, ppResult.Warnings...)
	stageDiagnostics := map[string]string{}
	_ = o.registry.Mutate(id, func(j *domain.Job) {
		for _, s := range j.Stages {
			if s.Status == domain.StageStatusSkipped {
				warnings = append(warnings, "compilation skipped: "+s.Error)
			}
		}
	})
	score := computeScore(ppResult, warnings)
	o.endStageCompleted(ctx, id, domain.StageValidate, nil)

	o.settleCompleted(id, &domain.ConversionResult{
		HTMLPath:    finalHTMLPath,
		Assets:      ppResult.Assets,
		Score:       score,
		Warnings:    warnings,
		Diagnostics: stageDiagnostics,
	})
}

func budgetFallback() timeoutcalc.Budget {
	return timeoutcalc.Budget{TotalSeconds: 600, ConverterSeconds: 360, RemainderSeconds: 240}
}

func (o *Orchestrator) extractArchive(ctx context.Context, archivePath, destDir string) error {
	_, err := o.extractor.Extract(ctx, archivePath, destDir)
	return err
}

// computeScore is a quality heuristic: starts at 100, loses points for
// each warning and for any parse-recovery diagnostic.
func computeScore(pp *postprocess.Result, warnings []string) int {
	score := 100 - len(warnings)*5
	if pp.Diagnostics["parse_error"] != "" {
		score -= 20
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// inferCause maps captured tool stderr to a coarse failure cause for
// stage diagnostics, reusing the same substrings the suggestions
// lookup keys on.
func inferCause(stderr string) string {
	return classifyStderr(stderr)
}
