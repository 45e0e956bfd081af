// Package stages implements the Compilation and Conversion pipeline
// stages: thin, stage-specific wrappers around the Process Runner that
// build the LaTeX compiler's and the TeX→HTML converter's argument
// vectors per spec §4.7/§4.8.
package stages

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/texforge/texforge/internal/process"
	"github.com/texforge/texforge/pkg/logger"
)

// CompileResult carries the outcome of the compilation stage.
type CompileResult struct {
	Recoverable bool // true if failure should mark the stage skipped, not fatal
	ExitCode    int
	Stderr      string
	TimedOut    bool
	Cancelled   bool
}

// Compiler invokes the LaTeX compiler on a project's main source file.
type Compiler struct {
	runner  *process.Runner
	binPath string
	logger  *logger.Logger
}

// NewCompiler creates a Compiler invoking binPath (e.g. latexmk).
func NewCompiler(runner *process.Runner, binPath string, log *logger.Logger) *Compiler {
	return &Compiler{runner: runner, binPath: binPath, logger: log.WithField("component", "compile-stage")}
}

// Run invokes the compiler non-interactively, without shell-escape,
// halting on the first error, writing auxiliary/PDF output into
// outDir. A non-zero exit or timeout is always classified Recoverable
// per spec §4.7: compilation failure only ever skips the stage, never
// fails the job outright.
func (c *Compiler) Run(ctx context.Context, mainSource, projectDir, outDir string, timeout time.Duration) (*CompileResult, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	argv := []string{
		c.binPath,
		"-pdf",
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-no-shell-escape",
		"-output-directory=" + outDir,
		mainSource,
	}
	allowList := map[string]bool{c.binPath: true}

	res, err := c.runner.Run(ctx, argv, nil, projectDir, nil, timeout, allowList)
	if err != nil {
		return nil, err
	}

	return &CompileResult{
		Recoverable: res.ExitCode != 0 || res.TimedOut,
		ExitCode:    res.ExitCode,
		Stderr:      string(res.Stderr),
		TimedOut:    res.TimedOut,
		Cancelled:   res.Cancelled,
	}, nil
}

// IntermediatePDF returns the expected path of the compiler's PDF
// output for mainSource inside outDir, for the conversion/asset stages
// to consume if compilation succeeded.
func IntermediatePDF(mainSource, outDir string) string {
	base := filepath.Base(mainSource)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	return filepath.Join(outDir, stem+".pdf")
}
