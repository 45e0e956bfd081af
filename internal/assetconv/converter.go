// Package assetconv implements the Asset Converter: rasterizing/
// vectorizing PDF and TikZ assets referenced by the converted HTML into
// SVG siblings, per spec §4.10. Each conversion is an independent
// Process Runner invocation with its own 60s timeout; the caller
// (Post-Processor) bounds concurrency to 4 simultaneous conversions.
package assetconv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/texforge/texforge/internal/process"
	"github.com/texforge/texforge/pkg/logger"
)

// PerAssetTimeout is the fixed timeout for each individual conversion.
const PerAssetTimeout = 60 * time.Second

// Kind identifies the source asset type being converted.
type Kind int

const (
	KindPDF Kind = iota
	KindTikZ
)

// Request describes one asset that needs an SVG sibling.
type Request struct {
	Kind       Kind
	SourcePath string // for KindPDF: path to the PDF; for KindTikZ: path to the extracted fragment
	OutputSVG  string // destination path for the produced SVG
}

// Converter invokes the vector-graphics tool (and, for TikZ, the LaTeX
// compiler on a minimal preamble) to produce SVG assets.
type Converter struct {
	runner         *process.Runner
	vectorizerPath string
	compilerPath   string
	logger         *logger.Logger
}

// New creates a Converter.
func New(runner *process.Runner, vectorizerPath, compilerPath string, log *logger.Logger) *Converter {
	return &Converter{
		runner:         runner,
		vectorizerPath: vectorizerPath,
		compilerPath:   compilerPath,
		logger:         log.WithField("component", "asset-converter"),
	}
}

// Convert produces req.OutputSVG from req.SourcePath. On a vectorizer
// failure for a PDF asset, it falls back to wrapping the raster content
// as an embedded image inside a minimal SVG rather than failing
// outright, per spec §4.10.
func (c *Converter) Convert(ctx context.Context, req Request) error {
	switch req.Kind {
	case KindPDF:
		return c.convertPDF(ctx, req)
	case KindTikZ:
		return c.convertTikZ(ctx, req)
	default:
		return fmt.Errorf("assetconv: unknown asset kind %d", req.Kind)
	}
}

func (c *Converter) convertPDF(ctx context.Context, req Request) error {
	if err := os.MkdirAll(filepath.Dir(req.OutputSVG), 0o755); err != nil {
		return err
	}

	argv := []string{c.vectorizerPath, req.SourcePath, "--pdf-page=1", "--export-type=svg", "--export-filename=" + req.OutputSVG}
	allowList := map[string]bool{c.vectorizerPath: true}

	res, err := c.runner.Run(ctx, argv, nil, filepath.Dir(req.SourcePath), nil, PerAssetTimeout, allowList)
	if err != nil {
		return err
	}
	if res.ExitCode == 0 && !res.TimedOut && !res.Cancelled {
		return nil
	}

	c.logger.Warn("vectorizer failed, falling back to raster wrap", "source", req.SourcePath, "exit_code", res.ExitCode)
	return c.rasterWrap(req)
}

// rasterWrap emits a minimal SVG that embeds the original PDF's first
// page as a rasterized image reference, so downstream HTML can still
// reference a consistent .svg sibling even when true vectorization
// failed.
func (c *Converter) rasterWrap(req Request) error {
	rel, err := filepath.Rel(filepath.Dir(req.OutputSVG), req.SourcePath)
	if err != nil {
		rel = req.SourcePath
	}
	svg := fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="100%%" height="100%%">`+
			`<image href=%q width="100%%" height="100%%"/></svg>`,
		filepath.ToSlash(rel),
	)
	return os.WriteFile(req.OutputSVG, []byte(svg), 0o644)
}

// tikzPreamble wraps a raw TikZ fragment in a minimal standalone
// document so the compiler can produce a single-page PDF from it.
const tikzPreamble = `\documentclass[tikz,border=1pt]{standalone}
\usepackage{tikz}
\begin{document}
%s
\end{document}
`

func (c *Converter) convertTikZ(ctx context.Context, req Request) error {
	workDir, err := os.MkdirTemp(filepath.Dir(req.OutputSVG), "tikz-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	fragment, err := os.ReadFile(req.SourcePath)
	if err != nil {
		return err
	}

	texPath := filepath.Join(workDir, "fragment.tex")
	doc := fmt.Sprintf(tikzPreamble, string(fragment))
	if err := os.WriteFile(texPath, []byte(doc), 0o644); err != nil {
		return err
	}

	compileArgv := []string{
		c.compilerPath, "-pdf", "-interaction=nonstopmode", "-halt-on-error",
		"-no-shell-escape", "-output-directory=" + workDir, texPath,
	}
	compileAllow := map[string]bool{c.compilerPath: true}

	res, err := c.runner.Run(ctx, compileArgv, nil, workDir, nil, PerAssetTimeout, compileAllow)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("assetconv: tikz fragment compile failed: exit %d", res.ExitCode)
	}

	pdfPath := filepath.Join(workDir, "fragment.pdf")
	return c.convertPDF(ctx, Request{Kind: KindPDF, SourcePath: pdfPath, OutputSVG: req.OutputSVG})
}

// Pool runs Convert over a batch of requests bounded to maxConcurrent
// simultaneous conversions; any single asset's failure is recorded but
// does not abort the batch, so the caller can keep the original
// reference for failed assets per spec §4.9 item 3.
func (c *Converter) Pool(ctx context.Context, requests []Request, maxConcurrent int) map[string]error {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	results := make(map[string]error, len(requests))
	if len(requests) == 0 {
		return results
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrent)

	for _, req := range requests {
		req := req
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			err := c.Convert(ctx, req)
			mu.Lock()
			results[req.SourcePath] = err
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}
