// Package postprocess implements the Post-Processor: parses the
// conversion stage's HTML and applies, in a fixed order, the
// transformation set in spec §4.9 — sanitization, asset conversion,
// citation repair, display-equation merging, path normalization, math
// renderer injection, and minor cleanup.
//
// All regular expressions used by citation and equation repair are
// compiled once, at Processor construction, and every transformation
// that needs to compare element text does so through a per-call cache
// keyed by *html.Node so repeated lookups within one Process() call
// don't re-walk the same subtree.
package postprocess

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/texforge/texforge/internal/assetconv"
	"github.com/texforge/texforge/pkg/logger"
)

// Options controls optional transformation behavior.
type Options struct {
	SkipAssetConversion bool
	BaseDir             string // directory the final HTML will live in, for path normalization
	AssetOutputDir      string // where rewritten SVG siblings are written, relative to BaseDir
	MaxConcurrentAssets int
}

// Result carries the outcome of one Process call.
type Result struct {
	HTML        []byte
	Assets      []string
	Warnings    []string
	Diagnostics map[string]string
}

// Processor holds the compiled regular expressions and collaborators
// shared across every Process call, built once and reused for the
// lifetime of the engine (it carries no per-job state).
type Processor struct {
	assetConverter *assetconv.Converter
	logger         *logger.Logger

	citationYearRe  *regexp.Regexp
	safeScriptSrcRe *regexp.Regexp
	mathContainerRe *regexp.Regexp
}

// SafeScriptPrefixes lists script src prefixes exempt from the
// sanitizer's drop-all-scripts rule, in addition to the injected math
// renderer itself.
var SafeScriptPrefixes = []string{
	"https://cdn.jsdelivr.net/npm/mathjax",
	"/assets/mathjax/",
}

// New builds a Processor, compiling every regex used by the repair
// passes exactly once.
func New(assetConverter *assetconv.Converter, log *logger.Logger) *Processor {
	return &Processor{
		assetConverter:  assetConverter,
		logger:          log.WithField("component", "post-processor"),
		citationYearRe:  regexp.MustCompile(`^\(?\d{4}[a-z]?\)?$`),
		safeScriptSrcRe: regexp.MustCompile(`^(` + strings.Join(escapeAll(SafeScriptPrefixes), "|") + `)`),
		mathContainerRe: regexp.MustCompile(`(?i)^(mjx-container|math-container|mathjax-container)$`),
	}
}

func escapeAll(prefixes []string) []string {
	out := make([]string, len(prefixes))
	for i, p := range prefixes {
		out[i] = regexp.QuoteMeta(p)
	}
	return out
}

// Process runs the full fixed transformation sequence over rawHTML and
// returns the rewritten document plus collected diagnostics. A DOM
// parse failure never aborts the pipeline: a minimal well-formed
// skeleton is emitted instead and the error is recorded in
// diagnostics, per spec §4.9 item 1.
func (p *Processor) Process(ctx ProcessContext, rawHTML []byte, opts Options) (*Result, error) {
	diagnostics := make(map[string]string)
	var warnings []string

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		p.logger.Warn("DOM parse failed, emitting minimal skeleton", "error", err)
		diagnostics["parse_error"] = err.Error()
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(skeletonHTML))
	}

	p.sanitize(doc)

	var assets []string
	if !opts.SkipAssetConversion {
		converted, assetWarnings := p.convertAssets(ctx, doc, opts)
		assets = converted
		warnings = append(warnings, assetWarnings...)
	}

	p.repairCitations(doc)
	p.mergeEquations(doc)
	p.normalizePaths(doc, opts.BaseDir)
	p.injectMathRenderer(doc)
	p.minorCleanup(doc)

	out, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("postprocess: render output: %w", err)
	}

	return &Result{
		HTML:        []byte(out),
		Assets:      assets,
		Warnings:    warnings,
		Diagnostics: diagnostics,
	}, nil
}

const skeletonHTML = `<!DOCTYPE html><html><head><meta charset="utf-8"></head><body></body></html>`

// textCache memoizes Selection.Text() within a single transformation
// pass so citation/equation repair don't re-walk the same subtree
// for every candidate match.
type textCache struct {
	values map[*html.Node]string
}

func newTextCache() *textCache { return &textCache{values: make(map[*html.Node]string)} }

func (c *textCache) text(s *goquery.Selection) string {
	if len(s.Nodes) == 0 {
		return ""
	}
	node := s.Nodes[0]
	if v, ok := c.values[node]; ok {
		return v
	}
	v := strings.TrimSpace(s.Text())
	c.values[node] = v
	return v
}
