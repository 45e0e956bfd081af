package postprocess

import (
	"context"
	"strings"
	"testing"

	"github.com/texforge/texforge/pkg/logger"
)

func TestProcess_FullSequenceOnWellFormedDocument(t *testing.T) {
	p := New(nil, logger.New())
	input := []byte(`<html><head><title>paper</title></head><body>
		<script>alert(1)</script>
		<p><cite><span>Mora, </span><span>(</span><a href="#b1">1989</a><span>)</span></cite></p>
		<img src="./figures/plot.svg">
	</body></html>`)

	result, err := p.Process(ProcessContext{Ctx: context.Background(), JobID: "job-1"}, input, Options{
		SkipAssetConversion: true,
		BaseDir:             "out",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	html := string(result.HTML)
	if strings.Contains(html, "alert(1)") {
		t.Fatal("expected inline script to be sanitized out")
	}
	if !strings.Contains(html, `<a href="#b1">Mora, (1989)</a>`) {
		t.Fatalf("expected citation repair to have run, got: %s", html)
	}
	if !strings.Contains(html, "figures/plot.svg") {
		t.Fatalf("expected path normalization to preserve the asset reference, got: %s", html)
	}
	if !strings.Contains(html, mathRendererSrc) {
		t.Fatal("expected math renderer injection to have run")
	}
	if !strings.Contains(html, `name="viewport"`) {
		t.Fatal("expected minor cleanup to have added a viewport meta tag")
	}
	if _, ok := result.Diagnostics["parse_error"]; ok {
		t.Fatal("did not expect a parse_error diagnostic for well-formed input")
	}
}

func TestProcess_DegenerateInputStillProducesHTML(t *testing.T) {
	p := New(nil, logger.New())
	// An empty byte slice still parses as *some* document under
	// golang.org/x/net/html's lenient parser, so this does not reach the
	// skeleton fallback; it checks that Process neither fails nor returns
	// empty HTML for degenerate input.
	result, err := p.Process(ProcessContext{Ctx: context.Background(), JobID: "job-2"}, []byte(""), Options{
		SkipAssetConversion: true,
	})
	if err != nil {
		t.Fatalf("Process must never fail outright on malformed input: %v", err)
	}
	if len(result.HTML) == 0 {
		t.Fatal("expected non-empty HTML output even for degenerate input")
	}
}

func TestProcess_IsIdempotent(t *testing.T) {
	p := New(nil, logger.New())
	input := []byte(`<html><head><title>paper</title></head><body>
		<script>alert(1)</script>
		<p><cite><span>Mora, </span><span>(</span><a href="#b1">1989</a><span>)</span></cite></p>
		<img src="./figures/plot.svg">
	</body></html>`)

	first, err := p.Process(ProcessContext{Ctx: context.Background(), JobID: "job-3"}, input, Options{
		SkipAssetConversion: true,
		BaseDir:             "out",
	})
	if err != nil {
		t.Fatalf("unexpected error on first pass: %v", err)
	}

	second, err := p.Process(ProcessContext{Ctx: context.Background(), JobID: "job-3"}, first.HTML, Options{
		SkipAssetConversion: true,
		BaseDir:             "out",
	})
	if err != nil {
		t.Fatalf("unexpected error on second pass: %v", err)
	}

	if collapseSpaces(string(first.HTML)) != collapseSpaces(string(second.HTML)) {
		t.Fatalf("expected applying Process twice to be a no-op after the first pass, got:\nfirst:  %s\nsecond: %s", first.HTML, second.HTML)
	}
}

func TestProcess_SkipAssetConversionProducesNoAssets(t *testing.T) {
	p := New(nil, logger.New())
	result, err := p.Process(ProcessContext{Ctx: context.Background()}, []byte(`<html><body></body></html>`), Options{
		SkipAssetConversion: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Assets) != 0 {
		t.Fatalf("expected no converted assets when SkipAssetConversion is set, got %v", result.Assets)
	}
}
