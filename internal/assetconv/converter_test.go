package assetconv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/texforge/texforge/internal/process"
	"github.com/texforge/texforge/pkg/logger"
)

func TestConvertPDF_FallsBackToRasterWrapOnVectorizerFailure(t *testing.T) {
	dir := t.TempDir()
	srcPDF := filepath.Join(dir, "figure.pdf")
	if err := os.WriteFile(srcPDF, []byte("%PDF-fake"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(process.NewRunner(logger.New()), "/bin/false", "/bin/true", logger.New())
	outSVG := filepath.Join(dir, "figure.svg")

	err := c.Convert(context.Background(), Request{Kind: KindPDF, SourcePath: srcPDF, OutputSVG: outSVG})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(outSVG)
	if err != nil {
		t.Fatalf("expected raster-wrap fallback SVG to be written: %v", err)
	}
	if !contains(string(data), "<image") {
		t.Fatalf("expected fallback SVG to embed an <image> reference, got: %s", data)
	}
}

func TestConvertPDF_SucceedsWithoutFallback(t *testing.T) {
	dir := t.TempDir()
	srcPDF := filepath.Join(dir, "figure.pdf")
	if err := os.WriteFile(srcPDF, []byte("%PDF-fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	outSVG := filepath.Join(dir, "figure.svg")

	// /bin/true exits 0 but writes nothing; the converter trusts the
	// vectorizer's exit code and does not itself verify the file exists.
	c := New(process.NewRunner(logger.New()), "/bin/true", "/bin/true", logger.New())
	if err := c.Convert(context.Background(), Request{Kind: KindPDF, SourcePath: srcPDF, OutputSVG: outSVG}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPool_RunsAllRequestsConcurrently(t *testing.T) {
	dir := t.TempDir()
	c := New(process.NewRunner(logger.New()), "/bin/true", "/bin/true", logger.New())

	var requests []Request
	for i := 0; i < 8; i++ {
		src := filepath.Join(dir, "a.pdf")
		requests = append(requests, Request{
			Kind:       KindPDF,
			SourcePath: src + string(rune('0'+i)),
			OutputSVG:  filepath.Join(dir, "out", string(rune('0'+i))+".svg"),
		})
	}

	results := c.Pool(context.Background(), requests, 3)
	if len(results) != len(requests) {
		t.Fatalf("expected %d results, got %d", len(requests), len(results))
	}
	for src, err := range results {
		if err != nil {
			t.Errorf("%s: unexpected error: %v", src, err)
		}
	}
}

func TestPool_EmptyRequestsReturnsEmptyMap(t *testing.T) {
	c := New(process.NewRunner(logger.New()), "/bin/true", "/bin/true", logger.New())
	results := c.Pool(context.Background(), nil, 4)
	if len(results) != 0 {
		t.Fatalf("expected empty result map, got %v", results)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
