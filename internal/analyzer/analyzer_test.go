package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/texforge/texforge/pkg/logger"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyze_PrefersKnownMainName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.tex"), `\documentclass{article}
\usepackage{amsmath}
\usepackage{graphicx, hyperref}
content`)
	writeFile(t, filepath.Join(root, "appendix.tex"), "supporting content that is much longer than main.tex by quite a margin to test the size heuristic is not used")

	a := New(0, logger.New())
	ps, err := a.Analyze(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ps.MainSourceFile != "main.tex" {
		t.Fatalf("expected main.tex selected by name, got %s", ps.MainSourceFile)
	}
	if ps.DocumentClass != "article" {
		t.Fatalf("expected article, got %s", ps.DocumentClass)
	}
	wantPkgs := map[string]bool{"amsmath": true, "graphicx": true, "hyperref": true}
	if len(ps.DeclaredPackages) != len(wantPkgs) {
		t.Fatalf("expected %d packages, got %v", len(wantPkgs), ps.DeclaredPackages)
	}
	for _, p := range ps.DeclaredPackages {
		if !wantPkgs[p] {
			t.Errorf("unexpected package %s", p)
		}
	}
	if len(ps.SupportingFiles) != 1 || ps.SupportingFiles[0] != "appendix.tex" {
		t.Fatalf("expected appendix.tex as supporting file, got %v", ps.SupportingFiles)
	}
}

func TestAnalyze_FallsBackToLargestShallowestFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "small.tex"), `\documentclass{article}`)
	writeFile(t, filepath.Join(root, "large.tex"), `\documentclass{report}`+string(make([]byte, 200)))

	a := New(0, logger.New())
	ps, err := a.Analyze(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ps.MainSourceFile != "large.tex" {
		t.Fatalf("expected largest file large.tex selected, got %s", ps.MainSourceFile)
	}
}

func TestAnalyze_NoTexFilesReturnsError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "readme.md"), "no tex here")

	a := New(0, logger.New())
	if _, err := a.Analyze(root); err == nil {
		t.Fatal("expected an error when no .tex files are present")
	}
}

func TestAnalyze_IgnoresCommentedDirectives(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.tex"), `\documentclass{article}
% \usepackage{shouldnotappear}
\usepackage{amsmath} % trailing comment is fine`)

	a := New(0, logger.New())
	ps, err := a.Analyze(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range ps.DeclaredPackages {
		if p == "shouldnotappear" {
			t.Fatal("commented-out usepackage should not be parsed")
		}
	}
	found := false
	for _, p := range ps.DeclaredPackages {
		if p == "amsmath" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected amsmath to be parsed despite trailing comment")
	}
}

func TestAnalyze_SymlinkCycleDoesNotHang(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.tex"), `\documentclass{article}`)

	sub := filepath.Join(root, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	loop := filepath.Join(sub, "loop")
	if err := os.Symlink(root, loop); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	a := New(0, logger.New())
	if _, err := a.Analyze(root); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
