package postprocess

import (
	"testing"

	"github.com/texforge/texforge/pkg/logger"
)

func TestInjectMathRenderer_AddsConfigAndScript(t *testing.T) {
	p := New(nil, logger.New())
	doc := parseDoc(t, `<html><head></head><body></body></html>`)

	p.injectMathRenderer(doc)

	if doc.Find(`script[src="` + mathRendererSrc + `"]`).Length() != 1 {
		t.Fatal("expected the renderer script tag to be injected")
	}
	if doc.Find("head script").Length() != 2 {
		t.Fatalf("expected config script plus renderer script, got %d", doc.Find("head script").Length())
	}
}

func TestInjectMathRenderer_NoHeadIsNoop(t *testing.T) {
	p := New(nil, logger.New())
	doc := parseDoc(t, `<body></body>`)
	// The HTML parser always synthesizes a <head>; remove it so the
	// document really has none.
	doc.Find("head").Remove()

	p.injectMathRenderer(doc)

	if doc.Find("script").Length() != 0 {
		t.Fatal("expected no injection when there is no head element")
	}
}

func TestInjectMathRenderer_IsIdempotent(t *testing.T) {
	p := New(nil, logger.New())
	doc := parseDoc(t, `<html><head></head><body></body></html>`)

	p.injectMathRenderer(doc)
	p.injectMathRenderer(doc)

	if doc.Find(`script[src="` + mathRendererSrc + `"]`).Length() != 1 {
		t.Fatal("expected second injection call to be a no-op")
	}
	if doc.Find("head script").Length() != 2 {
		t.Fatalf("expected exactly two scripts after repeated injection, got %d", doc.Find("head script").Length())
	}
}
