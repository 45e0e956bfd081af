package postprocess

import (
	"testing"

	"github.com/texforge/texforge/pkg/logger"
)

func TestMinorCleanup_AddsViewportAndLang(t *testing.T) {
	p := New(nil, logger.New())
	doc := parseDoc(t, `<html><head></head><body></body></html>`)

	p.minorCleanup(doc)

	if doc.Find(`meta[name="viewport"]`).Length() != 1 {
		t.Fatal("expected a viewport meta tag to be added")
	}
	lang, has := doc.Find("html").Attr("lang")
	if !has || lang != "en" {
		t.Fatalf("expected lang=en on <html>, got %q (has=%v)", lang, has)
	}
}

func TestMinorCleanup_PreservesExistingViewportAndLang(t *testing.T) {
	p := New(nil, logger.New())
	doc := parseDoc(t, `<html lang="fr"><head><meta name="viewport" content="width=1024"></head><body></body></html>`)

	p.minorCleanup(doc)

	if doc.Find(`meta[name="viewport"]`).Length() != 1 {
		t.Fatalf("expected exactly one viewport meta, got %d", doc.Find(`meta[name="viewport"]`).Length())
	}
	content, _ := doc.Find(`meta[name="viewport"]`).Attr("content")
	if content != "width=1024" {
		t.Fatalf("expected existing viewport content preserved, got %q", content)
	}
	lang, _ := doc.Find("html").Attr("lang")
	if lang != "fr" {
		t.Fatalf("expected existing lang attribute preserved, got %q", lang)
	}
}

func TestMinorCleanup_IsIdempotent(t *testing.T) {
	p := New(nil, logger.New())
	doc := parseDoc(t, `<html><head></head><body></body></html>`)

	p.minorCleanup(doc)
	first, _ := doc.Find("head").Html()
	firstLang, _ := doc.Find("html").Attr("lang")

	p.minorCleanup(doc)
	second, _ := doc.Find("head").Html()
	secondLang, _ := doc.Find("html").Attr("lang")

	if first != second || firstLang != secondLang {
		t.Fatal("expected second pass to be a no-op")
	}
}
