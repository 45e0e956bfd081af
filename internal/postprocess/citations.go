package postprocess

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// repairCitations finds every citation element whose displayed text has
// the shape "Author(s), (Year)" split across multiple children where
// only the year is hyperlinked, and rewraps the entire
// author-plus-parenthesized-year run inside a single hyperlink pointing
// at the same bibliography anchor, per spec §4.9 item 4.
//
// Only the single-citation case is handled; semicolon-separated
// multi-citation groups are a documented gap (spec §9, Open Questions).
func (p *Processor) repairCitations(doc *goquery.Document) {
	cache := newTextCache()

	doc.Find("cite").Each(func(_ int, cite *goquery.Selection) {
		p.repairOneCitation(cite, cache)
	})
}

func (p *Processor) repairOneCitation(cite *goquery.Selection, cache *textCache) {
	children := cite.Contents()
	if children.Length() < 2 {
		return
	}

	// A citation already wrapped as a single <a> spanning the whole
	// content needs no repair; that is the idempotent fixed point.
	anchors := cite.Find("a")
	if anchors.Length() != 1 {
		return
	}
	if cite.Children().Length() == 1 && cite.Children().First().Is("a") {
		return
	}

	anchor := anchors.First()
	yearText := cache.text(anchor)
	if !p.citationYearRe.MatchString(yearText) {
		return
	}

	href, hasHref := anchor.Attr("href")
	if !hasHref {
		return
	}

	var full strings.Builder
	children.Each(func(_ int, child *goquery.Selection) {
		full.WriteString(child.Text())
	})
	combined := strings.TrimSpace(collapseSpaces(full.String()))
	if combined == "" {
		return
	}

	cite.SetHtml(fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), html.EscapeString(combined)))
}

// collapseSpaces folds runs of whitespace introduced by concatenating
// separate text nodes into single spaces, matching how a browser would
// have rendered the original split markup.
func collapseSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
