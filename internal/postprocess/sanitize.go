package postprocess

import "github.com/PuerkitoBio/goquery"

// sanitize drops every script element whose src is neither the
// injected math renderer nor a known-safe prefix, per spec §4.9 item
// 2. Inline scripts (no src attribute) are always dropped, with the
// single exception of the math renderer's own injected config block
// (identified by mathRendererConfigID): it carries no src by nature
// and must survive repeated Process passes just like the renderer tag
// it configures, or injectMathRenderer's idempotence check would never
// see it re-added.
func (p *Processor) sanitize(doc *goquery.Document) {
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if id, hasID := s.Attr("id"); hasID && id == mathRendererConfigID {
			return
		}
		src, hasSrc := s.Attr("src")
		if hasSrc && p.safeScriptSrcRe.MatchString(src) {
			return
		}
		s.Remove()
	})
}
