package postprocess

import "github.com/PuerkitoBio/goquery"

// minorCleanup adds a responsive viewport meta tag and ensures a lang
// attribute on the root element, per spec §4.9 item 8. Both checks are
// idempotent: a document that already has either is left untouched.
func (p *Processor) minorCleanup(doc *goquery.Document) {
	head := doc.Find("head")
	if head.Length() > 0 && head.Find(`meta[name="viewport"]`).Length() == 0 {
		head.PrependHtml(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	}

	htmlEl := doc.Find("html")
	if htmlEl.Length() > 0 {
		if _, has := htmlEl.Attr("lang"); !has {
			htmlEl.SetAttr("lang", "en")
		}
	}
}
