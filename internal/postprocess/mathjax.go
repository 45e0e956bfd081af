package postprocess

import "github.com/PuerkitoBio/goquery"

// mathRendererSrc is the script src the injected math renderer is
// loaded from; it starts with the first entry in SafeScriptPrefixes so
// the sanitizer never strips what this step just added.
const mathRendererSrc = "https://cdn.jsdelivr.net/npm/mathjax@3/es5/tex-mml-chtml.js"

// mathRendererConfigID marks the inline config block so sanitize can
// recognize and keep it across repeated Process calls even though it
// carries no src attribute.
const mathRendererConfigID = "MathJax-config"

// mathRendererConfig enables inline \( \), display \[ \], and
// dollar-pair delimiters, matching spec §4.9 item 7. Client-side math
// rendering itself is explicitly out of scope (spec §1 non-goals); this
// only emits the tag that hands the job to the browser.
const mathRendererConfig = `window.MathJax = {
  tex: {
    inlineMath: [['\\(', '\\)'], ['$', '$']],
    displayMath: [['\\[', '\\]'], ['$$', '$$']]
  }
};`

// injectMathRenderer adds the configuration block and the renderer
// script tag to <head>, unless a prior call already did so (the
// idempotence requirement in spec §8).
func (p *Processor) injectMathRenderer(doc *goquery.Document) {
	head := doc.Find("head")
	if head.Length() == 0 {
		return
	}
	if head.Find(`script[src="` + mathRendererSrc + `"]`).Length() > 0 {
		return
	}

	head.AppendHtml(`<script id="` + mathRendererConfigID + `">` + mathRendererConfig + `</script>`)
	head.AppendHtml(`<script id="MathJax-script" async src="` + mathRendererSrc + `"></script>`)
}
