package postprocess

import (
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/texforge/texforge/internal/assetconv"
)

// assetReferenceSelectors finds every element that can reference a PDF
// or TikZ asset the converter emitted a reference to.
const assetReferenceSelectors = "img[src], object[data], embed[src]"

// tikzFragmentSelector marks TikZ source fragments the converter
// extracted inline for later re-rendering (spec §4.10).
const tikzFragmentSelector = "script[type='text/tikz'], pre.tikz-fragment"

// convertAssets implements spec §4.9 item 3: for every referenced PDF
// or TikZ asset, invoke the Asset Converter to produce an SVG sibling
// and rewrite the reference, unless opts requests skipping. Conversion
// runs with a bound of 4 concurrent jobs; any asset failure keeps the
// original reference, per spec.
func (p *Processor) convertAssets(ctx ProcessContext, doc *goquery.Document, opts Options) ([]string, []string) {
	type target struct {
		sel      *goquery.Selection
		attr     string
		req      assetconv.Request
	}

	var targets []target

	doc.Find(assetReferenceSelectors).Each(func(_ int, s *goquery.Selection) {
		attr, src := assetAttr(s)
		if src == "" || !strings.EqualFold(filepath.Ext(src), ".pdf") {
			return
		}
		svgRel := assetSVGSiblingPath(src, opts.AssetOutputDir)
		targets = append(targets, target{
			sel:  s,
			attr: attr,
			req: assetconv.Request{
				Kind:       assetconv.KindPDF,
				SourcePath: filepath.Join(opts.BaseDir, filepath.FromSlash(src)),
				OutputSVG:  filepath.Join(opts.BaseDir, filepath.FromSlash(svgRel)),
			},
		})
	})

	doc.Find(tikzFragmentSelector).Each(func(_ int, s *goquery.Selection) {
		src, has := s.Attr("data-fragment-path")
		if !has || src == "" {
			return
		}
		svgRel := assetSVGSiblingPath(src, opts.AssetOutputDir)
		targets = append(targets, target{
			sel:  s,
			attr: "data-fragment-path",
			req: assetconv.Request{
				Kind:       assetconv.KindTikZ,
				SourcePath: filepath.Join(opts.BaseDir, filepath.FromSlash(src)),
				OutputSVG:  filepath.Join(opts.BaseDir, filepath.FromSlash(svgRel)),
			},
		})
	})

	if len(targets) == 0 {
		return nil, nil
	}

	requests := make([]assetconv.Request, len(targets))
	for i, t := range targets {
		requests[i] = t.req
	}

	errsBySource := p.assetConverter.Pool(ctx.Ctx, requests, opts.MaxConcurrentAssets)

	var assets []string
	var warnings []string
	for _, t := range targets {
		if err := errsBySource[t.req.SourcePath]; err != nil {
			warnings = append(warnings, "asset conversion failed, keeping original reference: "+t.req.SourcePath)
			continue
		}
		rel, err := filepath.Rel(opts.BaseDir, t.req.OutputSVG)
		if err != nil {
			continue
		}
		relSlash := filepath.ToSlash(rel)
		t.sel.SetAttr(t.attr, relSlash)
		assets = append(assets, relSlash)
	}

	return assets, warnings
}

func assetAttr(s *goquery.Selection) (attr, value string) {
	if v, ok := s.Attr("src"); ok {
		return "src", v
	}
	if v, ok := s.Attr("data"); ok {
		return "data", v
	}
	return "", ""
}

// assetSVGSiblingPath computes the SVG path for a source asset
// reference, placed under outputDir with the same base name.
func assetSVGSiblingPath(src, outputDir string) string {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	return filepath.ToSlash(filepath.Join(outputDir, stem+".svg"))
}
