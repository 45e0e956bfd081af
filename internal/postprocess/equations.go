package postprocess

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// equationTableSelector matches the "equation table" the converter
// emits to host a single logical display equation (Glossary). The
// converter marks these with a dedicated class; plain content tables
// are left untouched.
const equationTableSelector = "table.equation, table[data-equation]"

// mergeEquations handles both display-equation producer patterns named
// in spec §4.9 item 5: the tabular form (5a) and the script-container
// form (5b).
func (p *Processor) mergeEquations(doc *goquery.Document) {
	p.mergeEquationTables(doc)
	p.mergeMathContainers(doc)
}

// mergeEquationTables coalesces an equation table with multiple
// rows/cells so the entire equation occupies a single 1x1 cell,
// concatenating the original cells' content in document order.
func (p *Processor) mergeEquationTables(doc *goquery.Document) {
	doc.Find(equationTableSelector).Each(func(_ int, table *goquery.Selection) {
		cells := table.Find("td, th")
		if cells.Length() <= 1 {
			return // already merged: the idempotent fixed point
		}

		var parts []string
		cells.Each(func(_ int, cell *goquery.Selection) {
			h, err := cell.Html()
			if err != nil {
				return
			}
			h = strings.TrimSpace(h)
			if h != "" {
				parts = append(parts, h)
			}
		})

		merged := strings.Join(parts, " ")
		body := table.Find("tbody")
		target := body
		if target.Length() == 0 {
			target = table
		}
		target.Find("tr").Remove()
		target.AppendHtml(fmt.Sprintf(`<tr><td>%s</td></tr>`, merged))
	})
}

// mathContainerSelector matches the per-atom wrapper elements a
// client-side math renderer emits (Glossary: "Math container").
const mathContainerSelector = "mjx-container, span.math-container, span[data-mathjax-container]"

// mergeMathContainers merges contiguous math containers that represent
// one logical equation into a single container, concatenating their
// internal math subtrees in document order. Contiguity is determined
// by immediate-sibling adjacency with nothing but whitespace text
// nodes between them.
func (p *Processor) mergeMathContainers(doc *goquery.Document) {
	doc.Find(mathContainerSelector).Each(func(_ int, s *goquery.Selection) {
		// Processing happens via a single forward scan below; skip
		// anything already consumed as part of a prior group by
		// checking it's still attached to a parent.
		if s.Parent().Length() == 0 {
			return
		}
		p.mergeMathGroupStartingAt(s)
	})
}

func (p *Processor) mergeMathGroupStartingAt(first *goquery.Selection) {
	group := []*goquery.Selection{first}
	cursor := first

	for {
		next := immediateSiblingElement(cursor)
		if next == nil || !isMathContainer(next) {
			break
		}
		group = append(group, next)
		cursor = next
	}

	if len(group) < 2 {
		return
	}

	var inner strings.Builder
	for i, g := range group {
		h, err := g.Html()
		if err != nil {
			continue
		}
		if i > 0 {
			inner.WriteString(" ")
		}
		inner.WriteString(strings.TrimSpace(h))
	}

	first.SetHtml(inner.String())
	for _, g := range group[1:] {
		g.Remove()
	}
}

// immediateSiblingElement returns the next sibling *element* node,
// skipping over whitespace-only text nodes, or nil if none qualifies.
// Any other node in between (non-blank text, a comment) yields nil.
func immediateSiblingElement(s *goquery.Selection) *goquery.Selection {
	for n := s.Nodes[0].NextSibling; n != nil; n = n.NextSibling {
		switch n.Type {
		case html.ElementNode:
			return s.Next()
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				return nil
			}
		default:
			return nil
		}
	}
	return nil
}

func isMathContainer(s *goquery.Selection) bool {
	return s.Is(mathContainerSelector)
}
