package postprocess

import (
	"testing"

	"github.com/texforge/texforge/pkg/logger"
)

func TestMergeEquationTables_CollapsesMultiCellTableToOne(t *testing.T) {
	p := New(nil, logger.New())
	doc := parseDoc(t, `<html><body><table class="equation"><tbody>
		<tr><td>x^2</td><td>+</td><td>y^2</td></tr>
	</tbody></table></body></html>`)

	p.mergeEquationTables(doc)

	cells := doc.Find("table.equation td")
	if cells.Length() != 1 {
		t.Fatalf("expected exactly one merged cell, got %d", cells.Length())
	}
	html, _ := cells.Html()
	if html != "x^2 + y^2" {
		t.Fatalf("expected merged content, got %q", html)
	}
}

func TestMergeEquationTables_IsIdempotent(t *testing.T) {
	p := New(nil, logger.New())
	doc := parseDoc(t, `<html><body><table class="equation"><tbody>
		<tr><td>a</td><td>b</td></tr>
	</tbody></table></body></html>`)

	p.mergeEquationTables(doc)
	first, _ := doc.Find("table.equation").Html()

	p.mergeEquationTables(doc)
	second, _ := doc.Find("table.equation").Html()

	if first != second {
		t.Fatalf("expected second pass to be a no-op, got %q then %q", first, second)
	}
}

func TestMergeMathContainers_MergesContiguousGroup(t *testing.T) {
	p := New(nil, logger.New())
	doc := parseDoc(t, `<html><body>
		<mjx-container>x</mjx-container><mjx-container>+y</mjx-container><mjx-container>=z</mjx-container>
		<p>unrelated</p>
	</body></html>`)

	p.mergeMathContainers(doc)

	containers := doc.Find("mjx-container")
	if containers.Length() != 1 {
		t.Fatalf("expected the three contiguous containers to merge into one, got %d", containers.Length())
	}
	html, _ := containers.Html()
	if html != "x +y =z" {
		t.Fatalf("expected merged math content, got %q", html)
	}
}

func TestMergeMathContainers_DoesNotMergeAcrossOtherElements(t *testing.T) {
	p := New(nil, logger.New())
	doc := parseDoc(t, `<html><body>
		<mjx-container>x</mjx-container><p>text</p><mjx-container>y</mjx-container>
	</body></html>`)

	p.mergeMathContainers(doc)

	containers := doc.Find("mjx-container")
	if containers.Length() != 2 {
		t.Fatalf("expected non-contiguous containers to remain separate, got %d", containers.Length())
	}
}

func TestMergeMathContainers_IsIdempotent(t *testing.T) {
	p := New(nil, logger.New())
	doc := parseDoc(t, `<html><body><mjx-container>x</mjx-container><mjx-container>y</mjx-container></body></html>`)

	p.mergeMathContainers(doc)
	first, _ := doc.Find("body").Html()

	p.mergeMathContainers(doc)
	second, _ := doc.Find("body").Html()

	if first != second {
		t.Fatalf("expected second pass to be a no-op, got %q then %q", first, second)
	}
}
