package browser

import (
	"io"
	"log"
	"strings"
	"testing"

	"auralense/contrast"
	"auralense/dom"
)

const pageSnapshot = `{
  "t": "html", "ns": "http://www.w3.org/1999/xhtml", "a": [["lang", "en"]],
  "s": ["rgb(0, 0, 0)", "rgba(0, 0, 0, 0)", "16px", "400", "block"], "r": true,
  "c": [
    {"t": "body", "ns": "http://www.w3.org/1999/xhtml", "a": [],
     "s": ["rgb(0, 0, 0)", "rgb(255, 255, 255)", "16px", "400", "block"], "r": true,
     "c": [
       {"t": "p", "ns": "http://www.w3.org/1999/xhtml", "a": [["class", "faint"]],
        "s": ["rgb(200, 200, 200)", "rgba(0, 0, 0, 0)", "16px", "400", "block"], "r": true,
        "c": ["Muted copy"]},
       {"t": "input", "ns": "http://www.w3.org/1999/xhtml", "a": [["type", "text"]],
        "s": ["rgb(0, 0, 0)", "rgb(255, 255, 255)", "13.33px", "400", "inline-block"], "r": true,
        "v": "typed", "c": []},
       {"t": "svg", "ns": "http://www.w3.org/2000/svg", "a": [],
        "s": ["rgb(0, 0, 0)", "rgba(0, 0, 0, 0)", "16px", "400", "inline"], "r": true,
        "c": []}
     ]}
  ]
}`

var quiet = log.New(io.Discard, "", 0)

func decodePage(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := decodeSnapshot([]byte(pageSnapshot), dom.Options{Logger: quiet})
	if err != nil {
		t.Fatalf("decodeSnapshot: %v", err)
	}
	return doc
}

func TestDecodeSnapshotKeepsBrowserStyles(t *testing.T) {
	doc := decodePage(t)
	els, err := doc.QueryAll("p.faint")
	if err != nil {
		t.Fatalf("QueryAll: %v", err)
	}
	if len(els) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(els))
	}
	p := els[0]
	if got := p.ComputedStyle().Color; got != "rgb(200, 200, 200)" {
		t.Fatalf("color = %q", got)
	}
	if got := p.DirectText(); got != "Muted copy" {
		t.Fatalf("direct text = %q", got)
	}
	if got := contrast.EffectiveBackground(doc, p); got != contrast.White {
		t.Fatalf("effective background = %v", got)
	}
}

func TestDecodeSnapshotInputValueAndNamespace(t *testing.T) {
	doc := decodePage(t)
	inputs, _ := doc.QueryAll("input")
	if len(inputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(inputs))
	}
	if got := inputs[0].DirectText(); got != "typed" {
		t.Fatalf("input text = %q, want live value", got)
	}
	out := doc.String()
	if !strings.Contains(out, "<svg") {
		t.Fatalf("svg element lost in render: %s", out)
	}
}

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	if _, err := decodeSnapshot([]byte(`[1,2`), dom.Options{}); err == nil {
		t.Fatal("expected error for malformed snapshot")
	}
}

func TestScanFixProducesCommitExpression(t *testing.T) {
	doc := decodePage(t)
	issues, err := contrast.NewScanner(contrast.WithLogger(quiet), contrast.WithPassID(func() string { return "t1" })).Scan(doc)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %+v", len(issues), issues)
	}
	fixed, err := contrast.NewRepairer(contrast.WithLogger(quiet)).Fix(doc, issues)
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if fixed != 1 {
		t.Fatalf("fixed = %d", fixed)
	}

	changes := doc.Drain()
	if len(changes) < 2 {
		t.Fatalf("expected handle and style changes, got %+v", changes)
	}
	last := changes[len(changes)-1]
	if last.Index != 2 || last.Tag != "p" || last.Attr != "style" || last.Handle != "auralense-t1-0" {
		t.Fatalf("unexpected style change %+v", last)
	}
	if !strings.Contains(last.Value, "!important") {
		t.Fatalf("style change should be important: %q", last.Value)
	}

	expr, err := commitExpression(changes)
	if err != nil {
		t.Fatalf("commitExpression: %v", err)
	}
	if !strings.Contains(expr, `"attr":"data-auralense-id"`) || !strings.Contains(expr, `"index":2`) {
		t.Fatalf("expression missing changes: %s", expr)
	}
	if !strings.Contains(expr, `"handle":"auralense-t1-0"`) || !strings.Contains(expr, `("data-auralense-id", [`) {
		t.Fatalf("expression should resolve styles by handle: %s", expr)
	}
	if len(doc.Drain()) != 0 {
		t.Fatal("journal should be empty after drain")
	}
}

// A page that gained an element between scan and fix shifts document order.
// Style writes must then reach the tagged element, not whatever sits at the
// old index.
func TestStyleChangesFollowHandleNotIndex(t *testing.T) {
	doc := decodePage(t)
	scanner := contrast.NewScanner(contrast.WithLogger(quiet), contrast.WithPassID(func() string { return "t2" }))
	issues, err := scanner.Scan(doc)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	tagging := doc.Drain()
	if len(tagging) != 1 || tagging[0].Handle != "" || tagging[0].Index != 2 {
		t.Fatalf("handle tagging should go by index, got %+v", tagging)
	}

	if _, err := contrast.NewRepairer(contrast.WithLogger(quiet)).Fix(doc, issues); err != nil {
		t.Fatalf("Fix: %v", err)
	}
	fixes := doc.Drain()
	if len(fixes) == 0 {
		t.Fatal("expected style changes")
	}
	for _, ch := range fixes {
		if ch.Handle != issues[0].Handle {
			t.Fatalf("style change not bound to handle %s: %+v", issues[0].Handle, ch)
		}
	}

	expr, err := commitExpression(fixes)
	if err != nil {
		t.Fatalf("commitExpression: %v", err)
	}
	if !strings.Contains(expr, `CSS.escape(ch.handle)`) || !strings.Contains(expr, `missing.push(ch.handle)`) {
		t.Fatalf("commit script should look up and report handles: %s", expr)
	}
}
