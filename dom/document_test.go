package dom

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"auralense/contrast"
)

var quietLogger = log.New(io.Discard, "", 0)

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	doc, err := ParseString(context.Background(), markup, Options{Logger: quietLogger})
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return doc
}

func first(t *testing.T, doc *Document, selector string) *Element {
	t.Helper()
	found, err := doc.QueryAll(selector)
	if err != nil {
		t.Fatalf("QueryAll(%q): %v", selector, err)
	}
	if len(found) == 0 {
		t.Fatalf("QueryAll(%q) matched nothing", selector)
	}
	return found[0].(*Element)
}

const stylePage = `<!DOCTYPE html>
<html><head><style>
body { color: #333; font-size: 20px; }
.card { background: #fafafa url(bg.png) no-repeat; }
.muted { color: rgb(170, 170, 170); }
#lead.muted { color: #777; }
p.force { color: red !important; }
@media (max-width: 600px) { .card { background-color: black; } }
@media print { .muted { color: black; } }
</style></head>
<body>
<div class="card"><p id="lead" class="muted">Lead text</p><p class="muted">Other</p></div>
<h1>Title <span>inner</span></h1>
<p class="force" style="color: blue">Forced</p>
<p style="font-size: 0.5em; font-weight: bolder">Small</p>
<a href="/x">link</a>
<div hidden><span>gone</span></div>
<div style="display: none"><p>also gone</p></div>
<input type="hidden" value="secret">
</body></html>`

func TestComputedStyleCascade(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, stylePage)
	cases := []struct {
		selector string
		check    func(contrast.Style) bool
		desc     string
	}{
		{"body", func(s contrast.Style) bool { return s.Color == "rgb(51, 51, 51)" && s.FontSize == "20px" }, "body color and size"},
		{".card", func(s contrast.Style) bool { return s.BackgroundColor == "rgb(250, 250, 250)" }, "background shorthand color"},
		{"#lead", func(s contrast.Style) bool { return s.Color == "rgb(119, 119, 119)" }, "id selector wins over class"},
		{"p.muted:not(#lead)", func(s contrast.Style) bool { return s.Color == "rgb(170, 170, 170)" }, "class color, print rule ignored"},
		{"h1", func(s contrast.Style) bool { return s.FontSize == "40px" && s.FontWeight == "700" }, "heading UA size and weight"},
		{"h1 span", func(s contrast.Style) bool { return s.FontSize == "40px" && s.FontWeight == "700" && s.Color == "rgb(51, 51, 51)" }, "inheritance"},
		{"p.force", func(s contrast.Style) bool { return s.Color == "rgb(255, 0, 0)" }, "important beats inline"},
		{"p[style*='0.5em']", func(s contrast.Style) bool { return s.FontSize == "10px" && s.FontWeight == "700" }, "em and bolder"},
		{"a", func(s contrast.Style) bool { return s.Color == "rgb(0, 0, 238)" }, "link color"},
		{"p", func(s contrast.Style) bool { return s.BackgroundColor == "rgba(0, 0, 0, 0)" && s.Rendered }, "transparent default"},
		{"div[hidden] span", func(s contrast.Style) bool { return !s.Rendered }, "hidden attribute"},
		{"div[style] p", func(s contrast.Style) bool { return !s.Rendered }, "display none ancestor"},
		{"input", func(s contrast.Style) bool { return !s.Rendered }, "hidden input"},
	}
	for _, tc := range cases {
		st := first(t, doc, tc.selector).ComputedStyle()
		if !tc.check(st) {
			t.Fatalf("%s (%s): unexpected style %+v", tc.desc, tc.selector, st)
		}
	}
}

func TestMediaQueryViewport(t *testing.T) {
	t.Parallel()
	doc, err := ParseString(context.Background(), stylePage, Options{ViewportWidth: 400, Logger: quietLogger})
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if got := first(t, doc, ".card").ComputedStyle().BackgroundColor; got != "rgb(0, 0, 0)" {
		t.Fatalf("narrow viewport background = %q", got)
	}
}

func TestElementIdentityAndParent(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, stylePage)
	a := first(t, doc, "#lead")
	b := first(t, doc, "p.muted")
	if a != b {
		t.Fatalf("expected the same wrapper for the same node")
	}
	if a.Parent().TagName() != "DIV" {
		t.Fatalf("parent = %s", a.Parent().TagName())
	}
	if doc.DocumentElement().Parent() != nil {
		t.Fatalf("root parent should be nil")
	}
	if a.DirectText() != "Lead text" {
		t.Fatalf("DirectText = %q", a.DirectText())
	}
	if h1 := first(t, doc, "h1"); h1.TextContent() != "Title inner" {
		t.Fatalf("TextContent = %q", h1.TextContent())
	}
}

func TestInlineStyleEditing(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, `<p style="margin: 0; color: #ccc">x</p>`)
	p := first(t, doc, "p")

	if got := p.InlineStyle("color"); got != "#ccc" {
		t.Fatalf("InlineStyle(color) = %q", got)
	}
	p.SetInlineStyle("color", "rgb(0, 0, 0)", true)
	if got := p.InlineStyle("color"); got != "rgb(0, 0, 0) !important" {
		t.Fatalf("after set, InlineStyle(color) = %q", got)
	}
	if got := p.ComputedStyle().Color; got != "rgb(0, 0, 0)" {
		t.Fatalf("computed color after set = %q", got)
	}
	style, _ := p.Attr("style")
	if !strings.Contains(style, "margin: 0;") {
		t.Fatalf("other declarations lost: %q", style)
	}
	p.SetInlineStyle("color", "", false)
	p.SetInlineStyle("margin", "", false)
	if _, ok := p.Attr("style"); ok {
		t.Fatalf("style attribute should be gone")
	}
	if got := p.ComputedStyle().Color; got != "rgb(0, 0, 0)" {
		t.Fatalf("computed color after removal = %q", got)
	}
}

func TestScanAndFixOverParsedHTML(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, `<html><body>
<p style="color: rgb(200, 200, 200)">faint</p>
<p>fine</p>
<div style="background: rgb(150, 150, 150)"><span style="color: rgb(140, 140, 140)">grey on grey</span></div>
</body></html>`)

	scanner := contrast.NewScanner(contrast.WithLogger(quietLogger))
	issues, err := scanner.Scan(doc)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %+v", issues)
	}
	if issues[1].OriginalBackground != "rgb(150, 150, 150)" {
		t.Fatalf("effective background = %q", issues[1].OriginalBackground)
	}

	fixed, err := contrast.NewRepairer(contrast.WithLogger(quietLogger)).Fix(doc, issues)
	if err != nil || fixed != 2 {
		t.Fatalf("Fix = (%d, %v)", fixed, err)
	}
	again, err := scanner.Scan(doc)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no issues after fix, got %+v", again)
	}

	out := doc.String()
	if !strings.Contains(out, "color: rgb(110, 110, 110) !important;") {
		t.Fatalf("rendered output missing fix: %s", out)
	}
	if !strings.Contains(out, "background-color: rgb(0, 0, 0) !important;") {
		t.Fatalf("rendered output missing escalation: %s", out)
	}
	if len(doc.Changes()) == 0 {
		t.Fatalf("expected journaled changes")
	}
}

func TestChangesRecordDocumentOrder(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, `<html><head></head><body><p>a</p><p id="b">b</p></body></html>`)
	b := first(t, doc, "#b")
	b.SetAttr("data-x", "1")
	b.RemoveAttr("data-x")

	changes := doc.Changes()
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %+v", changes)
	}
	// html=0 head=1 body=2 p=3 p#b=4
	if changes[0].Index != 4 || changes[0].Tag != "p" || changes[0].Attr != "data-x" || changes[0].Value != "1" {
		t.Fatalf("unexpected change %+v", changes[0])
	}
	if !changes[1].Remove {
		t.Fatalf("expected removal, got %+v", changes[1])
	}
	if b.Index() != 4 {
		t.Fatalf("Index = %d", b.Index())
	}
}

func TestFromTreeUsesPresetStyles(t *testing.T) {
	t.Parallel()
	root, err := html.Parse(strings.NewReader(`<html><body><p>x</p></body></html>`))
	if err != nil {
		t.Fatalf("html.Parse: %v", err)
	}
	styles := map[*html.Node]contrast.Style{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			styles[n] = contrast.Style{Color: "rgb(9, 9, 9)", BackgroundColor: transparentValue, FontSize: "30px", FontWeight: "400", Display: "block", Rendered: true}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	doc, err := FromTree(root, styles, Options{Logger: quietLogger})
	if err != nil {
		t.Fatalf("FromTree: %v", err)
	}
	p := first(t, doc, "p")
	if got := p.ComputedStyle(); got.FontSize != "30px" || got.Color != "rgb(9, 9, 9)" {
		t.Fatalf("preset style not used: %+v", got)
	}
	p.SetInlineStyle("color", "rgb(1, 2, 3)", true)
	if got := p.ComputedStyle().Color; got != "rgb(1, 2, 3)" {
		t.Fatalf("inline overlay not applied: %q", got)
	}
}

func TestFetchFollowsLinkedStylesheets(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><link rel="stylesheet" href="/site.css"></head><body><p class="x">hi</p></body></html>`)
	})
	mux.HandleFunc("/site.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		fmt.Fprint(w, `@import url("/extra.css"); .x { color: #eee; }`)
	})
	mux.HandleFunc("/extra.css", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `body { background-color: #010101; }`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	doc, err := Fetch(context.Background(), srv.URL+"/page", Options{Logger: quietLogger})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := first(t, doc, "p").ComputedStyle().Color; got != "rgb(238, 238, 238)" {
		t.Fatalf("linked color = %q", got)
	}
	if got := first(t, doc, "body").ComputedStyle().BackgroundColor; got != "rgb(1, 1, 1)" {
		t.Fatalf("imported background = %q", got)
	}
}

func TestFetchErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, err := Fetch(context.Background(), srv.URL, Options{Logger: quietLogger}); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestDrainClearsJournal(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, `<p>x</p>`)
	first(t, doc, "p").SetAttr("data-y", "2")
	if got := doc.Drain(); len(got) != 1 {
		t.Fatalf("Drain = %+v", got)
	}
	if got := doc.Changes(); len(got) != 0 {
		t.Fatalf("journal not cleared: %+v", got)
	}
}

func TestChangesCarryElementHandle(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, `<html><body><p>a</p><p id="b">b</p></body></html>`)
	b := first(t, doc, "#b")
	b.SetAttr(contrast.HandleAttr, "auralense-x-0")
	b.SetInlineStyle("color", "rgb(0, 0, 0)", true)
	b.RemoveAttr(contrast.HandleAttr)

	changes := doc.Drain()
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %+v", changes)
	}
	if changes[0].Handle != "" || changes[0].Attr != contrast.HandleAttr {
		t.Fatalf("handle write should be located by index, got %+v", changes[0])
	}
	if changes[1].Handle != "auralense-x-0" || changes[1].Attr != "style" {
		t.Fatalf("style write should carry the handle, got %+v", changes[1])
	}
	if changes[2].Handle != "" || !changes[2].Remove {
		t.Fatalf("handle removal should be located by index, got %+v", changes[2])
	}
}

func TestHandleLookupsDoNotGrowSelectorCache(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, `<p>x</p>`)
	for i := 0; i < 4*maxCachedSelectors; i++ {
		if _, err := contrast.Lookup(doc, fmt.Sprintf("auralense-p-%d", i)); err != nil {
			t.Fatalf("Lookup: %v", err)
		}
	}
	if n := len(doc.selectors); n > maxCachedSelectors {
		t.Fatalf("selector cache holds %d entries", n)
	}
	if _, err := doc.QueryAll("p"); err != nil {
		t.Fatalf("QueryAll after cache fill: %v", err)
	}
}
