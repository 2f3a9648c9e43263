package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"auralense/contrast"
	"auralense/dom"
)

// snapshotScript serialises the live DOM together with the computed values
// the contrast checks read. Text nodes become plain strings.
const snapshotScript = `(() => {
  const walk = (el) => {
    const cs = getComputedStyle(el);
    const node = {
      t: el.localName,
      ns: el.namespaceURI || "",
      a: Array.from(el.attributes, (a) => [a.name, a.value]),
      s: [cs.color, cs.backgroundColor, cs.fontSize, cs.fontWeight, cs.display],
      r: el.getClientRects().length > 0,
      c: [],
    };
    if (el.tagName === "INPUT" || el.tagName === "TEXTAREA") node.v = el.value;
    for (const child of el.childNodes) {
      if (child.nodeType === Node.TEXT_NODE) node.c.push(child.data);
      else if (child.nodeType === Node.ELEMENT_NODE) node.c.push(walk(child));
    }
    return node;
  };
  return walk(document.documentElement);
})()`

// commitScript applies journal entries. Entries naming a handle go to the
// element carrying it; the rest go by document order index. An entry is
// skipped when its element is gone or no longer has the expected tag.
const commitScript = `((attr, changes) => {
  const all = document.querySelectorAll("*");
  const missing = [];
  let applied = 0;
  for (const ch of changes) {
    const el = ch.handle
      ? document.querySelector("[" + attr + '="' + CSS.escape(ch.handle) + '"]')
      : all[ch.index];
    if (!el || el.localName !== ch.tag) {
      if (ch.handle && !missing.includes(ch.handle)) missing.push(ch.handle);
      continue;
    }
    if (ch.remove) el.removeAttribute(ch.attr);
    else el.setAttribute(ch.attr, ch.value);
    applied++;
  }
  return {applied, missing};
})(%q, %s)`

// CommitResult reports how a batch of changes landed in the page.
type CommitResult struct {
	Applied int `json:"applied"`
	// Missing lists handles whose element was no longer in the page.
	Missing []string `json:"missing"`
}

type snapshotNode struct {
	Tag      string            `json:"t"`
	NS       string            `json:"ns"`
	Attrs    [][2]string       `json:"a"`
	Style    [5]string         `json:"s"`
	Rendered bool              `json:"r"`
	Value    *string           `json:"v"`
	Children []json.RawMessage `json:"c"`
}

const (
	svgNS    = "http://www.w3.org/2000/svg"
	mathmlNS = "http://www.w3.org/1998/Math/MathML"
)

// Snapshot captures the tab's current DOM and computed styles as a document.
// Mutations made to it can be pushed back with Commit.
func (t *Tab) Snapshot(ctx context.Context) (*dom.Document, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var raw []byte
	if err := t.run(ctx, chromedp.Evaluate(snapshotScript, &raw)); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", t.url, err)
	}
	doc, err := decodeSnapshot(raw, dom.Options{
		BaseURL:        t.url,
		ViewportWidth:  t.width,
		ViewportHeight: t.height,
		Logger:         t.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", t.url, err)
	}
	return doc, nil
}

// Commit replays doc's pending mutations in the page.
func (t *Tab) Commit(ctx context.Context, doc *dom.Document) (CommitResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	changes := doc.Drain()
	if len(changes) == 0 {
		return CommitResult{}, nil
	}
	script, err := commitExpression(changes)
	if err != nil {
		return CommitResult{}, err
	}
	var res CommitResult
	if err := t.run(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return CommitResult{}, fmt.Errorf("commit %s: %w", t.url, err)
	}
	if res.Applied < len(changes) {
		t.logger.Printf("browser: %d of %d changes no longer matched the page, missing handles %v", len(changes)-res.Applied, len(changes), res.Missing)
	}
	return res, nil
}

func commitExpression(changes []dom.Change) (string, error) {
	payload, err := json.Marshal(changes)
	if err != nil {
		return "", fmt.Errorf("encode changes: %w", err)
	}
	return fmt.Sprintf(commitScript, contrast.HandleAttr, payload), nil
}

// decodeSnapshot turns the script's output into a document tree whose
// styles are the ones the browser reported.
func decodeSnapshot(raw []byte, opts dom.Options) (*dom.Document, error) {
	var top snapshotNode
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	root := &html.Node{Type: html.DocumentNode}
	styles := make(map[*html.Node]contrast.Style)
	if err := buildNode(root, &top, styles); err != nil {
		return nil, err
	}
	return dom.FromTree(root, styles, opts)
}

func buildNode(parent *html.Node, sn *snapshotNode, styles map[*html.Node]contrast.Style) error {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     sn.Tag,
		DataAtom: atom.Lookup([]byte(sn.Tag)),
	}
	switch sn.NS {
	case svgNS:
		n.Namespace = "svg"
	case mathmlNS:
		n.Namespace = "math"
	}
	for _, kv := range sn.Attrs {
		n.Attr = append(n.Attr, html.Attribute{Key: kv[0], Val: kv[1]})
	}
	if sn.Value != nil && strings.EqualFold(sn.Tag, "input") {
		setValue(n, *sn.Value)
	}
	styles[n] = contrast.Style{
		Color:           sn.Style[0],
		BackgroundColor: sn.Style[1],
		FontSize:        sn.Style[2],
		FontWeight:      sn.Style[3],
		Display:         sn.Style[4],
		Rendered:        sn.Rendered,
	}
	parent.AppendChild(n)

	for _, c := range sn.Children {
		if len(c) > 0 && c[0] == '"' {
			var text string
			if err := json.Unmarshal(c, &text); err != nil {
				return fmt.Errorf("decode text under <%s>: %w", sn.Tag, err)
			}
			n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
			continue
		}
		var child snapshotNode
		if err := json.Unmarshal(c, &child); err != nil {
			return fmt.Errorf("decode child of <%s>: %w", sn.Tag, err)
		}
		if err := buildNode(n, &child, styles); err != nil {
			return err
		}
	}
	return nil
}

// setValue mirrors the live value of an input into its value attribute.
func setValue(n *html.Node, v string) {
	for i, a := range n.Attr {
		if a.Key == "value" {
			n.Attr[i].Val = v
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: "value", Val: v})
}
