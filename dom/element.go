package dom

import (
	"strings"

	"golang.org/x/net/html"

	"auralense/contrast"
)

// Element wraps an element node. A Document hands out one *Element per node,
// so wrappers compare equal exactly when they denote the same node.
type Element struct {
	doc  *Document
	node *html.Node
}

// Node returns the underlying html node.
func (e *Element) Node() *html.Node { return e.node }

// Index returns the element's position in document order.
func (e *Element) Index() int { return e.doc.index[e.node] }

func (e *Element) TagName() string { return strings.ToUpper(e.node.Data) }

func (e *Element) Parent() contrast.Element {
	p := parentElement(e.node)
	if p == nil {
		return nil
	}
	return e.doc.wrap(p)
}

func (e *Element) DirectText() string {
	if strings.EqualFold(e.node.Data, "input") {
		return getAttr(e.node, "value")
	}
	var b strings.Builder
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func (e *Element) TextContent() string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return b.String()
}

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func (e *Element) SetAttr(name, value string) {
	e.setAttr(name, value)
	e.doc.record(e.node, name, value, false)
	if strings.EqualFold(name, "style") || strings.EqualFold(name, "class") {
		e.doc.invalidate()
	}
}

func (e *Element) setAttr(name, value string) {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: strings.ToLower(name), Val: value})
}

func (e *Element) RemoveAttr(name string) {
	kept := e.node.Attr[:0]
	removed := false
	for _, a := range e.node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	e.node.Attr = kept
	if removed {
		e.doc.record(e.node, name, "", true)
	}
}

func (e *Element) ComputedStyle() contrast.Style {
	return e.doc.computedFor(e.node)
}

func (e *Element) InlineStyle(prop string) string {
	v, _ := inlineValue(getAttr(e.node, "style"), prop)
	return v
}

func (e *Element) SetInlineStyle(prop, value string, important bool) {
	next := setInlineValue(getAttr(e.node, "style"), prop, value, important)
	e.doc.touched[e.node] = true
	if next == "" {
		e.RemoveAttr("style")
		e.doc.invalidate()
		return
	}
	e.SetAttr("style", next)
}
