package contrast

import (
	"fmt"
	"strings"
)

// fakeElement is an in-memory Element with fixed computed styles. Inline
// color declarations override the computed ones so fixes are observable.
type fakeElement struct {
	tag      string
	parent   *fakeElement
	children []*fakeElement
	text     string
	value    string
	attrs    map[string]string
	style    Style
	inline   map[string]string
}

func (e *fakeElement) TagName() string { return strings.ToUpper(e.tag) }

func (e *fakeElement) Parent() Element {
	if e.parent == nil {
		return nil
	}
	return e.parent
}

func (e *fakeElement) DirectText() string {
	if e.tag == "input" {
		return e.value
	}
	return e.text
}

func (e *fakeElement) TextContent() string {
	var b strings.Builder
	b.WriteString(e.text)
	for _, c := range e.children {
		b.WriteString(c.TextContent())
	}
	return b.String()
}

func (e *fakeElement) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

func (e *fakeElement) SetAttr(name, value string) {
	if e.attrs == nil {
		e.attrs = map[string]string{}
	}
	e.attrs[name] = value
}

func (e *fakeElement) RemoveAttr(name string) { delete(e.attrs, name) }

func (e *fakeElement) ComputedStyle() Style {
	st := e.style
	if v := e.inlineValue("color"); v != "" {
		st.Color = v
	}
	if v := e.inlineValue("background-color"); v != "" {
		st.BackgroundColor = v
	}
	return st
}

func (e *fakeElement) inlineValue(prop string) string {
	v := e.inline[prop]
	return strings.TrimSpace(strings.TrimSuffix(v, "!important"))
}

func (e *fakeElement) InlineStyle(prop string) string { return e.inline[prop] }

func (e *fakeElement) SetInlineStyle(prop, value string, important bool) {
	if e.inline == nil {
		e.inline = map[string]string{}
	}
	if value == "" {
		delete(e.inline, prop)
		return
	}
	if important {
		value += " !important"
	}
	e.inline[prop] = value
}

func (e *fakeElement) add(children ...*fakeElement) *fakeElement {
	for _, c := range children {
		c.parent = e
		e.children = append(e.children, c)
	}
	return e
}

type fakeDocument struct {
	root *fakeElement
}

func (d *fakeDocument) DocumentElement() Element { return d.root }

// QueryAll understands comma separated lists of "tag", "[attr]",
// "[attr=\"v\"]" and "tag[attr=\"v\"]".
func (d *fakeDocument) QueryAll(selector string) ([]Element, error) {
	var matchers []func(*fakeElement) bool
	for _, part := range strings.Split(selector, ",") {
		m, err := compileFake(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	var out []Element
	var walk func(*fakeElement)
	walk = func(e *fakeElement) {
		for _, m := range matchers {
			if m(e) {
				out = append(out, e)
				break
			}
		}
		for _, c := range e.children {
			walk(c)
		}
	}
	walk(d.root)
	return out, nil
}

func compileFake(sel string) (func(*fakeElement) bool, error) {
	tag := sel
	attr, want, hasValue := "", "", false
	if i := strings.IndexByte(sel, '['); i >= 0 {
		if !strings.HasSuffix(sel, "]") {
			return nil, fmt.Errorf("bad selector %q", sel)
		}
		tag = sel[:i]
		inner := sel[i+1 : len(sel)-1]
		if k, v, ok := strings.Cut(inner, "="); ok {
			attr, want, hasValue = k, strings.Trim(v, `"`), true
		} else {
			attr = inner
		}
	}
	return func(e *fakeElement) bool {
		if tag != "" && tag != e.tag {
			return false
		}
		if attr == "" {
			return true
		}
		got, ok := e.attrs[attr]
		if attr == "type" && !ok && e.tag == "input" {
			got, ok = "text", true
		}
		if !ok {
			return false
		}
		return !hasValue || got == want
	}, nil
}

func el(tag, text string, style Style) *fakeElement {
	if style.FontSize == "" {
		style.FontSize = "16px"
	}
	if style.FontWeight == "" {
		style.FontWeight = "400"
	}
	if style.Display == "" {
		style.Display = "block"
	}
	if style.BackgroundColor == "" {
		style.BackgroundColor = "rgba(0, 0, 0, 0)"
	}
	style.Rendered = true
	return &fakeElement{tag: tag, text: text, style: style}
}

// page builds html > body > children with transparent containers.
func page(children ...*fakeElement) *fakeDocument {
	body := el("body", "", Style{Color: "rgb(0, 0, 0)"})
	body.add(children...)
	root := el("html", "", Style{Color: "rgb(0, 0, 0)"})
	root.add(body)
	return &fakeDocument{root: root}
}
