// Package contrast finds text whose foreground and effective background fail
// the WCAG contrast thresholds and rewrites element styles until they pass.
//
// The package never touches a concrete DOM. It works against the Document
// and Element capabilities below, which are implemented over parsed HTML
// (package dom), over a live browser tab (package browser) and by fakes in
// tests.
package contrast

import "errors"

// HandleAttr is the attribute a scan writes onto every flagged element.
const HandleAttr = "data-auralense-id"

// ErrNoDocument is returned when a pass is started without a document.
var ErrNoDocument = errors.New("contrast: no document")

// Style carries the computed values the analysis reads. Colors are in any
// form ParseColor accepts; FontSize carries its unit ("16px", "12pt").
type Style struct {
	Color           string
	BackgroundColor string
	FontSize        string
	FontWeight      string
	Display         string
	// Rendered is false when the element has no layout box, for example
	// because it or an ancestor is display:none.
	Rendered bool
}

// Element is a node of a rendered document.
//
// Implementations must be comparable and return the same value for the same
// node across calls, since the repairer keys saved styles by element.
type Element interface {
	TagName() string
	// Parent returns the enclosing element, or nil at the root.
	Parent() Element
	// DirectText returns the element's own text nodes concatenated. For text
	// inputs it returns the current value.
	DirectText() string
	TextContent() string
	Attr(name string) (string, bool)
	SetAttr(name, value string)
	RemoveAttr(name string)
	ComputedStyle() Style
	// InlineStyle returns the value of prop in the element's style attribute,
	// suffixed with " !important" when flagged.
	InlineStyle(prop string) string
	// SetInlineStyle writes prop into the style attribute. An empty value
	// removes the declaration.
	SetInlineStyle(prop, value string, important bool)
}

// Document gives access to a rendered document.
type Document interface {
	// QueryAll returns the elements matching a CSS selector in document order.
	QueryAll(selector string) ([]Element, error)
	// DocumentElement returns the outermost element (html).
	DocumentElement() Element
}
