// Package dom implements the contrast document capability over an
// x/net/html tree. Computed styles come either from a local cascade of the
// page's author stylesheets, or from values captured in a live browser.
package dom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"auralense/contrast"
)

// Options tune how a document is loaded and styled.
type Options struct {
	// BaseURL resolves linked stylesheets. Without it only <style> blocks
	// and absolute links are used.
	BaseURL string
	// Header is sent with every fetch.
	Header         http.Header
	ViewportWidth  int
	ViewportHeight int
	DarkScheme     bool
	// MaxStylesheets caps how many external sheets are fetched.
	MaxStylesheets int
	Client         *http.Client
	Logger         *log.Logger
}

func (o *Options) applyDefaults() {
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = 1280
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = 800
	}
	if o.MaxStylesheets == 0 {
		o.MaxStylesheets = 16
	}
}

func (o *Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (o *Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// Change records one mutation of an element attribute. Index is the
// element's position in document order, counting every element. Handle is
// the element's contrast handle when it carries one; writes of the handle
// attribute itself leave it empty and are located by Index.
type Change struct {
	Index  int    `json:"index"`
	Tag    string `json:"tag"`
	Handle string `json:"handle,omitempty"`
	Attr   string `json:"attr"`
	Value  string `json:"value"`
	Remove bool   `json:"remove,omitempty"`
}

// maxCachedSelectors bounds the parsed selector cache. Handle lookups use a
// fresh selector each time and would otherwise grow it for the life of a
// session.
const maxCachedSelectors = 64

// Document is a parsed page implementing contrast.Document.
type Document struct {
	root        *html.Node
	rootElement *html.Node
	sheet       *Stylesheet
	opts        Options

	elems     map[*html.Node]*Element
	index     map[*html.Node]int
	styles    map[*html.Node]contrast.Style
	preset    map[*html.Node]contrast.Style
	touched   map[*html.Node]bool
	selectors map[string]cascadia.SelectorGroup
	journal   []Change
}

var errNoRoot = errors.New("dom: document has no root element")

// Parse reads markup and prepares the local cascade.
func Parse(ctx context.Context, r io.Reader, opts Options) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	opts.applyDefaults()
	doc, err := newDocument(root, opts)
	if err != nil {
		return nil, err
	}
	doc.sheet = buildStylesheet(ctx, root, &doc.opts)
	return doc, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(ctx context.Context, markup string, opts Options) (*Document, error) {
	return Parse(ctx, strings.NewReader(markup), opts)
}

// Fetch downloads target and parses it, using the final URL as the base
// for linked stylesheets.
func Fetch(ctx context.Context, target string, opts Options) (*Document, error) {
	opts.applyDefaults()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
	}
	resp, err := opts.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: %s", target, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = resp.Request.URL.String()
	}
	return Parse(ctx, bytes.NewReader(body), opts)
}

// FromTree wraps a tree whose computed styles were captured elsewhere. Every
// element of root should have an entry in styles; elements without one fall
// back to the local cascade.
func FromTree(root *html.Node, styles map[*html.Node]contrast.Style, opts Options) (*Document, error) {
	opts.applyDefaults()
	doc, err := newDocument(root, opts)
	if err != nil {
		return nil, err
	}
	for n, st := range styles {
		doc.preset[n] = st
	}
	return doc, nil
}

func newDocument(root *html.Node, opts Options) (*Document, error) {
	doc := &Document{
		root:      root,
		opts:      opts,
		elems:     make(map[*html.Node]*Element),
		index:     make(map[*html.Node]int),
		styles:    make(map[*html.Node]contrast.Style),
		preset:    make(map[*html.Node]contrast.Style),
		touched:   make(map[*html.Node]bool),
		selectors: make(map[string]cascadia.SelectorGroup),
	}
	i := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if doc.rootElement == nil {
				doc.rootElement = n
			}
			doc.index[n] = i
			i++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if doc.rootElement == nil {
		return nil, errNoRoot
	}
	return doc, nil
}

// QueryAll implements contrast.Document.
func (d *Document) QueryAll(selector string) ([]contrast.Element, error) {
	group, ok := d.selectors[selector]
	if !ok {
		var err error
		group, err = cascadia.ParseGroup(selector)
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", selector, err)
		}
		if len(d.selectors) < maxCachedSelectors {
			d.selectors[selector] = group
		}
	}
	nodes := cascadia.QueryAll(d.root, group)
	out := make([]contrast.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrap(n))
	}
	return out, nil
}

// DocumentElement implements contrast.Document.
func (d *Document) DocumentElement() contrast.Element {
	return d.wrap(d.rootElement)
}

func (d *Document) wrap(n *html.Node) *Element {
	if el, ok := d.elems[n]; ok {
		return el
	}
	el := &Element{doc: d, node: n}
	d.elems[n] = el
	return el
}

// Stylesheet exposes the author rules used by the local cascade.
func (d *Document) Stylesheet() *Stylesheet { return d.sheet }

// Changes returns the mutations made since the document was loaded or last
// drained.
func (d *Document) Changes() []Change {
	return append([]Change(nil), d.journal...)
}

// Drain returns the pending mutations and clears the journal.
func (d *Document) Drain() []Change {
	out := d.journal
	d.journal = nil
	return out
}

// Render writes the (possibly mutated) document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, returning an empty string on failure.
func (d *Document) String() string {
	var b strings.Builder
	if err := d.Render(&b); err != nil {
		return ""
	}
	return b.String()
}

func (d *Document) record(n *html.Node, attr, value string, remove bool) {
	ch := Change{
		Index:  d.index[n],
		Tag:    strings.ToLower(n.Data),
		Attr:   attr,
		Value:  value,
		Remove: remove,
	}
	if !strings.EqualFold(attr, contrast.HandleAttr) {
		ch.Handle = getAttr(n, contrast.HandleAttr)
	}
	d.journal = append(d.journal, ch)
}

func (d *Document) invalidate() {
	d.styles = make(map[*html.Node]contrast.Style)
}

func parentElement(n *html.Node) *html.Node {
	if n.Parent != nil && n.Parent.Type == html.ElementNode {
		return n.Parent
	}
	return nil
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}
