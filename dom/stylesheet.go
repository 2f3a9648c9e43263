package dom

import (
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/andybalholm/cascadia"
	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"

	"auralense/contrast"
)

const (
	maxImportDepth  = 16
	maxBodyBytes    = 4 << 20
	inlineOrderBase = 1 << 30
)

var inlineSpecificity = cascadia.Specificity{1 << 12, 0, 0}

type propState struct {
	val       string
	spec      cascadia.Specificity
	order     int
	important bool
}

type cssDeclaration struct {
	property  string
	value     string
	important bool
}

type cssRule struct {
	selector     cascadia.Sel
	specificity  cascadia.Specificity
	declarations []cssDeclaration
	order        int
}

// Stylesheet is the flattened list of author rules that apply at the
// configured viewport.
type Stylesheet struct {
	rules []cssRule
}

// Len returns the number of selector rules.
func (s *Stylesheet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

type cssParseContext struct {
	ctx     context.Context
	baseURL string
	opts    *Options
	depth   int
	visited map[string]struct{}
	budget  *int
}

func (c *cssParseContext) child(newBase string) *cssParseContext {
	next := *c
	next.baseURL = newBase
	next.depth = c.depth + 1
	return &next
}

// buildStylesheet collects <style> blocks and, when a base URL is known,
// linked stylesheets in document order.
func buildStylesheet(ctx context.Context, doc *html.Node, opts *Options) *Stylesheet {
	if doc == nil {
		return nil
	}
	budget := opts.MaxStylesheets
	pc := &cssParseContext{
		ctx:     ctx,
		baseURL: opts.BaseURL,
		opts:    opts,
		visited: map[string]struct{}{},
		budget:  &budget,
	}

	ss := &Stylesheet{}
	order := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "style":
				if media := getAttr(n, "media"); media != "" && !mediaRuleActive(media, opts) {
					break
				}
				var text strings.Builder
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.TextNode {
						text.WriteString(c.Data)
					}
				}
				rs, ord := parseCSSText(text.String(), order, pc)
				ss.rules = append(ss.rules, rs...)
				order = ord
			case "link":
				if href, ok := stylesheetLink(n, opts); ok {
					rs, ord := pc.fetchSheet(href, order)
					ss.rules = append(ss.rules, rs...)
					order = ord
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return ss
}

func stylesheetLink(n *html.Node, opts *Options) (string, bool) {
	rel := strings.ToLower(strings.TrimSpace(getAttr(n, "rel")))
	if !strings.Contains(rel, "stylesheet") || strings.Contains(rel, "alternate") {
		return "", false
	}
	if typ := strings.ToLower(strings.TrimSpace(getAttr(n, "type"))); typ != "" && typ != "text/css" {
		return "", false
	}
	if media := getAttr(n, "media"); media != "" && !mediaRuleActive(media, opts) {
		return "", false
	}
	href := strings.TrimSpace(getAttr(n, "href"))
	return href, href != ""
}

// fetchSheet resolves href against the current base and parses the body.
// Sheets are fetched at most once and only while the budget lasts.
func (c *cssParseContext) fetchSheet(href string, order int) ([]cssRule, int) {
	if c.baseURL == "" && !strings.Contains(href, "://") {
		return nil, order
	}
	abs := resolveAbsURL(c.baseURL, href)
	if abs == "" {
		return nil, order
	}
	if _, seen := c.visited[abs]; seen {
		return nil, order
	}
	c.visited[abs] = struct{}{}
	if *c.budget <= 0 {
		return nil, order
	}
	*c.budget--
	body, err := fetchText(c.ctx, c.opts.client(), abs, c.opts.Header, "text/css")
	if err != nil {
		c.opts.logger().Printf("dom: stylesheet %s: %v", abs, err)
		return nil, order
	}
	return parseCSSText(string(body), order, c.child(abs))
}

func parseCSSText(txt string, startOrder int, pc *cssParseContext) ([]cssRule, int) {
	trimmed := strings.TrimSpace(txt)
	if trimmed == "" || pc.depth >= maxImportDepth {
		return nil, startOrder
	}
	sheet, err := parser.Parse(trimmed)
	if err != nil {
		pc.opts.logger().Printf("dom: parse css (%s): %v", describeBase(pc.baseURL), err)
		return nil, startOrder
	}

	rules := make([]cssRule, 0, len(sheet.Rules)*2)
	order := startOrder

	var walk func([]*cssast.Rule)
	walk = func(list []*cssast.Rule) {
		for _, rule := range list {
			if rule == nil {
				continue
			}
			switch rule.Kind {
			case cssast.AtRule:
				switch strings.ToLower(strings.TrimSpace(rule.Name)) {
				case "@media":
					if mediaRuleActive(rule.Prelude, pc.opts) {
						walk(rule.Rules)
					}
				case "@supports", "@layer", "@container":
					walk(rule.Rules)
				case "@import":
					target, media := extractImportTarget(rule.Prelude)
					if target == "" || (media != "" && !mediaRuleActive(media, pc.opts)) {
						continue
					}
					rs, ord := pc.fetchSheet(target, order)
					rules = append(rules, rs...)
					order = ord
				default:
					// @font-face, @keyframes and friends carry no selectors.
				}
			case cssast.QualifiedRule:
				decls := convertDeclarations(rule.Declarations)
				if len(decls) == 0 || len(rule.Selectors) == 0 {
					continue
				}
				group, err := cascadia.ParseGroup(strings.Join(rule.Selectors, ","))
				if err != nil {
					// Vendor pseudo-classes cascadia does not know are common.
					continue
				}
				for _, sel := range group {
					if sel == nil || sel.PseudoElement() != "" {
						continue
					}
					rules = append(rules, cssRule{selector: sel, specificity: sel.Specificity(), declarations: decls, order: order})
					order++
				}
			}
		}
	}
	walk(sheet.Rules)
	return rules, order
}

func describeBase(base string) string {
	if base == "" {
		return "inline"
	}
	return base
}

func convertDeclarations(list []*cssast.Declaration) []cssDeclaration {
	if len(list) == 0 {
		return nil
	}
	out := make([]cssDeclaration, 0, len(list))
	for _, decl := range list {
		if decl == nil {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(decl.Property))
		val := strings.TrimSpace(decl.Value)
		if prop == "" || val == "" {
			continue
		}
		out = append(out, cssDeclaration{property: prop, value: val, important: decl.Important})
	}
	return out
}

func extractImportTarget(prelude string) (string, string) {
	s := strings.TrimSpace(prelude)
	if s == "" {
		return "", ""
	}
	if strings.HasPrefix(strings.ToLower(s), "url(") {
		end := strings.Index(s, ")")
		if end == -1 {
			return "", ""
		}
		return trimCSSString(s[4:end]), strings.TrimSpace(s[end+1:])
	}
	if (s[0] == '"' || s[0] == '\'') && len(s) > 1 {
		if idx := strings.IndexByte(s[1:], s[0]); idx != -1 {
			return s[1 : idx+1], strings.TrimSpace(s[idx+2:])
		}
	}
	fields := strings.Fields(s)
	return trimCSSString(fields[0]), strings.TrimSpace(strings.TrimPrefix(s, fields[0]))
}

func trimCSSString(v string) string {
	vv := strings.TrimSpace(v)
	if len(vv) >= 2 {
		if (vv[0] == '"' && vv[len(vv)-1] == '"') || (vv[0] == '\'' && vv[len(vv)-1] == '\'') {
			return vv[1 : len(vv)-1]
		}
	}
	return vv
}

func mediaRuleActive(prelude string, opts *Options) bool {
	if strings.TrimSpace(prelude) == "" {
		return true
	}
	for _, raw := range strings.Split(prelude, ",") {
		query := strings.ToLower(strings.TrimSpace(raw))
		if query == "" {
			continue
		}
		negate := false
		if strings.HasPrefix(query, "not ") {
			negate = true
			query = strings.TrimSpace(strings.TrimPrefix(query, "not "))
		}
		query = strings.TrimSpace(strings.TrimPrefix(query, "only "))

		mediaType := ""
		rest := query
		if parts := strings.Fields(query); len(parts) > 0 && !strings.HasPrefix(parts[0], "(") {
			mediaType = parts[0]
			rest = strings.TrimSpace(strings.TrimPrefix(query, mediaType))
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "and"))
		}

		matched := false
		switch mediaType {
		case "", "all", "screen":
			matched = evaluateMediaFeatures(rest, opts)
		}
		if matched != negate {
			return true
		}
	}
	return false
}

func evaluateMediaFeatures(expr string, opts *Options) bool {
	width, height := opts.ViewportWidth, opts.ViewportHeight
	for _, clause := range strings.Split(expr, " and ") {
		c := strings.TrimSpace(clause)
		if c == "" {
			continue
		}
		c = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(c, "("), ")"))
		feature, value, _ := strings.Cut(c, ":")
		feature = strings.TrimSpace(feature)
		value = strings.TrimSpace(value)

		switch feature {
		case "orientation":
			orientation := "portrait"
			if width > height {
				orientation = "landscape"
			}
			if value != "" && value != orientation {
				return false
			}
		case "min-width":
			if px, ok := cssLengthToPx(value, width); ok && width < px {
				return false
			}
		case "max-width":
			if px, ok := cssLengthToPx(value, width); ok && width > px {
				return false
			}
		case "min-height":
			if px, ok := cssLengthToPx(value, height); ok && height < px {
				return false
			}
		case "max-height":
			if px, ok := cssLengthToPx(value, height); ok && height > px {
				return false
			}
		case "prefers-color-scheme":
			scheme := "light"
			if opts.DarkScheme {
				scheme = "dark"
			}
			if value != "" && value != scheme {
				return false
			}
		}
	}
	return true
}

func cssLengthToPx(val string, base int) (int, bool) {
	v := strings.ToLower(strings.TrimSpace(val))
	parse := func(num string) (float64, bool) {
		f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		return f, err == nil
	}
	switch {
	case v == "":
		return 0, false
	case strings.HasSuffix(v, "px"):
		if f, ok := parse(v[:len(v)-2]); ok {
			return int(f + 0.5), true
		}
	case strings.HasSuffix(v, "rem"):
		if f, ok := parse(v[:len(v)-3]); ok {
			return int(f*defaultFontPx + 0.5), true
		}
	case strings.HasSuffix(v, "em"):
		if f, ok := parse(v[:len(v)-2]); ok {
			return int(f*defaultFontPx + 0.5), true
		}
	case strings.HasSuffix(v, "%"):
		if f, ok := parse(v[:len(v)-1]); ok && base > 0 {
			return int(float64(base) * f / 100.0), true
		}
	default:
		if f, ok := parse(v); ok {
			return int(f + 0.5), true
		}
	}
	return 0, false
}

// declaredStyle runs the cascade for n: matching author rules by
// importance, specificity and order, then the style attribute.
func declaredStyle(n *html.Node, ss *Stylesheet) map[string]string {
	props := map[string]propState{}
	if ss != nil {
		for _, rule := range ss.rules {
			if !rule.selector.Match(n) {
				continue
			}
			for _, decl := range rule.declarations {
				applyDeclaration(props, decl, rule.specificity, rule.order)
			}
		}
	}
	for i, decl := range parseInline(getAttr(n, "style")) {
		applyDeclaration(props, decl, inlineSpecificity, inlineOrderBase+i)
	}
	out := make(map[string]string, len(props))
	for k, st := range props {
		out[k] = st.val
	}
	return out
}

func applyDeclaration(store map[string]propState, decl cssDeclaration, spec cascadia.Specificity, order int) {
	prop := strings.ToLower(strings.TrimSpace(decl.property))
	value := strings.TrimSpace(decl.value)
	if prop == "" || value == "" {
		return
	}
	if prop == "background" {
		prop = "background-color"
		value = extractColorFromValue(value)
		if value == "" {
			// A background shorthand without a color resets it.
			value = "transparent"
		}
	}
	entry := propState{val: value, spec: spec, order: order, important: decl.important}
	prev, ok := store[prop]
	switch {
	case !ok:
		store[prop] = entry
	case prev.important && !decl.important:
	case decl.important && !prev.important:
		store[prop] = entry
	case prev.spec.Less(spec):
		store[prop] = entry
	case spec.Less(prev.spec):
	case order >= prev.order:
		store[prop] = entry
	}
}

// extractColorFromValue picks the color component out of a background
// shorthand, ignoring url() images.
func extractColorFromValue(input string) string {
	s := strings.TrimSpace(strings.ToLower(input))
	if s == "" {
		return ""
	}
	if s == "transparent" || s == "none" {
		return "transparent"
	}
	if _, ok := contrast.ParseColor(s); ok {
		return s
	}
	cleaned := stripFunctions(s, "url", "linear-gradient", "radial-gradient", "conic-gradient", "repeating-linear-gradient", "repeating-radial-gradient")
	for _, kw := range []string{"rgba(", "rgb(", "hsla(", "hsl("} {
		idx := strings.Index(cleaned, kw)
		if idx == -1 {
			continue
		}
		end := idx + len(kw)
		depth := 1
		for end < len(cleaned) && depth > 0 {
			switch cleaned[end] {
			case '(':
				depth++
			case ')':
				depth--
			}
			end++
		}
		if depth == 0 {
			if _, ok := contrast.ParseColor(cleaned[idx:end]); ok {
				return cleaned[idx:end]
			}
		}
	}
	parts := strings.FieldsFunc(cleaned, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '/'
	})
	for _, part := range parts {
		if part == "transparent" {
			return part
		}
		if _, ok := contrast.ParseColor(part); ok {
			return part
		}
	}
	return ""
}

func stripFunctions(s string, names ...string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		matched := false
		for _, name := range names {
			if !strings.HasPrefix(s[i:], name+"(") {
				continue
			}
			matched = true
			depth := 0
			j := i
		scan:
			for j < len(s) {
				switch s[j] {
				case '(':
					depth++
				case ')':
					depth--
					if depth == 0 {
						j++
						break scan
					}
				}
				j++
			}
			i = j
			break
		}
		if matched {
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func resolveAbsURL(base, href string) string {
	hu, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == "" {
		if hu.IsAbs() {
			return hu.String()
		}
		return ""
	}
	bu, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return bu.ResolveReference(hu).String()
}

func fetchText(ctx context.Context, client *http.Client, absURL string, hdr http.Header, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, absURL, nil)
	if err != nil {
		return nil, err
	}
	for k, vals := range hdr {
		if strings.EqualFold(k, "accept") || strings.EqualFold(k, "accept-encoding") {
			continue
		}
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if accept == "" {
		accept = "text/*"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("GET %s: %s", absURL, resp.Status)
	}

	var rc io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", absURL, err)
		}
		defer gr.Close()
		rc = gr
	case "deflate":
		if zr, err := zlib.NewReader(resp.Body); err == nil {
			defer zr.Close()
			rc = zr
		} else {
			fr := flate.NewReader(resp.Body)
			defer fr.Close()
			rc = fr
		}
	}
	return io.ReadAll(io.LimitReader(rc, maxBodyBytes))
}
