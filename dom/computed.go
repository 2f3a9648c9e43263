package dom

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"auralense/contrast"
)

const (
	defaultFontPx    = 16.0
	transparentValue = "rgba(0, 0, 0, 0)"
)

var headingScale = map[string]float64{
	"h1": 2, "h2": 1.5, "h3": 1.17, "h4": 1, "h5": 0.83, "h6": 0.67,
}

var fontSizeKeywords = map[string]float64{
	"xx-small": 9, "x-small": 10, "small": 13, "medium": 16,
	"large": 18, "x-large": 24, "xx-large": 32, "xxx-large": 48,
}

var blockTags = map[string]bool{
	"html": true, "body": true, "div": true, "p": true, "ul": true, "ol": true,
	"li": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "section": true, "article": true, "header": true, "footer": true,
	"nav": true, "main": true, "aside": true, "form": true, "blockquote": true,
	"pre": true, "table": true, "tr": true, "td": true, "th": true, "figure": true,
	"dl": true, "dt": true, "dd": true, "fieldset": true, "address": true, "hr": true,
}

// hiddenTags never produce a layout box.
var hiddenTags = map[string]bool{
	"head": true, "script": true, "style": true, "template": true, "noscript": true,
	"title": true, "meta": true, "link": true, "base": true,
}

var boldTags = map[string]bool{
	"b": true, "strong": true, "th": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true,
}

// computedFor returns the cached computed style of n, computing ancestors
// first so inheritance sees their final values.
func (d *Document) computedFor(n *html.Node) contrast.Style {
	if st, ok := d.styles[n]; ok {
		return st
	}
	var parent *contrast.Style
	if p := parentElement(n); p != nil {
		ps := d.computedFor(p)
		parent = &ps
	}
	var st contrast.Style
	if preset, ok := d.preset[n]; ok {
		st = d.overlayInline(n, preset)
	} else {
		st = d.cascade(n, parent)
	}
	d.styles[n] = st
	return st
}

// overlayInline applies fix-time inline colors on top of a style captured
// from a browser, which cannot be recomputed locally.
func (d *Document) overlayInline(n *html.Node, st contrast.Style) contrast.Style {
	style := getAttr(n, "style")
	if !d.touched[n] || style == "" {
		return st
	}
	if v, ok := inlineValue(style, "color"); ok {
		if c, ok := normalizeColor(stripImportant(v)); ok {
			st.Color = c
		}
	}
	if v, ok := inlineValue(style, "background-color"); ok {
		if c, ok := normalizeColor(stripImportant(v)); ok {
			st.BackgroundColor = c
		}
	}
	return st
}

func (d *Document) cascade(n *html.Node, parent *contrast.Style) contrast.Style {
	tag := strings.ToLower(n.Data)
	decl := declaredStyle(n, d.sheet)

	parentColor := "rgb(0, 0, 0)"
	parentSize := defaultFontPx
	parentWeight := "400"
	parentRendered := true
	if parent != nil {
		parentColor = parent.Color
		parentSize = parsePx(parent.FontSize, defaultFontPx)
		parentWeight = parent.FontWeight
		parentRendered = parent.Rendered
	}

	st := contrast.Style{}

	color := parentColor
	switch tag {
	case "a":
		if hasAttr(n, "href") {
			color = "rgb(0, 0, 238)"
		}
	case "mark":
		color = "rgb(0, 0, 0)"
	}
	if v, ok := decl["color"]; ok {
		switch lv := strings.ToLower(v); lv {
		case "inherit", "currentcolor", "unset":
			color = parentColor
		case "initial":
			color = "rgb(0, 0, 0)"
		default:
			if c, ok := normalizeColor(lv); ok {
				color = c
			}
		}
	}
	st.Color = color

	bg := uaBackground(n, tag)
	if v, ok := decl["background-color"]; ok {
		switch lv := strings.ToLower(v); lv {
		case "inherit":
			if parent != nil {
				bg = parent.BackgroundColor
			}
		case "initial", "unset":
			bg = transparentValue
		case "currentcolor":
			bg = color
		default:
			if c, ok := normalizeColor(lv); ok {
				bg = c
			}
		}
	}
	st.BackgroundColor = bg

	size := parentSize
	if scale, ok := headingScale[tag]; ok {
		size = parentSize * scale
	} else if tag == "small" {
		size = parentSize / 1.2
	}
	if v, ok := decl["font-size"]; ok {
		size = resolveFontSize(v, parentSize, d.rootFontPx())
	}
	st.FontSize = formatPx(size)

	weight := parentWeight
	if boldTags[tag] {
		weight = "700"
	}
	if v, ok := decl["font-weight"]; ok {
		weight = resolveFontWeight(v, parentWeight)
	}
	st.FontWeight = weight

	display := "inline"
	if blockTags[tag] {
		display = "block"
	}
	if hiddenTags[tag] || hasAttr(n, "hidden") {
		display = "none"
	}
	if tag == "input" && strings.EqualFold(getAttr(n, "type"), "hidden") {
		display = "none"
	}
	if v, ok := decl["display"]; ok {
		display = strings.ToLower(strings.TrimSpace(v))
	}
	st.Display = display
	st.Rendered = parentRendered && display != "none"
	return st
}

func uaBackground(n *html.Node, tag string) string {
	switch tag {
	case "mark":
		return "rgb(255, 255, 0)"
	case "button":
		return "rgb(239, 239, 239)"
	case "input", "textarea", "select":
		if !strings.EqualFold(getAttr(n, "type"), "hidden") {
			return "rgb(255, 255, 255)"
		}
	}
	return transparentValue
}

func (d *Document) rootFontPx() float64 {
	if d.rootElement == nil {
		return defaultFontPx
	}
	if st, ok := d.styles[d.rootElement]; ok {
		return parsePx(st.FontSize, defaultFontPx)
	}
	return defaultFontPx
}

// normalizeColor converts a declared color to the form browsers report.
func normalizeColor(v string) (string, bool) {
	if contrast.IsTransparent(v) {
		return transparentValue, true
	}
	c, ok := contrast.ParseColor(v)
	if !ok {
		return "", false
	}
	return c.String(), true
}

func resolveFontSize(v string, parentPx, rootPx float64) float64 {
	s := strings.ToLower(strings.TrimSpace(v))
	if px, ok := fontSizeKeywords[s]; ok {
		return px
	}
	num := func(suffix string) (float64, bool) {
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, suffix)), 64)
		return f, err == nil && f >= 0
	}
	switch {
	case s == "inherit" || s == "unset":
		return parentPx
	case s == "initial":
		return defaultFontPx
	case s == "smaller":
		return parentPx / 1.2
	case s == "larger":
		return parentPx * 1.2
	case strings.HasSuffix(s, "px"):
		if f, ok := num("px"); ok {
			return f
		}
	case strings.HasSuffix(s, "pt"):
		if f, ok := num("pt"); ok {
			return f * 4 / 3
		}
	case strings.HasSuffix(s, "rem"):
		if f, ok := num("rem"); ok {
			return f * rootPx
		}
	case strings.HasSuffix(s, "em"):
		if f, ok := num("em"); ok {
			return f * parentPx
		}
	case strings.HasSuffix(s, "%"):
		if f, ok := num("%"); ok {
			return f * parentPx / 100
		}
	}
	return parentPx
}

func resolveFontWeight(v, parent string) string {
	s := strings.ToLower(strings.TrimSpace(v))
	parentN, err := strconv.Atoi(parent)
	if err != nil {
		parentN = 400
	}
	switch s {
	case "normal", "initial":
		return "400"
	case "bold":
		return "700"
	case "inherit", "unset":
		return parent
	case "bolder":
		switch {
		case parentN < 400:
			return "400"
		case parentN < 600:
			return "700"
		}
		return "900"
	case "lighter":
		switch {
		case parentN < 600:
			return "100"
		case parentN < 800:
			return "400"
		}
		return "700"
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 1000 {
		return strconv.Itoa(n)
	}
	return parent
}

func parsePx(v string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
	if err != nil {
		return fallback
	}
	return f
}

func formatPx(px float64) string {
	return strconv.FormatFloat(math.Round(px*100)/100, 'f', -1, 64) + "px"
}

func stripImportant(v string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
}
