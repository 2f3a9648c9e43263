package dom

import (
	"strings"

	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// parseInline reads a style attribute. douceur drops a final declaration
// that lacks its semicolon, so one is added before parsing.
func parseInline(text string) []cssDeclaration {
	decls := parseInlineRaw(text)
	if len(decls) == 0 {
		return nil
	}
	return convertDeclarations(decls)
}

func parseInlineRaw(text string) []*cssast.Declaration {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if !strings.HasSuffix(trimmed, ";") {
		trimmed += ";"
	}
	decls, err := parser.ParseDeclarations(trimmed)
	if err == nil {
		return decls
	}
	// Fall back to a plain split for attributes douceur rejects.
	var out []*cssast.Declaration
	for _, part := range strings.Split(trimmed, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		decl := &cssast.Declaration{
			Property: strings.TrimSpace(prop),
			Value:    strings.TrimSpace(value),
		}
		if lower := strings.ToLower(decl.Value); strings.HasSuffix(lower, "!important") {
			decl.Important = true
			decl.Value = strings.TrimSpace(decl.Value[:len(decl.Value)-len("!important")])
		}
		out = append(out, decl)
	}
	return out
}

// inlineValue returns the winning declaration for prop in a style attribute.
func inlineValue(text, prop string) (string, bool) {
	prop = strings.ToLower(strings.TrimSpace(prop))
	var found *cssast.Declaration
	for _, d := range parseInlineRaw(text) {
		if !strings.EqualFold(strings.TrimSpace(d.Property), prop) {
			continue
		}
		if found != nil && found.Important && !d.Important {
			continue
		}
		found = d
	}
	if found == nil {
		return "", false
	}
	if found.Important {
		return found.Value + " !important", true
	}
	return found.Value, true
}

// setInlineValue rewrites a style attribute with prop replaced. Other
// declarations keep their order; an empty value removes prop.
func setInlineValue(text, prop, value string, important bool) string {
	prop = strings.ToLower(strings.TrimSpace(prop))
	value = strings.TrimSpace(value)
	var parts []string
	for _, d := range parseInlineRaw(text) {
		if strings.EqualFold(strings.TrimSpace(d.Property), prop) || strings.TrimSpace(d.Property) == "" {
			continue
		}
		parts = append(parts, d.String())
	}
	if value != "" {
		parts = append(parts, (&cssast.Declaration{Property: prop, Value: value, Important: important}).String())
	}
	return strings.Join(parts, " ")
}
