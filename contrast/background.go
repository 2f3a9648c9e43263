package contrast

import "strings"

// EffectiveBackground resolves the color painted behind el by walking el and
// its ancestors until one declares a background. When the walk reaches body or
// html the document element is consulted, and white is assumed if it is
// transparent too. Unparsable backgrounds are treated as transparent.
func EffectiveBackground(doc Document, el Element) RGB {
	for cur := el; cur != nil; cur = cur.Parent() {
		if bg, ok := paintedBackground(cur); ok {
			return bg
		}
		switch strings.ToLower(cur.TagName()) {
		case "body", "html":
			if doc != nil {
				if root := doc.DocumentElement(); root != nil {
					if bg, ok := paintedBackground(root); ok {
						return bg
					}
				}
			}
			return White
		}
	}
	return White
}

func paintedBackground(el Element) (RGB, bool) {
	raw := el.ComputedStyle().BackgroundColor
	if IsTransparent(raw) {
		return RGB{}, false
	}
	return ParseColor(raw)
}
