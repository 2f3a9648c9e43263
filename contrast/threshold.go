package contrast

import (
	"strconv"
	"strings"
)

const (
	// NormalTextRatio is the WCAG AA minimum for body text.
	NormalTextRatio = 4.5
	// LargeTextRatio applies to text at least 18pt, or 14pt and bold.
	LargeTextRatio = 3.0

	ptPerPx = 0.75
)

// IsLargeText classifies a font size in points and weight.
func IsLargeText(sizePt float64, bold bool) bool {
	return sizePt >= 18 || (sizePt >= 14 && bold)
}

// RequiredRatio returns the ratio text must reach.
func RequiredRatio(large bool) float64 {
	if large {
		return LargeTextRatio
	}
	return NormalTextRatio
}

// IsBold reports whether a computed font-weight is 700 or heavier.
func IsBold(weight string) bool {
	w := strings.ToLower(strings.TrimSpace(weight))
	switch w {
	case "bold", "bolder":
		return true
	case "", "normal", "lighter":
		return false
	}
	n, err := strconv.ParseFloat(w, 64)
	return err == nil && n >= 700
}

// FontSizePt converts a computed font-size to points. Browsers report pixels;
// bare numbers are read as pixels too.
func FontSizePt(size string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(size))
	if s == "" {
		return 0, false
	}
	scale := ptPerPx
	switch {
	case strings.HasSuffix(s, "px"):
		s = strings.TrimSuffix(s, "px")
	case strings.HasSuffix(s, "pt"):
		s = strings.TrimSuffix(s, "pt")
		scale = 1
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v * scale, true
}
