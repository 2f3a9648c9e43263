package contrast

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// RGB is an opaque sRGB color. Alpha is never retained.
type RGB struct {
	R uint8
	G uint8
	B uint8
}

var (
	Black = RGB{}
	White = RGB{R: 255, G: 255, B: 255}
)

// String formats the color the way browsers report computed colors.
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Luminance returns the WCAG relative luminance in [0,1].
func (c RGB) Luminance() float64 {
	toLinear := func(channel uint8) float64 {
		v := float64(channel) / 255.0
		if v <= 0.03928 {
			return v / 12.92
		}
		return math.Pow((v+0.055)/1.055, 2.4)
	}
	return 0.2126*toLinear(c.R) + 0.7152*toLinear(c.G) + 0.0722*toLinear(c.B)
}

// ContrastRatio returns (Lhi+0.05)/(Llo+0.05); the result is in [1,21].
func (c RGB) ContrastRatio(other RGB) float64 {
	la := c.Luminance()
	lb := other.Luminance()
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

// Ratio computes the contrast ratio of two CSS color strings. When either
// side does not parse the pair is treated as failing with ratio 1.
func Ratio(fg, bg string) float64 {
	a, ok := ParseColor(fg)
	if !ok {
		return 1
	}
	b, ok := ParseColor(bg)
	if !ok {
		return 1
	}
	return a.ContrastRatio(b)
}

// ParseColor accepts rgb()/rgba(), hsl()/hsla(), #rgb, #rrggbb (and their
// alpha-suffixed forms) and CSS named colors. Alpha is dropped. An empty
// string, "transparent" or anything unrecognized reports false.
func ParseColor(input string) (RGB, bool) {
	s := strings.TrimSpace(strings.ToLower(input))
	switch s {
	case "", "transparent", "none", "inherit", "initial", "unset", "currentcolor":
		return RGB{}, false
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}
	if strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba(") {
		return parseRGBFunctional(s)
	}
	if strings.HasPrefix(s, "hsl(") || strings.HasPrefix(s, "hsla(") {
		return parseHSLFunctional(s)
	}
	if named, ok := colornames.Map[s]; ok {
		return RGB{R: named.R, G: named.G, B: named.B}, true
	}
	return RGB{}, false
}

// IsTransparent reports whether a computed background value paints nothing:
// empty, the transparent keyword, or any functional color with alpha 0.
func IsTransparent(value string) bool {
	s := strings.TrimSpace(strings.ToLower(value))
	if s == "" || s == "transparent" || s == "none" {
		return true
	}
	if alpha, ok := colorAlpha(s); ok && alpha <= 0 {
		return true
	}
	return false
}

func parseHex(hex string) (RGB, bool) {
	switch len(hex) {
	case 3, 4:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	case 8:
		hex = hex[:6]
	default:
		return RGB{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}

// functionalArgs splits "name(a, b, c / d)" into its components. Both the
// legacy comma syntax and the space separated syntax are accepted.
func functionalArgs(expr string) []string {
	open := strings.IndexByte(expr, '(')
	close := strings.LastIndexByte(expr, ')')
	if open < 0 || close <= open+1 {
		return nil
	}
	inner := strings.NewReplacer(",", " ", "/", " ").Replace(expr[open+1 : close])
	return strings.Fields(inner)
}

func parseRGBFunctional(expr string) (RGB, bool) {
	parts := functionalArgs(expr)
	if len(parts) < 3 {
		return RGB{}, false
	}
	var out [3]uint8
	for i := 0; i < 3; i++ {
		v, ok := parseChannel(parts[i])
		if !ok {
			return RGB{}, false
		}
		out[i] = v
	}
	return RGB{R: out[0], G: out[1], B: out[2]}, true
}

func parseChannel(component string) (uint8, bool) {
	if strings.HasSuffix(component, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(component, "%"), 64)
		if err != nil {
			return 0, false
		}
		return clampChannel(math.Round(f * 255.0 / 100.0)), true
	}
	f, err := strconv.ParseFloat(component, 64)
	if err != nil {
		return 0, false
	}
	return clampChannel(math.Round(f)), true
}

func parseHSLFunctional(expr string) (RGB, bool) {
	parts := functionalArgs(expr)
	if len(parts) < 3 {
		return RGB{}, false
	}
	h, err := strconv.ParseFloat(strings.TrimSuffix(parts[0], "deg"), 64)
	if err != nil {
		return RGB{}, false
	}
	sat, err := strconv.ParseFloat(strings.TrimSuffix(parts[1], "%"), 64)
	if err != nil {
		return RGB{}, false
	}
	light, err := strconv.ParseFloat(strings.TrimSuffix(parts[2], "%"), 64)
	if err != nil {
		return RGB{}, false
	}
	h = math.Mod(math.Mod(h, 360)+360, 360) / 360
	sat = math.Max(0, math.Min(100, sat)) / 100
	light = math.Max(0, math.Min(100, light)) / 100

	hueToRGB := func(p, q, t float64) float64 {
		if t < 0 {
			t++
		}
		if t > 1 {
			t--
		}
		switch {
		case t < 1.0/6:
			return p + (q-p)*6*t
		case t < 0.5:
			return q
		case t < 2.0/3:
			return p + (q-p)*(2.0/3-t)*6
		}
		return p
	}
	var r, g, b float64
	if sat == 0 {
		r, g, b = light, light, light
	} else {
		q := light * (1 + sat)
		if light >= 0.5 {
			q = light + sat - light*sat
		}
		p := 2*light - q
		r = hueToRGB(p, q, h+1.0/3)
		g = hueToRGB(p, q, h)
		b = hueToRGB(p, q, h-1.0/3)
	}
	return RGB{
		R: clampChannel(math.Round(r * 255)),
		G: clampChannel(math.Round(g * 255)),
		B: clampChannel(math.Round(b * 255)),
	}, true
}

// colorAlpha extracts the alpha component of a functional or hex color.
func colorAlpha(s string) (float64, bool) {
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		switch len(hex) {
		case 4:
			v, err := strconv.ParseUint(hex[3:]+hex[3:], 16, 8)
			return float64(v) / 255, err == nil
		case 8:
			v, err := strconv.ParseUint(hex[6:], 16, 8)
			return float64(v) / 255, err == nil
		}
		return 1, true
	}
	if !strings.HasPrefix(s, "rgb") && !strings.HasPrefix(s, "hsl") {
		return 1, false
	}
	parts := functionalArgs(s)
	if len(parts) < 4 {
		return 1, len(parts) == 3
	}
	raw := parts[3]
	if strings.HasSuffix(raw, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		return f / 100, err == nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	return f, err == nil
}

func clampChannel(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
