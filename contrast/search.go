package contrast

const (
	searchAttempts = 15
	searchStep     = 15
)

// SearchForeground walks start toward black (darker) or white, moving every
// channel by searchStep*i on attempt i. It returns the first candidate that
// reaches target against bg, or the best candidate seen, with its ratio.
func SearchForeground(start, bg RGB, target float64, darker bool) (RGB, float64) {
	best := start
	bestRatio := 0.0
	for i := 0; i < searchAttempts; i++ {
		candidate := shiftColor(start, searchStep*i, darker)
		ratio := candidate.ContrastRatio(bg)
		if ratio >= target {
			return candidate, ratio
		}
		if ratio > bestRatio {
			best, bestRatio = candidate, ratio
		}
		if darker && candidate == Black {
			break
		}
		if !darker && candidate == White {
			break
		}
	}
	return best, bestRatio
}

func shiftColor(c RGB, step int, darker bool) RGB {
	shift := func(v uint8) uint8 {
		if darker {
			return clampChannel(float64(int(v) - step))
		}
		return clampChannel(float64(int(v) + step))
	}
	return RGB{R: shift(c.R), G: shift(c.G), B: shift(c.B)}
}
