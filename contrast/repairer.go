package contrast

import (
	"log"
	"strings"
	"sync"
)

// SavedStyle holds the inline color values an element carried before the
// repairer first touched it. Empty strings mean the property was not set.
type SavedStyle struct {
	Color           string
	BackgroundColor string
}

// Repairer rewrites the inline styles of flagged elements. A Repairer owns
// the saved styles of every element it touched; the first mutation of an
// element wins and later fixes never overwrite the record.
type Repairer struct {
	logger *log.Logger

	mu    sync.Mutex
	saved map[Element]SavedStyle
	order []Element
}

// NewRepairer returns an empty Repairer.
func NewRepairer(opts ...Option) *Repairer {
	o := buildOptions(opts)
	return &Repairer{
		logger: o.logger,
		saved:  make(map[Element]SavedStyle),
	}
}

// Fix applies a fix for each issue and returns how many elements were
// changed. Issues whose handle no longer resolves, or whose recorded colors
// do not parse, are skipped.
func (r *Repairer) Fix(doc Document, issues []Issue) (int, error) {
	if doc == nil {
		return 0, ErrNoDocument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	fixed := 0
	for _, issue := range issues {
		el, err := Lookup(doc, issue.Handle)
		if err != nil {
			r.logger.Printf("contrast: lookup %s: %v", issue.Handle, err)
			continue
		}
		if el == nil {
			r.logger.Printf("contrast: element %s not found", issue.Handle)
			continue
		}
		r.remember(el)
		if r.fixElement(el, issue) {
			fixed++
		}
	}
	return fixed, nil
}

func (r *Repairer) fixElement(el Element, issue Issue) bool {
	fg, okFg := ParseColor(issue.OriginalColor)
	bg, okBg := ParseColor(issue.OriginalBackground)
	if !okFg || !okBg {
		r.logger.Printf("contrast: skip %s: unparsable colors %q on %q", issue.Handle, issue.OriginalColor, issue.OriginalBackground)
		return false
	}
	target := issue.RequiredRatio()

	darker := bg.Luminance() > 0.5
	extreme, opposite := White, Black
	if darker {
		extreme, opposite = Black, White
	}

	candidate, ratio := SearchForeground(fg, bg, target, darker)
	if ratio < target {
		candidate, ratio = extreme, extreme.ContrastRatio(bg)
	}
	if ratio >= target {
		el.SetInlineStyle("color", candidate.String(), true)
		r.logger.Printf("contrast: fixed %s by changing text color, ratio %.2f", issue.Handle, ratio)
		return true
	}

	// Neither a searched nor an extreme foreground clears the target against
	// the original background, so the background is replaced as well.
	el.SetInlineStyle("color", extreme.String(), true)
	el.SetInlineStyle("background-color", opposite.String(), true)
	r.logger.Printf("contrast: fixed %s by replacing both colors, ratio %.2f", issue.Handle, extreme.ContrastRatio(opposite))
	return true
}

func (r *Repairer) remember(el Element) {
	if _, ok := r.saved[el]; ok {
		return
	}
	r.saved[el] = SavedStyle{
		Color:           el.InlineStyle("color"),
		BackgroundColor: el.InlineStyle("background-color"),
	}
	r.order = append(r.order, el)
}

// Saved returns the style recorded for el before its first fix.
func (r *Repairer) Saved(el Element) (SavedStyle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.saved[el]
	return st, ok
}

// Touched reports how many distinct elements have a saved style.
func (r *Repairer) Touched() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Restore writes the saved inline values back onto every touched element and
// forgets them. It returns the number of elements restored.
func (r *Repairer) Restore() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, el := range r.order {
		st := r.saved[el]
		restoreProp(el, "color", st.Color)
		restoreProp(el, "background-color", st.BackgroundColor)
	}
	n := len(r.order)
	r.saved = make(map[Element]SavedStyle)
	r.order = nil
	return n
}

func restoreProp(el Element, prop, saved string) {
	value := strings.TrimSpace(saved)
	important := false
	if strings.HasSuffix(strings.ToLower(value), "!important") {
		value = strings.TrimSpace(value[:len(value)-len("!important")])
		important = true
	}
	el.SetInlineStyle(prop, value, important)
}
