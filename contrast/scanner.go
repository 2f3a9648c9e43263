package contrast

import (
	"fmt"
	"log"
	"strings"
)

// CandidateSelector lists the elements a scan considers.
const CandidateSelector = `p, span, a, h1, h2, h3, h4, h5, h6, div, li, td, th, button, label, ` +
	`input[type="text"], textarea, [role="link"], [role="button"]`

// Scanner finds elements whose text fails its contrast threshold.
type Scanner struct {
	logger *log.Logger
	passID func() string
}

// NewScanner returns a Scanner configured by opts.
func NewScanner(opts ...Option) *Scanner {
	o := buildOptions(opts)
	return &Scanner{logger: o.logger, passID: o.passID}
}

// Scan walks the candidate elements of doc in document order and returns one
// Issue per failing element. Each flagged element is tagged with HandleAttr;
// tags left by earlier passes are removed first so only this pass's handles
// resolve. Only a document-level failure is returned as an error.
func (s *Scanner) Scan(doc Document) ([]Issue, error) {
	if doc == nil {
		return nil, ErrNoDocument
	}
	if err := clearHandles(doc); err != nil {
		return nil, err
	}
	candidates, err := doc.QueryAll(CandidateSelector)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}

	pass := s.passID()
	issues := []Issue{}
	for _, el := range candidates {
		issue, ok := s.inspect(doc, el)
		if !ok {
			continue
		}
		issue.Handle = fmt.Sprintf("auralense-%s-%d", pass, len(issues))
		el.SetAttr(HandleAttr, issue.Handle)
		issues = append(issues, issue)
	}
	return issues, nil
}

func (s *Scanner) inspect(doc Document, el Element) (Issue, bool) {
	if el == nil {
		return Issue{}, false
	}
	style := el.ComputedStyle()
	if !style.Rendered || strings.EqualFold(strings.TrimSpace(style.Display), "none") {
		return Issue{}, false
	}
	if strings.TrimSpace(el.DirectText()) == "" {
		return Issue{}, false
	}
	fg, ok := ParseColor(style.Color)
	if !ok {
		s.logger.Printf("contrast: skip <%s>: unparsable color %q", strings.ToLower(el.TagName()), style.Color)
		return Issue{}, false
	}
	bg := EffectiveBackground(doc, el)

	sizePt, _ := FontSizePt(style.FontSize)
	large := IsLargeText(sizePt, IsBold(style.FontWeight))
	ratio := fg.ContrastRatio(bg)
	if ratio >= RequiredRatio(large) {
		return Issue{}, false
	}
	return Issue{
		Text:               issueText(el),
		Ratio:              roundRatio(ratio),
		OriginalColor:      style.Color,
		OriginalBackground: bg.String(),
		LargeText:          large,
	}, true
}

func clearHandles(doc Document) error {
	tagged, err := doc.QueryAll("[" + HandleAttr + "]")
	if err != nil {
		return fmt.Errorf("query handles: %w", err)
	}
	for _, el := range tagged {
		el.RemoveAttr(HandleAttr)
	}
	return nil
}

// Lookup finds the element tagged with handle, or nil when it is gone.
func Lookup(doc Document, handle string) (Element, error) {
	if strings.ContainsAny(handle, `"\`) || strings.TrimSpace(handle) == "" {
		return nil, nil
	}
	found, err := doc.QueryAll(fmt.Sprintf(`[%s="%s"]`, HandleAttr, handle))
	if err != nil {
		return nil, fmt.Errorf("query handle %s: %w", handle, err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}
