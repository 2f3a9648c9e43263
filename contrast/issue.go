package contrast

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxIssueText = 50

// Issue describes one element that fails its contrast threshold. The JSON
// form is the message shape exchanged with page-side clients.
type Issue struct {
	Handle             string  `json:"uniqueId"`
	Text               string  `json:"text"`
	Ratio              float64 `json:"ratio"`
	OriginalColor      string  `json:"originalColor"`
	OriginalBackground string  `json:"originalBgColor"`
	LargeText          bool    `json:"isLargeText"`
}

// RequiredRatio is the threshold the issue was measured against.
func (i Issue) RequiredRatio() float64 {
	return RequiredRatio(i.LargeText)
}

// UnmarshalJSON accepts the ratio either as a number or as the fixed
// two-decimal string older clients send.
func (i *Issue) UnmarshalJSON(data []byte) error {
	type plain Issue
	var raw struct {
		plain
		Ratio json.RawMessage `json:"ratio"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Issue(raw.plain)
	if len(raw.Ratio) == 0 || string(raw.Ratio) == "null" {
		i.Ratio = 0
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Ratio, &s); err == nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("issue %s: ratio %q: %w", i.Handle, s, err)
		}
		i.Ratio = v
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw.Ratio, &v); err != nil {
		return fmt.Errorf("issue %s: ratio: %w", i.Handle, err)
	}
	i.Ratio = v
	return nil
}

func roundRatio(r float64) float64 {
	return math.Round(r*100) / 100
}

func issueText(el Element) string {
	text := strings.TrimSpace(el.TextContent())
	if text == "" {
		text = strings.TrimSpace(el.DirectText())
	}
	if utf8.RuneCountInString(text) <= maxIssueText {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxIssueText])
}
