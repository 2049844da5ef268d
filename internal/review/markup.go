package review

import "strings"

// Span is a run of text that is either plain or emphasized.
type Span struct {
	Text       string `json:"text"`
	Emphasized bool   `json:"emphasized"`
}

// ParseEmphasis splits a mistake string on the *...* bracketing convention
// into styled spans. Text between a matched pair of asterisks is emphasized;
// everything else is plain. An unmatched trailing asterisk is treated as
// literal text, so "I *has a dog" parses as plain "I *has a dog".
func ParseEmphasis(s string) []Span {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, "*")
	if len(parts) == 1 {
		return []Span{{Text: s}}
	}

	// An even part count means an odd number of asterisks: the last marker
	// is unmatched. Re-join it into the preceding plain segment.
	if len(parts)%2 == 0 {
		parts[len(parts)-2] += "*" + parts[len(parts)-1]
		parts = parts[:len(parts)-1]
	}

	spans := make([]Span, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			continue
		}
		spans = append(spans, Span{Text: part, Emphasized: i%2 == 1})
	}
	return spans
}

// PlainText strips emphasis markers, returning the raw sentence.
func PlainText(s string) string {
	var b strings.Builder
	for _, span := range ParseEmphasis(s) {
		b.WriteString(span.Text)
	}
	return b.String()
}
