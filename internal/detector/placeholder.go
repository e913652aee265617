package detector

import (
	"context"
	"strings"
)

// PlaceholderAnonymizer replaces spans with <ENTITY_TYPE> tokens in
// process. Overlapping spans are resolved first so each character is
// replaced at most once.
type PlaceholderAnonymizer struct{}

// NewPlaceholderAnonymizer returns a PlaceholderAnonymizer.
func NewPlaceholderAnonymizer() *PlaceholderAnonymizer {
	return &PlaceholderAnonymizer{}
}

// Anonymize implements Anonymizer.
func (PlaceholderAnonymizer) Anonymize(ctx context.Context, text string, spans []DetectionSpan) (string, error) {
	if len(spans) == 0 {
		return text, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkBounds(text, spans); err != nil {
		return "", err
	}

	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, s := range resolveOverlaps(spans) {
		b.WriteString(string(runes[pos:s.Start]))
		b.WriteString(Placeholder(s.EntityType))
		pos = s.End
	}
	b.WriteString(string(runes[pos:]))
	return b.String(), nil
}
