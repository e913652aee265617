package validator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fyrsmithlabs/piiguard/internal/detector"
)

// substringAnalyzer reports every occurrence of each needle as its entity
// type, in rune offsets.
type substringAnalyzer struct {
	needles map[string]string // needle -> entity type
	err     error

	mu        sync.Mutex
	texts     []string
	languages []string
}

func (a *substringAnalyzer) Analyze(_ context.Context, text string, entityTypes []string, language string) ([]detector.DetectionSpan, error) {
	a.mu.Lock()
	a.texts = append(a.texts, text)
	a.languages = append(a.languages, language)
	a.mu.Unlock()

	if a.err != nil {
		return nil, a.err
	}
	if strings.Contains(text, "boom") {
		return nil, errors.New("analyzer exploded")
	}

	want := make(map[string]bool, len(entityTypes))
	for _, t := range entityTypes {
		want[t] = true
	}

	var spans []detector.DetectionSpan
	for needle, entityType := range a.needles {
		if !want[entityType] {
			continue
		}
		offset := 0
		for {
			idx := strings.Index(text[offset:], needle)
			if idx < 0 {
				break
			}
			b := offset + idx
			start := utf8.RuneCountInString(text[:b])
			spans = append(spans, detector.DetectionSpan{
				Start:      start,
				End:        start + utf8.RuneCountInString(needle),
				EntityType: entityType,
				Score:      1,
			})
			offset = b + len(needle)
		}
	}
	return spans, nil
}

func (a *substringAnalyzer) lastText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.texts) == 0 {
		return ""
	}
	return a.texts[len(a.texts)-1]
}

// countingAnonymizer delegates to the placeholder anonymizer and counts calls.
type countingAnonymizer struct {
	err error

	mu    sync.Mutex
	calls int
}

func (a *countingAnonymizer) Anonymize(ctx context.Context, text string, spans []detector.DetectionSpan) (string, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	return detector.NewPlaceholderAnonymizer().Anonymize(ctx, text, spans)
}

func (a *countingAnonymizer) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func phoneAnalyzer() *substringAnalyzer {
	return &substringAnalyzer{needles: map[string]string{
		"212-555-0101":     "PHONE_NUMBER",
		"jane@example.com": "EMAIL_ADDRESS",
	}}
}
