// Package detector defines the entity detector and anonymizer
// collaborators and provides implementations of both.
//
// Presidio talks to the Presidio analyzer and anonymizer REST services.
// RegexAnalyzer, SecretAnalyzer and PlaceholderAnonymizer run in-process
// without network access. All offsets are rune offsets.
package detector

import (
	"context"
	"errors"
	"unicode/utf8"
)

// ErrCollaborator marks failures of a detector or anonymizer. A validation
// call that hits one is abandoned; nothing is retried.
var ErrCollaborator = errors.New("collaborator failure")

// DetectionSpan is one detected entity in original-text rune offsets.
type DetectionSpan struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	EntityType string  `json:"entity_type"`
	Score      float64 `json:"score"`
}

// Analyzer finds entities of the requested types in text.
type Analyzer interface {
	Analyze(ctx context.Context, text string, entityTypes []string, language string) ([]DetectionSpan, error)
}

// Anonymizer replaces every span in text with a placeholder token.
type Anonymizer interface {
	Anonymize(ctx context.Context, text string, spans []DetectionSpan) (string, error)
}

// Placeholder returns the token that replaces an entity of entityType.
func Placeholder(entityType string) string {
	return "<" + entityType + ">"
}

// runeIndex converts byte offsets of one string into rune offsets.
// Offsets must be increasing across calls to reuse the scan.
type runeIndex struct {
	text         string
	bytePos, pos int
}

func newRuneIndex(text string) *runeIndex {
	return &runeIndex{text: text}
}

// at returns the rune offset of byte offset b.
func (ri *runeIndex) at(b int) int {
	if b < ri.bytePos {
		ri.bytePos, ri.pos = 0, 0
	}
	ri.pos += utf8.RuneCountInString(ri.text[ri.bytePos:b])
	ri.bytePos = b
	return ri.pos
}
