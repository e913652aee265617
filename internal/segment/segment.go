// Package segment splits text into sentences on Unicode UAX #29 sentence
// boundaries.
package segment

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/sentences"
)

// Sentence is a trimmed sentence and its byte range in the source text.
type Sentence struct {
	Text       string
	Start, End int
}

// Split returns the sentences of text in order. Concatenated, they
// reproduce text exactly, trailing whitespace included.
func Split(text string) []string {
	var out []string
	seg := sentences.FromString(text)
	for seg.Next() {
		out = append(out, seg.Value())
	}
	return out
}

// Last returns the last sentence of text holding a non-space character,
// trimmed of surrounding whitespace. ok is false when text is blank.
func Last(text string) (s Sentence, ok bool) {
	pos := 0
	for _, raw := range Split(text) {
		start, end := pos, pos+len(raw)
		pos = end

		lead := len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace))
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		s = Sentence{
			Text:  trimmed,
			Start: start + lead,
			End:   start + lead + len(trimmed),
		}
		ok = true
	}
	return s, ok
}
