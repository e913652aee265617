package align

import (
	"strings"
	"unicode"
)

// TokenResyncAligner recovers redacted word runs by walking the original
// and anonymized token streams in lockstep.
//
// The anonymizer must replace each detected span with exactly one
// whitespace-free placeholder token. A placeholder that happens to equal a
// later original token ends the run early and under-collects; that case is
// not detected. When the anonymized stream runs out before the original,
// every remaining original token forms one final run. Trailing anonymized
// tokens with no original counterpart are ignored.
type TokenResyncAligner struct{}

// NewTokenResyncAligner returns a TokenResyncAligner.
func NewTokenResyncAligner() *TokenResyncAligner {
	return &TokenResyncAligner{}
}

type token struct {
	text       string
	start, end int // rune offsets
}

// tokenize splits s on Unicode whitespace, recording rune offsets.
func tokenize(s string) []token {
	var (
		tokens []token
		b      strings.Builder
		pos    int
		start  = -1
	)
	for _, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, token{text: b.String(), start: start, end: pos})
				b.Reset()
				start = -1
			}
		} else {
			if start < 0 {
				start = pos
			}
			b.WriteRune(r)
		}
		pos++
	}
	if start >= 0 {
		tokens = append(tokens, token{text: b.String(), start: start, end: pos})
	}
	return tokens
}

// runs returns [from, to) index pairs into orig for every redacted run.
func runs(orig, anon []token) [][2]int {
	var out [][2]int
	i, j := 0, 0
	for i < len(orig) {
		if j < len(anon) && orig[i].text == anon[j].text {
			i++
			j++
			continue
		}
		// anon[j] is the placeholder; collect until the next anonymized
		// token lines up again.
		j++
		from := i
		for i < len(orig) && (j >= len(anon) || orig[i].text != anon[j].text) {
			i++
		}
		if i > from {
			out = append(out, [2]int{from, i})
		}
	}
	return out
}

// Reconcile returns each redacted run of originalFragment, its tokens
// joined by single spaces.
func (a *TokenResyncAligner) Reconcile(originalFragment, anonymizedFragment string) []string {
	orig := tokenize(originalFragment)
	found := runs(orig, tokenize(anonymizedFragment))

	out := make([]string, 0, len(found))
	for _, r := range found {
		words := make([]string, 0, r[1]-r[0])
		for _, t := range orig[r[0]:r[1]] {
			words = append(words, t.text)
		}
		out = append(out, strings.Join(words, " "))
	}
	return out
}

// Align implements Aligner. Each run spans from the start of its first
// token to the end of its last, whitespace in between included.
func (a *TokenResyncAligner) Align(original, anonymized string) ([]ErrorSpan, error) {
	if original == anonymized {
		return nil, nil
	}

	orig := tokenize(original)
	found := runs(orig, tokenize(anonymized))

	runes := []rune(original)
	spans := make([]ErrorSpan, 0, len(found))
	for _, r := range found {
		start, end := orig[r[0]].start, orig[r[1]-1].end
		spans = append(spans, ErrorSpan{
			Start:  start,
			End:    end,
			Reason: reason(string(runes[start:end])),
		})
	}

	if err := CheckSpans(spans, len(runes)); err != nil {
		return nil, err
	}
	return spans, nil
}
