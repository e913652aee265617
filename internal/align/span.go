// Package align maps redactions in an anonymized text back to offsets in
// the original text.
//
// Two strategies implement Aligner. CharacterDiffAligner diffs whole texts
// character by character and is exact. TokenResyncAligner resynchronizes
// whitespace-delimited token streams and is meant for single sentences
// taken from partial, streaming text.
//
// All offsets are Unicode code point (rune) offsets into the original text.
package align

import (
	"errors"
	"fmt"
)

// ErrAlignmentInvariant reports a produced span that is empty, out of
// bounds, unsorted or overlapping. It always indicates a bug.
var ErrAlignmentInvariant = errors.New("alignment invariant violated")

// ErrorSpan is a sensitive range of the original text.
type ErrorSpan struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Reason string `json:"reason"`
}

// Aligner recovers the original-text ranges that an anonymizer replaced.
type Aligner interface {
	Align(original, anonymized string) ([]ErrorSpan, error)
}

// Slice returns the runes of text covered by s.
func (s ErrorSpan) Slice(text string) string {
	return string([]rune(text)[s.Start:s.End])
}

// CheckSpans verifies 0 <= start < end <= length for every span and that
// spans are sorted by start without overlapping.
func CheckSpans(spans []ErrorSpan, length int) error {
	prevEnd := 0
	for i, s := range spans {
		if s.Start < 0 || s.Start >= s.End || s.End > length {
			return fmt.Errorf("%w: span %d [%d,%d) outside text of length %d", ErrAlignmentInvariant, i, s.Start, s.End, length)
		}
		if s.Start < prevEnd {
			return fmt.Errorf("%w: span %d [%d,%d) overlaps previous span ending at %d", ErrAlignmentInvariant, i, s.Start, s.End, prevEnd)
		}
		prevEnd = s.End
	}
	return nil
}

func reason(slice string) string {
	return "PII detected in " + slice
}
