// Package outcome turns an original/anonymized text pair into a
// validation verdict.
package outcome

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/piiguard/internal/align"
	"github.com/fyrsmithlabs/piiguard/internal/config"
)

// Outcome is the result of validating one text.
//
// A passed outcome has no spans and no fix value. A failed one carries a
// fix value in fix mode, and spans plus a message otherwise.
type Outcome struct {
	Passed     bool              `json:"passed"`
	FixValue   *string           `json:"fix_value,omitempty"`
	ErrorSpans []align.ErrorSpan `json:"error_spans,omitempty"`
	Message    *string           `json:"message,omitempty"`

	mode Mode
}

// Mode returns the mode the outcome was built in.
func (o Outcome) Mode() Mode { return o.mode }

// Err returns a *FailureError for a failed outcome built in exception mode
// and nil otherwise.
func (o Outcome) Err() error {
	if o.Passed || o.mode != ModeException {
		return nil
	}
	return &FailureError{Outcome: o}
}

// FailureError carries a failed outcome as an error.
type FailureError struct {
	Outcome Outcome
}

func (e *FailureError) Error() string {
	if e.Outcome.Message != nil {
		return "validation failed: " + *e.Outcome.Message
	}
	return "validation failed"
}

// Pass returns a passed outcome.
func Pass(mode Mode) Outcome {
	return Outcome{Passed: true, mode: mode}
}

// Build compares original with anonymized.
//
// In fix mode the anonymized text becomes the fix value. In exception and
// report modes aligner locates the replaced ranges; a nil aligner means
// character diffing. Build performs no I/O and is deterministic.
func Build(original, anonymized string, mode Mode, aligner align.Aligner) (Outcome, error) {
	if anonymized == original {
		return Pass(mode), nil
	}

	switch mode {
	case ModeFix:
		fix := anonymized
		return Outcome{FixValue: &fix, mode: mode}, nil
	case ModeException, ModeReport:
	default:
		return Outcome{}, fmt.Errorf("%w: unknown validation mode %q", config.ErrInvalid, mode)
	}

	if aligner == nil {
		aligner = align.NewCharacterDiffAligner()
	}
	spans, err := aligner.Align(original, anonymized)
	if err != nil {
		return Outcome{}, err
	}
	if len(spans) == 0 {
		return Outcome{}, fmt.Errorf("%w: texts differ but no replaced range was found", align.ErrAlignmentInvariant)
	}

	msg := Message(original, spans)
	return Outcome{ErrorSpans: spans, Message: &msg, mode: mode}, nil
}

// Message names every substring of original covered by spans.
func Message(original string, spans []align.ErrorSpan) string {
	quoted := make([]string, 0, len(spans))
	for _, s := range spans {
		quoted = append(quoted, fmt.Sprintf("%q", s.Slice(original)))
	}
	return "The following text contains PII: " + strings.Join(quoted, ", ")
}
