package validator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/piiguard/internal/align"
	"github.com/fyrsmithlabs/piiguard/internal/detector"
	"github.com/fyrsmithlabs/piiguard/internal/entities"
	"github.com/fyrsmithlabs/piiguard/internal/outcome"
)

// FullTextValidator anonymizes the whole text and locates replacements by
// character diff. It is safe for concurrent use.
type FullTextValidator struct {
	*base
}

// NewFullText returns a full-text validator building outcomes in mode.
func NewFullText(analyzer detector.Analyzer, anonymizer detector.Anonymizer, mode outcome.Mode, opts ...Option) (*FullTextValidator, error) {
	b, err := newBase(StrategyFull, analyzer, anonymizer, mode, align.NewCharacterDiffAligner(), opts)
	if err != nil {
		return nil, err
	}
	return &FullTextValidator{base: b}, nil
}

// Validate implements Validator.
func (v *FullTextValidator) Validate(ctx context.Context, text string, sel entities.Selector) (outcome.Outcome, error) {
	res, err := v.run(ctx, text, func(ctx context.Context, span trace.Span) (Result, error) {
		types, err := v.prepare(text, sel)
		if err != nil {
			return Result{}, err
		}
		spans, err := v.detect(ctx, text, types)
		if err != nil {
			return Result{}, err
		}
		span.SetAttributes(attribute.Int("validator.detections", len(spans)))
		if len(spans) == 0 {
			return Result{Outcome: outcome.Pass(v.mode)}, nil
		}

		anon, err := v.anonymize(ctx, text, spans)
		if err != nil {
			return Result{}, err
		}
		o, err := outcome.Build(text, anon, v.mode, v.aligner)
		if err != nil {
			return Result{}, err
		}
		return Result{Outcome: o}, nil
	})
	return res.Outcome, err
}
