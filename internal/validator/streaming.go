package validator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/piiguard/internal/align"
	"github.com/fyrsmithlabs/piiguard/internal/detector"
	"github.com/fyrsmithlabs/piiguard/internal/entities"
	"github.com/fyrsmithlabs/piiguard/internal/outcome"
	"github.com/fyrsmithlabs/piiguard/internal/segment"
)

// StreamingValidator checks text that grows one chunk at a time. Earlier
// sentences were validated by earlier calls, so only the last sentence is
// sent to the collaborators. It is safe for concurrent use.
type StreamingValidator struct {
	*base
	tokens *align.TokenResyncAligner
}

// NewStreaming returns a streaming validator building outcomes in mode.
func NewStreaming(analyzer detector.Analyzer, anonymizer detector.Anonymizer, mode outcome.Mode, opts ...Option) (*StreamingValidator, error) {
	tokens := align.NewTokenResyncAligner()
	b, err := newBase(StrategyStreaming, analyzer, anonymizer, mode, tokens, opts)
	if err != nil {
		return nil, err
	}
	return &StreamingValidator{base: b, tokens: tokens}, nil
}

// Validate implements Validator.
func (v *StreamingValidator) Validate(ctx context.Context, text string, sel entities.Selector) (outcome.Outcome, error) {
	res, err := v.ValidateWithRedactions(ctx, text, sel)
	return res.Outcome, err
}

// ValidateWithRedactions validates the last sentence of text. Outcome
// spans and the fix value refer to the whole text; Redactions lists the
// replaced token runs of the sentence.
func (v *StreamingValidator) ValidateWithRedactions(ctx context.Context, text string, sel entities.Selector) (Result, error) {
	return v.run(ctx, text, func(ctx context.Context, span trace.Span) (Result, error) {
		types, err := v.prepare(text, sel)
		if err != nil {
			return Result{}, err
		}
		// prepare rejected blank text, so a sentence exists.
		sentence, _ := segment.Last(text)
		span.SetAttributes(attribute.Int("validator.sentence_length", len([]rune(sentence.Text))))

		spans, err := v.detect(ctx, sentence.Text, types)
		if err != nil {
			return Result{}, err
		}
		span.SetAttributes(attribute.Int("validator.detections", len(spans)))
		if len(spans) == 0 {
			return Result{Outcome: outcome.Pass(v.mode)}, nil
		}

		anonSentence, err := v.anonymize(ctx, sentence.Text, spans)
		if err != nil {
			return Result{}, err
		}
		anon := text[:sentence.Start] + anonSentence + text[sentence.End:]

		o, err := outcome.Build(text, anon, v.mode, v.aligner)
		if err != nil {
			return Result{}, err
		}
		res := Result{Outcome: o}
		if !o.Passed {
			res.Redactions = v.tokens.Reconcile(sentence.Text, anonSentence)
		}
		return res, nil
	})
}
