// Package validator runs detection, anonymization and reconciliation for
// one text and returns a validation outcome.
//
// Two strategies exist. FullTextValidator anonymizes the whole text and
// aligns it by character diff. StreamingValidator anonymizes only the last
// sentence of a growing text and aligns by token resync.
package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/piiguard/internal/align"
	"github.com/fyrsmithlabs/piiguard/internal/detector"
	"github.com/fyrsmithlabs/piiguard/internal/entities"
	"github.com/fyrsmithlabs/piiguard/internal/logging"
	"github.com/fyrsmithlabs/piiguard/internal/metrics"
	"github.com/fyrsmithlabs/piiguard/internal/outcome"
)

const (
	instrumentationName = "github.com/fyrsmithlabs/piiguard/internal/validator"

	// DefaultLanguage is passed to the analyzer unless overridden.
	DefaultLanguage = "en"

	StrategyFull      = "full"
	StrategyStreaming = "streaming"
)

// ErrInput marks unusable input: blank text or a selector that resolves
// to no entity types.
var ErrInput = errors.New("invalid input")

// Validator checks a text for the entity types named by a selector.
type Validator interface {
	Validate(ctx context.Context, text string, sel entities.Selector) (outcome.Outcome, error)
	ResolveEntities(sel entities.Selector) ([]string, error)
}

// Result is an outcome plus, for the streaming strategy, the original
// token runs that were replaced.
type Result struct {
	outcome.Outcome
	Redactions []string `json:"redactions,omitempty"`
}

// Option configures a validator.
type Option func(*base)

// WithLanguage sets the analyzer language.
func WithLanguage(lang string) Option {
	return func(b *base) {
		if lang != "" {
			b.language = lang
		}
	}
}

// WithResolver sets the entity group resolver. The default uses the
// built-in table.
func WithResolver(r *entities.Resolver) Option {
	return func(b *base) {
		if r != nil {
			b.resolver = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithTracerProvider sets the provider validator spans come from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *base) {
		if tp != nil {
			b.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Validation) Option {
	return func(b *base) { b.metrics = m }
}

// base holds what both strategies share. It is immutable after
// construction.
type base struct {
	strategy   string
	mode       outcome.Mode
	language   string
	analyzer   detector.Analyzer
	anonymizer detector.Anonymizer
	aligner    align.Aligner
	resolver   *entities.Resolver
	logger     *logging.Logger
	tracer     trace.Tracer
	metrics    *metrics.Validation
}

func newBase(strategy string, analyzer detector.Analyzer, anonymizer detector.Anonymizer, mode outcome.Mode, aligner align.Aligner, opts []Option) (*base, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer cannot be nil")
	}
	if anonymizer == nil {
		return nil, fmt.Errorf("anonymizer cannot be nil")
	}
	m, err := outcome.ParseMode(string(mode))
	if err != nil {
		return nil, err
	}

	b := &base{
		strategy:   strategy,
		mode:       m,
		language:   DefaultLanguage,
		analyzer:   analyzer,
		anonymizer: anonymizer,
		aligner:    aligner,
		resolver:   entities.NewResolver(nil),
		logger:     logging.NewNop(),
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Mode returns the mode outcomes are built in.
func (b *base) Mode() outcome.Mode { return b.mode }

// ResolveEntities expands sel into entity type ids.
func (b *base) ResolveEntities(sel entities.Selector) ([]string, error) {
	types, err := b.resolver.Resolve(sel)
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("%w: entity selector %s names no entity types", ErrInput, sel)
	}
	return types, nil
}

// prepare checks text and resolves the selector.
func (b *base) prepare(text string, sel entities.Selector) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrInput)
	}
	return b.ResolveEntities(sel)
}

// detect calls the analyzer and records detections.
func (b *base) detect(ctx context.Context, text string, types []string) ([]detector.DetectionSpan, error) {
	spans, err := b.analyzer.Analyze(ctx, text, types, b.language)
	if err != nil {
		b.metrics.CollaboratorFailed("analyzer")
		return nil, collaboratorError("analyzer", err)
	}
	for _, s := range spans {
		b.metrics.Detected(s.EntityType)
	}
	b.logger.Trace(ctx, "analyzer returned",
		logging.TextLen("text_len", text),
		zap.Int("entity_types", len(types)),
		zap.Int("detections", len(spans)),
	)
	return spans, nil
}

func (b *base) anonymize(ctx context.Context, text string, spans []detector.DetectionSpan) (string, error) {
	anon, err := b.anonymizer.Anonymize(ctx, text, spans)
	if err != nil {
		b.metrics.CollaboratorFailed("anonymizer")
		return "", collaboratorError("anonymizer", err)
	}
	b.logger.Trace(ctx, "anonymizer returned",
		logging.TextLen("text_len", text),
		logging.TextLen("anonymized_len", anon),
	)
	return anon, nil
}

func collaboratorError(name string, err error) error {
	if errors.Is(err, detector.ErrCollaborator) {
		return fmt.Errorf("%s: %w", name, err)
	}
	return fmt.Errorf("%w: %s: %w", detector.ErrCollaborator, name, err)
}

// run wraps fn with the span, log line and metrics every call gets.
func (b *base) run(ctx context.Context, text string, fn func(ctx context.Context, span trace.Span) (Result, error)) (Result, error) {
	start := time.Now()
	ctx, span := b.tracer.Start(ctx, "validator.Validate", trace.WithAttributes(
		attribute.String("validator.strategy", b.strategy),
		attribute.String("validator.mode", b.mode.String()),
		attribute.Int("text.length", len([]rune(text))),
	))
	defer span.End()

	res, err := fn(ctx, span)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		b.metrics.Observe(b.strategy, b.mode.String(), "error", 0, elapsed)
		b.logger.Debug(ctx, "validation error",
			zap.String("strategy", b.strategy),
			logging.TextLen("text_len", text),
			zap.Error(err),
		)
		return Result{}, err
	}

	result := "pass"
	if !res.Passed {
		result = "fail"
	}
	span.SetAttributes(
		attribute.Bool("validator.passed", res.Passed),
		attribute.Int("validator.error_spans", len(res.ErrorSpans)),
	)
	b.metrics.Observe(b.strategy, b.mode.String(), result, len(res.ErrorSpans), elapsed)
	b.logger.Debug(ctx, "validation complete",
		zap.String("strategy", b.strategy),
		zap.String("mode", b.mode.String()),
		logging.TextLen("text_len", text),
		zap.Bool("passed", res.Passed),
		zap.Int("error_spans", len(res.ErrorSpans)),
		zap.Duration("duration", elapsed),
	)
	return res, nil
}
