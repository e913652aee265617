package validator

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/piiguard/internal/config"
	"github.com/fyrsmithlabs/piiguard/internal/detector"
	"github.com/fyrsmithlabs/piiguard/internal/entities"
	"github.com/fyrsmithlabs/piiguard/internal/outcome"
)

// Suite holds one validator per strategy and mode over the same
// collaborators, so callers can choose per request.
type Suite struct {
	full      map[outcome.Mode]*FullTextValidator
	streaming map[outcome.Mode]*StreamingValidator
	resolver  *entities.Resolver
}

var modes = []outcome.Mode{outcome.ModeFix, outcome.ModeException, outcome.ModeReport}

// NewSuite builds every strategy and mode combination with opts.
func NewSuite(analyzer detector.Analyzer, anonymizer detector.Anonymizer, opts ...Option) (*Suite, error) {
	s := &Suite{
		full:      make(map[outcome.Mode]*FullTextValidator, len(modes)),
		streaming: make(map[outcome.Mode]*StreamingValidator, len(modes)),
	}
	for _, m := range modes {
		f, err := NewFullText(analyzer, anonymizer, m, opts...)
		if err != nil {
			return nil, err
		}
		st, err := NewStreaming(analyzer, anonymizer, m, opts...)
		if err != nil {
			return nil, err
		}
		s.full[m], s.streaming[m] = f, st
		s.resolver = f.resolver
	}
	return s, nil
}

// For returns the validator for the strategy and mode. An empty mode is fix.
func (s *Suite) For(streaming bool, mode outcome.Mode) (Validator, error) {
	m, err := outcome.ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	if streaming {
		if v, ok := s.streaming[m]; ok {
			return v, nil
		}
	} else if v, ok := s.full[m]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: no validator for mode %q", config.ErrInvalid, mode)
}

// Resolver returns the resolver shared by the suite's validators.
func (s *Suite) Resolver() *entities.Resolver {
	return s.resolver
}

type redactor interface {
	ValidateWithRedactions(ctx context.Context, text string, sel entities.Selector) (Result, error)
}

// Run validates text with v, keeping redactions when v reports them.
func Run(ctx context.Context, v Validator, text string, sel entities.Selector) (Result, error) {
	if r, ok := v.(redactor); ok {
		return r.ValidateWithRedactions(ctx, text, sel)
	}
	o, err := v.Validate(ctx, text, sel)
	return Result{Outcome: o}, err
}

// ValidateBatch validates texts in order and stops at the first error.
// The returned slice holds the results gathered before the error.
func ValidateBatch(ctx context.Context, v Validator, texts []string, sel entities.Selector) ([]Result, error) {
	results := make([]Result, 0, len(texts))
	for i, text := range texts {
		res, err := Run(ctx, v, text, sel)
		if err != nil {
			return results, fmt.Errorf("text %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}
