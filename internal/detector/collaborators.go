package detector

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/piiguard/internal/config"
)

// Collaborators is the analyzer and anonymizer pair a validator runs
// against. Health is nil when there is nothing remote to check.
type Collaborators struct {
	Analyzer   Analyzer
	Anonymizer Anonymizer
	Health     interface {
		Ping(ctx context.Context) error
	}
}

// NewCollaborators builds the collaborators named by cfg.Provider.
//
// "presidio" uses the remote services for both roles. "local" combines the
// regex and secret analyzers with the placeholder anonymizer and needs no
// network.
func NewCollaborators(cfg config.DetectorConfig) (*Collaborators, error) {
	switch cfg.Provider {
	case "presidio":
		p := NewPresidio(cfg.AnalyzerURL, cfg.AnonymizerURL,
			WithTimeout(cfg.Timeout.Duration()),
			WithRateLimit(cfg.RateLimit, cfg.RateBurst),
			WithAPIKey(cfg.APIKey),
			WithScoreThreshold(cfg.ScoreThreshold),
		)
		return &Collaborators{Analyzer: p, Anonymizer: p, Health: p}, nil

	case "local":
		var regexOpts []RegexOption
		if cfg.RecognizersFile != "" {
			regexOpts = append(regexOpts, WithRecognizerFile(cfg.RecognizersFile))
		}
		if cfg.ScoreThreshold > 0 {
			regexOpts = append(regexOpts, WithMinScore(cfg.ScoreThreshold))
		}
		regex, err := NewRegexAnalyzer(regexOpts...)
		if err != nil {
			return nil, fmt.Errorf("regex analyzer: %w", err)
		}

		var allow []string
		if cfg.SecretsAllowlist != "" {
			if allow, err = LoadSecretAllowlist(cfg.SecretsAllowlist); err != nil {
				return nil, err
			}
		}
		secrets, err := NewSecretAnalyzer(allow...)
		if err != nil {
			return nil, fmt.Errorf("secret analyzer: %w", err)
		}

		return &Collaborators{
			Analyzer:   NewMultiAnalyzer(regex, secrets),
			Anonymizer: NewPlaceholderAnonymizer(),
		}, nil

	default:
		return nil, fmt.Errorf("%w: detector provider %q", config.ErrInvalid, cfg.Provider)
	}
}
