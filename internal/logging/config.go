package logging

import (
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/piiguard/internal/config"
)

// Config holds logging configuration.
type Config struct {
	Level     zapcore.Level
	Format    string // json | console
	Output    OutputConfig
	Sampling  SamplingConfig
	Caller    bool
	Fields    map[string]string
	Redaction RedactionConfig
}

// OutputConfig controls where logs are written.
type OutputConfig struct {
	Stdout bool
	Stderr bool // used by the CLI so stdout stays machine-readable
	OTEL   bool
}

// SamplingConfig controls log volume reduction per level.
type SamplingConfig struct {
	Enabled bool
	Tick    time.Duration
	Levels  map[zapcore.Level]LevelSamplingConfig
}

// LevelSamplingConfig is the zap sampler setting for one level.
type LevelSamplingConfig struct {
	Initial    int
	Thereafter int
}

// RedactionConfig controls encoder-level redaction. Fields are matched by
// key, case-insensitively. Patterns are matched against string values.
type RedactionConfig struct {
	Enabled  bool
	Fields   []string
	Patterns []string
}

// DefaultRedactedFields never reach a log sink in clear: they carry the
// texts being validated or collaborator credentials.
var DefaultRedactedFields = []string{
	"text", "texts", "original", "anonymized", "fix_value", "sentence",
	"redactions", "message", "api_key", "authorization",
}

// NewDefaultConfig returns config with production defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled: true,
			Tick:    time.Second,
			Levels:  DefaultLevelSampling(),
		},
		Caller: true,
		Fields: map[string]string{"service": "piiguard"},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields:  DefaultRedactedFields,
			Patterns: []string{
				`(?i)bearer\s+\S+`,
			},
		},
	}
}

// FromConfig derives a logging config from the operator-facing settings.
func FromConfig(lc config.LoggingConfig) (*Config, error) {
	cfg := NewDefaultConfig()
	if lc.Level != "" {
		lvl, err := LevelFromString(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: logging level %q", config.ErrInvalid, lc.Level)
		}
		cfg.Level = lvl
	}
	if lc.Format != "" {
		cfg.Format = lc.Format
	}
	return cfg, cfg.Validate()
}

// DefaultLevelSampling returns the default sampler settings. Error and
// above are never sampled.
func DefaultLevelSampling() map[zapcore.Level]LevelSamplingConfig {
	return map[zapcore.Level]LevelSamplingConfig{
		TraceLevel:         {Initial: 1, Thereafter: 0},
		zapcore.DebugLevel: {Initial: 10, Thereafter: 0},
		zapcore.InfoLevel:  {Initial: 100, Thereafter: 10},
		zapcore.WarnLevel:  {Initial: 100, Thereafter: 100},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("%w: log format must be 'json' or 'console', got %q", config.ErrInvalid, c.Format)
	}
	if !c.Output.Stdout && !c.Output.Stderr && !c.Output.OTEL {
		return fmt.Errorf("%w: at least one log output must be enabled", config.ErrInvalid)
	}
	if c.Sampling.Enabled && c.Sampling.Tick <= 0 {
		return fmt.Errorf("%w: sampling tick must be > 0 when sampling is enabled", config.ErrInvalid)
	}
	if c.Redaction.Enabled {
		for _, pattern := range c.Redaction.Patterns {
			if len(pattern) > 200 {
				return fmt.Errorf("%w: redaction pattern too long (max 200 chars)", config.ErrInvalid)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("%w: redaction pattern %q: %v", config.ErrInvalid, pattern, err)
			}
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("%w: constant log fields need a key and a value", config.ErrInvalid)
		}
	}
	return nil
}
