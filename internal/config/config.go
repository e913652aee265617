// Package config provides configuration loading for piiguard.
//
// Configuration is assembled from defaults, an optional YAML file and
// PIIGUARD_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid marks configuration errors: unknown entity group aliases,
// entity selectors of an unsupported shape, unknown validation modes and
// invalid settings. Wrap it with context; test it with errors.Is.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the complete piiguard configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Validation    ValidationConfig    `koanf:"validation"`
	Detector      DetectorConfig      `koanf:"detector"`
	Entities      EntitiesConfig      `koanf:"entities"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RateLimit is the sustained request rate per second (0 disables limiting).
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
	// MaxBodyBytes bounds request bodies, e.g. "1M".
	MaxBodyBytes string `koanf:"max_body_bytes"`
}

// ValidationConfig holds defaults applied to validation requests.
type ValidationConfig struct {
	Mode     string `koanf:"mode"`     // fix | exception | report
	Language string `koanf:"language"` // passed to the detector
}

// DetectorConfig selects and configures the detector/anonymizer collaborators.
type DetectorConfig struct {
	// Provider is "presidio" (remote REST services) or "local" (built-in
	// regex and secret analyzers with a placeholder anonymizer).
	Provider       string   `koanf:"provider"`
	AnalyzerURL    string   `koanf:"analyzer_url"`
	AnonymizerURL  string   `koanf:"anonymizer_url"`
	APIKey         Secret   `koanf:"api_key"`
	Timeout        Duration `koanf:"timeout"`
	RateLimit      float64  `koanf:"rate_limit"`
	RateBurst      int      `koanf:"rate_burst"`
	ScoreThreshold float64  `koanf:"score_threshold"`

	// RecognizersFile adds or overrides regex recognizers (local provider).
	RecognizersFile string `koanf:"recognizers_file"`
	// SecretsAllowlist is a TOML file of regexes the secret scan ignores.
	SecretsAllowlist string `koanf:"secrets_allowlist"`
}

// EntitiesConfig points at an operator-supplied entity group table.
type EntitiesConfig struct {
	GroupsFile string `koanf:"groups_file"` // empty uses the built-in table
}

// LoggingConfig holds the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	Endpoint        string  `koanf:"endpoint"`
	Protocol        string  `koanf:"protocol"` // grpc | http/protobuf
	Insecure        bool    `koanf:"insecure"`
	SamplingRate    float64 `koanf:"sampling_rate"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8000,
			ShutdownTimeout: Duration(10 * time.Second),
			RateLimit:       0,
			RateBurst:       50,
			MaxBodyBytes:    "1M",
		},
		Validation: ValidationConfig{
			Mode:     "fix",
			Language: "en",
		},
		Detector: DetectorConfig{
			Provider:      "presidio",
			AnalyzerURL:   "http://localhost:5002",
			AnonymizerURL: "http://localhost:5001",
			Timeout:       Duration(10 * time.Second),
			RateLimit:     20,
			RateBurst:     40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: false,
			ServiceName:     "piiguard",
			Endpoint:        "localhost:4317",
			Protocol:        "grpc",
			Insecure:        true,
			SamplingRate:    1.0,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d (must be 1-65535)", ErrInvalid, c.Server.Port)
	}
	if err := c.Server.ShutdownTimeout.requirePositive("server shutdown_timeout"); err != nil {
		return err
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("%w: server rate_limit must be >= 0", ErrInvalid)
	}

	switch c.Validation.Mode {
	case "fix", "exception", "report":
	default:
		return fmt.Errorf("%w: validation mode %q (must be fix, exception or report)", ErrInvalid, c.Validation.Mode)
	}
	if c.Validation.Language == "" {
		return fmt.Errorf("%w: validation language is required", ErrInvalid)
	}

	switch c.Detector.Provider {
	case "local":
	case "presidio":
		if c.Detector.AnalyzerURL == "" || c.Detector.AnonymizerURL == "" {
			return fmt.Errorf("%w: presidio provider requires analyzer_url and anonymizer_url", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: detector provider %q (must be presidio or local)", ErrInvalid, c.Detector.Provider)
	}
	if err := c.Detector.Timeout.requirePositive("detector timeout"); err != nil {
		return err
	}
	if c.Detector.ScoreThreshold < 0 || c.Detector.ScoreThreshold > 1 {
		return fmt.Errorf("%w: detector score_threshold must be between 0 and 1", ErrInvalid)
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return fmt.Errorf("%w: service name required when telemetry is enabled", ErrInvalid)
	}

	return nil
}
