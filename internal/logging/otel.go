package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// instrumentationName is the scope attached to records sent through the
// OpenTelemetry bridge.
const instrumentationName = "github.com/fyrsmithlabs/piiguard"

func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	return buildCore(cfg, otelProvider, zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr))
}

// buildCore tees the enabled outputs and wraps the result with sampling.
// The OTEL output is skipped when otelProvider is nil.
func buildCore(cfg *Config, otelProvider log.LoggerProvider, stdout, stderr zapcore.WriteSyncer) (zapcore.Core, error) {
	cores := make([]zapcore.Core, 0, 3)

	addWriter := func(w zapcore.WriteSyncer) error {
		encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return fmt.Errorf("failed to create redacting encoder: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder, w, cfg.Level))
		return nil
	}

	if cfg.Output.Stdout {
		if err := addWriter(stdout); err != nil {
			return nil, err
		}
	}
	if cfg.Output.Stderr {
		if err := addWriter(stderr); err != nil {
			return nil, err
		}
	}
	if cfg.Output.OTEL && otelProvider != nil {
		// The bridge does not go through the redacting encoder, so it only
		// sees entries at or above the configured level and the same
		// call-site fields. Callers log lengths, never texts.
		cores = append(cores, &levelFilterCore{
			Core:  otelzap.NewCore(instrumentationName, otelzap.WithLoggerProvider(otelProvider)),
			allow: cfg.Level.Enabled,
		})
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one output must be enabled and available")
	}

	var core zapcore.Core
	if len(cores) == 1 {
		core = cores[0]
	} else {
		core = zapcore.NewTee(cores...)
	}
	return newSampledCore(core, cfg.Sampling), nil
}
