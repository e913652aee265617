// Package telemetry wires OpenTelemetry tracing and metrics export for
// piiguard.
//
// Telemetry is optional. With telemetry disabled, Tracer and Meter fall
// back to the global providers, which are no-ops unless something else
// installed them. Spans never carry validated text: attributes are limited
// to sizes, counts, modes and entity type names.
package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/piiguard/internal/config"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	Endpoint       string
	Protocol       string
	ServiceName    string
	ServiceVersion string
	// Insecure disables TLS. Only allowed for local endpoints.
	Insecure bool
	// SamplingRate is the trace sampling ratio in [0, 1].
	SamplingRate    float64
	MetricsInterval time.Duration
	ShutdownTimeout time.Duration
}

// NewDefaultConfig returns telemetry defaults. Telemetry is off unless an
// operator turns it on.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:         false,
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		ServiceName:     "piiguard",
		ServiceVersion:  "dev",
		Insecure:        true,
		SamplingRate:    1.0,
		MetricsInterval: 15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// FromConfig derives telemetry settings from the observability section.
func FromConfig(oc config.ObservabilityConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = oc.EnableTelemetry
	if oc.ServiceName != "" {
		cfg.ServiceName = oc.ServiceName
	}
	if oc.Endpoint != "" {
		cfg.Endpoint = oc.Endpoint
	}
	if oc.Protocol != "" {
		cfg.Protocol = oc.Protocol
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	cfg.Insecure = oc.Insecure
	cfg.SamplingRate = oc.SamplingRate
	return cfg
}

// Validate checks configuration for errors. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("%w: telemetry endpoint is required", config.ErrInvalid)
	}
	if c.ServiceName == "" {
		return fmt.Errorf("%w: telemetry service name is required", config.ErrInvalid)
	}
	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		return fmt.Errorf("%w: telemetry protocol %q (must be %s or %s)", config.ErrInvalid, c.Protocol, ProtocolGRPC, ProtocolHTTP)
	}
	if c.Insecure && !c.isLocalEndpoint() {
		return fmt.Errorf("%w: insecure telemetry export is only allowed to a local endpoint", config.ErrInvalid)
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("%w: sampling rate must be between 0 and 1, got %g", config.ErrInvalid, c.SamplingRate)
	}
	if c.MetricsInterval <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: telemetry intervals must be positive", config.ErrInvalid)
	}
	return nil
}

func (c *Config) isLocalEndpoint() bool {
	host := stripScheme(c.Endpoint)
	switch {
	case strings.HasPrefix(host, "["):
		if idx := strings.Index(host, "]"); idx != -1 {
			host = host[1:idx]
		}
	case strings.Count(host, ":") == 1:
		host = host[:strings.LastIndex(host, ":")]
	}
	return host == "localhost" || host == "::1" || strings.HasPrefix(host, "127.")
}

// stripScheme removes http:// or https://. The OTLP HTTP exporters want
// host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
