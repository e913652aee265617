// Package metrics holds the Prometheus collectors for validation calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Validation holds Prometheus metrics for validators. A nil *Validation is
// valid and records nothing.
//
// Metrics:
//   - piiguard_validations_total{strategy,mode,result} - validation calls by outcome
//   - piiguard_validation_duration_seconds{strategy} - end-to-end call latency
//   - piiguard_error_spans{strategy} - spans reported per failed call
//   - piiguard_detections_total{entity_type} - detector spans by entity type
//   - piiguard_collaborator_errors_total{collaborator} - detector/anonymizer failures
type Validation struct {
	ValidationsTotal   *prometheus.CounterVec
	Duration           *prometheus.HistogramVec
	ErrorSpans         *prometheus.HistogramVec
	DetectionsTotal    *prometheus.CounterVec
	CollaboratorErrors *prometheus.CounterVec
}

// NewValidation creates the validation metrics and registers them with reg.
func NewValidation(reg prometheus.Registerer) *Validation {
	f := promauto.With(reg)
	return &Validation{
		ValidationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "piiguard_validations_total",
				Help: "Total number of validation calls",
			},
			[]string{"strategy", "mode", "result"}, // result: "pass", "fail", "error"
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "piiguard_validation_duration_seconds",
				Help:    "Duration of validation calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"strategy"},
		),
		ErrorSpans: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "piiguard_error_spans",
				Help:    "Number of error spans reported per failed validation",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"strategy"},
		),
		DetectionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "piiguard_detections_total",
				Help: "Total number of detected entities by type",
			},
			[]string{"entity_type"},
		),
		CollaboratorErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "piiguard_collaborator_errors_total",
				Help: "Total number of detector and anonymizer failures",
			},
			[]string{"collaborator"}, // "detector" or "anonymizer"
		),
	}
}

// NewRegistry returns a registry with the Go runtime and process
// collectors already registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Observe records one finished validation call.
func (m *Validation) Observe(strategy, mode, result string, spans int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ValidationsTotal.WithLabelValues(strategy, mode, result).Inc()
	m.Duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if result == "fail" && spans > 0 {
		m.ErrorSpans.WithLabelValues(strategy).Observe(float64(spans))
	}
}

// Detected counts one detector span.
func (m *Validation) Detected(entityType string) {
	if m == nil {
		return
	}
	m.DetectionsTotal.WithLabelValues(entityType).Inc()
}

// CollaboratorFailed counts one collaborator failure.
func (m *Validation) CollaboratorFailed(collaborator string) {
	if m == nil {
		return
	}
	m.CollaboratorErrors.WithLabelValues(collaborator).Inc()
}
