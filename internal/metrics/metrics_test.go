package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidation_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewValidation(reg)

	m.Observe("full_text", "report", "fail", 2, 15*time.Millisecond)
	m.Observe("full_text", "report", "pass", 0, time.Millisecond)
	m.Detected("EMAIL_ADDRESS")
	m.Detected("EMAIL_ADDRESS")
	m.CollaboratorFailed("detector")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("full_text", "report", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("full_text", "report", "pass")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DetectionsTotal.WithLabelValues("EMAIL_ADDRESS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CollaboratorErrors.WithLabelValues("detector")))

	count, err := testutil.GatherAndCount(reg, "piiguard_error_spans")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestValidation_NilIsNoop(t *testing.T) {
	var m *Validation
	assert.NotPanics(t, func() {
		m.Observe("streaming", "fix", "pass", 0, time.Millisecond)
		m.Detected("PERSON")
		m.CollaboratorFailed("anonymizer")
	})
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
