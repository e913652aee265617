package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/piiguard/internal/config"
	"github.com/fyrsmithlabs/piiguard/internal/detector"
	"github.com/fyrsmithlabs/piiguard/internal/entities"
	"github.com/fyrsmithlabs/piiguard/internal/outcome"
)

func TestSuite_For(t *testing.T) {
	s, err := NewSuite(phoneAnalyzer(), &countingAnonymizer{})
	require.NoError(t, err)

	v, err := s.For(false, "")
	require.NoError(t, err)
	require.IsType(t, &FullTextValidator{}, v)
	assert.Equal(t, outcome.ModeFix, v.(*FullTextValidator).Mode())

	v, err = s.For(true, outcome.ModeReport)
	require.NoError(t, err)
	require.IsType(t, &StreamingValidator{}, v)
	assert.Equal(t, outcome.ModeReport, v.(*StreamingValidator).Mode())

	_, err = s.For(false, "loud")
	assert.ErrorIs(t, err, config.ErrInvalid)

	assert.NotNil(t, s.Resolver())
}

func TestSuite_NilCollaborator(t *testing.T) {
	_, err := NewSuite(nil, &countingAnonymizer{})
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	s, err := NewSuite(phoneAnalyzer(), &countingAnonymizer{})
	require.NoError(t, err)
	ctx := context.Background()

	full, _ := s.For(false, outcome.ModeReport)
	res, err := Run(ctx, full, streamed, entities.Alias("pii"))
	require.NoError(t, err)
	assert.Nil(t, res.Redactions)
	assert.Len(t, res.ErrorSpans, 1)

	stream, _ := s.For(true, outcome.ModeReport)
	res, err = Run(ctx, stream, streamed, entities.Alias("pii"))
	require.NoError(t, err)
	assert.Equal(t, []string{"212-555-0101"}, res.Redactions)
}

func TestValidateBatch(t *testing.T) {
	v, err := NewFullText(phoneAnalyzer(), &countingAnonymizer{}, outcome.ModeFix)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("in order", func(t *testing.T) {
		results, err := ValidateBatch(ctx, v, []string{"clean", "Call 212-555-0101"}, entities.Alias("pii"))
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.True(t, results[0].Passed)
		require.NotNil(t, results[1].FixValue)
		assert.Equal(t, "Call <PHONE_NUMBER>", *results[1].FixValue)
	})

	t.Run("stops at first collaborator error", func(t *testing.T) {
		a := phoneAnalyzer()
		v, err := NewFullText(a, &countingAnonymizer{}, outcome.ModeFix)
		require.NoError(t, err)

		results, err := ValidateBatch(ctx, v, []string{"clean", "boom", "never reached"}, entities.Alias("pii"))
		require.Error(t, err)
		assert.ErrorIs(t, err, detector.ErrCollaborator)
		assert.Contains(t, err.Error(), "text 1")
		assert.Len(t, results, 1)
		assert.Equal(t, []string{"clean", "boom"}, a.texts)
	})

	t.Run("empty batch", func(t *testing.T) {
		results, err := ValidateBatch(ctx, v, nil, entities.Alias("pii"))
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
