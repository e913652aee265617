package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/piiguard/internal/align"
	"github.com/fyrsmithlabs/piiguard/internal/entities"
	"github.com/fyrsmithlabs/piiguard/internal/outcome"
)

const streamed = "Hello there. Call 212-555-0101 now."

func TestStreaming_OnlyLastSentenceIsSent(t *testing.T) {
	a := phoneAnalyzer()
	v, err := NewStreaming(a, &countingAnonymizer{}, outcome.ModeFix)
	require.NoError(t, err)

	o, err := v.Validate(context.Background(), streamed, entities.Alias("pii"))
	require.NoError(t, err)

	assert.Equal(t, "Call 212-555-0101 now.", a.lastText())
	require.NotNil(t, o.FixValue)
	assert.Equal(t, "Hello there. Call <PHONE_NUMBER> now.", *o.FixValue)
}

func TestStreaming_ReportWithRedactions(t *testing.T) {
	v, err := NewStreaming(phoneAnalyzer(), &countingAnonymizer{}, outcome.ModeReport)
	require.NoError(t, err)

	res, err := v.ValidateWithRedactions(context.Background(), streamed, entities.Alias("pii"))
	require.NoError(t, err)

	assert.False(t, res.Passed)
	assert.Equal(t, []align.ErrorSpan{
		{Start: 18, End: 30, Reason: "PII detected in 212-555-0101"},
	}, res.ErrorSpans)
	assert.Equal(t, []string{"212-555-0101"}, res.Redactions)
	require.NotNil(t, res.Message)
	assert.Equal(t, `The following text contains PII: "212-555-0101"`, *res.Message)
}

func TestStreaming_EarlierSentencesIgnored(t *testing.T) {
	anon := &countingAnonymizer{}
	v, err := NewStreaming(phoneAnalyzer(), anon, outcome.ModeReport)
	require.NoError(t, err)

	res, err := v.ValidateWithRedactions(context.Background(),
		"Call 212-555-0101 now. Thanks for waiting.", entities.Alias("pii"))
	require.NoError(t, err)

	assert.True(t, res.Passed)
	assert.Empty(t, res.Redactions)
	assert.Equal(t, 0, anon.count())
}

func TestStreaming_MultipleRuns(t *testing.T) {
	v, err := NewStreaming(phoneAnalyzer(), &countingAnonymizer{}, outcome.ModeReport)
	require.NoError(t, err)

	text := "Earlier text. Call 212-555-0101 or mail jane@example.com today."
	res, err := v.ValidateWithRedactions(context.Background(), text, entities.Alias("pii"))
	require.NoError(t, err)

	assert.Equal(t, []string{"212-555-0101", "jane@example.com"}, res.Redactions)
	require.Len(t, res.ErrorSpans, 2)
	assert.Equal(t, "212-555-0101", res.ErrorSpans[0].Slice(text))
	assert.Equal(t, "jane@example.com", res.ErrorSpans[1].Slice(text))
}

func TestStreaming_BlankText(t *testing.T) {
	v, err := NewStreaming(phoneAnalyzer(), &countingAnonymizer{}, outcome.ModeFix)
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), "   ", entities.Alias("pii"))
	assert.ErrorIs(t, err, ErrInput)
}
