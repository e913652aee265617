package detector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderAnonymizer(t *testing.T) {
	a := NewPlaceholderAnonymizer()
	ctx := context.Background()

	tests := []struct {
		name  string
		text  string
		spans []DetectionSpan
		want  string
	}{
		{
			name: "two spans",
			text: "Jane wrote test@test.com",
			spans: []DetectionSpan{
				{Start: 11, End: 24, EntityType: "EMAIL_ADDRESS"},
				{Start: 0, End: 4, EntityType: "PERSON"},
			},
			want: "<PERSON> wrote <EMAIL_ADDRESS>",
		},
		{
			name:  "no spans",
			text:  "nothing here",
			spans: nil,
			want:  "nothing here",
		},
		{
			name:  "rune offsets",
			text:  "Zoë paid",
			spans: []DetectionSpan{{Start: 0, End: 3, EntityType: "PERSON"}},
			want:  "<PERSON> paid",
		},
		{
			name: "overlap keeps the earlier longer span",
			text: "0123456789abc",
			spans: []DetectionSpan{
				{Start: 5, End: 12, EntityType: "B"},
				{Start: 0, End: 10, EntityType: "A"},
			},
			want: "<A>abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Anonymize(ctx, tt.text, tt.spans)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("out of bounds", func(t *testing.T) {
		_, err := a.Anonymize(ctx, "short", []DetectionSpan{{Start: 3, End: 9, EntityType: "X"}})
		assert.ErrorIs(t, err, ErrCollaborator)
	})
}

func TestRegexRoundTripThroughAnonymizer(t *testing.T) {
	text := "Reach me at jane.doe@example.org or 192.168.1.20"
	ctx := context.Background()

	spans, err := newRegex(t).Analyze(ctx, text, []string{"EMAIL_ADDRESS", "IP_ADDRESS"}, "en")
	require.NoError(t, err)

	out, err := NewPlaceholderAnonymizer().Anonymize(ctx, text, spans)
	require.NoError(t, err)
	assert.Equal(t, "Reach me at <EMAIL_ADDRESS> or <IP_ADDRESS>", out)
}

type fakeAnalyzer struct {
	spans []DetectionSpan
	err   error
}

func (f fakeAnalyzer) Analyze(context.Context, string, []string, string) ([]DetectionSpan, error) {
	return f.spans, f.err
}

func TestMultiAnalyzer(t *testing.T) {
	ctx := context.Background()

	t.Run("merges and resolves overlaps", func(t *testing.T) {
		m := NewMultiAnalyzer(
			fakeAnalyzer{spans: []DetectionSpan{{Start: 10, End: 20, EntityType: "EMAIL_ADDRESS", Score: 0.9}}},
			fakeAnalyzer{spans: []DetectionSpan{
				{Start: 0, End: 4, EntityType: "PERSON", Score: 0.8},
				{Start: 15, End: 20, EntityType: "DOMAIN_NAME", Score: 0.5},
			}},
		)
		spans, err := m.Analyze(ctx, "irrelevant", nil, "en")
		require.NoError(t, err)
		assert.Equal(t, []DetectionSpan{
			{Start: 0, End: 4, EntityType: "PERSON", Score: 0.8},
			{Start: 10, End: 20, EntityType: "EMAIL_ADDRESS", Score: 0.9},
		}, spans)
	})

	t.Run("equal spans prefer the higher score", func(t *testing.T) {
		m := NewMultiAnalyzer(
			fakeAnalyzer{spans: []DetectionSpan{{Start: 0, End: 5, EntityType: "US_SSN", Score: 0.5}}},
			fakeAnalyzer{spans: []DetectionSpan{{Start: 0, End: 5, EntityType: "SECRET", Score: 0.95}}},
		)
		spans, err := m.Analyze(ctx, "x", nil, "en")
		require.NoError(t, err)
		require.Len(t, spans, 1)
		assert.Equal(t, "SECRET", spans[0].EntityType)
	})

	t.Run("any failure fails the call", func(t *testing.T) {
		boom := errors.New("boom")
		m := NewMultiAnalyzer(fakeAnalyzer{}, fakeAnalyzer{err: boom})
		_, err := m.Analyze(ctx, "x", nil, "en")
		assert.ErrorIs(t, err, boom)
	})
}
