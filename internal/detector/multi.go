package detector

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// MultiAnalyzer runs several analyzers concurrently and merges their spans.
// Overlaps are resolved like a single analyzer's: earliest start first,
// then the longer span.
type MultiAnalyzer struct {
	analyzers []Analyzer
}

// NewMultiAnalyzer combines analyzers.
func NewMultiAnalyzer(analyzers ...Analyzer) *MultiAnalyzer {
	return &MultiAnalyzer{analyzers: analyzers}
}

// Analyze implements Analyzer. The first error cancels the others and is
// returned.
func (m *MultiAnalyzer) Analyze(ctx context.Context, text string, entityTypes []string, language string) ([]DetectionSpan, error) {
	results := make([][]DetectionSpan, len(m.analyzers))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range m.analyzers {
		g.Go(func() error {
			spans, err := a.Analyze(gctx, text, entityTypes, language)
			if err != nil {
				return err
			}
			results[i] = spans
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []DetectionSpan
	for _, spans := range results {
		all = append(all, spans...)
	}
	return resolveOverlaps(all), nil
}
