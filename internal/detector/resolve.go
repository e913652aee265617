package detector

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// resolveOverlaps orders spans by start and keeps the first of any
// overlapping group. At equal starts the longer span wins, then the higher
// score, then the entity type name.
func resolveOverlaps(spans []DetectionSpan) []DetectionSpan {
	sorted := append([]DetectionSpan(nil), spans...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if la, lb := a.End-a.Start, b.End-b.Start; la != lb {
			return la > lb
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.EntityType < b.EntityType
	})

	out := make([]DetectionSpan, 0, len(sorted))
	lastEnd := -1
	for _, s := range sorted {
		if s.Start < lastEnd {
			continue
		}
		out = append(out, s)
		lastEnd = s.End
	}
	return out
}

// checkBounds rejects spans that do not fit text.
func checkBounds(text string, spans []DetectionSpan) error {
	n := utf8.RuneCountInString(text)
	for i, s := range spans {
		if s.Start < 0 || s.Start >= s.End || s.End > n {
			return fmt.Errorf("%w: span %d [%d,%d) %s outside text of length %d", ErrCollaborator, i, s.Start, s.End, s.EntityType, n)
		}
	}
	return nil
}

func wanted(entityTypes []string) map[string]bool {
	set := make(map[string]bool, len(entityTypes))
	for _, t := range entityTypes {
		set[t] = true
	}
	return set
}
