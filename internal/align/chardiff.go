package align

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// placeholderPattern matches the <ENTITY_TYPE> tokens anonymizers write.
var placeholderPattern = regexp.MustCompile(`<[A-Z][A-Z0-9_]*>`)

// sentinelBase is the first Private Use Area code point used to stand in
// for a placeholder token during diffing.
const sentinelBase = '\uE000'

// CharacterDiffAligner aligns texts with a minimal Myers character diff.
//
// Each <ENTITY_TYPE> token is diffed as a single symbol, so its letters
// never pair up with letters of the text it replaced. Everything else is
// compared rune by rune and no semantic cleanup is applied: separate
// redactions stay separate however short the text between them.
//
// A delete opens a range, inserts inside an open range keep it open
// (delete then insert is one replacement), and the next equal closes it.
// The cursor moves on equal and delete only, so offsets stay in original
// coordinates.
type CharacterDiffAligner struct{}

// NewCharacterDiffAligner returns a CharacterDiffAligner.
func NewCharacterDiffAligner() *CharacterDiffAligner {
	return &CharacterDiffAligner{}
}

// Align implements Aligner.
func (a *CharacterDiffAligner) Align(original, anonymized string) ([]ErrorSpan, error) {
	if original == "" || original == anonymized {
		return nil, nil
	}

	enc := newSymbolEncoder(original, anonymized)
	origSyms, offsets := enc.encode(original)
	anonSyms, _ := enc.encode(anonymized)

	dmp := diffmatchpatch.New()
	// No deadline: a timed-out diff is not minimal and not reproducible.
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(origSyms, anonSyms, false)

	runes := []rune(original)
	var spans []ErrorSpan
	sym, start := 0, -1

	closeRange := func() {
		if start >= 0 && offsets[sym] > start {
			spans = append(spans, ErrorSpan{
				Start:  start,
				End:    offsets[sym],
				Reason: reason(string(runes[start:offsets[sym]])),
			})
		}
		start = -1
	}

	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		if n == 0 {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			closeRange()
			sym += n
		case diffmatchpatch.DiffDelete:
			if start < 0 {
				start = offsets[sym]
			}
			sym += n
		case diffmatchpatch.DiffInsert:
			// placeholder text; absent from the original
		}
	}
	closeRange()

	if err := CheckSpans(spans, len(runes)); err != nil {
		return nil, err
	}
	return spans, nil
}

// symbolEncoder maps each distinct placeholder token to one Private Use
// Area rune that occurs in neither text.
type symbolEncoder struct {
	sentinels map[string]rune
}

func newSymbolEncoder(texts ...string) *symbolEncoder {
	e := &symbolEncoder{sentinels: make(map[string]rune)}
	next := sentinelBase
	for _, text := range texts {
		for _, tok := range placeholderPattern.FindAllString(text, -1) {
			if _, ok := e.sentinels[tok]; ok {
				continue
			}
			for containsRune(texts, next) {
				next++
			}
			e.sentinels[tok] = next
			next++
		}
	}
	return e
}

func containsRune(texts []string, r rune) bool {
	for _, t := range texts {
		if strings.ContainsRune(t, r) {
			return true
		}
	}
	return false
}

// encode returns text as symbols and, for every symbol index plus one past
// the end, its rune offset in text.
func (e *symbolEncoder) encode(text string) ([]rune, []int) {
	syms := make([]rune, 0, utf8.RuneCountInString(text))
	offsets := make([]int, 0, cap(syms)+1)
	pos, last := 0, 0

	appendRunes := func(s string) {
		for _, r := range s {
			syms = append(syms, r)
			offsets = append(offsets, pos)
			pos++
		}
	}

	for _, loc := range placeholderPattern.FindAllStringIndex(text, -1) {
		appendRunes(text[last:loc[0]])
		tok := text[loc[0]:loc[1]]
		syms = append(syms, e.sentinels[tok])
		offsets = append(offsets, pos)
		pos += utf8.RuneCountInString(tok)
		last = loc[1]
	}
	appendRunes(text[last:])
	offsets = append(offsets, pos)
	return syms, offsets
}
