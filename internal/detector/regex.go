package detector

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed recognizers.yaml
var builtinRecognizers []byte

const (
	// DefaultMinScore discards matches below this confidence unless
	// context words lift them over it.
	DefaultMinScore = 0.5

	// contextBoost is added to a match's score when a context word
	// occurs within contextWindow bytes of it.
	contextBoost  = 0.35
	contextWindow = 100
)

// RecognizerFile is the YAML layout of a recognizer definition file.
type RecognizerFile struct {
	Recognizers []Recognizer `yaml:"recognizers"`
}

// Recognizer detects one entity type with one or more patterns.
type Recognizer struct {
	Name              string          `yaml:"name"`
	SupportedEntity   string          `yaml:"supported_entity"`
	SupportedLanguage string          `yaml:"supported_language,omitempty"` // empty matches any
	Enabled           *bool           `yaml:"enabled,omitempty"`
	Patterns          []PatternConfig `yaml:"patterns"`
	Context           []string        `yaml:"context,omitempty"`
	Validate          string          `yaml:"validate,omitempty"` // "", "luhn" or "iban"
}

// PatternConfig is a single scored regular expression.
type PatternConfig struct {
	Name  string  `yaml:"name"`
	Regex string  `yaml:"regex"`
	Score float64 `yaml:"score"`
}

func (r *Recognizer) enabled() bool {
	return r.Enabled == nil || *r.Enabled
}

type compiledPattern struct {
	entityType string
	language   string
	pattern    *regexp.Regexp
	score      float64
	context    []string
	validate   func(string) bool
}

// RegexAnalyzer is an offline Analyzer driven by regular expressions.
// Patterns are compiled once; the analyzer is read-only afterwards and
// safe for concurrent use. Requested entity types with no recognizer are
// ignored.
type RegexAnalyzer struct {
	patterns []compiledPattern
	minScore float64
}

// RegexOption configures a RegexAnalyzer.
type RegexOption func(*regexConfig)

type regexConfig struct {
	files    []string
	extra    []Recognizer
	minScore float64
}

// WithRecognizerFile layers the recognizers in path over the built-in set.
// A recognizer with the same name replaces the built-in one.
func WithRecognizerFile(path string) RegexOption {
	return func(c *regexConfig) { c.files = append(c.files, path) }
}

// WithRecognizers layers recognizers over the built-in set.
func WithRecognizers(recs ...Recognizer) RegexOption {
	return func(c *regexConfig) { c.extra = append(c.extra, recs...) }
}

// WithMinScore overrides DefaultMinScore.
func WithMinScore(score float64) RegexOption {
	return func(c *regexConfig) { c.minScore = score }
}

// NewRegexAnalyzer compiles the built-in recognizers plus any layered on
// by opts.
func NewRegexAnalyzer(opts ...RegexOption) (*RegexAnalyzer, error) {
	cfg := regexConfig{minScore: DefaultMinScore}
	for _, o := range opts {
		o(&cfg)
	}

	builtin, err := ParseRecognizers(builtinRecognizers)
	if err != nil {
		return nil, fmt.Errorf("parsing built-in recognizers: %w", err)
	}
	layers := [][]Recognizer{builtin.Recognizers}
	for _, path := range cfg.files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading recognizer file: %w", err)
		}
		rf, err := ParseRecognizers(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		layers = append(layers, rf.Recognizers)
	}
	layers = append(layers, cfg.extra)

	compiled, err := compileRecognizers(mergeRecognizers(layers...))
	if err != nil {
		return nil, err
	}
	return &RegexAnalyzer{patterns: compiled, minScore: cfg.minScore}, nil
}

// ParseRecognizers decodes a recognizer YAML document.
func ParseRecognizers(data []byte) (*RecognizerFile, error) {
	var rf RecognizerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing recognizer YAML: %w", err)
	}
	return &rf, nil
}

// mergeRecognizers combines layers; later layers replace earlier ones by
// name and new names are appended.
func mergeRecognizers(layers ...[]Recognizer) []Recognizer {
	index := make(map[string]int)
	var merged []Recognizer
	for _, layer := range layers {
		for _, rec := range layer {
			if i, ok := index[rec.Name]; ok {
				merged[i] = rec
				continue
			}
			index[rec.Name] = len(merged)
			merged = append(merged, rec)
		}
	}
	return merged
}

func compileRecognizers(recs []Recognizer) ([]compiledPattern, error) {
	var out []compiledPattern
	for _, rec := range recs {
		if !rec.enabled() {
			continue
		}
		if rec.SupportedEntity == "" {
			return nil, fmt.Errorf("recognizer %q has no supported_entity", rec.Name)
		}

		var validate func(string) bool
		switch rec.Validate {
		case "":
		case "luhn":
			validate = func(v string) bool { return luhnValid(stripNonDigits(v)) }
		case "iban":
			validate = func(v string) bool { return ibanValid(strings.ReplaceAll(v, " ", "")) }
		default:
			return nil, fmt.Errorf("recognizer %q: unknown validator %q", rec.Name, rec.Validate)
		}

		for _, p := range rec.Patterns {
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q in recognizer %q: %w", p.Name, rec.Name, err)
			}
			out = append(out, compiledPattern{
				entityType: rec.SupportedEntity,
				language:   rec.SupportedLanguage,
				pattern:    re,
				score:      p.Score,
				context:    rec.Context,
				validate:   validate,
			})
		}
	}
	return out, nil
}

// EntityTypes returns the entity types the analyzer can detect.
func (a *RegexAnalyzer) EntityTypes() []string {
	seen := make(map[string]bool)
	var types []string
	for _, p := range a.patterns {
		if !seen[p.entityType] {
			seen[p.entityType] = true
			types = append(types, p.entityType)
		}
	}
	return types
}

// Analyze implements Analyzer.
func (a *RegexAnalyzer) Analyze(ctx context.Context, text string, entityTypes []string, language string) ([]DetectionSpan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	want := wanted(entityTypes)
	var spans []DetectionSpan
	for _, p := range a.patterns {
		if !want[p.entityType] {
			continue
		}
		if p.language != "" && language != "" && p.language != language {
			continue
		}

		ri := newRuneIndex(text)
		for _, m := range p.pattern.FindAllStringIndex(text, -1) {
			value := text[m[0]:m[1]]
			if p.validate != nil && !p.validate(value) {
				continue
			}
			score := scoreWithContext(text, m[0], p.score, p.context)
			if score < a.minScore {
				continue
			}
			spans = append(spans, DetectionSpan{
				Start:      ri.at(m[0]),
				End:        ri.at(m[1]),
				EntityType: p.entityType,
				Score:      score,
			})
		}
	}
	return resolveOverlaps(spans), nil
}

// scoreWithContext adds contextBoost when any context word occurs near
// the match, capped at 1.
func scoreWithContext(text string, pos int, base float64, words []string) float64 {
	if len(words) == 0 {
		return base
	}
	start := max(pos-contextWindow, 0)
	end := min(pos+contextWindow, len(text))
	window := strings.ToLower(text[start:end])
	for _, w := range words {
		if strings.Contains(window, strings.ToLower(w)) {
			return min(base+contextBoost, 1.0)
		}
	}
	return base
}

// luhnValid checks a digit string against the Luhn checksum.
func luhnValid(number string) bool {
	if len(number) < 2 {
		return false
	}
	sum, alt := 0, false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

// ibanLengths holds the registered IBAN length per country.
var ibanLengths = map[string]int{
	"AD": 24, "AT": 20, "BE": 16, "BG": 22, "CH": 21, "CY": 28, "CZ": 24,
	"DE": 22, "DK": 18, "EE": 20, "ES": 24, "FI": 18, "FR": 27, "GB": 22,
	"GR": 27, "HR": 21, "HU": 28, "IE": 22, "IS": 26, "IT": 27, "LI": 21,
	"LT": 20, "LU": 20, "LV": 21, "MC": 27, "MT": 31, "NL": 18, "NO": 15,
	"PL": 28, "PT": 25, "RO": 24, "SE": 24, "SI": 19, "SK": 24, "SM": 27,
}

// ibanValid checks the country length and the ISO 13616 MOD-97 digits.
func ibanValid(iban string) bool {
	if len(iban) < 5 {
		return false
	}
	if want, ok := ibanLengths[iban[:2]]; !ok || len(iban) != want {
		return false
	}
	// Move the first four characters to the end, expand letters to
	// two-digit numbers and reduce mod 97 one digit at a time.
	rearranged := iban[4:] + iban[:4]
	rem := 0
	for _, ch := range rearranged {
		switch {
		case ch >= '0' && ch <= '9':
			rem = (rem*10 + int(ch-'0')) % 97
		case ch >= 'A' && ch <= 'Z':
			v := int(ch-'A') + 10
			rem = (rem*100 + v) % 97
		default:
			return false
		}
	}
	return rem == 1
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
