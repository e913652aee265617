package detector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// EntitySecret is the entity type reported for credentials.
const EntitySecret = "SECRET"

// secretScore is reported for every gitleaks finding; gitleaks rules carry
// no confidence of their own.
const secretScore = 0.95

var (
	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidAllowlist indicates an allowlist file could not be parsed.
	ErrInvalidAllowlist = errors.New("invalid TOML allowlist")
)

// SecretAnalyzer detects credentials (API keys, tokens, private keys) with
// the gitleaks default rule set. It only runs when SECRET is requested.
type SecretAnalyzer struct {
	allowRegexes []string
}

// NewSecretAnalyzer returns a SecretAnalyzer that ignores content matching
// any of allowRegexes.
func NewSecretAnalyzer(allowRegexes ...string) (*SecretAnalyzer, error) {
	for _, pattern := range allowRegexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRegex, pattern, err)
		}
	}
	return &SecretAnalyzer{allowRegexes: allowRegexes}, nil
}

// LoadSecretAllowlist reads [allowlist].regexes from a gitleaks-style TOML
// file.
func LoadSecretAllowlist(path string) ([]string, error) {
	var file struct {
		Allowlist struct {
			Regexes []string
		}
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAllowlist, path, err)
	}
	return file.Allowlist.Regexes, nil
}

// Analyze implements Analyzer. A gitleaks detector keeps per-scan state,
// so each call builds its own.
func (a *SecretAnalyzer) Analyze(ctx context.Context, text string, entityTypes []string, _ string) ([]DetectionSpan, error) {
	if !wanted(entityTypes)[EntitySecret] {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: gitleaks: %v", ErrCollaborator, err)
	}
	if len(a.allowRegexes) > 0 {
		applyAllowlist(&d.Config, a.allowRegexes)
	}

	// Findings carry the secret text; locate every occurrence of it.
	var byteSpans [][2]int
	seen := make(map[[2]int]bool)
	for _, f := range d.DetectString(text) {
		secret := f.Secret
		if secret == "" {
			secret = f.Match
		}
		if secret == "" {
			continue
		}
		for from := 0; ; {
			i := strings.Index(text[from:], secret)
			if i < 0 {
				break
			}
			s := [2]int{from + i, from + i + len(secret)}
			if !seen[s] {
				seen[s] = true
				byteSpans = append(byteSpans, s)
			}
			from = s[1]
		}
	}
	sort.Slice(byteSpans, func(i, j int) bool { return byteSpans[i][0] < byteSpans[j][0] })

	ri := newRuneIndex(text)
	spans := make([]DetectionSpan, 0, len(byteSpans))
	for _, s := range byteSpans {
		spans = append(spans, DetectionSpan{
			Start:      ri.at(s[0]),
			End:        ri.at(s[1]),
			EntityType: EntitySecret,
			Score:      secretScore,
		})
	}
	return resolveOverlaps(spans), nil
}

// applyAllowlist appends a global allowlist to the gitleaks config.
// Patterns were validated in NewSecretAnalyzer. They go in as regexes
// only; gitleaks stop words are case-folded literal substrings.
func applyAllowlist(cfg *gitleaksConfig.Config, regexes []string) {
	allow := &gitleaksConfig.Allowlist{
		Description: "piiguard allowlist",
	}
	for _, pattern := range regexes {
		re := regexp.MustCompile(pattern)
		allow.Regexes = append(allow.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	cfg.Allowlists = append(cfg.Allowlists, allow)
}
