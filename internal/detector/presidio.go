package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/piiguard/internal/config"
)

// maxErrorBody bounds how much of an error response is quoted.
const maxErrorBody = 1024

// Presidio is an Analyzer and Anonymizer backed by the Presidio analyzer
// and anonymizer REST services. It is safe for concurrent use.
//
// Requests share one rate limiter. Failures are returned as ErrCollaborator
// and never retried.
type Presidio struct {
	analyzerURL    string
	anonymizerURL  string
	apiKey         config.Secret
	scoreThreshold float64
	timeout        time.Duration
	http           *http.Client
	limiter        *rate.Limiter
}

// PresidioOption configures a Presidio client.
type PresidioOption func(*Presidio)

// WithHTTPClient replaces the default HTTP client. The client is used as
// given; WithTimeout does not touch it.
func WithHTTPClient(c *http.Client) PresidioOption {
	return func(p *Presidio) { p.http = c }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) PresidioOption {
	return func(p *Presidio) { p.timeout = d }
}

// WithRateLimit caps requests per second across both services.
// A non-positive limit disables limiting.
func WithRateLimit(perSecond float64, burst int) PresidioOption {
	return func(p *Presidio) {
		if perSecond <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithAPIKey sends key as a bearer token, for services behind a gateway.
func WithAPIKey(key config.Secret) PresidioOption {
	return func(p *Presidio) { p.apiKey = key }
}

// WithScoreThreshold asks the analyzer to drop results scoring below t.
func WithScoreThreshold(t float64) PresidioOption {
	return func(p *Presidio) { p.scoreThreshold = t }
}

// NewPresidio returns a client for the analyzer at analyzerURL and the
// anonymizer at anonymizerURL, e.g. "http://localhost:5002" and
// "http://localhost:5001".
func NewPresidio(analyzerURL, anonymizerURL string, opts ...PresidioOption) *Presidio {
	p := &Presidio{
		analyzerURL:   strings.TrimRight(analyzerURL, "/"),
		anonymizerURL: strings.TrimRight(anonymizerURL, "/"),
		timeout:       10 * time.Second,
		limiter:       rate.NewLimiter(rate.Inf, 0),
	}
	for _, o := range opts {
		o(p)
	}
	if p.http == nil {
		p.http = &http.Client{Timeout: p.timeout}
	}
	return p
}

type analyzeRequest struct {
	Text           string   `json:"text"`
	Language       string   `json:"language"`
	Entities       []string `json:"entities,omitempty"`
	ScoreThreshold float64  `json:"score_threshold,omitempty"`
}

type recognizerResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

type anonymizeRequest struct {
	Text            string             `json:"text"`
	AnalyzerResults []recognizerResult `json:"analyzer_results"`
}

type anonymizeResponse struct {
	Text string `json:"text"`
}

// Analyze implements Analyzer via POST /analyze.
func (p *Presidio) Analyze(ctx context.Context, text string, entityTypes []string, language string) ([]DetectionSpan, error) {
	var results []recognizerResult
	err := p.post(ctx, p.analyzerURL+"/analyze", analyzeRequest{
		Text:           text,
		Language:       language,
		Entities:       entityTypes,
		ScoreThreshold: p.scoreThreshold,
	}, &results)
	if err != nil {
		return nil, fmt.Errorf("presidio analyze: %w", err)
	}

	spans := make([]DetectionSpan, 0, len(results))
	for _, r := range results {
		spans = append(spans, DetectionSpan{
			Start:      r.Start,
			End:        r.End,
			EntityType: r.EntityType,
			Score:      r.Score,
		})
	}
	if err := checkBounds(text, spans); err != nil {
		return nil, fmt.Errorf("presidio analyze: %w", err)
	}
	return spans, nil
}

// Anonymize implements Anonymizer via POST /anonymize with the default
// replace operator, which writes <ENTITY_TYPE> for every span.
func (p *Presidio) Anonymize(ctx context.Context, text string, spans []DetectionSpan) (string, error) {
	if len(spans) == 0 {
		return text, nil
	}

	results := make([]recognizerResult, 0, len(spans))
	for _, s := range spans {
		results = append(results, recognizerResult{
			EntityType: s.EntityType,
			Start:      s.Start,
			End:        s.End,
			Score:      s.Score,
		})
	}

	var resp anonymizeResponse
	err := p.post(ctx, p.anonymizerURL+"/anonymize", anonymizeRequest{
		Text:            text,
		AnalyzerResults: results,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("presidio anonymize: %w", err)
	}
	return resp.Text, nil
}

// Ping checks that both services answer GET /health.
func (p *Presidio) Ping(ctx context.Context) error {
	for _, base := range []string{p.analyzerURL, p.anonymizerURL} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCollaborator, err)
		}
		resp, err := p.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %s unreachable: %v", ErrCollaborator, base, err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: %s health returned %d", ErrCollaborator, base, resp.StatusCode)
		}
	}
	return nil
}

func (p *Presidio) post(ctx context.Context, url string, in, out any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", ErrCollaborator, err)
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrCollaborator, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth := p.apiKey.Authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCollaborator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s returned %d: %s", ErrCollaborator, url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrCollaborator, err)
	}
	return nil
}
