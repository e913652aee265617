package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/piiguard/internal/align"
	"github.com/fyrsmithlabs/piiguard/internal/detector"
	"github.com/fyrsmithlabs/piiguard/internal/logging"
	"github.com/fyrsmithlabs/piiguard/internal/metrics"
	"github.com/fyrsmithlabs/piiguard/internal/validator"
)

const emailText = "Reach me at jane@example.com please"

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(context.Context, string, []string, string) ([]detector.DetectionSpan, error) {
	return nil, errors.New("dial tcp 10.0.0.1:5002: connection refused")
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func localSuite(t *testing.T, opts ...validator.Option) *validator.Suite {
	t.Helper()
	analyzer, err := detector.NewRegexAnalyzer()
	require.NoError(t, err)
	suite, err := validator.NewSuite(analyzer, detector.NewPlaceholderAnonymizer(), opts...)
	require.NoError(t, err)
	return suite
}

func setupTestServer(t *testing.T, cfg *Config, opts ...Option) (*Server, *logging.TestLogger) {
	t.Helper()
	logger := logging.NewTestLogger()
	s, err := NewServer(localSuite(t), logger.Logger, cfg, opts...)
	require.NoError(t, err)
	return s, logger
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if raw, ok := body.(string); ok {
		buf.WriteString(raw)
	} else {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		s, _ := setupTestServer(t, nil)
		assert.Equal(t, "localhost", s.config.Host)
		assert.Equal(t, 8000, s.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(localSuite(t), nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when suite is nil", func(t *testing.T) {
		_, err := NewServer(nil, logging.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "suite cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	get := func(s *Server) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rec
	}

	t.Run("without checker", func(t *testing.T) {
		s, _ := setupTestServer(t, nil)
		rec := get(s)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, HealthResponse{Status: "ok"}, decode[HealthResponse](t, rec))
	})

	t.Run("collaborators reachable", func(t *testing.T) {
		s, _ := setupTestServer(t, nil, WithHealthChecker(pinger{}))
		rec := get(s)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", decode[HealthResponse](t, rec).Collaborators)
	})

	t.Run("collaborators down", func(t *testing.T) {
		s, logger := setupTestServer(t, nil, WithHealthChecker(pinger{err: errors.New("refused")}))
		rec := get(s)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, HealthResponse{Status: "degraded", Collaborators: "unavailable"}, decode[HealthResponse](t, rec))
		logger.AssertLogged(t, zapcore.WarnLevel, "health check failed")
	})
}

func TestHandleValidate(t *testing.T) {
	t.Run("fix mode by default", func(t *testing.T) {
		s, _ := setupTestServer(t, nil)
		rec := postJSON(t, s, "/api/v1/validate", map[string]any{"text": emailText, "entities": "pii"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[ValidateResponse](t, rec)
		require.Len(t, resp.Results, 1)
		assert.False(t, resp.Results[0].Passed)
		require.NotNil(t, resp.Results[0].FixValue)
		assert.Equal(t, "Reach me at <EMAIL_ADDRESS> please", *resp.Results[0].FixValue)
	})

	t.Run("report mode", func(t *testing.T) {
		s, _ := setupTestServer(t, nil)
		rec := postJSON(t, s, "/api/v1/validate", map[string]any{
			"text":     emailText,
			"entities": []string{"EMAIL_ADDRESS"},
			"mode":     "report",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[ValidateResponse](t, rec)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, []align.ErrorSpan{
			{Start: 12, End: 28, Reason: "PII detected in jane@example.com"},
		}, resp.Results[0].ErrorSpans)
		require.NotNil(t, resp.Results[0].Message)
		assert.Equal(t, `The following text contains PII: "jane@example.com"`, *resp.Results[0].Message)
		assert.Nil(t, resp.Results[0].FixValue)
	})

	t.Run("several texts", func(t *testing.T) {
		s, _ := setupTestServer(t, nil)
		rec := postJSON(t, s, "/api/v1/validate", map[string]any{
			"text":     []string{"Good morning!", emailText},
			"entities": "pii",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[ValidateResponse](t, rec)
		require.Len(t, resp.Results, 2)
		assert.True(t, resp.Results[0].Passed)
		assert.False(t, resp.Results[1].Passed)
	})

	t.Run("exception mode fails the request", func(t *testing.T) {
		s, _ := setupTestServer(t, nil)
		rec := postJSON(t, s, "/api/v1/validate", map[string]any{"text": emailText, "entities": "pii", "mode": "exception"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		resp := decode[FailureResponse](t, rec)
		assert.Contains(t, resp.Error, "jane@example.com")
		require.Len(t, resp.Results, 1)
		assert.Len(t, resp.Results[0].ErrorSpans, 1)
	})

	t.Run("exception mode passes clean text", func(t *testing.T) {
		s, _ := setupTestServer(t, nil)
		rec := postJSON(t, s, "/api/v1/validate", map[string]any{"text": "Good morning!", "entities": "pii", "mode": "exception"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("streaming returns redactions", func(t *testing.T) {
		s, _ := setupTestServer(t, nil)
		rec := postJSON(t, s, "/api/v1/validate", map[string]any{
			"text":      "Hi. Mail jane@example.com now.",
			"entities":  "pii",
			"mode":      "report",
			"streaming": true,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[ValidateResponse](t, rec)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, []string{"jane@example.com"}, resp.Results[0].Redactions)
		require.Len(t, resp.Results[0].ErrorSpans, 1)
		assert.Equal(t, 9, resp.Results[0].ErrorSpans[0].Start)
		assert.Equal(t, 25, resp.Results[0].ErrorSpans[0].End)
	})
}

func TestHandleValidate_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"text":`},
		{"missing text", map[string]any{}},
		{"blank text", map[string]any{"text": "   ", "entities": "pii"}},
		{"numeric text", map[string]any{"text": 42}},
		{"non-string item", map[string]any{"text": []any{"ok", 1}}},
		{"empty text list", map[string]any{"text": []string{}}},
		{"unknown alias", map[string]any{"text": "hi", "entities": "nope"}},
		{"empty entity list", map[string]any{"text": "hi", "entities": []string{}}},
		{"entities wrong shape", map[string]any{"text": "hi", "entities": 7}},
		{"unknown mode", map[string]any{"text": "hi", "entities": "pii", "mode": "shout"}},
		{"missing entities", map[string]any{"text": emailText, "mode": "report"}},
		{"null entities", map[string]any{"text": emailText, "entities": nil}},
	}
	s, _ := setupTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, s, "/api/v1/validate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestHandleValidate_CollaboratorFailure(t *testing.T) {
	logger := logging.NewTestLogger()
	suite, err := validator.NewSuite(failingAnalyzer{}, detector.NewPlaceholderAnonymizer())
	require.NoError(t, err)
	s, err := NewServer(suite, logger.Logger, nil)
	require.NoError(t, err)

	rec := postJSON(t, s, "/api/v1/validate", map[string]any{"text": emailText, "entities": "pii"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "detector or anonymizer unavailable", resp.Error)
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")

	logger.AssertLogged(t, zapcore.WarnLevel, "collaborator failure")
	logger.AssertNoText(t, "jane@example.com")
}

func TestHandleValidate_MissingEntitiesSkipsDetector(t *testing.T) {
	logger := logging.NewTestLogger()
	suite, err := validator.NewSuite(failingAnalyzer{}, detector.NewPlaceholderAnonymizer())
	require.NoError(t, err)
	s, err := NewServer(suite, logger.Logger, nil)
	require.NoError(t, err)

	rec := postJSON(t, s, "/api/v1/validate", map[string]any{"text": emailText, "mode": "report"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "entities is required")
	logger.AssertNotLogged(t, zapcore.WarnLevel, "collaborator failure")
}

func TestHandleInference(t *testing.T) {
	inference := func(text []any, entities []any) InferenceRequest {
		return InferenceRequest{Inputs: []InferenceData{
			{Name: "text", Shape: []int{len(text)}, Data: text, Datatype: "BYTES"},
			{Name: "pii_entities", Shape: []int{len(entities)}, Data: entities, Datatype: "BYTES"},
		}}
	}

	t.Run("group alias", func(t *testing.T) {
		s, _ := setupTestServer(t, nil)
		rec := postJSON(t, s, "/validate", inference([]any{emailText, "Good morning!"}, []any{"pii"}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[InferenceResponse](t, rec)
		assert.Equal(t, "piiguard", resp.ModelName)
		assert.Equal(t, "1", resp.ModelVersion)
		require.Len(t, resp.Outputs, 2)

		assert.Equal(t, "result0", resp.Outputs[0].Name)
		assert.Equal(t, "BYTES", resp.Outputs[0].Datatype)
		assert.Equal(t, []any{"Reach me at <EMAIL_ADDRESS> please"}, resp.Outputs[0].Data)
		assert.Equal(t, []int{34}, resp.Outputs[0].Shape)

		assert.Equal(t, "result1", resp.Outputs[1].Name)
		assert.Equal(t, []any{"Good morning!"}, resp.Outputs[1].Data)
		assert.Equal(t, []int{13}, resp.Outputs[1].Shape)
	})

	t.Run("explicit entity list", func(t *testing.T) {
		s, _ := setupTestServer(t, nil)
		rec := postJSON(t, s, "/validate", inference([]any{emailText}, []any{"PHONE_NUMBER"}))
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[InferenceResponse](t, rec)
		require.Len(t, resp.Outputs, 1)
		assert.Equal(t, []any{emailText}, resp.Outputs[0].Data)
	})

	t.Run("entities input name", func(t *testing.T) {
		s, _ := setupTestServer(t, nil)
		req := inference([]any{emailText}, []any{"EMAIL_ADDRESS"})
		req.Inputs[1].Name = "entities"
		rec := postJSON(t, s, "/validate", req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "<EMAIL_ADDRESS>")
	})

	t.Run("missing input", func(t *testing.T) {
		s, _ := setupTestServer(t, nil)
		rec := postJSON(t, s, "/validate", InferenceRequest{Inputs: []InferenceData{
			{Name: "text", Data: []any{emailText}},
		}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode[ErrorResponse](t, rec).Error, "invalid input format")
	})
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewValidation(reg)
	logger := logging.NewTestLogger()
	s, err := NewServer(localSuite(t, validator.WithMetrics(m)), logger.Logger, nil, WithGatherer(reg))
	require.NoError(t, err)

	rec := postJSON(t, s, "/api/v1/validate", map[string]any{"text": emailText, "entities": "pii"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `piiguard_validations_total{mode="fix",result="fail",strategy="full"} 1`)
	assert.Contains(t, rec.Body.String(), `piiguard_detections_total{entity_type="EMAIL_ADDRESS"} 1`)
}

func TestMetricsRoute_AbsentWithoutGatherer(t *testing.T) {
	s, _ := setupTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	s, _ := setupTestServer(t, cfg)

	rec := postJSON(t, s, "/api/v1/validate", map[string]any{"text": "hello", "entities": "pii"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, s, "/api/v1/validate", map[string]any{"text": "hello", "entities": "pii"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// health is not limited
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxBodyBytes = "1K"
	s, _ := setupTestServer(t, cfg)

	rec := postJSON(t, s, "/api/v1/validate", map[string]any{"text": strings.Repeat("a", 4096), "entities": "pii"})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRequestLogging(t *testing.T) {
	s, logger := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", strings.NewReader(`{"text":"`+emailText+`","entities":"pii"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	requestID := rec.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)

	logger.AssertLogged(t, zapcore.InfoLevel, "http request")
	logger.AssertField(t, "http request", "route", "/api/v1/validate")
	logger.AssertField(t, "http request", "request.id", requestID)
	logger.AssertNoText(t, "jane@example.com")
}
