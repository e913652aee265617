package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/piiguard/internal/align"
	"github.com/fyrsmithlabs/piiguard/internal/config"
	"github.com/fyrsmithlabs/piiguard/internal/detector"
	"github.com/fyrsmithlabs/piiguard/internal/entities"
	"github.com/fyrsmithlabs/piiguard/internal/logging"
	"github.com/fyrsmithlabs/piiguard/internal/outcome"
	"github.com/fyrsmithlabs/piiguard/internal/validator"
)

const healthTimeout = 2 * time.Second

func (s *Server) handleHealth(c echo.Context) error {
	if s.health == nil {
		return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()
	if err := s.health.Ping(ctx); err != nil {
		s.logger.Warn(ctx, "collaborator health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Collaborators: "unavailable"})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Collaborators: "ok"})
}

func (s *Server) handleValidate(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid validate request", zap.Error(err))
		return s.fail(c, fmt.Errorf("%w: invalid request body", validator.ErrInput))
	}

	texts, err := parseTexts(req.Text)
	if err != nil {
		return s.fail(c, err)
	}
	sel, err := requestSelector(req.Entities)
	if err != nil {
		return s.fail(c, err)
	}
	mode := outcome.Mode(req.Mode)
	if mode == "" {
		mode = s.config.DefaultMode
	}
	v, err := s.suite.For(req.Streaming, mode)
	if err != nil {
		return s.fail(c, err)
	}

	results, err := validator.ValidateBatch(c.Request().Context(), v, texts, sel)
	if err != nil {
		return s.fail(c, err)
	}

	for _, r := range results {
		if ferr := r.Err(); ferr != nil {
			return c.JSON(http.StatusUnprocessableEntity, FailureResponse{Error: ferr.Error(), Results: results})
		}
	}
	return c.JSON(http.StatusOK, ValidateResponse{Results: results})
}

// handleInference serves the inference-protocol shape: named inputs in,
// one anonymized (or unchanged) text per output.
func (s *Server) handleInference(c echo.Context) error {
	var req InferenceRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, fmt.Errorf("%w: invalid request body", validator.ErrInput))
	}

	var textData, entityData []any
	for _, in := range req.Inputs {
		switch in.Name {
		case "text":
			textData = in.Data
		case "pii_entities", "entities":
			entityData = in.Data
		}
	}
	if textData == nil || entityData == nil {
		return s.fail(c, fmt.Errorf("%w: invalid input format: need text and pii_entities inputs", validator.ErrInput))
	}

	texts, err := parseTexts(textData)
	if err != nil {
		return s.fail(c, err)
	}
	sel, err := s.inferenceSelector(entityData)
	if err != nil {
		return s.fail(c, err)
	}
	v, err := s.suite.For(false, outcome.ModeFix)
	if err != nil {
		return s.fail(c, err)
	}

	results, err := validator.ValidateBatch(c.Request().Context(), v, texts, sel)
	if err != nil {
		return s.fail(c, err)
	}

	outputs := make([]InferenceData, len(results))
	for i, r := range results {
		value := texts[i]
		if r.FixValue != nil {
			value = *r.FixValue
		}
		outputs[i] = InferenceData{
			Name:     fmt.Sprintf("result%d", i),
			Datatype: "BYTES",
			Shape:    []int{utf8.RuneCountInString(value)},
			Data:     []any{value},
		}
	}
	return c.JSON(http.StatusOK, InferenceResponse{
		ModelName:    s.config.ModelName,
		ModelVersion: s.config.ModelVersion,
		Outputs:      outputs,
	})
}

// requestSelector parses a request's entities. They are required so that
// nothing reaches the detector without an explicit choice.
func requestSelector(v any) (entities.Selector, error) {
	if v == nil {
		return entities.Selector{}, fmt.Errorf("%w: entities is required", validator.ErrInput)
	}
	return entities.ParseSelector(v)
}

// inferenceSelector treats a single datum naming a known group as that
// group, and anything else as an explicit entity list.
func (s *Server) inferenceSelector(data []any) (entities.Selector, error) {
	if len(data) == 1 {
		if name, ok := data[0].(string); ok {
			if _, known := s.suite.Resolver().Table().Lookup(name); known {
				return entities.Alias(name), nil
			}
		}
	}
	return entities.ParseSelector(data)
}

// parseTexts accepts a string or an array of strings.
func parseTexts(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []any:
		if len(t) == 0 {
			return nil, fmt.Errorf("%w: text list is empty", validator.ErrInput)
		}
		out := make([]string, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: text item %d is %T, want string", validator.ErrInput, i, item)
			}
			out[i] = s
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("%w: text is required", validator.ErrInput)
	default:
		return nil, fmt.Errorf("%w: text is %T, want string or array of strings", validator.ErrInput, v)
	}
}

// fail maps err to a status and writes the error body. Collaborator and
// internal details stay in the log.
func (s *Server) fail(c echo.Context, err error) error {
	ctx := c.Request().Context()
	resp := ErrorResponse{RequestID: logging.RequestIDFromContext(ctx)}

	var status int
	switch {
	case errors.Is(err, validator.ErrInput), errors.Is(err, config.ErrInvalid):
		status = http.StatusBadRequest
		resp.Error = err.Error()
	case errors.Is(err, detector.ErrCollaborator):
		status = http.StatusBadGateway
		resp.Error = "detector or anonymizer unavailable"
		s.logger.Warn(ctx, "collaborator failure", zap.Error(err))
	case errors.Is(err, align.ErrAlignmentInvariant):
		status = http.StatusInternalServerError
		resp.Error = "internal error"
		s.logger.Error(ctx, "alignment invariant violated", zap.Error(err))
	default:
		status = http.StatusInternalServerError
		resp.Error = "internal error"
		s.logger.Error(ctx, "validation failed", zap.Error(err))
	}
	return c.JSON(status, resp)
}
