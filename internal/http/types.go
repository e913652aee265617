package http

import "github.com/fyrsmithlabs/piiguard/internal/validator"

// ValidateRequest is the body of POST /api/v1/validate.
//
// Text is a string or an array of strings. Entities is a group alias or an
// array of entity types. Both are required.
type ValidateRequest struct {
	Text      any    `json:"text"`
	Entities  any    `json:"entities,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Streaming bool   `json:"streaming,omitempty"`
}

// ValidateResponse is the response of POST /api/v1/validate, one result
// per input text.
type ValidateResponse struct {
	Results []validator.Result `json:"results"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// FailureResponse is returned with 422 when a text fails in exception mode.
type FailureResponse struct {
	Error   string             `json:"error"`
	Results []validator.Result `json:"results"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Collaborators string `json:"collaborators,omitempty"`
}

// InferenceData is one named tensor of the inference protocol.
type InferenceData struct {
	Name     string `json:"name"`
	Shape    []int  `json:"shape"`
	Data     []any  `json:"data"`
	Datatype string `json:"datatype"`
}

// InferenceRequest is the body of POST /validate.
type InferenceRequest struct {
	Inputs []InferenceData `json:"inputs"`
}

// InferenceResponse is the response of POST /validate. Field names follow
// the protocol clients already speak.
type InferenceResponse struct {
	ModelName    string          `json:"modelname"`
	ModelVersion string          `json:"modelversion"`
	Outputs      []InferenceData `json:"outputs"`
}
