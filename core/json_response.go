package core

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/memberkit/pkg/validator"
)

// JSONResponse is the envelope of every JSON body.
type JSONResponse struct {
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON responds 200 with data.
func JSON(code string, data any, meta map[string]any) Response {
	return JSONStatus(http.StatusOK, code, data, meta)
}

// JSONStatus responds with an explicit status.
func JSONStatus(status int, code string, data any, meta map[string]any) Response {
	return jsonResponse{
		status: status,
		body:   JSONResponse{Code: code, Data: data, Meta: meta},
	}
}

// JSONError responds with err. Validation errors become 422 with per-field
// details, HTTPError keeps its code, anything else is a 500 that does not
// leak the error text.
func JSONError(err error) Response {
	status := http.StatusInternalServerError
	detail := &ErrorDetail{
		Code:    ErrInternalServerError.Key,
		Message: http.StatusText(status),
	}

	var httpErr HTTPError
	switch {
	case validator.IsValidationError(err):
		status = http.StatusUnprocessableEntity
		detail.Code = "validation_error"
		detail.Message = http.StatusText(status)
		detail.Details = validator.ExtractValidationErrors(err).Map()
	case errors.As(err, &httpErr):
		status = httpErr.Code
		detail.Code = httpErr.Key
		detail.Message = httpErr.Message
		if detail.Message == "" {
			detail.Message = http.StatusText(httpErr.Code)
		}
	}

	return jsonResponse{
		status: status,
		body:   JSONResponse{Code: detail.Code, Error: detail},
	}
}

type noContent struct{}

func (noContent) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// NoContent responds 204.
func NoContent() Response {
	return noContent{}
}
