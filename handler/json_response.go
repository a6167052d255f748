package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/billingsync/pkg/validator"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithJSONStatus sets a custom HTTP status code.
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

// JSON renders v as the response body with status 200.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: v}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err as an ErrorBody. HTTPError and validation errors
// keep their status and message; anything else becomes a generic 500.
func JSONError(err error, opts ...JSONOption) Response {
	status, body := errorToBody(err)
	r := &jsonResponse{status: status, body: body}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func errorToBody(err error) (int, ErrorBody) {
	if verrs := validator.ExtractValidationErrors(err); verrs != nil {
		return http.StatusBadRequest, ErrorBody{
			Error:   "Invalid request",
			Code:    "validation_error",
			Details: verrs.Map(),
		}
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, ErrorBody{Error: httpErr.DisplayMessage(), Code: httpErr.Key}
	}

	return http.StatusInternalServerError, ErrorBody{
		Error: "An error occurred processing your request",
		Code:  ErrInternalServerError.Key,
	}
}
