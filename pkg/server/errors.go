package server

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in error responses.
const (
	CodeInvalidRequest = "invalid_request"
	CodeTooLarge       = "request_too_large"
	CodeNoSnapshot     = "no_snapshot"
	CodeReloadFailed   = "reload_failed"
	CodeUnavailable    = "unavailable"
	CodeInternal       = "internal_error"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one error.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: w.Header().Get(HeaderRequestID),
	}})
}
