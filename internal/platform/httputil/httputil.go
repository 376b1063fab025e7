// Package httputil holds the JSON envelope helpers shared by the HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

// Error codes carried in the "error" field of error responses.
const (
	CodeBadRequest      = "bad_request"
	CodeValidation      = "validation_failed"
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeInternal        = "internal_error"
)

// APIError is a transport-level error response.
type APIError struct {
	Status      int
	Code        string
	Description string
	// Extra is merged into the response body (e.g. "status" for not-approved accounts).
	Extra map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Description)
}

// WriteJSON writes v as JSON with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope {"error": code, "error_description": ...}.
// Internal errors never carry a description.
func WriteError(w http.ResponseWriter, e *APIError) {
	body := make(map[string]string, len(e.Extra)+2)
	for k, v := range e.Extra {
		body[k] = v
	}
	body["error"] = e.Code
	if e.Status < http.StatusInternalServerError && e.Description != "" {
		body["error_description"] = e.Description
	}
	WriteJSON(w, e.Status, body)
}

// Internal returns the generic 500 response.
func Internal() *APIError {
	return &APIError{Status: http.StatusInternalServerError, Code: CodeInternal}
}

// DecodeJSON decodes a single JSON object from the request body into dst.
// Unknown fields and trailing data are rejected.
func DecodeJSON(r *http.Request, dst any) *APIError {
	if r.Body == nil {
		return &APIError{Status: http.StatusBadRequest, Code: CodeBadRequest, Description: "request body is required"}
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &APIError{Status: http.StatusBadRequest, Code: CodeBadRequest, Description: "request body is required"}
		}
		return &APIError{Status: http.StatusBadRequest, Code: CodeBadRequest, Description: "invalid JSON: " + err.Error()}
	}
	if dec.More() {
		return &APIError{Status: http.StatusBadRequest, Code: CodeBadRequest, Description: "request body must contain a single JSON object"}
	}
	return nil
}
