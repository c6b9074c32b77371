package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scholarsync/collab-plane/internal/apperr"
)

// APIError represents a standard API error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Common error codes for failures that occur before a service is
// reached; service failures carry their own codes.
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeInternalError  = "internal_error"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, &APIError{
		Code:    code,
		Message: message,
	})
}

// WriteServiceError maps a classified service error onto the HTTP
// response. Internal, provisioning and transient errors never leak
// their cause to the client; the detail stays in the server log.
func WriteServiceError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	var message string
	switch kind {
	case apperr.KindInternal:
		message = "An unexpected error occurred"
	case apperr.KindProvisioningFailed:
		message = "Chat setup failed, please try again"
	case apperr.KindTransient:
		message = "Service temporarily unavailable, please retry"
	default:
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			message = appErr.Message
		} else {
			message = err.Error()
		}
	}
	WriteError(w, apperr.HTTPStatus(kind), apperr.CodeOf(err), message)
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, message)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}
