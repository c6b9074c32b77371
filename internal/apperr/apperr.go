// Package apperr provides the error taxonomy shared by all service components.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind int

const (
	// KindInternal is an unexpected failure; callers see a generic message.
	KindInternal Kind = iota
	// KindValidation is a caller mistake detected before any write.
	KindValidation
	// KindConflict is a duplicate-resource condition; where possible the
	// existing resource is returned instead of the error.
	KindConflict
	// KindNotFound is a missing room, invitation, post, or profile.
	KindNotFound
	// KindAuthorization is an actor that is not the required sender,
	// recipient, or admin.
	KindAuthorization
	// KindProvisioningFailed is a messaging-provider failure after the
	// record was or would be created. Fatal for the request.
	KindProvisioningFailed
	// KindTransient is a network or timeout failure against an external
	// system; safe for the caller to retry.
	KindTransient
)

// Error codes surfaced in API responses.
const (
	CodeInvalidRoomKind         = "invalid_room_kind"
	CodeInvalidParticipantCount = "invalid_participant_count"
	CodeMissingName             = "missing_name"
	CodeInvalidParticipant      = "invalid_participant"
	CodeInvalidTaskStatus       = "invalid_task_status"
	CodeAlreadyMember           = "already_member"
	CodeDuplicateInvitation     = "duplicate_invitation"
	CodeAlreadyPending          = "already_pending"
	CodeAlreadyProcessed        = "already_processed"
	CodeNotAuthorized           = "not_authorized"
	CodeNotFound                = "not_found"
	CodePostNotFound            = "post_not_found"
	CodeProvisioningFailed      = "provisioning_failed"
	CodeTransient               = "transient_failure"
	CodeInternal                = "internal_error"
)

// Error is a classified error with a stable code and a user-facing message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a caller-fault error.
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Conflict creates a duplicate-resource error.
func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// NotFound creates a missing-resource error.
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Authorization creates a forbidden-actor error.
func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Code: CodeNotAuthorized, Message: message}
}

// ProvisioningFailed wraps a provider failure that must not leave a room
// pointing at a channel that does not exist.
func ProvisioningFailed(message string, err error) *Error {
	return &Error{Kind: KindProvisioningFailed, Code: CodeProvisioningFailed, Message: message, Err: err}
}

// Transient wraps a retryable external failure.
func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Code: CodeTransient, Message: message, Err: err}
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "an unexpected error occurred", Err: err}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, or CodeInternal when unclassified.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error kind to the HTTP status the API surface returns.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindProvisioningFailed:
		return http.StatusBadGateway
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
