// Package domainerrors defines the coded error vocabulary shared by services,
// stores, and the HTTP layer. Services create or wrap errors with a Code;
// the transport layer maps each Code to exactly one HTTP status.
//
// Import as dErrors:
//
//	dErrors "podbroker/pkg/domain-errors"
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class. The string value is the machine-readable
// `error` field in HTTP responses, so it is part of the public contract.
type Code string

const (
	// CodeValidation covers malformed input: empty data_types, bad payload
	// descriptors, missing query parameters.
	CodeValidation Code = "validation_error"

	// CodeInvalidInput covers values rejected at a trust boundary before
	// they become domain types (bad ids, unknown statuses).
	CodeInvalidInput Code = "invalid_input"

	// CodeUnauthorized means the caller presented no usable identity.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden means the caller is authenticated but lacks rights over
	// the specific record, e.g. revoking another user's grant.
	CodeForbidden Code = "forbidden"

	// CodeMissingConsent means the authorizer denied a gated data read:
	// no active grant covers the requested data category.
	CodeMissingConsent Code = "missing_consent"

	// CodeNotFound means the referenced grant or record does not exist.
	CodeNotFound Code = "not_found"

	// CodeConflict means an illegal lifecycle transition was attempted,
	// e.g. revoking an already-revoked grant.
	CodeConflict Code = "conflict"

	// CodeTimeout means the operation was abandoned before completion.
	CodeTimeout Code = "timeout"

	// CodeInternal is the catch-all for infrastructure failures. Responses
	// with this code never carry details.
	CodeInternal Code = "internal_error"
)

// DomainError carries a Code, a human-readable message, and optionally the
// underlying cause for logs. It satisfies errors.Unwrap.
type DomainError struct {
	Code    Code
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// New creates a DomainError with the given code and message.
func New(code Code, message string) error {
	return &DomainError{Code: code, Message: message}
}

// Newf creates a DomainError with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &DomainError{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) is a DomainError with
// the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that carry none. Unknown failures must never leak as anything weaker.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the human-readable message from err, or an empty string
// for non-domain errors.
func MessageOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a code to its single HTTP status. One code, one status:
// the table below is the whole observable error contract.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeMissingConsent:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
