// Package domain holds validated value types shared across modules.
// Construct them via the Parse functions at trust boundaries; direct casting
// bypasses validation.
package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "podbroker/pkg/domain-errors"
)

// maxPrincipalLen bounds principal identifiers. POD identities are WebID-ish
// strings, not UUIDs, so the limit is generous but finite.
const maxPrincipalLen = 256

// UserID identifies a data owner. Opaque, already authenticated upstream.
type UserID string

// ThirdPartyID identifies a requesting party. Same shape as UserID but a
// distinct type so owner and requester cannot be swapped silently.
type ThirdPartyID string

// ConsentID identifies a consent grant. Always store-assigned, always a UUID.
type ConsentID string

// RequestID identifies a data-access request. Store-assigned UUID.
type RequestID string

// DataType is an opaque data-category label ("email", "address"). Compared by
// exact match; no hierarchy, no wildcards.
type DataType string

// ParseUserID validates an externally supplied user identifier.
func ParseUserID(s string) (UserID, error) {
	if err := validatePrincipal(s, "user_id"); err != nil {
		return "", err
	}
	return UserID(s), nil
}

// ParseThirdPartyID validates an externally supplied third-party identifier.
func ParseThirdPartyID(s string) (ThirdPartyID, error) {
	if err := validatePrincipal(s, "third_party_id"); err != nil {
		return "", err
	}
	return ThirdPartyID(s), nil
}

// ParseConsentID validates a consent id. Only store-assigned UUIDs are legal,
// so anything that does not parse as a non-nil UUID is rejected.
func ParseConsentID(s string) (ConsentID, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil || u == uuid.Nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid consent_id")
	}
	return ConsentID(u.String()), nil
}

// NewConsentID allocates a fresh consent id.
func NewConsentID() ConsentID {
	return ConsentID(uuid.NewString())
}

// NewRequestID allocates a fresh data-access request id.
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

// ParseDataType validates a data-category label.
func ParseDataType(s string) (DataType, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "data type cannot be empty")
	}
	if len(trimmed) > maxPrincipalLen || !printable(trimmed) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid data type")
	}
	return DataType(trimmed), nil
}

func (u UserID) String() string       { return string(u) }
func (t ThirdPartyID) String() string { return string(t) }
func (c ConsentID) String() string    { return string(c) }
func (r RequestID) String() string    { return string(r) }
func (d DataType) String() string     { return string(d) }

// validatePrincipal enforces the invariant that principals are non-empty,
// bounded, printable strings. Control characters and zero-width runes are
// rejected at the boundary so they never reach store keys or audit trails.
func validatePrincipal(s, field string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", field)
	}
	if trimmed != s {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s has surrounding whitespace", field)
	}
	if len(s) > maxPrincipalLen {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s exceeds maximum length", field)
	}
	if !printable(s) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s contains illegal characters", field)
	}
	return nil
}

func printable(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) || r == '\u200B' || r == '\uFEFF' {
			return false
		}
	}
	return true
}
