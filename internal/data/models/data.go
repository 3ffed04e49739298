// Package models defines the POD data payload shapes and the data-access
// request entity.
package models

import (
	"encoding/json"
	"time"

	"podbroker/pkg/domain"
	dErrors "podbroker/pkg/domain-errors"
)

// FieldValue is a typed field descriptor. The declared type travels with the
// value so consumers can interpret stored fields without guessing.
type FieldValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Payload maps field names to their descriptors. Field names double as data
// category labels for authorization purposes.
type Payload map[string]FieldValue

var validFieldTypes = map[string]struct{}{
	"string":  {},
	"number":  {},
	"boolean": {},
	"array":   {},
	"object":  {},
}

// ValidatePayload checks every descriptor before any mutation happens. The
// whole payload is rejected if a single field is invalid; errors name the
// offending field so callers can fix their request.
func ValidatePayload(payload Payload) error {
	if len(payload) == 0 {
		return dErrors.New(dErrors.CodeValidation, "payload must not be empty")
	}
	for field, descriptor := range payload {
		if _, err := domain.ParseDataType(field); err != nil {
			return dErrors.Newf(dErrors.CodeValidation, "field %q: invalid name", field)
		}
		if descriptor.Type == "" {
			return dErrors.Newf(dErrors.CodeValidation, "field %q: missing type", field)
		}
		if _, ok := validFieldTypes[descriptor.Type]; !ok {
			return dErrors.Newf(dErrors.CodeValidation, "field %q: unrecognized type %q", field, descriptor.Type)
		}
		if len(descriptor.Value) == 0 {
			return dErrors.Newf(dErrors.CodeValidation, "field %q: missing value", field)
		}
	}
	return nil
}

// RequestStatus is the lifecycle state of a data-access request. Requests are
// created pending and stay pending here; approval happens out of band through
// a new consent grant.
type RequestStatus string

const StatusPending RequestStatus = "pending"

// AccessRequest records that a requester asked for future access to some of
// the owner's data categories. Creating one grants nothing.
type AccessRequest struct {
	ID          domain.RequestID
	RequesterID domain.UserID
	OwnerID     domain.UserID
	DataTypes   []domain.DataType
	Purpose     string
	Status      RequestStatus
	CreatedAt   time.Time
}

// Clone returns a deep copy for stores that hand out records.
func (r *AccessRequest) Clone() *AccessRequest {
	out := *r
	out.DataTypes = append([]domain.DataType(nil), r.DataTypes...)
	return &out
}

// AccessRequestInput is the validated value object for request_access.
type AccessRequestInput struct {
	OwnerID   domain.UserID
	DataTypes []domain.DataType
	Purpose   string
}

// ParseAccessRequestInput validates the raw request_access fields. Data types
// are trimmed and deduplicated; an empty result is rejected.
func ParseAccessRequestInput(ownerID string, dataTypes []string, purpose string) (AccessRequestInput, error) {
	owner, err := domain.ParseUserID(ownerID)
	if err != nil {
		return AccessRequestInput{}, dErrors.New(dErrors.CodeValidation, "user_id is required")
	}

	seen := make(map[domain.DataType]struct{}, len(dataTypes))
	out := make([]domain.DataType, 0, len(dataTypes))
	for _, s := range dataTypes {
		dt, err := domain.ParseDataType(s)
		if err != nil {
			continue
		}
		if _, ok := seen[dt]; ok {
			continue
		}
		seen[dt] = struct{}{}
		out = append(out, dt)
	}
	if len(out) == 0 {
		return AccessRequestInput{}, dErrors.New(dErrors.CodeValidation, "data_types must not be empty")
	}

	return AccessRequestInput{
		OwnerID:   owner,
		DataTypes: out,
		Purpose:   purpose,
	}, nil
}
