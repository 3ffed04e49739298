// Package models defines the consent grant entity, its lifecycle, and the
// request/response shapes crossing the HTTP boundary.
package models

import (
	"strings"
	"time"

	"podbroker/pkg/domain"
	dErrors "podbroker/pkg/domain-errors"
)

// GrantStatus is the lifecycle state of a consent grant.
//
// The only legal transition is StatusActive -> StatusRevoked. There is no
// re-activation and no editing of scope or purpose; a scope change is a new
// grant.
type GrantStatus string

const (
	StatusActive  GrantStatus = "active"
	StatusRevoked GrantStatus = "revoked"
)

// ConsentGrant authorizes a third party to access the listed data categories
// for a stated purpose.
//
// Invariants:
//   - ID is store-assigned, never client-supplied.
//   - DataTypes is non-empty, deduplicated, opaque labels.
//   - RevokedAt is set iff Status == StatusRevoked, and is >= GrantedAt.
type ConsentGrant struct {
	ID           domain.ConsentID
	UserID       domain.UserID
	ThirdPartyID domain.ThirdPartyID
	DataTypes    []domain.DataType
	Purpose      string
	GrantedAt    time.Time
	Status       GrantStatus
	RevokedAt    *time.Time
}

// IsActive reports whether the grant currently authorizes access.
func (g *ConsentGrant) IsActive() bool {
	return g.Status == StatusActive
}

// Covers reports whether the grant's scope includes the data category.
// Labels compare by exact match; no hierarchy, no wildcards.
func (g *ConsentGrant) Covers(dataType domain.DataType) bool {
	for _, dt := range g.DataTypes {
		if dt == dataType {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores can hand out records without aliasing.
func (g *ConsentGrant) Clone() *ConsentGrant {
	out := *g
	out.DataTypes = append([]domain.DataType(nil), g.DataTypes...)
	if g.RevokedAt != nil {
		t := *g.RevokedAt
		out.RevokedAt = &t
	}
	return &out
}

// ConsentRequestInput is the ephemeral value object carrying a grant request
// from caller to registry. It is consumed to build a ConsentGrant and never
// persisted itself.
type ConsentRequestInput struct {
	ThirdPartyID domain.ThirdPartyID
	DataTypes    []domain.DataType
	Purpose      string
}

// ParseConsentRequestInput validates and normalizes raw grant-request fields.
// Data types are trimmed and deduplicated (order preserved); an empty result
// is rejected — a grant over nothing authorizes nothing and is a caller bug.
func ParseConsentRequestInput(thirdPartyID string, dataTypes []string, purpose string) (ConsentRequestInput, error) {
	tp, err := domain.ParseThirdPartyID(thirdPartyID)
	if err != nil {
		return ConsentRequestInput{}, dErrors.New(dErrors.CodeValidation, "third_party_id is required")
	}

	normalized, err := normalizeDataTypes(dataTypes)
	if err != nil {
		return ConsentRequestInput{}, err
	}

	return ConsentRequestInput{
		ThirdPartyID: tp,
		DataTypes:    normalized,
		Purpose:      purpose,
	}, nil
}

// normalizeDataTypes trims, drops empties, deduplicates preserving order, and
// parses each label. Rejects an empty result.
func normalizeDataTypes(raw []string) ([]domain.DataType, error) {
	seen := make(map[domain.DataType]struct{}, len(raw))
	out := make([]domain.DataType, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			continue
		}
		dt, err := domain.ParseDataType(s)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeValidation, "invalid data type %q", s)
		}
		if _, ok := seen[dt]; ok {
			continue
		}
		seen[dt] = struct{}{}
		out = append(out, dt)
	}
	if len(out) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "data_types must not be empty")
	}
	return out, nil
}
