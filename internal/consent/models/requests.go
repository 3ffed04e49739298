package models

import "time"

// GrantConsentRequest is the wire shape for POST /api/consent/grant.
type GrantConsentRequest struct {
	ThirdPartyID string   `json:"third_party_id"`
	DataTypes    []string `json:"data_types"`
	Purpose      string   `json:"purpose"`
}

// RevokeConsentRequest is the wire shape for POST /api/consent/revoke.
type RevokeConsentRequest struct {
	ConsentID string `json:"consent_id"`
}

// GrantSummary is the wire shape of a grant in responses.
type GrantSummary struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	ThirdPartyID string     `json:"third_party_id"`
	DataTypes    []string   `json:"data_types"`
	Purpose      string     `json:"purpose"`
	Status       string     `json:"status"`
	GrantedAt    time.Time  `json:"granted_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
}

// ActiveGrantSummary is the per-grant shape inside a status response. It
// deliberately omits lifecycle fields: everything listed is active.
type ActiveGrantSummary struct {
	ID        string    `json:"id"`
	DataTypes []string  `json:"data_types"`
	Purpose   string    `json:"purpose"`
	GrantedAt time.Time `json:"granted_at"`
}

// ConsentStatus is the wire shape for GET /api/consent/status.
type ConsentStatus struct {
	HasConsent   bool                 `json:"has_consent"`
	ActiveGrants []ActiveGrantSummary `json:"active_grants"`
}

// Summarize converts a grant to its response shape.
func Summarize(g *ConsentGrant) GrantSummary {
	dataTypes := make([]string, len(g.DataTypes))
	for i, dt := range g.DataTypes {
		dataTypes[i] = dt.String()
	}
	return GrantSummary{
		ID:           g.ID.String(),
		UserID:       g.UserID.String(),
		ThirdPartyID: g.ThirdPartyID.String(),
		DataTypes:    dataTypes,
		Purpose:      g.Purpose,
		Status:       string(g.Status),
		GrantedAt:    g.GrantedAt,
		RevokedAt:    g.RevokedAt,
	}
}
