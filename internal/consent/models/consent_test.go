package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podbroker/pkg/domain"
	dErrors "podbroker/pkg/domain-errors"
)

func TestParseConsentRequestInput(t *testing.T) {
	t.Run("valid input is normalized", func(t *testing.T) {
		input, err := ParseConsentRequestInput("acme", []string{" email ", "address", "email", ""}, "marketing")
		require.NoError(t, err)
		assert.Equal(t, domain.ThirdPartyID("acme"), input.ThirdPartyID)
		assert.Equal(t, []domain.DataType{"email", "address"}, input.DataTypes)
		assert.Equal(t, "marketing", input.Purpose)
	})

	t.Run("empty data_types is rejected", func(t *testing.T) {
		_, err := ParseConsentRequestInput("acme", nil, "marketing")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("whitespace-only data_types is rejected", func(t *testing.T) {
		_, err := ParseConsentRequestInput("acme", []string{"  ", ""}, "marketing")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("missing third party is rejected", func(t *testing.T) {
		_, err := ParseConsentRequestInput("", []string{"email"}, "marketing")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestCovers(t *testing.T) {
	grant := &ConsentGrant{DataTypes: []domain.DataType{"email", "address"}}

	assert.True(t, grant.Covers("email"))
	assert.False(t, grant.Covers("medical"))
	// Exact match only; no hierarchy.
	assert.False(t, grant.Covers("email/primary"))
}

func TestClone(t *testing.T) {
	revokedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	original := &ConsentGrant{
		ID:        domain.NewConsentID(),
		DataTypes: []domain.DataType{"email"},
		Status:    StatusRevoked,
		RevokedAt: &revokedAt,
	}

	clone := original.Clone()
	clone.DataTypes[0] = "tampered"
	*clone.RevokedAt = revokedAt.Add(time.Hour)

	assert.Equal(t, domain.DataType("email"), original.DataTypes[0])
	assert.Equal(t, revokedAt, *original.RevokedAt)
}
