// Package revocation tracks revoked token jtis until their natural expiry.
// The Redis implementation is the production one; the memory implementation
// serves single-instance deployments and tests.
package revocation

import (
	"time"

	dErrors "podbroker/pkg/domain-errors"
)

// maxTTL bounds revocation entries. Entries only need to outlive the token
// itself, so anything beyond the longest access TTL is a caller bug.
const maxTTL = 30 * 24 * time.Hour

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "revocation ttl must be positive")
	}
	if ttl > maxTTL {
		return dErrors.New(dErrors.CodeInvalidInput, "revocation ttl exceeds maximum")
	}
	return nil
}
