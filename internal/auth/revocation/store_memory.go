package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryTRL keeps revoked jtis in process memory. Suitable for a single
// instance only; entries past their expiry are pruned lazily on read.
type MemoryTRL struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	clock   func() time.Time
}

func NewMemoryTRL() *MemoryTRL {
	return &MemoryTRL{
		entries: make(map[string]time.Time),
		clock:   time.Now,
	}
}

// WithClock overrides the clock for tests.
func (t *MemoryTRL) WithClock(clock func() time.Time) *MemoryTRL {
	t.clock = clock
	return t
}

func (t *MemoryTRL) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[jti] = t.clock().Add(ttl)
	return nil
}

func (t *MemoryTRL) IsRevoked(_ context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	t.mu.RLock()
	expiresAt, ok := t.entries[jti]
	t.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if t.clock().After(expiresAt) {
		t.mu.Lock()
		delete(t.entries, jti)
		t.mu.Unlock()
		return false, nil
	}
	return true, nil
}
