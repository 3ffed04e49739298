// Package memory provides the in-process consent store used in tests and in
// deployments without Postgres.
package memory

import (
	"context"
	"hash/fnv"
	"sync"

	"podbroker/internal/consent/models"
	"podbroker/pkg/domain"
	"podbroker/pkg/platform/sentinel"
	"podbroker/pkg/requestcontext"
)

// Store keeps consent grants in maps guarded by a single RWMutex. Records are
// cloned on the way in and out so callers never alias store-owned memory.
type Store struct {
	mu     sync.RWMutex
	grants map[domain.ConsentID]*models.ConsentGrant
	byUser map[domain.UserID][]domain.ConsentID
}

func New() *Store {
	return &Store{
		grants: make(map[domain.ConsentID]*models.ConsentGrant),
		byUser: make(map[domain.UserID][]domain.ConsentID),
	}
}

func (s *Store) PutGrant(_ context.Context, grant *models.ConsentGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.grants[grant.ID]; exists {
		return sentinel.ErrConflict
	}
	s.grants[grant.ID] = grant.Clone()
	s.byUser[grant.UserID] = append(s.byUser[grant.UserID], grant.ID)
	return nil
}

func (s *Store) GetGrant(_ context.Context, id domain.ConsentID) (*models.ConsentGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return grant.Clone(), nil
}

func (s *Store) UpdateGrant(_ context.Context, grant *models.ConsentGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[grant.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.grants[grant.ID] = grant.Clone()
	return nil
}

func (s *Store) ListGrants(_ context.Context, userID domain.UserID) ([]*models.ConsentGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byUser[userID]
	out := make([]*models.ConsentGrant, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.grants[id].Clone())
	}
	return out, nil
}

// txShards bounds lock granularity for the in-memory transaction runner.
const txShards = 32

// Tx serializes read-check-write sequences per principal using a sharded
// mutex. Different principals rarely contend; the same principal revoking
// the same grant twice concurrently is forced to run one after the other.
type Tx struct {
	shards [txShards]sync.Mutex
}

func NewTx() *Tx {
	return &Tx{}
}

func (t *Tx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	shard := &t.shards[shardFor(requestcontext.Principal(ctx))]
	shard.Lock()
	defer shard.Unlock()
	return fn(ctx)
}

func shardFor(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % txShards
}
