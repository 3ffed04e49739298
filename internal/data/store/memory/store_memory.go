// Package memory provides the in-process POD data store used in tests and in
// deployments without Postgres.
package memory

import (
	"context"
	"sync"

	"podbroker/internal/data/models"
	"podbroker/pkg/domain"
	"podbroker/pkg/platform/sentinel"
)

type Store struct {
	mu       sync.RWMutex
	data     map[domain.UserID]models.Payload
	requests map[domain.RequestID]*models.AccessRequest
}

func New() *Store {
	return &Store{
		data:     make(map[domain.UserID]models.Payload),
		requests: make(map[domain.RequestID]*models.AccessRequest),
	}
}

func (s *Store) GetData(_ context.Context, ownerID domain.UserID, dataType domain.DataType) (models.FieldValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[ownerID][dataType.String()]
	if !ok {
		return models.FieldValue{}, sentinel.ErrNotFound
	}
	return value, nil
}

func (s *Store) GetAllData(_ context.Context, ownerID domain.UserID) (models.Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.data[ownerID]
	if !ok {
		return models.Payload{}, nil
	}
	out := make(models.Payload, len(record))
	for field, value := range record {
		out[field] = value
	}
	return out, nil
}

func (s *Store) UpdateData(_ context.Context, ownerID domain.UserID, payload models.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.data[ownerID]
	if !ok {
		record = make(models.Payload, len(payload))
		s.data[ownerID] = record
	}
	for field, value := range payload {
		record[field] = value
	}
	return nil
}

func (s *Store) PutDataRequest(_ context.Context, request *models.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[request.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[request.ID] = request.Clone()
	return nil
}

// ListDataRequests returns the pending requests targeting the owner. Not part
// of the façade's port yet; the memory store keeps it for tests and tooling.
func (s *Store) ListDataRequests(_ context.Context, ownerID domain.UserID) ([]*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AccessRequest
	for _, r := range s.requests {
		if r.OwnerID == ownerID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}
