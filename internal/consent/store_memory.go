package consent

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore keeps append-only consent logs keyed by user.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID][]*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[uuid.UUID][]*Record)}
}

func (s *InMemoryStore) Append(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.records[record.UserID] = append(s.records[record.UserID], &cp)
	return nil
}

func (s *InMemoryStore) Latest(_ context.Context, userID uuid.UUID, t Type) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Record
	for _, r := range s.records[userID] {
		if r.Type != t {
			continue
		}
		// Later appends win ties so a revoke following a grant in the same
		// instant is observed.
		if latest == nil || !r.RecordedAt.Before(latest.RecordedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records[userID]))
	for _, r := range s.records[userID] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) DeleteByUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}
