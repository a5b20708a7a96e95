package erasure

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "nuca/pkg/domain-errors"
)

// InMemoryStore keeps erasure requests in memory for tests and local runs.
// Conditional transitions are serialized by the store mutex, which gives the
// same exactly-once claim semantics as the SQL conditional update.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[uuid.UUID]*Request)}
}

func (s *InMemoryStore) Create(ctx context.Context, req *Request) error {
	if req == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "erasure request is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.UserID == req.UserID && existing.Status.Active() {
			return dErrors.New(dErrors.CodeDuplicateRequest, "an erasure request is already active for this user")
		}
	}
	cp := req.clone()
	if cp.CascadeProgress == nil {
		cp.CascadeProgress = make(map[string]time.Time)
	}
	s.requests[req.ID] = cp
	return nil
}

func (s *InMemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "erasure request not found")
	}
	return req.clone(), nil
}

func (s *InMemoryStore) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.UserID == userID && req.Status.Active() {
			return req.clone(), nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) DuePending(ctx context.Context, now time.Time, limit int) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []*Request
	for _, req := range s.requests {
		if req.Status == StatusPending && !req.ScheduledPurgeAt.After(now) {
			due = append(due, req.clone())
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledPurgeAt.Before(due[j].ScheduledPurgeAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *InMemoryStore) Executing(ctx context.Context, limit int) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var executing []*Request
	for _, req := range s.requests {
		if req.Status == StatusExecuting {
			executing = append(executing, req.clone())
		}
	}
	sort.Slice(executing, func(i, j int) bool {
		return executing[i].ScheduledPurgeAt.Before(executing[j].ScheduledPurgeAt)
	})
	if limit > 0 && len(executing) > limit {
		executing = executing[:limit]
	}
	return executing, nil
}

func (s *InMemoryStore) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != StatusPending {
		return false, nil
	}
	req.Status = StatusExecuting
	return true, nil
}

func (s *InMemoryStore) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != StatusPending {
		return false, nil
	}
	req.Status = StatusCancelled
	cancelled := at
	req.CancelledAt = &cancelled
	return true, nil
}

func (s *InMemoryStore) MarkTargetComplete(ctx context.Context, id uuid.UUID, target string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "erasure request not found")
	}
	req.CascadeProgress[target] = at
	return nil
}

func (s *InMemoryStore) Finish(ctx context.Context, id uuid.UUID, status Status, at time.Time) (bool, error) {
	if status != StatusCompleted && status != StatusFailed {
		return false, dErrors.New(dErrors.CodeInvalidState, "finish requires a terminal execution status")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != StatusExecuting {
		return false, nil
	}
	req.Status = status
	if status == StatusCompleted {
		completed := at
		req.CompletedAt = &completed
	}
	return true, nil
}
