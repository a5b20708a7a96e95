package health

import (
	"context"
	"sync"

	"github.com/google/uuid"

	dErrors "nuca/pkg/domain-errors"
)

// InMemoryProfileStore keeps profiles in memory for tests and local runs.
type InMemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]*Profile
}

func NewInMemoryProfileStore() *InMemoryProfileStore {
	return &InMemoryProfileStore{profiles: make(map[uuid.UUID]*Profile)}
}

func (s *InMemoryProfileStore) Create(ctx context.Context, profile *Profile) error {
	if profile == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "profile is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[profile.UserID]; exists {
		return dErrors.New(dErrors.CodeConflict, "profile already exists for this user")
	}
	cp := *profile
	s.profiles[profile.UserID] = &cp
	return nil
}

func (s *InMemoryProfileStore) GetByUser(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	cp := *profile
	return &cp, nil
}

func (s *InMemoryProfileStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	return nil
}

// InMemoryFamilyStore keeps family members in memory.
type InMemoryFamilyStore struct {
	mu      sync.RWMutex
	members map[uuid.UUID][]*FamilyMember
}

func NewInMemoryFamilyStore() *InMemoryFamilyStore {
	return &InMemoryFamilyStore{members: make(map[uuid.UUID][]*FamilyMember)}
}

func (s *InMemoryFamilyStore) Add(ctx context.Context, member *FamilyMember) error {
	if member == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "family member is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *member
	s.members[member.UserID] = append(s.members[member.UserID], &cp)
	return nil
}

func (s *InMemoryFamilyStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*FamilyMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*FamilyMember, 0, len(s.members[userID]))
	for _, m := range s.members[userID] {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryFamilyStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, userID)
	return nil
}

// InMemoryScanStore keeps scan history in memory.
type InMemoryScanStore struct {
	mu    sync.RWMutex
	scans map[uuid.UUID][]*ScanRecord
}

func NewInMemoryScanStore() *InMemoryScanStore {
	return &InMemoryScanStore{scans: make(map[uuid.UUID][]*ScanRecord)}
}

func (s *InMemoryScanStore) Add(ctx context.Context, scan *ScanRecord) error {
	if scan == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "scan record is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *scan
	s.scans[scan.UserID] = append(s.scans[scan.UserID], &cp)
	return nil
}

func (s *InMemoryScanStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ScanRecord, 0, len(s.scans[userID]))
	for _, r := range s.scans[userID] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryScanStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scans, userID)
	return nil
}

// InMemoryConsumptionStore keeps consumption logs in memory.
type InMemoryConsumptionStore struct {
	mu   sync.RWMutex
	logs map[uuid.UUID][]*ConsumptionLog
}

func NewInMemoryConsumptionStore() *InMemoryConsumptionStore {
	return &InMemoryConsumptionStore{logs: make(map[uuid.UUID][]*ConsumptionLog)}
}

func (s *InMemoryConsumptionStore) Add(ctx context.Context, log *ConsumptionLog) error {
	if log == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "consumption log is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *log
	s.logs[log.UserID] = append(s.logs[log.UserID], &cp)
	return nil
}

func (s *InMemoryConsumptionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*ConsumptionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ConsumptionLog, 0, len(s.logs[userID]))
	for _, l := range s.logs[userID] {
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryConsumptionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, userID)
	return nil
}
