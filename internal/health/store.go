package health

import (
	"context"

	"github.com/google/uuid"
)

// ProfileStore persists one health profile per user. DeleteByUser exists for
// the erasure cascade only.
type ProfileStore interface {
	Create(ctx context.Context, profile *Profile) error
	GetByUser(ctx context.Context, userID uuid.UUID) (*Profile, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// FamilyStore persists family-member records.
type FamilyStore interface {
	Add(ctx context.Context, member *FamilyMember) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*FamilyMember, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// ScanStore persists scan history.
type ScanStore interface {
	Add(ctx context.Context, scan *ScanRecord) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*ScanRecord, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// ConsumptionStore persists consumption logs.
type ConsumptionStore interface {
	Add(ctx context.Context, log *ConsumptionLog) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*ConsumptionLog, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
