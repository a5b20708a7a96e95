package health

import (
	"time"

	"github.com/google/uuid"
)

// Profile holds a user's regulated health attributes. The date of birth and
// every condition flag are fieldcrypt envelope blobs; plaintext never touches
// the store.
type Profile struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	DateOfBirth   []byte
	Hypertension  []byte
	Diabetes      []byte
	HeartDisease  []byte
	KidneyDisease []byte
	Pregnancy     []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FamilyMember is a dependent whose data the account holder manages. The date
// of birth is an envelope blob; name and relationship are not regulated
// scalars but fall under the family-data consent as a whole.
type FamilyMember struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Name         string
	Relationship string
	DateOfBirth  []byte
	CreatedAt    time.Time
}

// ScanRecord is one product-label scan in the user's history.
type ScanRecord struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Barcode     string
	ProductName string
	ScannedAt   time.Time
}

// ConsumptionLog is one logged consumption event.
type ConsumptionLog struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ProductName string
	Servings    float64
	ConsumedAt  time.Time
}
