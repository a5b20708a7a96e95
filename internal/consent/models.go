package consent

import (
	"time"

	"github.com/google/uuid"

	dErrors "nuca/pkg/domain-errors"
)

// Type labels why regulated data is processed. The set is closed; unknown
// values are rejected at the boundary.
type Type string

const (
	TypeHealthDataProcessing Type = "health_data_processing"
	TypePersonalizedGrading  Type = "personalized_grading"
	TypeFamilyDataProcessing Type = "family_data_processing"
	TypeAnalytics            Type = "analytics"
	TypeMarketing            Type = "marketing"
)

// AllTypes returns the closed enumeration in a stable order.
func AllTypes() []Type {
	return []Type{
		TypeHealthDataProcessing,
		TypePersonalizedGrading,
		TypeFamilyDataProcessing,
		TypeAnalytics,
		TypeMarketing,
	}
}

// ParseType validates a consent type received at the boundary.
func ParseType(s string) (Type, error) {
	t := Type(s)
	switch t {
	case TypeHealthDataProcessing, TypePersonalizedGrading, TypeFamilyDataProcessing,
		TypeAnalytics, TypeMarketing:
		return t, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidConsent, "unknown consent type: "+s)
}

// Required reports whether this type gates access to regulated fields.
// Analytics and marketing are optional and never block core features.
func (t Type) Required() bool {
	switch t {
	case TypeHealthDataProcessing, TypePersonalizedGrading, TypeFamilyDataProcessing:
		return true
	}
	return false
}

// Record captures one consent decision. Records are append-only: every change
// creates a new record, and the current state for a (user, type) pair is the
// record with the latest RecordedAt. Before any explicit record exists the
// implicit state is "not granted".
type Record struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Type       Type
	Granted    bool
	Version    string // policy text version in force, supplied by the caller
	RecordedAt time.Time
	Actor      string
}
