package erasure

import (
	"time"

	"github.com/google/uuid"
)

// Status is the erasure request state machine. CANCELLED, COMPLETED and
// FAILED are terminal; FAILED requires operator intervention.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCancelled Status = "CANCELLED"
	StatusExecuting Status = "EXECUTING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Active reports whether the status still occupies the user's single active
// request slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusExecuting
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusFailed
}

// Cascade target names, in deletion order: dependents before the entities
// they reference. The order is fixed; resumption walks it from the first
// incomplete target.
const (
	TargetFamilyMembers   = "family_members"
	TargetScanHistory     = "scan_history"
	TargetConsumptionLogs = "consumption_logs"
	TargetConsentRecords  = "consent_records"
	TargetProfile         = "profile"
	TargetUserIdentity    = "user_identity"
)

// TargetOrder returns the cascade deletion order.
func TargetOrder() []string {
	return []string{
		TargetFamilyMembers,
		TargetScanHistory,
		TargetConsumptionLogs,
		TargetConsentRecords,
		TargetProfile,
		TargetUserIdentity,
	}
}

// Request is one "forget me" request. At most one request per user may be
// active (PENDING or EXECUTING) at any time. CascadeProgress maps a completed
// target name to its completion time; it is persisted before the cascade
// advances so a crash mid-cascade resumes instead of double-deleting.
type Request struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	RequestedAt      time.Time
	ScheduledPurgeAt time.Time
	Status           Status
	CancelledAt      *time.Time
	CompletedAt      *time.Time
	CascadeProgress  map[string]time.Time
}

// TargetDone reports whether the named cascade target has already completed.
func (r *Request) TargetDone(target string) bool {
	_, ok := r.CascadeProgress[target]
	return ok
}

func (r *Request) clone() *Request {
	cp := *r
	if r.CancelledAt != nil {
		t := *r.CancelledAt
		cp.CancelledAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	cp.CascadeProgress = make(map[string]time.Time, len(r.CascadeProgress))
	for k, v := range r.CascadeProgress {
		cp.CascadeProgress[k] = v
	}
	return &cp
}
