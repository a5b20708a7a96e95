package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action labels the sensitive operation an entry documents.
type Action string

const (
	// Consent ledger
	ActionConsentChanged Action = "consent_changed"

	// Gated health data
	ActionProfileCreated    Action = "profile_created"
	ActionProfileAccessed   Action = "profile_accessed"
	ActionFamilyMemberAdded Action = "family_member_added"
	ActionDataExported      Action = "data_exported"

	// Erasure workflow
	ActionErasureRequested     Action = "erasure_requested"
	ActionErasureCancelled     Action = "erasure_cancelled"
	ActionErasureStepCompleted Action = "erasure_step_completed"
	ActionErasureCompleted     Action = "erasure_completed"
	ActionErasureFailed        Action = "erasure_failed"
)

// Entry is one immutable audit record. Entries are never updated or deleted
// by application code; only the documented retention sweep removes them.
// DetailDigest carries a hash of the operation detail, never the raw payload,
// so the log itself holds no plaintext of regulated fields.
type Entry struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Action       Action
	ResourceType string
	ResourceID   string
	Actor        string
	OccurredAt   time.Time
	DetailDigest string
}

// Digest hashes an operation detail for tamper-evident reference without
// persisting sensitive content. Map keys marshal in sorted order, so the
// digest is stable for a given detail.
func Digest(detail map[string]any) string {
	if len(detail) == 0 {
		return ""
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		// Detail values are produced by this codebase; a marshal failure is a bug.
		raw = []byte("unmarshalable-detail")
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
