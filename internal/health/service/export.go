package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"nuca/internal/audit"
	"nuca/internal/consent"
	"nuca/internal/health"
	dErrors "nuca/pkg/domain-errors"
	"nuca/pkg/platform/tx"
)

// ConsentExport is one consent type's current state in the export.
type ConsentExport struct {
	Type       consent.Type `json:"consent_type"`
	Granted    bool         `json:"granted"`
	Version    string       `json:"version"`
	RecordedAt *time.Time   `json:"recorded_at,omitempty"`
}

// ErasureExport mirrors the user's active erasure request, if any.
type ErasureExport struct {
	Status           string    `json:"status"`
	RequestedAt      time.Time `json:"requested_at"`
	ScheduledPurgeAt time.Time `json:"scheduled_purge_at"`
}

// Export is the full portable copy of a user's data. Sections covered by a
// consent the user has not granted are omitted rather than failing the whole
// export.
type Export struct {
	UserID      uuid.UUID                `json:"user_id"`
	Email       string                   `json:"email,omitempty"`
	GeneratedAt time.Time                `json:"generated_at"`
	Consents    []ConsentExport          `json:"consents"`
	Profile     *ProfileView             `json:"profile,omitempty"`
	Family      []*FamilyMemberView      `json:"family_members,omitempty"`
	Scans       []*health.ScanRecord     `json:"scan_history"`
	Consumption []*health.ConsumptionLog `json:"consumption_logs"`
	Erasure     *ErasureExport           `json:"erasure_request,omitempty"`
}

// ExportData assembles the user's full export. Profile and family sections go
// through the same consent gating and decryption as any other read; history
// and consent state are not gated fields and are always included.
func (s *Service) ExportData(ctx context.Context, userID uuid.UUID, actor string) (*Export, error) {
	export := &Export{
		UserID:      userID,
		GeneratedAt: time.Now().UTC(),
	}

	if s.users != nil {
		user, err := s.users.GetByID(ctx, userID)
		switch {
		case err == nil:
			export.Email = user.Email
		case skippableExportErr(err):
		default:
			return nil, err
		}
	}

	records, err := s.consents.Current(ctx, userID, s.policyVersion)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		ce := ConsentExport{Type: r.Type, Granted: r.Granted, Version: r.Version}
		if !r.RecordedAt.IsZero() {
			recorded := r.RecordedAt
			ce.RecordedAt = &recorded
		}
		export.Consents = append(export.Consents, ce)
	}

	profile, err := s.GetProfile(ctx, userID, actor)
	switch {
	case err == nil:
		export.Profile = profile
	case skippableExportErr(err):
	default:
		return nil, err
	}

	family, err := s.ListFamily(ctx, userID)
	switch {
	case err == nil:
		export.Family = family
	case skippableExportErr(err):
	default:
		return nil, err
	}

	if export.Scans, err = s.scans.ListByUser(ctx, userID); err != nil {
		return nil, err
	}
	if export.Consumption, err = s.consumption.ListByUser(ctx, userID); err != nil {
		return nil, err
	}

	active, err := s.erasures.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		export.Erasure = &ErasureExport{
			Status:           string(active.Status),
			RequestedAt:      active.RequestedAt,
			ScheduledPurgeAt: active.ScheduledPurgeAt,
		}
	}

	err = s.uow.RunInTx(tx.WithUser(ctx, userID.String()), func(ctx context.Context) error {
		return s.auditor.Emit(ctx, audit.Entry{
			UserID:       userID,
			Action:       audit.ActionDataExported,
			ResourceType: "user",
			ResourceID:   userID.String(),
			Actor:        actor,
		}, map[string]any{
			"profile_included": export.Profile != nil,
			"family_included":  export.Family != nil,
		})
	})
	if err != nil {
		return nil, err
	}
	return export, nil
}

// skippableExportErr reports failures that omit a section instead of failing
// the export: missing consent or simply no data.
func skippableExportErr(err error) bool {
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		return dErr.Code == dErrors.CodeMissingConsent || dErr.Code == dErrors.CodeNotFound
	}
	return false
}
