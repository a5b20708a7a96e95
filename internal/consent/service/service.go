package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"nuca/internal/audit"
	"nuca/internal/consent"
	"nuca/internal/platform/metrics"
	dErrors "nuca/pkg/domain-errors"
	"nuca/pkg/platform/tx"
)

// Service is the consent ledger: it appends decisions, answers gating checks,
// and writes the audit trail for every change. It keeps orchestration out of
// handlers and domain logic thin.
type Service struct {
	store   consent.Store
	auditor *audit.Publisher
	uow     tx.Runner
	metrics *metrics.Metrics

	// enforce mirrors the compliance feature flag. When disabled, Require
	// always passes; Set and the audit trail keep working.
	enforce bool
}

// Option configures the Service.
type Option func(*Service)

// WithEnforcement toggles consent gating (the compliance feature flag).
func WithEnforcement(enabled bool) Option {
	return func(s *Service) {
		s.enforce = enabled
	}
}

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store consent.Store, auditor *audit.Publisher, uow tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:   store,
		auditor: auditor,
		uow:     uow,
		enforce: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set appends a new consent record and audits the change in the same unit of
// work. Setting an already-granted consent still appends a record and still
// audits: idempotent in effect, never in trail.
func (s *Service) Set(ctx context.Context, userID uuid.UUID, t consent.Type, granted bool, version, actor string) (*consent.Record, error) {
	if _, err := consent.ParseType(string(t)); err != nil {
		return nil, err
	}
	if version == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "consent policy version is required")
	}

	record := &consent.Record{
		ID:         uuid.New(),
		UserID:     userID,
		Type:       t,
		Granted:    granted,
		Version:    version,
		RecordedAt: time.Now().UTC(),
		Actor:      actor,
	}

	err := s.uow.RunInTx(tx.WithUser(ctx, userID.String()), func(ctx context.Context) error {
		if err := s.store.Append(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append consent record")
		}
		return s.auditor.Emit(ctx, audit.Entry{
			UserID:       userID,
			Action:       audit.ActionConsentChanged,
			ResourceType: "consent_record",
			ResourceID:   record.ID.String(),
			Actor:        actor,
		}, map[string]any{
			"consent_type": string(t),
			"granted":      granted,
			"version":      version,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ConsentChanges.WithLabelValues(string(t), strconv.FormatBool(granted)).Inc()
	}
	return record, nil
}

// Get returns the latest record's decision, or false when none exists (the
// implicit "not granted" default).
func (s *Service) Get(ctx context.Context, userID uuid.UUID, t consent.Type) (bool, error) {
	latest, err := s.store.Latest(ctx, userID, t)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent state")
	}
	return latest != nil && latest.Granted, nil
}

// Require fails with CodeMissingConsent when the given consent is absent or
// revoked. Every code path reading or writing a gated field calls this inside
// the same unit of work as the operation itself, so a revocation cannot be
// interleaved between check and effect.
func (s *Service) Require(ctx context.Context, userID uuid.UUID, t consent.Type) error {
	if !s.enforce {
		return nil
	}
	granted, err := s.Get(ctx, userID, t)
	if err != nil {
		return err
	}
	if !granted {
		if s.metrics != nil {
			s.metrics.ConsentDenials.Inc()
		}
		return dErrors.New(dErrors.CodeMissingConsent, "consent "+string(t)+" not granted")
	}
	return nil
}

// Current returns the effective record per consent type, synthesizing the
// implicit "not granted" default for types without an explicit record.
func (s *Service) Current(ctx context.Context, userID uuid.UUID, defaultVersion string) ([]*consent.Record, error) {
	out := make([]*consent.Record, 0, len(consent.AllTypes()))
	for _, t := range consent.AllTypes() {
		latest, err := s.store.Latest(ctx, userID, t)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent state")
		}
		if latest == nil {
			latest = &consent.Record{
				UserID:  userID,
				Type:    t,
				Granted: false,
				Version: defaultVersion,
			}
		}
		out = append(out, latest)
	}
	return out, nil
}

// History returns every consent record for a user in recording order.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]*consent.Record, error) {
	return s.store.ListByUser(ctx, userID)
}
