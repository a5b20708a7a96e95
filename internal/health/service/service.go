package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nuca/internal/audit"
	"nuca/internal/consent"
	"nuca/internal/crypto/fieldcrypt"
	"nuca/internal/erasure"
	"nuca/internal/health"
	"nuca/internal/identity"
	"nuca/internal/platform/metrics"
	dErrors "nuca/pkg/domain-errors"
	"nuca/pkg/platform/tx"
)

// ConsentGuard is the consent ledger surface the health domain needs. Every
// gated read or write calls Require inside the same unit of work as the
// operation itself.
type ConsentGuard interface {
	Require(ctx context.Context, userID uuid.UUID, t consent.Type) error
	Get(ctx context.Context, userID uuid.UUID, t consent.Type) (bool, error)
	Current(ctx context.Context, userID uuid.UUID, defaultVersion string) ([]*consent.Record, error)
}

// ErasureStatus reports a user's active erasure request for the export.
type ErasureStatus interface {
	Active(ctx context.Context, userID uuid.UUID) (*erasure.Request, error)
}

// IdentityReader looks up the account identity for the export. The identity
// rows themselves are owned by the surrounding application.
type IdentityReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

// Service owns the gated health domain: profiles and family members with
// encrypted regulated fields, the plain history stores, and the full data
// export. Plaintext exists only inside a request; stores only ever see
// envelope blobs.
type Service struct {
	profiles    health.ProfileStore
	family      health.FamilyStore
	scans       health.ScanStore
	consumption health.ConsumptionStore
	crypt       *fieldcrypt.Service
	consents    ConsentGuard
	erasures    ErasureStatus
	users       IdentityReader
	auditor     *audit.Publisher
	uow         tx.Runner

	policyVersion string
	metrics       *metrics.Metrics
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithIdentity enables the account section of the export. Without it the
// export simply omits the identity.
func WithIdentity(users IdentityReader) Option {
	return func(s *Service) {
		s.users = users
	}
}

func New(
	profiles health.ProfileStore,
	family health.FamilyStore,
	scans health.ScanStore,
	consumption health.ConsumptionStore,
	crypt *fieldcrypt.Service,
	consents ConsentGuard,
	erasures ErasureStatus,
	auditor *audit.Publisher,
	uow tx.Runner,
	policyVersion string,
	opts ...Option,
) *Service {
	s := &Service{
		profiles:      profiles,
		family:        family,
		scans:         scans,
		consumption:   consumption,
		crypt:         crypt,
		consents:      consents,
		erasures:      erasures,
		auditor:       auditor,
		uow:           uow,
		policyVersion: policyVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProfileInput carries the plaintext attributes of a profile write.
type ProfileInput struct {
	DateOfBirth   time.Time
	Hypertension  bool
	Diabetes      bool
	HeartDisease  bool
	KidneyDisease bool
	Pregnancy     bool
}

// ProfileView is the decrypted read model.
type ProfileView struct {
	ID            uuid.UUID `json:"id"`
	DateOfBirth   string    `json:"date_of_birth"`
	Hypertension  bool      `json:"hypertension"`
	Diabetes      bool      `json:"diabetes"`
	HeartDisease  bool      `json:"heart_disease"`
	KidneyDisease bool      `json:"kidney_disease"`
	Pregnancy     bool      `json:"pregnancy"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateProfile encrypts the regulated fields and stores the profile. The
// consent check and the write share one unit of work.
func (s *Service) CreateProfile(ctx context.Context, userID uuid.UUID, input ProfileInput, actor string) (*ProfileView, error) {
	now := time.Now().UTC()
	profile := &health.Profile{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	if profile.DateOfBirth, err = s.seal(fieldcrypt.DateValue(input.DateOfBirth)); err != nil {
		return nil, err
	}
	for _, field := range []struct {
		dst *[]byte
		val bool
	}{
		{&profile.Hypertension, input.Hypertension},
		{&profile.Diabetes, input.Diabetes},
		{&profile.HeartDisease, input.HeartDisease},
		{&profile.KidneyDisease, input.KidneyDisease},
		{&profile.Pregnancy, input.Pregnancy},
	} {
		if *field.dst, err = s.seal(fieldcrypt.BoolValue(field.val)); err != nil {
			return nil, err
		}
	}

	err = s.uow.RunInTx(tx.WithUser(ctx, userID.String()), func(ctx context.Context) error {
		if err := s.consents.Require(ctx, userID, consent.TypeHealthDataProcessing); err != nil {
			return err
		}
		if err := s.profiles.Create(ctx, profile); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Entry{
			UserID:       userID,
			Action:       audit.ActionProfileCreated,
			ResourceType: "health_profile",
			ResourceID:   profile.ID.String(),
			Actor:        actor,
		}, map[string]any{"fields": []string{"date_of_birth", "condition_flags"}})
	})
	if err != nil {
		return nil, err
	}
	return s.profileView(profile, input), nil
}

// GetProfile decrypts the caller's profile. Reads are gated and audited the
// same as writes.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID, actor string) (*ProfileView, error) {
	var profile *health.Profile

	err := s.uow.RunInTx(tx.WithUser(ctx, userID.String()), func(ctx context.Context) error {
		if err := s.consents.Require(ctx, userID, consent.TypeHealthDataProcessing); err != nil {
			return err
		}
		var err error
		if profile, err = s.profiles.GetByUser(ctx, userID); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Entry{
			UserID:       userID,
			Action:       audit.ActionProfileAccessed,
			ResourceType: "health_profile",
			ResourceID:   profile.ID.String(),
			Actor:        actor,
		}, nil)
	})
	if err != nil {
		return nil, err
	}
	return s.decryptProfile(profile)
}

// FamilyMemberInput carries a family-member write.
type FamilyMemberInput struct {
	Name         string
	Relationship string
	DateOfBirth  time.Time
}

// FamilyMemberView is the decrypted read model.
type FamilyMemberView struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Relationship string    `json:"relationship"`
	DateOfBirth  string    `json:"date_of_birth"`
	CreatedAt    time.Time `json:"created_at"`
}

// AddFamilyMember stores a dependent's record under the family-data consent.
func (s *Service) AddFamilyMember(ctx context.Context, userID uuid.UUID, input FamilyMemberInput, actor string) (*FamilyMemberView, error) {
	if input.Name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "family member name is required")
	}

	dob, err := s.seal(fieldcrypt.DateValue(input.DateOfBirth))
	if err != nil {
		return nil, err
	}
	member := &health.FamilyMember{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         input.Name,
		Relationship: input.Relationship,
		DateOfBirth:  dob,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.uow.RunInTx(tx.WithUser(ctx, userID.String()), func(ctx context.Context) error {
		if err := s.consents.Require(ctx, userID, consent.TypeFamilyDataProcessing); err != nil {
			return err
		}
		if err := s.family.Add(ctx, member); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Entry{
			UserID:       userID,
			Action:       audit.ActionFamilyMemberAdded,
			ResourceType: "family_member",
			ResourceID:   member.ID.String(),
			Actor:        actor,
		}, map[string]any{"relationship": input.Relationship})
	})
	if err != nil {
		return nil, err
	}

	return &FamilyMemberView{
		ID:           member.ID,
		Name:         member.Name,
		Relationship: member.Relationship,
		DateOfBirth:  fieldcrypt.DateValue(input.DateOfBirth).Date.Format("2006-01-02"),
		CreatedAt:    member.CreatedAt,
	}, nil
}

// ListFamily decrypts the caller's family members.
func (s *Service) ListFamily(ctx context.Context, userID uuid.UUID) ([]*FamilyMemberView, error) {
	var members []*health.FamilyMember

	err := s.uow.RunInTx(tx.WithUser(ctx, userID.String()), func(ctx context.Context) error {
		if err := s.consents.Require(ctx, userID, consent.TypeFamilyDataProcessing); err != nil {
			return err
		}
		var err error
		members, err = s.family.ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	views := make([]*FamilyMemberView, 0, len(members))
	for _, m := range members {
		dob, err := s.openDate(m.DateOfBirth)
		if err != nil {
			return nil, err
		}
		views = append(views, &FamilyMemberView{
			ID:           m.ID,
			Name:         m.Name,
			Relationship: m.Relationship,
			DateOfBirth:  dob,
			CreatedAt:    m.CreatedAt,
		})
	}
	return views, nil
}

func (s *Service) seal(value fieldcrypt.Scalar) ([]byte, error) {
	envelope, err := s.crypt.Encrypt(value)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.FieldsEncrypted.Inc()
	}
	return envelope.MarshalBinary()
}

func (s *Service) open(blob []byte) (fieldcrypt.Scalar, error) {
	var envelope fieldcrypt.Envelope
	if err := envelope.UnmarshalBinary(blob); err != nil {
		return fieldcrypt.Scalar{}, err
	}
	value, err := s.crypt.Decrypt(envelope)
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeTamperDetected) {
			s.metrics.TamperDetections.Inc()
		}
		return fieldcrypt.Scalar{}, err
	}
	if s.metrics != nil {
		s.metrics.FieldsDecrypted.Inc()
	}
	return value, nil
}

func (s *Service) openBool(blob []byte) (bool, error) {
	value, err := s.open(blob)
	if err != nil {
		return false, err
	}
	return value.Bool, nil
}

func (s *Service) openDate(blob []byte) (string, error) {
	value, err := s.open(blob)
	if err != nil {
		return "", err
	}
	return value.Date.Format("2006-01-02"), nil
}

func (s *Service) decryptProfile(profile *health.Profile) (*ProfileView, error) {
	view := &ProfileView{
		ID:        profile.ID,
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	}
	var err error
	if view.DateOfBirth, err = s.openDate(profile.DateOfBirth); err != nil {
		return nil, err
	}
	for _, field := range []struct {
		dst  *bool
		blob []byte
	}{
		{&view.Hypertension, profile.Hypertension},
		{&view.Diabetes, profile.Diabetes},
		{&view.HeartDisease, profile.HeartDisease},
		{&view.KidneyDisease, profile.KidneyDisease},
		{&view.Pregnancy, profile.Pregnancy},
	} {
		if *field.dst, err = s.openBool(field.blob); err != nil {
			return nil, err
		}
	}
	return view, nil
}

func (s *Service) profileView(profile *health.Profile, input ProfileInput) *ProfileView {
	return &ProfileView{
		ID:            profile.ID,
		DateOfBirth:   fieldcrypt.DateValue(input.DateOfBirth).Date.Format("2006-01-02"),
		Hypertension:  input.Hypertension,
		Diabetes:      input.Diabetes,
		HeartDisease:  input.HeartDisease,
		KidneyDisease: input.KidneyDisease,
		Pregnancy:     input.Pregnancy,
		CreatedAt:     profile.CreatedAt,
		UpdatedAt:     profile.UpdatedAt,
	}
}
