package fieldcrypt

import (
	"crypto/sha256"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"nuca/internal/crypto/keyring"
	dErrors "nuca/pkg/domain-errors"
)

// fixedKeys avoids PBKDF2 derivation cost in unit tests.
type fixedKeys struct {
	current keyring.Version
	keys    map[keyring.Version][]byte
}

func newFixedKeys(versions ...keyring.Version) *fixedKeys {
	f := &fixedKeys{keys: make(map[keyring.Version][]byte)}
	for _, v := range versions {
		sum := sha256.Sum256(fmt.Appendf(nil, "test-key-%d", v))
		f.keys[v] = sum[:]
		if v > f.current {
			f.current = v
		}
	}
	return f
}

func (f *fixedKeys) Current() (keyring.Version, []byte, error) {
	return f.current, f.keys[f.current], nil
}

func (f *fixedKeys) KeyFor(v keyring.Version) ([]byte, error) {
	key, ok := f.keys[v]
	if !ok {
		return nil, dErrors.New(dErrors.CodeKeyNotFound, "no such version")
	}
	return key, nil
}

type FieldcryptSuite struct {
	suite.Suite
	keys *fixedKeys
	svc  *Service
}

func (s *FieldcryptSuite) SetupTest() {
	s.keys = newFixedKeys(1, 2)
	s.svc = NewService(s.keys)
}

func TestFieldcryptSuite(t *testing.T) {
	suite.Run(t, new(FieldcryptSuite))
}

func (s *FieldcryptSuite) TestRoundTripAllKinds() {
	cases := []Scalar{
		BoolValue(true),
		BoolValue(false),
		TextValue(""),
		TextValue("O+ blood type, penicillin allergy"),
		DateValue(time.Date(1987, time.June, 14, 13, 45, 0, 0, time.FixedZone("WIB", 7*3600))),
	}

	for _, in := range cases {
		s.Run(in.Kind.String(), func() {
			envelope, err := s.svc.Encrypt(in)
			s.Require().NoError(err)
			s.Equal(AlgorithmAESGCM, envelope.AlgorithmID)
			s.Equal(keyring.Version(2), envelope.KeyVersion)
			s.Len(envelope.AuthTag, gcmTagSize)

			out, err := s.svc.Decrypt(envelope)
			s.Require().NoError(err)
			s.Equal(in.Kind, out.Kind)
			switch in.Kind {
			case KindBool:
				s.Equal(in.Bool, out.Bool)
			case KindText:
				s.Equal(in.Text, out.Text)
			case KindDate:
				s.True(out.Date.Equal(time.Date(1987, time.June, 14, 0, 0, 0, 0, time.UTC)),
					"date must round-trip truncated to the UTC day")
			}
		})
	}
}

func (s *FieldcryptSuite) TestNoncesAreFresh() {
	e1, err := s.svc.Encrypt(BoolValue(true))
	s.Require().NoError(err)
	e2, err := s.svc.Encrypt(BoolValue(true))
	s.Require().NoError(err)

	s.NotEqual(e1.Nonce, e2.Nonce)
	s.NotEqual(e1.Ciphertext, e2.Ciphertext)
}

func (s *FieldcryptSuite) TestTamperDetection() {
	envelope, err := s.svc.Encrypt(TextValue("has_diabetes=true"))
	s.Require().NoError(err)

	s.Run("ciphertext bit flip", func() {
		mutated := envelope
		mutated.Ciphertext = append([]byte{}, envelope.Ciphertext...)
		mutated.Ciphertext[0] ^= 0x01

		_, err := s.svc.Decrypt(mutated)
		s.True(dErrors.HasCode(err, dErrors.CodeTamperDetected))
	})

	s.Run("auth tag bit flip", func() {
		mutated := envelope
		mutated.AuthTag = append([]byte{}, envelope.AuthTag...)
		mutated.AuthTag[len(mutated.AuthTag)-1] ^= 0x80

		_, err := s.svc.Decrypt(mutated)
		s.True(dErrors.HasCode(err, dErrors.CodeTamperDetected))
	})

	s.Run("nonce bit flip", func() {
		mutated := envelope
		mutated.Nonce = append([]byte{}, envelope.Nonce...)
		mutated.Nonce[0] ^= 0x01

		_, err := s.svc.Decrypt(mutated)
		s.True(dErrors.HasCode(err, dErrors.CodeTamperDetected))
	})

	s.Run("version relabel", func() {
		mutated := envelope
		mutated.KeyVersion = 1

		_, err := s.svc.Decrypt(mutated)
		s.True(dErrors.HasCode(err, dErrors.CodeTamperDetected))
	})
}

func (s *FieldcryptSuite) TestDecryptUnderRetiredVersion() {
	old, err := s.svc.Encrypt(BoolValue(true))
	s.Require().NoError(err)

	// Rotation: new writes use version 3, version 2 stays readable.
	sum := sha256.Sum256([]byte("test-key-3"))
	s.keys.keys[3] = sum[:]
	s.keys.current = 3

	fresh, err := s.svc.Encrypt(BoolValue(true))
	s.Require().NoError(err)
	s.Equal(keyring.Version(3), fresh.KeyVersion)

	out, err := s.svc.Decrypt(old)
	s.Require().NoError(err)
	s.True(out.Bool)
}

func (s *FieldcryptSuite) TestDestroyedVersionIsKeyNotFound() {
	envelope, err := s.svc.Encrypt(TextValue("x"))
	s.Require().NoError(err)

	delete(s.keys.keys, envelope.KeyVersion)
	s.keys.current = 1

	_, err = s.svc.Decrypt(envelope)
	s.True(dErrors.HasCode(err, dErrors.CodeKeyNotFound))
	s.False(dErrors.HasCode(err, dErrors.CodeTamperDetected))
}

func (s *FieldcryptSuite) TestUnsupportedAlgorithmRejected() {
	envelope, err := s.svc.Encrypt(TextValue("x"))
	s.Require().NoError(err)

	envelope.AlgorithmID = "rot13"
	_, err = s.svc.Decrypt(envelope)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestEnvelopeBlobRoundTrip(t *testing.T) {
	svc := NewService(newFixedKeys(7))

	envelope, err := svc.Encrypt(DateValue(time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	blob, err := envelope.MarshalBinary()
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, decoded.UnmarshalBinary(blob))
	require.Equal(t, envelope, decoded)

	out, err := svc.Decrypt(decoded)
	require.NoError(t, err)
	require.Equal(t, KindDate, out.Kind)
}

func TestEnvelopeBlobRejectsGarbage(t *testing.T) {
	var e Envelope
	require.Error(t, e.UnmarshalBinary(nil))
	require.Error(t, e.UnmarshalBinary([]byte{0x02}))
	require.Error(t, e.UnmarshalBinary([]byte{frameVersion, 0xFF}))

	svc := NewService(newFixedKeys(1))
	envelope, err := svc.Encrypt(BoolValue(true))
	require.NoError(t, err)
	blob, err := envelope.MarshalBinary()
	require.NoError(t, err)

	require.Error(t, e.UnmarshalBinary(blob[:len(blob)-3]), "truncated blob must not decode")
	require.Error(t, e.UnmarshalBinary(append(blob, 0x00)), "trailing bytes must not decode")
}
