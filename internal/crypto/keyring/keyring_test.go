package keyring

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "nuca/pkg/domain-errors"
)

type KeyringSuite struct {
	suite.Suite
}

func TestKeyringSuite(t *testing.T) {
	suite.Run(t, new(KeyringSuite))
}

func (s *KeyringSuite) TestNewValidation() {
	_, err := New("", 1)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = New("secret", 0)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *KeyringSuite) TestDerivationIsDeterministicPerVersion() {
	k1, err := New("secret", 2)
	s.Require().NoError(err)
	k2, err := New("secret", 2)
	s.Require().NoError(err)

	m1, err := k1.KeyFor(1)
	s.Require().NoError(err)
	m2, err := k2.KeyFor(1)
	s.Require().NoError(err)
	s.Equal(m1, m2)

	v2, err := k1.KeyFor(2)
	s.Require().NoError(err)
	s.NotEqual(m1, v2, "versions must derive independent keys")
}

func (s *KeyringSuite) TestCurrentReturnsActiveVersion() {
	k, err := New("secret", 3)
	s.Require().NoError(err)

	v, material, err := k.Current()
	s.Require().NoError(err)
	s.Equal(Version(3), v)
	s.Len(material, keyLen)
}

func (s *KeyringSuite) TestRotateKeepsHistory() {
	k, err := New("secret", 1)
	s.Require().NoError(err)

	next := k.Rotate()
	s.Equal(Version(2), next)

	v, _, err := k.Current()
	s.Require().NoError(err)
	s.Equal(Version(2), v)

	_, err = k.KeyFor(1)
	s.NoError(err, "rotation must not invalidate old versions")
}

func (s *KeyringSuite) TestDestroyedVersionIsGone() {
	k, err := New("secret", 2)
	s.Require().NoError(err)

	k.Destroy(1)
	_, err = k.KeyFor(1)
	s.True(dErrors.HasCode(err, dErrors.CodeKeyNotFound))
}

func (s *KeyringSuite) TestDestroyCurrentRotatesFirst() {
	k, err := New("secret", 1)
	s.Require().NoError(err)

	k.Destroy(1)

	v, _, err := k.Current()
	s.Require().NoError(err)
	s.Equal(Version(2), v)

	_, err = k.KeyFor(1)
	s.True(dErrors.HasCode(err, dErrors.CodeKeyNotFound))
}

func (s *KeyringSuite) TestUnknownVersion() {
	k, err := New("secret", 1)
	s.Require().NoError(err)

	_, err = k.KeyFor(42)
	s.True(dErrors.HasCode(err, dErrors.CodeKeyNotFound))
}

func TestReturnedMaterialIsACopy(t *testing.T) {
	k, err := New("secret", 1)
	require.NoError(t, err)

	m1, err := k.KeyFor(1)
	require.NoError(t, err)
	m1[0] ^= 0xFF

	m2, err := k.KeyFor(1)
	require.NoError(t, err)
	require.NotEqual(t, m1[0], m2[0], "callers must not be able to mutate issued material")
}
