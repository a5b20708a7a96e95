package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"nuca/internal/crypto/keyring"
	dErrors "nuca/pkg/domain-errors"
)

// KeyProvider supplies versioned key material. Satisfied by keyring.Keyring;
// an interface so tests can inject fixed keys without PBKDF2 derivation.
type KeyProvider interface {
	Current() (keyring.Version, []byte, error)
	KeyFor(v keyring.Version) ([]byte, error)
}

// Service encrypts and decrypts typed scalars. Stateless given a key version;
// safe for concurrent use.
type Service struct {
	keys KeyProvider
}

func NewService(keys KeyProvider) *Service {
	return &Service{keys: keys}
}

// gcmTagSize is split off the sealed output so the envelope carries the tag
// as a distinct field per the storage contract.
const gcmTagSize = 16

// Encrypt seals one scalar under the current key version with a fresh random
// nonce. The ciphertext is authenticated; tampering is detected on decrypt.
func (s *Service) Encrypt(value Scalar) (Envelope, error) {
	version, key, err := s.keys.Current()
	if err != nil {
		return Envelope{}, err
	}

	plaintext, err := value.encode()
	if err != nil {
		return Envelope{}, err
	}

	aead, err := newGCM(key)
	if err != nil {
		return Envelope{}, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate nonce")
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad(version))
	if len(sealed) < gcmTagSize {
		return Envelope{}, dErrors.New(dErrors.CodeInternal, "sealed payload shorter than tag")
	}

	split := len(sealed) - gcmTagSize
	return Envelope{
		AlgorithmID: AlgorithmAESGCM,
		KeyVersion:  version,
		Nonce:       nonce,
		Ciphertext:  sealed[:split],
		AuthTag:     sealed[split:],
	}, nil
}

// Decrypt opens an envelope under its declared key version and verifies the
// authentication tag. Fails with CodeTamperDetected on mismatch, distinct
// from CodeKeyNotFound when the version is unavailable.
func (s *Service) Decrypt(envelope Envelope) (Scalar, error) {
	if envelope.AlgorithmID != AlgorithmAESGCM {
		return Scalar{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported algorithm %q", envelope.AlgorithmID))
	}

	key, err := s.keys.KeyFor(envelope.KeyVersion)
	if err != nil {
		return Scalar{}, err
	}

	aead, err := newGCM(key)
	if err != nil {
		return Scalar{}, err
	}
	if len(envelope.Nonce) != aead.NonceSize() {
		return Scalar{}, dErrors.New(dErrors.CodeTamperDetected, "envelope nonce has unexpected size")
	}

	sealed := make([]byte, 0, len(envelope.Ciphertext)+len(envelope.AuthTag))
	sealed = append(sealed, envelope.Ciphertext...)
	sealed = append(sealed, envelope.AuthTag...)

	plaintext, err := aead.Open(nil, envelope.Nonce, sealed, aad(envelope.KeyVersion))
	if err != nil {
		return Scalar{}, dErrors.Wrap(err, dErrors.CodeTamperDetected, "envelope failed authentication")
	}

	return decodeScalar(plaintext)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not initialize cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not initialize GCM")
	}
	return aead, nil
}

// aad binds algorithm and key version into the authentication so a relabelled
// envelope cannot decrypt under a different scheme.
func aad(version keyring.Version) []byte {
	out := append([]byte(AlgorithmAESGCM), ':')
	return binary.BigEndian.AppendUint32(out, uint32(version))
}
