package keyring

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	dErrors "nuca/pkg/domain-errors"
)

// Version identifies one issued generation of key material.
type Version uint32

// Key material is derived from the master secret with PBKDF2-HMAC-SHA256,
// salted per version so rotation yields independent keys. Parameters match the
// original deployment so existing envelopes stay decryptable.
const (
	saltPrefix = "nuca-v1-fixed-salt"
	iterations = 390_000
	keyLen     = 32
)

// Keyring supplies versioned symmetric key material. Key material is immutable
// once issued under a version; rotation issues a new version without
// invalidating old ones. Destroyed versions (post-breach rotation) become
// permanently unavailable.
type Keyring struct {
	mu      sync.RWMutex
	secret  []byte
	keys    map[Version][]byte
	current Version
}

// New derives key material for every version up to and including active.
// Earlier versions must remain resolvable for envelopes already in storage.
func New(masterSecret string, active Version) (*Keyring, error) {
	if masterSecret == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "master secret must not be empty")
	}
	if active == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "active key version must be positive")
	}

	k := &Keyring{
		secret:  []byte(masterSecret),
		keys:    make(map[Version][]byte),
		current: active,
	}
	for v := Version(1); v <= active; v++ {
		k.keys[v] = derive(k.secret, v)
	}
	return k, nil
}

func derive(secret []byte, v Version) []byte {
	salt := fmt.Appendf([]byte(saltPrefix), ":%d", v)
	return pbkdf2.Key(secret, salt, iterations, keyLen, sha256.New)
}

// Current returns the active version and its key material. Rotation is
// observable atomically: callers see either the old or the new version,
// never a torn pair.
func (k *Keyring) Current() (Version, []byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	material, ok := k.keys[k.current]
	if !ok {
		return 0, nil, dErrors.New(dErrors.CodeKeyNotFound, fmt.Sprintf("current key version %d unavailable", k.current))
	}
	return k.current, clone(material), nil
}

// KeyFor returns the material for a historical version, supporting decryption
// of envelopes written under retired versions.
func (k *Keyring) KeyFor(v Version) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	material, ok := k.keys[v]
	if !ok {
		return nil, dErrors.New(dErrors.CodeKeyNotFound, fmt.Sprintf("key version %d was never issued or has been destroyed", v))
	}
	return clone(material), nil
}

// Rotate issues the next key version and makes it current. Historical
// versions remain available for reads.
func (k *Keyring) Rotate() Version {
	k.mu.Lock()
	defer k.mu.Unlock()

	next := k.current + 1
	k.keys[next] = derive(k.secret, next)
	k.current = next
	return next
}

// Destroy permanently removes a version's material, part of the breach
// protocol. Destroying the current version also rotates first so writes
// never lose their key.
func (k *Keyring) Destroy(v Version) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if v == k.current {
		next := k.current + 1
		k.keys[next] = derive(k.secret, next)
		k.current = next
	}
	delete(k.keys, v)
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
