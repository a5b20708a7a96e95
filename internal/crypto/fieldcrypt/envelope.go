package fieldcrypt

import (
	"encoding/binary"
	"fmt"

	"nuca/internal/crypto/keyring"
	dErrors "nuca/pkg/domain-errors"
)

// AlgorithmAESGCM identifies the only algorithm currently in use. The field
// exists in the envelope so future algorithm changes remain decodable.
const AlgorithmAESGCM = "aes256gcm"

// Envelope is the versioned result of encrypting one scalar. Produced only by
// the Service; never constructed or mutated elsewhere.
type Envelope struct {
	AlgorithmID string
	KeyVersion  keyring.Version
	Nonce       []byte
	Ciphertext  []byte
	AuthTag     []byte
}

// frameVersion prefixes the serialized blob so the layout can evolve.
const frameVersion = 0x01

// MarshalBinary serializes the envelope as a self-describing blob for
// single-column storage: frame version, then length-prefixed algorithm ID,
// a fixed 4-byte key version, and length-prefixed nonce, ciphertext, tag.
func (e Envelope) MarshalBinary() ([]byte, error) {
	if e.AlgorithmID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "envelope missing algorithm id")
	}

	buf := make([]byte, 0, 1+1+len(e.AlgorithmID)+4+3*binary.MaxVarintLen32+len(e.Nonce)+len(e.Ciphertext)+len(e.AuthTag))
	buf = append(buf, frameVersion)
	buf = appendChunk(buf, []byte(e.AlgorithmID))
	buf = binary.BigEndian.AppendUint32(buf, uint32(e.KeyVersion))
	buf = appendChunk(buf, e.Nonce)
	buf = appendChunk(buf, e.Ciphertext)
	buf = appendChunk(buf, e.AuthTag)
	return buf, nil
}

// UnmarshalBinary rebuilds an envelope from its blob form.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "empty envelope blob")
	}
	if data[0] != frameVersion {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported envelope frame version %d", data[0]))
	}
	rest := data[1:]

	algID, rest, err := readChunk(rest)
	if err != nil {
		return err
	}
	if len(rest) < 4 {
		return dErrors.New(dErrors.CodeInvalidInput, "truncated envelope blob")
	}
	version := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]

	nonce, rest, err := readChunk(rest)
	if err != nil {
		return err
	}
	ciphertext, rest, err := readChunk(rest)
	if err != nil {
		return err
	}
	tag, rest, err := readChunk(rest)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "trailing bytes in envelope blob")
	}

	e.AlgorithmID = string(algID)
	e.KeyVersion = keyring.Version(version)
	e.Nonce = nonce
	e.Ciphertext = ciphertext
	e.AuthTag = tag
	return nil
}

func appendChunk(buf, chunk []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(chunk)))
	return append(buf, chunk...)
}

func readChunk(data []byte) (chunk, rest []byte, err error) {
	length, n := binary.Uvarint(data)
	if n <= 0 || uint64(len(data)-n) < length {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "truncated envelope blob")
	}
	out := make([]byte, length)
	copy(out, data[n:n+int(length)])
	return out, data[n+int(length):], nil
}
