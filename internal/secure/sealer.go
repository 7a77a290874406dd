// Package secure protects CNICs at rest.
//
// A CNIC is stored twice: sealed with secretbox so it can be read back,
// and as an HMAC blind index so equality lookups work without
// decrypting every row. Both keys are derived from one operator secret
// with HKDF.
package secure

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

// MinSecretLength is the shortest accepted operator secret, in bytes.
const MinSecretLength = 32

const nonceSize = 24

var (
	ErrSecretTooShort = errors.New("secure: secret must be at least 32 bytes")
	ErrMalformed      = errors.New("secure: malformed sealed value")
	ErrOpen           = errors.New("secure: sealed value failed authentication")
)

// Sealer seals values and computes their blind index.
type Sealer struct {
	boxKey   [32]byte
	indexKey []byte
}

// NewSealer derives the seal and index keys from secret.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}

	s := &Sealer{indexKey: make([]byte, 32)}
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("hrimport cnic seal")), s.boxKey[:]); err != nil {
		return nil, fmt.Errorf("derive seal key: %w", err)
	}
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("hrimport cnic index")), s.indexKey); err != nil {
		return nil, fmt.Errorf("derive index key: %w", err)
	}
	return s, nil
}

// NewSealerFromBase64 decodes a base64 secret, as kept in the environment.
func NewSealerFromBase64(encoded string) (*Sealer, error) {
	secret, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("secure: decode secret: %w", err)
	}
	return NewSealer(secret)
}

// Seal encrypts plaintext under a random nonce. The result is
// base64(nonce || box).
func (s *Sealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("secure: read nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.boxKey)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrMalformed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.boxKey)
	if !ok {
		return "", ErrOpen
	}
	return string(plain), nil
}

// BlindIndex returns a deterministic hex digest of plaintext.
func (s *Sealer) BlindIndex(plaintext string) string {
	mac := hmac.New(sha256.New, s.indexKey)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}
