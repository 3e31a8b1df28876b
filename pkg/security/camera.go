package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/angelmondragon/smartpark-backend/pkg/config"
)

const (
	sealedPrefix = "v1:"
	hkdfInfo     = "smartpark camera url"
)

// ErrInvalidSealed signals a malformed or tampered sealed value.
var ErrInvalidSealed = fmt.Errorf("invalid sealed value")

// Sealer encrypts camera stream URLs at rest with XChaCha20-Poly1305. The key
// is derived from the configured secret with HKDF-SHA256.
type Sealer struct {
	key []byte
}

// NewSealer derives the data key from cfg.CameraKey.
func NewSealer(cfg config.SecurityConfig) (*Sealer, error) {
	secret := strings.TrimSpace(cfg.CameraKey)
	if secret == "" {
		return nil, fmt.Errorf("camera key is required")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive camera key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext bound to the given additional data (the park id).
func (s *Sealer) Seal(plaintext, aad string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(aad))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Any mismatch of key, aad or payload yields ErrInvalidSealed.
func (s *Sealer) Open(sealed, aad string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", ErrInvalidSealed
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", ErrInvalidSealed
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrInvalidSealed
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(aad))
	if err != nil {
		return "", ErrInvalidSealed
	}
	return string(plain), nil
}
