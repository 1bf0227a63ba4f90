// Package vault seals small values (bearer tokens) before they reach the
// durable storage area.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4

	// SaltKey is the storage_meta key holding the key-derivation salt.
	SaltKey = "vault_salt"
)

var ErrSealedTooShort = errors.New("sealed value too short")

// MetaStore persists the salt so restarts derive the same key.
type MetaStore interface {
	EnsureMeta(key string, value []byte) ([]byte, error)
}

// Vault encrypts values with AES-256-GCM under an Argon2id-derived key.
type Vault struct {
	aead cipher.AEAD
}

// GenerateSalt returns 16 cryptographically random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 32-byte AES-256 key from a secret and salt using Argon2id.
func DeriveKey(secret string, salt []byte) []byte {
	return argon2.IDKey([]byte(secret), salt, argonTime, argonMem, argonPar, keySize)
}

// New builds a vault from a secret and salt. The key is derived once.
func New(secret string, salt []byte) (*Vault, error) {
	if secret == "" {
		return nil, errors.New("vault secret is empty")
	}
	if len(salt) != saltSize {
		return nil, fmt.Errorf("salt length = %d, want %d", len(salt), saltSize)
	}

	block, err := aes.NewCipher(DeriveKey(secret, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &Vault{aead: gcm}, nil
}

// Load reads the persisted salt (creating it on first start) and builds a vault.
func Load(secret string, meta MetaStore) (*Vault, error) {
	fresh, err := GenerateSalt()
	if err != nil {
		return nil, err
	}

	salt, err := meta.EnsureMeta(SaltKey, fresh)
	if err != nil {
		return nil, fmt.Errorf("load salt: %w", err)
	}

	return New(secret, salt)
}

// Seal encrypts plaintext.
// Output format: [12-byte nonce][AES-256-GCM ciphertext]
func (v *Vault) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, nonceSize+len(plaintext)+v.aead.Overhead())
	out = append(out, nonce...)
	return v.aead.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts a value produced by Seal.
func (v *Vault) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize {
		return nil, ErrSealedTooShort
	}

	plaintext, err := v.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
