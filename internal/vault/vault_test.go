package vault

import (
	"bytes"
	"errors"
	"testing"
)

type memMeta struct {
	values map[string][]byte
	err    error
}

func (m *memMeta) EnsureMeta(key string, value []byte) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	if existing, ok := m.values[key]; ok {
		return existing, nil
	}
	m.values[key] = value
	return value, nil
}

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != saltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), saltSize)
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt 2: %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("storage-secret", salt)
	key2 := DeriveKey("storage-secret", salt)
	if !bytes.Equal(key1, key2) {
		t.Error("same secret+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}

	if bytes.Equal(key1, DeriveKey("other-secret", salt)) {
		t.Error("different secrets should produce different keys")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	v, err := New("storage-secret", []byte("1234567890abcdef"))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	token := []byte("eyJhbGciOiJIUzI1NiJ9.eyJleHAiOjF9.c2ln")
	sealed, err := v.Seal(token)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, token) {
		t.Error("sealed value should not contain the plaintext")
	}

	opened, err := v.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, token) {
		t.Errorf("opened = %q, want %q", opened, token)
	}
}

func TestOpenWrongSecret(t *testing.T) {
	salt := []byte("1234567890abcdef")
	v1, _ := New("secret-one", salt)
	v2, _ := New("secret-two", salt)

	sealed, err := v1.Seal([]byte("token"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := v2.Open(sealed); err == nil {
		t.Error("expected error opening with a different secret")
	}
}

func TestOpenTooShort(t *testing.T) {
	v, _ := New("secret", []byte("1234567890abcdef"))
	if _, err := v.Open([]byte("short")); !errors.Is(err, ErrSealedTooShort) {
		t.Errorf("err = %v, want ErrSealedTooShort", err)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New("", []byte("1234567890abcdef")); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := New("secret", []byte("short")); err == nil {
		t.Error("expected error for short salt")
	}
}

func TestLoadReusesPersistedSalt(t *testing.T) {
	meta := &memMeta{values: map[string][]byte{}}

	v1, err := Load("secret", meta)
	if err != nil {
		t.Fatalf("load 1: %v", err)
	}
	sealed, err := v1.Seal([]byte("token"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	v2, err := Load("secret", meta)
	if err != nil {
		t.Fatalf("load 2: %v", err)
	}
	opened, err := v2.Open(sealed)
	if err != nil {
		t.Fatalf("open after reload: %v", err)
	}
	if string(opened) != "token" {
		t.Errorf("opened = %q, want %q", opened, "token")
	}
}

func TestLoadMetaError(t *testing.T) {
	meta := &memMeta{err: errors.New("disk full")}
	if _, err := Load("secret", meta); err == nil {
		t.Error("expected error when salt cannot be persisted")
	}
}
