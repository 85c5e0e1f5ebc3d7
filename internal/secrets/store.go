package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.trai.ch/zerr"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

var (
	// ErrCiphertextTooShort is returned when a sealed value cannot hold a nonce.
	ErrCiphertextTooShort = zerr.New("ciphertext too short")
	// ErrBadKey is returned when key material has the wrong length.
	ErrBadKey = zerr.New("field key must be 32 bytes")
)

// FieldCipher encrypts individual column values with AES-GCM.
// Sealed values are base64(nonce || ciphertext). The empty string seals to itself
// so optional columns stay empty.
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher builds a cipher from raw key bytes.
func NewFieldCipher(key []byte) (*FieldCipher, error) {
	if len(key) != KeySize {
		return nil, ErrBadKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &FieldCipher{aead: gcm}, nil
}

// Seal encrypts plain.
func (c *FieldCipher) Seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Open decrypts a value produced by Seal.
func (c *FieldCipher) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", zerr.Wrap(err, "decode sealed field")
	}
	if len(raw) < c.aead.NonceSize() {
		return "", ErrCiphertextTooShort
	}
	nonce := raw[:c.aead.NonceSize()]
	body := raw[c.aead.NonceSize():]
	pt, err := c.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", zerr.Wrap(err, "open sealed field")
	}
	return string(pt), nil
}

// LoadOrCreateKey reads the key file at path, generating a new random key (0600)
// when it does not exist yet.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := base64.StdEncoding.DecodeString(string(data))
		if err != nil {
			return nil, zerr.Wrap(err, "decode key file")
		}
		if len(key) != KeySize {
			return nil, ErrBadKey
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil { // restrict directory
		return nil, err
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(base64.StdEncoding.EncodeToString(key)), 0o600); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("install key file: %w", err)
	}
	return key, nil
}

// OpenFieldCipher loads (or creates) the key at path and returns a cipher for it.
func OpenFieldCipher(path string) (*FieldCipher, error) {
	key, err := LoadOrCreateKey(path)
	if err != nil {
		return nil, err
	}
	return NewFieldCipher(key)
}
