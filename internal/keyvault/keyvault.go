// Package keyvault encrypts and decrypts managed wallet secret keys at
// rest. Keys are sealed with AES-256-GCM under a key derived from the
// operator passphrase via scrypt, and stored as an opaque
// "hex(nonce):hex(ciphertext)" string.
package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// ErrDecryption is returned when a sealed key cannot be opened, whether
// because the ciphertext is malformed, was tampered with, or was sealed
// under a different passphrase.
var ErrDecryption = errors.New("keyvault: decryption failed")

const (
	scryptN = 16384
	scryptR = 8
	scryptP = 1
	keyLen  = 32
)

// Vault seals and opens wallet secret keys with a key derived from a
// single operator passphrase.
type Vault struct {
	aead cipher.AEAD
}

// New derives the sealing key from the passphrase and returns a ready
// Vault. The salt is fixed: sealed keys must remain openable across
// restarts with only the passphrase as input.
func New(passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, errors.New("keyvault: empty passphrase")
	}

	key, err := scrypt.Key([]byte(passphrase), []byte("salt"), scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("keyvault: key derivation failed: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keyvault: cipher init failed: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keyvault: gcm init failed: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Seal encrypts a secret key and returns the opaque storage form.
func (v *Vault) Seal(secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("keyvault: empty secret")
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("keyvault: nonce generation failed: %w", err)
	}

	ciphertext := v.aead.Seal(nil, nonce, secret, nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(ciphertext), nil
}

// Open decrypts a sealed secret key. Any failure collapses to
// ErrDecryption so callers cannot distinguish tampering from a wrong
// passphrase.
func (v *Vault) Open(sealed string) ([]byte, error) {
	parts := strings.SplitN(sealed, ":", 2)
	if len(parts) != 2 {
		return nil, ErrDecryption
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != v.aead.NonceSize() {
		return nil, ErrDecryption
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, ErrDecryption
	}

	secret, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}

	return secret, nil
}
