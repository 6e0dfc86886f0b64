// Package krypto holds the cryptographic primitives used by the vault
// package: Argon2id key derivation and AES-256-GCM authenticated
// encryption.
package krypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2Params are the KDF parameters persisted alongside a sealed vault.
type Argon2Params struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
}

// DefaultArgon2Params returns the fixed parameters the vault always uses:
// m=65536 (64 MiB), t=3, p=1.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{MemoryKB: 65536, Time: 3, Parallelism: 1}
}

// DeriveKey runs Argon2id over passphrase and salt, returning a 32-byte key.
func DeriveKey(passphrase []byte, salt []byte, p Argon2Params) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("passphrase is required")
	}
	if len(salt) == 0 {
		return nil, errors.New("salt is required")
	}
	return argon2.IDKey(passphrase, salt, p.Time, p.MemoryKB, p.Parallelism, 32), nil
}

// NewSalt returns n cryptographically random bytes.
func NewSalt(n int) ([]byte, error) {
	salt := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}
