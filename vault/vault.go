// Package vault implements the encrypted, passphrase-derived secret store:
// a sealed file on disk plus a controlled in-memory session while unsealed.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/vault0/vault0/krypto"
)

// Sentinel errors the control surface translates to user-facing strings.
var (
	ErrWeakPassphrase         = errors.New("passphrase must be at least 12 characters")
	ErrLocked                 = errors.New("vault is locked")
	ErrNotFound               = errors.New("alias not found")
	ErrWrongPassphraseOrCorrupt = errors.New("wrong passphrase or corrupt vault")
)

const minPassphraseLen = 12

// Entry is a single named secret held in the vault.
type Entry struct {
	Alias       string `json:"alias"`
	Provider    string `json:"provider"`
	Secret      string `json:"secret"`
	CreatedAt   string `json:"created_at"`
}

// EntrySummary is the redacted view returned by ListEntries.
type EntrySummary struct {
	Alias     string `json:"alias"`
	Provider  string `json:"provider"`
	Preview   string `json:"preview"`
	CreatedAt string `json:"created_at"`
}

// Vault guards the sealed file and the in-memory session behind one
// reader-writer lock, per the single-lock-per-singleton rule.
type Vault struct {
	path string

	mu       sync.RWMutex
	entries  map[string]Entry
	key      []byte // derived key; nil while sealed
	unlocked bool
}

// New returns a Vault backed by the sealed file at path. The file is not
// read until Unlock or Create is called.
func New(path string) *Vault {
	return &Vault{path: path}
}

// Exists reports whether the sealed file is present on disk.
func (v *Vault) Exists() bool {
	return fileExists(v.path)
}

// Create initializes a new sealed vault under passphrase, leaving the
// session unlocked with an empty entry list.
func (v *Vault) Create(passphrase string) error {
	if len(passphrase) < minPassphraseLen {
		return ErrWeakPassphrase
	}

	salt, err := krypto.NewSalt(saltSize)
	if err != nil {
		return err
	}
	params := krypto.DefaultArgon2Params()
	key, err := krypto.DeriveKey([]byte(passphrase), salt, params)
	if err != nil {
		return fmt.Errorf("derive key: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.entries = make(map[string]Entry)
	v.key = key
	v.unlocked = true

	if err := v.writeLocked(salt, params); err != nil {
		v.key = nil
		v.unlocked = false
		v.entries = nil
		return err
	}
	slog.Info("vault created", "path", v.path)
	return nil
}

// Unlock derives the key from passphrase and attempts to decrypt the sealed
// file. On success the session holds the decoded entries.
func (v *Vault) Unlock(passphrase string) error {
	hdr, ciphertext, err := readSealedFile(v.path)
	if err != nil {
		return err
	}

	salt, err := hdr.salt()
	if err != nil {
		return ErrWrongPassphraseOrCorrupt
	}
	nonce, err := hdr.nonce()
	if err != nil {
		return ErrWrongPassphraseOrCorrupt
	}

	key, err := krypto.DeriveKey([]byte(passphrase), salt, hdr.params())
	if err != nil {
		return ErrWrongPassphraseOrCorrupt
	}

	plaintext, err := krypto.Open(key, nonce, ciphertext, nil)
	if err != nil {
		// AEAD failure: never distinguish a wrong passphrase from corruption.
		return ErrWrongPassphraseOrCorrupt
	}

	var entries []Entry
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return ErrWrongPassphraseOrCorrupt
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = make(map[string]Entry, len(entries))
	for _, e := range entries {
		v.entries[e.Alias] = e
	}
	v.key = key
	v.unlocked = true
	slog.Info("vault unlocked", "path", v.path, "entries", len(entries))
	return nil
}

// Lock drops the in-memory session; the key is zeroed.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.key {
		v.key[i] = 0
	}
	v.key = nil
	v.entries = nil
	v.unlocked = false
}

// IsUnlocked reports whether the session currently holds a derived key.
func (v *Vault) IsUnlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.unlocked
}

// AddEntry upserts alias with value and provider, then reseals the file
// under a freshly generated nonce and the existing salt.
func (v *Vault) AddEntry(alias, value, provider string) error {
	if alias == "" {
		return errors.New("alias is required")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return ErrLocked
	}

	hdr, _, err := readSealedFile(v.path)
	if err != nil {
		return fmt.Errorf("read vault header: %w", err)
	}
	salt, err := hdr.salt()
	if err != nil {
		return fmt.Errorf("decode salt: %w", err)
	}

	v.entries[alias] = Entry{
		Alias:     alias,
		Provider:  provider,
		Secret:    value,
		CreatedAt: strconv.FormatInt(time.Now().Unix(), 10),
	}

	return v.writeLocked(salt, hdr.params())
}

// SetEphemeral upserts alias in the in-memory session only, without
// touching the sealed file on disk. The entry is not marked as ephemeral:
// a later AddEntry or DeleteEntry reseals every session entry, this one
// included.
func (v *Vault) SetEphemeral(alias, value, provider string) error {
	if alias == "" {
		return errors.New("alias is required")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return ErrLocked
	}

	v.entries[alias] = Entry{
		Alias:     alias,
		Provider:  provider,
		Secret:    value,
		CreatedAt: strconv.FormatInt(time.Now().Unix(), 10),
	}
	return nil
}

// ListEntries returns redacted summaries of every stored entry.
func (v *Vault) ListEntries() []EntrySummary {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]EntrySummary, 0, len(v.entries))
	for _, e := range v.entries {
		out = append(out, EntrySummary{
			Alias:     e.Alias,
			Provider:  e.Provider,
			Preview:   preview(e.Secret),
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// GetSecret returns the plaintext value for alias.
func (v *Vault) GetSecret(alias string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.unlocked {
		return "", ErrLocked
	}
	e, ok := v.entries[alias]
	if !ok {
		return "", ErrNotFound
	}
	return e.Secret, nil
}

// DeleteEntry removes alias if present; absent aliases are not an error.
func (v *Vault) DeleteEntry(alias string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return ErrLocked
	}
	if _, ok := v.entries[alias]; !ok {
		return nil
	}

	hdr, _, err := readSealedFile(v.path)
	if err != nil {
		return fmt.Errorf("read vault header: %w", err)
	}
	salt, err := hdr.salt()
	if err != nil {
		return fmt.Errorf("decode salt: %w", err)
	}

	delete(v.entries, alias)
	return v.writeLocked(salt, hdr.params())
}

// DeleteFile removes the sealed file from disk and locks the session.
func (v *Vault) DeleteFile() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	err := removeFile(v.path)
	for i := range v.key {
		v.key[i] = 0
	}
	v.key = nil
	v.entries = nil
	v.unlocked = false
	return err
}

// EncryptWithVaultKey encrypts plaintext under the session key with a fresh
// nonce, returning nonce||ciphertext. Used by the backup collaborator.
func (v *Vault) EncryptWithVaultKey(plaintext []byte) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.unlocked {
		return nil, ErrLocked
	}
	nonce, err := krypto.NewNonce()
	if err != nil {
		return nil, err
	}
	ciphertext, err := krypto.Seal(v.key, nonce, plaintext, nil)
	if err != nil {
		return nil, err
	}
	return append(nonce, ciphertext...), nil
}

// writeLocked serializes the current entry set and reseals the file using
// salt (unchanged) and a freshly generated nonce. Caller must hold v.mu.
func (v *Vault) writeLocked(salt []byte, params krypto.Argon2Params) error {
	list := make([]Entry, 0, len(v.entries))
	for _, e := range v.entries {
		list = append(list, e)
	}
	plaintext, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}

	nonce, err := krypto.NewNonce()
	if err != nil {
		return err
	}
	ciphertext, err := krypto.Seal(v.key, nonce, plaintext, nil)
	if err != nil {
		return fmt.Errorf("seal vault: %w", err)
	}

	return writeSealedFile(v.path, salt, nonce, params, ciphertext)
}

// preview shows the first 3 and last 3 characters of value, or "****" when
// value is 6 characters or shorter.
func preview(value string) string {
	if len(value) <= 6 {
		return "****"
	}
	return value[:3] + "..." + value[len(value)-3:]
}
