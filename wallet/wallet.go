// Package wallet manages the appliance's keychain-resident EVM signing key
// and produces EIP-712 signatures for x402 payment authorizations.
package wallet

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// Sentinel errors.
var (
	ErrNoWallet         = errors.New("no wallet configured")
	ErrInvalidRecipient = errors.New("invalid recipient address")
	ErrKeychain         = errors.New("keychain operation failed")
)

// mnemonicEntropyBits is the entropy used for the 12-word BIP-39 mnemonic.
const mnemonicEntropyBits = 128

// Metadata is the on-disk wallet.json: the address only, never the mnemonic.
type Metadata struct {
	Address string `json:"address"`
}

// Info is the public-facing wallet summary returned by GetWalletInfo.
type Info struct {
	HasWallet bool   `json:"has_wallet"`
	Address   string `json:"address"`
	// BalanceCents is always 0: this core never performs chain RPC for balances.
	BalanceCents int64  `json:"balance_cents"`
	Network      string `json:"network"`
}

// MnemonicStore persists the wallet's BIP-39 mnemonic outside the sealed
// vault, in the OS credential store (or an in-memory stand-in for tests and
// unsupported platforms).
type MnemonicStore interface {
	Set(service, user, mnemonic string) error
	Get(service, user string) (string, error)
}

const (
	keychainService = "vault0-wallet"
	keychainUser    = "mnemonic"
)

// Wallet owns the wallet metadata file and the mnemonic store.
type Wallet struct {
	metadataPath string
	store        MnemonicStore
}

// New returns a Wallet backed by metadataPath and store.
func New(metadataPath string, store MnemonicStore) *Wallet {
	return &Wallet{metadataPath: metadataPath, store: store}
}

// CreateWallet generates a fresh 12-word mnemonic, derives the canonical EVM
// key, persists the address to disk and the mnemonic to the keychain, and
// returns the recovery phrase exactly once.
func (w *Wallet) CreateWallet() (Info, string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return Info{}, "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return Info{}, "", fmt.Errorf("generate mnemonic: %w", err)
	}

	info, err := w.importLocked(mnemonic)
	if err != nil {
		return Info{}, "", err
	}
	slog.Info("wallet created", "address", info.Address)
	return info, mnemonic, nil
}

// ImportWallet derives the canonical EVM key from a previously generated
// mnemonic and persists it the same way CreateWallet does.
func (w *Wallet) ImportWallet(phrase string) (Info, error) {
	phrase = strings.TrimSpace(phrase)
	if !bip39.IsMnemonicValid(phrase) {
		return Info{}, errors.New("invalid recovery phrase")
	}
	info, err := w.importLocked(phrase)
	if err != nil {
		return Info{}, err
	}
	slog.Info("wallet imported", "address", info.Address)
	return info, nil
}

func (w *Wallet) importLocked(mnemonic string) (Info, error) {
	key, err := deriveKey(mnemonic)
	if err != nil {
		return Info{}, fmt.Errorf("derive key: %w", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey)

	if err := w.store.Set(keychainService, keychainUser, mnemonic); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrKeychain, err)
	}
	if err := writeMetadata(w.metadataPath, Metadata{Address: address.Hex()}); err != nil {
		return Info{}, fmt.Errorf("write wallet metadata: %w", err)
	}

	return Info{HasWallet: true, Address: address.Hex(), Network: "base"}, nil
}

// GetWalletInfo reports whether a wallet exists and its address. Balance is
// always 0 — this core performs no chain RPC for balances.
func (w *Wallet) GetWalletInfo() (Info, error) {
	meta, err := readMetadata(w.metadataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{HasWallet: false, Network: "base"}, nil
		}
		return Info{}, err
	}
	return Info{HasWallet: true, Address: meta.Address, Network: "base"}, nil
}

// ExportSeed returns the mnemonic from the credential store.
func (w *Wallet) ExportSeed() (string, error) {
	mnemonic, err := w.store.Get(keychainService, keychainUser)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeychain, err)
	}
	return mnemonic, nil
}

// privateKey loads the mnemonic from the store and re-derives the signing
// key. It never touches disk; the mnemonic never leaves the credential
// store except transiently in process memory.
func (w *Wallet) privateKey() (*ecdsa.PrivateKey, error) {
	mnemonic, err := w.store.Get(keychainService, keychainUser)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeychain, err)
	}
	return deriveKey(mnemonic)
}

// deriveKey turns a BIP-39 mnemonic into the canonical EVM signing key.
// This core derives directly from the 64-byte BIP-39 seed rather than
// running full BIP-32/44 HD derivation — one wallet, one key, no accounts.
func deriveKey(mnemonic string) (*ecdsa.PrivateKey, error) {
	seed := bip39.NewSeed(mnemonic, "")
	return crypto.ToECDSA(seed[:32])
}

func readMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("decode wallet metadata: %w", err)
	}
	return m, nil
}

func writeMetadata(path string, m Metadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// DefaultMetadataPath returns OS config dir / vault0 / wallet.json.
func DefaultMetadataPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vault0", "wallet.json"), nil
}
