package vault

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vault0/vault0/krypto"
)

const (
	saltSize = 16
)

// sealedHeader mirrors the on-disk JSON header exactly as specified:
// lowercase hex fields, explicit Argon2id parameters.
type sealedHeader struct {
	SaltHex  string `json:"salt_hex"`
	Argon2M  uint32 `json:"argon2_m"`
	Argon2T  uint32 `json:"argon2_t"`
	Argon2P  uint8  `json:"argon2_p"`
	NonceHex string `json:"nonce_hex"`
}

type sealedFile struct {
	Header        sealedHeader `json:"header"`
	CiphertextHex string       `json:"ciphertext_hex"`
}

func (h sealedHeader) salt() ([]byte, error)  { return hex.DecodeString(h.SaltHex) }
func (h sealedHeader) nonce() ([]byte, error) { return hex.DecodeString(h.NonceHex) }
func (h sealedHeader) params() krypto.Argon2Params {
	return krypto.Argon2Params{MemoryKB: h.Argon2M, Time: h.Argon2T, Parallelism: h.Argon2P}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func removeFile(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// readSealedFile reads and JSON-decodes the sealed vault file. Ciphertext is
// returned decoded from hex; the header fields remain hex-encoded for the
// caller to interpret with the right salt/nonce lengths.
func readSealedFile(path string) (sealedHeader, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sealedHeader{}, nil, fmt.Errorf("read vault file: %w", err)
	}
	var sf sealedFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return sealedHeader{}, nil, ErrWrongPassphraseOrCorrupt
	}
	ciphertext, err := hex.DecodeString(sf.CiphertextHex)
	if err != nil {
		return sealedHeader{}, nil, ErrWrongPassphraseOrCorrupt
	}
	return sf.Header, ciphertext, nil
}

// writeSealedFile atomically writes the sealed vault file: encode as JSON,
// write to a temp file in the same directory, chmod 0600, then rename over
// the target.
func writeSealedFile(path string, salt, nonce []byte, params krypto.Argon2Params, ciphertext []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create vault directory: %w", err)
	}

	sf := sealedFile{
		Header: sealedHeader{
			SaltHex:  hex.EncodeToString(salt),
			Argon2M:  params.MemoryKB,
			Argon2T:  params.Time,
			Argon2P:  params.Parallelism,
			NonceHex: hex.EncodeToString(nonce),
		},
		CiphertextHex: hex.EncodeToString(ciphertext),
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vault file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "vault-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp vault file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp vault file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp vault file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp vault file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace vault file: %w", err)
	}
	return nil
}
