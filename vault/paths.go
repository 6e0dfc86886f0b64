package vault

import (
	"os"
	"path/filepath"
)

// DefaultPath returns the sealed vault file location: OS app-data dir /
// Vault0 / vault.enc.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "Vault0", "vault.enc"), nil
}
