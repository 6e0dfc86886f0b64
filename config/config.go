// Package config loads the appliance's environment-derived configuration
// through a small getEnv helper.
package config

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/vault0/vault0/gatewaytap"
	"github.com/vault0/vault0/policy"
	"github.com/vault0/vault0/vault"
	"github.com/vault0/vault0/wallet"
)

// Config holds all appliance configuration.
type Config struct {
	// VaultPath is where the sealed secret catalog lives on disk.
	VaultPath string

	// PolicyPath is where the allow/block/redact policy is persisted as
	// YAML. Empty means in-memory only (defaults are used and never saved).
	PolicyPath string

	// WalletMetadataPath is where {address} is persisted. The mnemonic
	// itself never touches disk — it lives in the OS credential store.
	WalletMetadataPath string

	// ListenAddr is read from LISTEN_ADDR and only reported in the startup
	// log. The mediation proxy always binds proxy.ListenAddr; this value
	// does not change the bind address.
	ListenAddr string

	// GatewayTapURL is the optional WebSocket collector endpoint mirrored
	// telemetry is sent to. Empty disables the tap entirely.
	GatewayTapURL string

	// LogLevel is "debug" or anything else (treated as info).
	LogLevel string
}

// Load reads configuration from environment variables, falling back to the
// OS-appropriate default paths for anything unset. A .env file in the
// working directory is loaded first if present (dev convenience).
func Load() (*Config, error) {
	_ = godotenv.Load() // no-op if .env absent

	vaultPath := getEnv("VAULT_PATH", "")
	if vaultPath == "" {
		p, err := vault.DefaultPath()
		if err != nil {
			return nil, err
		}
		vaultPath = p
	}

	policyPath := getEnv("POLICY_PATH", "")
	if policyPath == "" {
		p, err := policy.DefaultPath()
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	walletPath := getEnv("WALLET_METADATA_PATH", "")
	if walletPath == "" {
		p, err := wallet.DefaultMetadataPath()
		if err != nil {
			return nil, err
		}
		walletPath = p
	}

	return &Config{
		VaultPath:          vaultPath,
		PolicyPath:         policyPath,
		WalletMetadataPath: walletPath,
		ListenAddr:         getEnv("LISTEN_ADDR", "127.0.0.1:3840"),
		GatewayTapURL:      getEnv("GATEWAY_TAP_URL", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}, nil
}

// NewTap constructs the telemetry tap described by c, or a NoopTap if no
// collector URL is configured.
func (c *Config) NewTap() gatewaytap.Tap {
	if c.GatewayTapURL == "" {
		return gatewaytap.NoopTap{}
	}
	return gatewaytap.NewWSTap(c.GatewayTapURL)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
