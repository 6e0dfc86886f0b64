package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vault0/vault0/config"
	"github.com/vault0/vault0/control"
	"github.com/vault0/vault0/evidence"
	"github.com/vault0/vault0/policy"
	"github.com/vault0/vault0/proxy"
	"github.com/vault0/vault0/vault"
	"github.com/vault0/vault0/wallet"
	"github.com/vault0/vault0/x402"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logging isn't configured yet at this point, so report to stderr directly.
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	v := vault.New(cfg.VaultPath)

	policyStore, err := policy.NewStore(cfg.PolicyPath)
	if err != nil {
		slog.Error("failed to load policy", "err", err)
		os.Exit(1)
	}

	w := wallet.New(cfg.WalletMetadataPath, wallet.NewKeychainStore())
	evidenceLog := evidence.NewLog()
	pending := x402.NewPendingQueue()
	tap := cfg.NewTap()

	mediationProxy := proxy.New(v, policyStore, evidenceLog, w, pending, tap)

	appliance := &control.Appliance{
		Vault:    v,
		Wallet:   w,
		Policy:   policyStore,
		Evidence: evidenceLog,
		Pending:  pending,
		Proxy:    mediationProxy,
	}

	slog.Info("vault0 appliance starting",
		"vault_path", cfg.VaultPath,
		"policy_path", cfg.PolicyPath,
		"wallet_path", cfg.WalletMetadataPath,
		"listen_addr", cfg.ListenAddr,
		"gateway_tap", cfg.GatewayTapURL != "",
		"vault_exists", v.Exists(),
	)

	if err := appliance.Proxy.Start(); err != nil {
		slog.Error("mediation proxy failed to start", "err", err)
		os.Exit(1)
	}
	slog.Info("mediation proxy listening", "addr", proxy.ListenAddr)

	waitForShutdown()

	// Stop is advisory per the mediation-proxy lifecycle contract: it flips
	// the running flag and lets in-flight requests drain on their own.
	if err := appliance.Proxy.Stop(); err != nil {
		slog.Warn("mediation proxy stop reported an error", "err", err)
	}
	slog.Info("vault0 appliance exiting")
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
