// Package control exposes the appliance's synchronous entry points: the
// thin facade a desktop-shell dispatcher calls into. Every method here
// wraps a component from vault, wallet, policy, or proxy and translates
// internal errors into caller-facing strings, matching §4.8.
package control

import (
	"fmt"

	"github.com/vault0/vault0/evidence"
	"github.com/vault0/vault0/policy"
	"github.com/vault0/vault0/proxy"
	"github.com/vault0/vault0/vault"
	"github.com/vault0/vault0/wallet"
	"github.com/vault0/vault0/x402"
)

// Appliance wires together every component the mediation system needs and
// is the sole object the external dispatcher holds a reference to.
type Appliance struct {
	Vault    *vault.Vault
	Wallet   *wallet.Wallet
	Policy   *policy.Store
	Evidence *evidence.Log
	Pending  *x402.PendingQueue
	Proxy    *proxy.Proxy
}

// Greet is the trivial health-check entry point a dispatcher calls to
// confirm the appliance process is alive and responding.
func (a *Appliance) Greet() string {
	return "vault0 appliance ready"
}

// --- Proxy control ---

func (a *Appliance) ProxyStart() string {
	if err := a.Proxy.Start(); err != nil {
		return err.Error()
	}
	return ""
}

func (a *Appliance) ProxyStop() string {
	if err := a.Proxy.Stop(); err != nil {
		return err.Error()
	}
	return ""
}

func (a *Appliance) ProxyStatus() bool {
	return a.Proxy.IsRunning()
}

// --- Vault ---

func (a *Appliance) VaultExists() bool {
	return a.Vault.Exists()
}

func (a *Appliance) VaultCreate(passphrase string) string {
	if err := a.Vault.Create(passphrase); err != nil {
		return err.Error()
	}
	return ""
}

func (a *Appliance) VaultUnlock(passphrase string) string {
	if err := a.Vault.Unlock(passphrase); err != nil {
		return err.Error()
	}
	return ""
}

func (a *Appliance) VaultLock() {
	a.Vault.Lock()
}

func (a *Appliance) VaultIsUnlocked() bool {
	return a.Vault.IsUnlocked()
}

func (a *Appliance) VaultAddEntry(alias, value, provider string) string {
	if err := a.Vault.AddEntry(alias, value, provider); err != nil {
		return err.Error()
	}
	return ""
}

func (a *Appliance) VaultListEntries() []vault.EntrySummary {
	return a.Vault.ListEntries()
}

func (a *Appliance) VaultDeleteEntry(alias string) string {
	if err := a.Vault.DeleteEntry(alias); err != nil {
		return err.Error()
	}
	return ""
}

// SetSecret bypasses the sealed file, upserting alias into the current
// unsealed session only. The value is gone when the vault locks or the
// process exits, unless a later VaultAddEntry or VaultDeleteEntry reseals
// the session, which writes it to disk with the other entries.
func (a *Appliance) SetSecret(alias, value string) string {
	if err := a.Vault.SetEphemeral(alias, value, "ephemeral"); err != nil {
		return err.Error()
	}
	return ""
}

// --- Wallet ---

func (a *Appliance) WalletCreate() (wallet.Info, string, string) {
	info, phrase, err := a.Wallet.CreateWallet()
	if err != nil {
		return wallet.Info{}, "", err.Error()
	}
	return info, phrase, ""
}

func (a *Appliance) WalletImport(phrase string) (wallet.Info, string) {
	info, err := a.Wallet.ImportWallet(phrase)
	if err != nil {
		return wallet.Info{}, err.Error()
	}
	return info, ""
}

func (a *Appliance) WalletInfo() (wallet.Info, string) {
	info, err := a.Wallet.GetWalletInfo()
	if err != nil {
		return wallet.Info{}, err.Error()
	}
	return info, ""
}

func (a *Appliance) WalletExportSeed() (string, string) {
	phrase, err := a.Wallet.ExportSeed()
	if err != nil {
		return "", err.Error()
	}
	return phrase, ""
}

// --- Policy ---

func (a *Appliance) PolicyGet() policy.Policy {
	return a.Policy.Snapshot()
}

func (a *Appliance) PolicySet(p policy.Policy) {
	a.Policy.Set(p)
}

func (a *Appliance) PolicyLoad() string {
	if err := a.Policy.Load(); err != nil {
		return err.Error()
	}
	return ""
}

func (a *Appliance) PolicySave() string {
	if err := a.Policy.Save(); err != nil {
		return err.Error()
	}
	return ""
}

// --- Evidence ---

func (a *Appliance) EvidenceLog() []evidence.Entry {
	return a.Evidence.GetLog()
}

func (a *Appliance) EvidenceStats() evidence.Stats {
	return a.Evidence.GetStats()
}

func (a *Appliance) EvidenceReceipt() []evidence.ReceiptEntry {
	return evidence.ExportReceipt(a.Evidence.GetLog())
}

// PendingPayments returns the currently queued, not-yet-settled payment
// intents awaiting human approval or auto-settlement.
func (a *Appliance) PendingPayments() []x402.Pending {
	return a.Pending.List()
}

// String implements fmt.Stringer for debugging/log output.
func (a *Appliance) String() string {
	return fmt.Sprintf("Appliance{proxy_running=%v vault_unlocked=%v}", a.Proxy.IsRunning(), a.Vault.IsUnlocked())
}
