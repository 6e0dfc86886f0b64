//go:build !darwin

package wallet

// NewKeychainStore returns the platform credential store for this build.
// Non-Darwin platforms have no first-class OS keychain binding wired here;
// the appliance falls back to an in-process store (see DESIGN.md).
func NewKeychainStore() MnemonicStore { return NewMemoryStore() }
