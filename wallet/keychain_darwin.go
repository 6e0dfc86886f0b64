//go:build darwin

package wallet

import (
	keychain "github.com/keybase/go-keychain"
)

// DarwinKeychainStore persists the mnemonic in the macOS Keychain, scoped to
// a fixed service/account pair so there is exactly one wallet per machine.
type DarwinKeychainStore struct{}

// NewKeychainStore returns the platform credential store for this build.
func NewKeychainStore() MnemonicStore { return DarwinKeychainStore{} }

func (DarwinKeychainStore) Set(service, user, mnemonic string) error {
	item := keychain.NewGenericPassword(service, user, "vault0 wallet mnemonic", []byte(mnemonic), "")
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlockedThisDeviceOnly)

	if err := keychain.AddItem(item); err != nil {
		if err == keychain.ErrorDuplicateItem {
			query := keychain.NewGenericPassword(service, user, "", nil, "")
			update := keychain.NewItem()
			update.SetData([]byte(mnemonic))
			return keychain.UpdateItem(query, update)
		}
		return err
	}
	return nil
}

func (DarwinKeychainStore) Get(service, user string) (string, error) {
	query := keychain.NewItem()
	query.SetSecClass(keychain.SecClassGenericPassword)
	query.SetService(service)
	query.SetAccount(user)
	query.SetMatchLimit(keychain.MatchLimitOne)
	query.SetReturnData(true)

	results, err := keychain.QueryItem(query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", ErrNoWallet
	}
	return string(results[0].Data), nil
}
