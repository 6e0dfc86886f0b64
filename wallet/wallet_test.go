package wallet

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func newTestWallet(t *testing.T) *Wallet {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallet.json")
	return New(path, NewMemoryStore())
}

func TestCreateWalletThenGetInfo(t *testing.T) {
	w := newTestWallet(t)

	info, phrase, err := w.CreateWallet()
	require.NoError(t, err)
	require.True(t, info.HasWallet)
	require.True(t, common.IsHexAddress(info.Address))
	require.NotEmpty(t, phrase)
	require.Equal(t, int64(0), info.BalanceCents)
	require.Equal(t, "base", info.Network)

	got, err := w.GetWalletInfo()
	require.NoError(t, err)
	require.Equal(t, info.Address, got.Address)
}

func TestImportWalletRejectsInvalidPhrase(t *testing.T) {
	w := newTestWallet(t)
	_, err := w.ImportWallet("not a real bip39 mnemonic at all")
	require.Error(t, err)
}

func TestExportSeedRoundTrip(t *testing.T) {
	w := newTestWallet(t)
	_, phrase, err := w.CreateWallet()
	require.NoError(t, err)

	got, err := w.ExportSeed()
	require.NoError(t, err)
	require.Equal(t, phrase, got)
}

func TestGetWalletInfoNoWallet(t *testing.T) {
	w := newTestWallet(t)
	info, err := w.GetWalletInfo()
	require.NoError(t, err)
	require.False(t, info.HasWallet)
}

func TestSignX402PaymentInvalidRecipient(t *testing.T) {
	w := newTestWallet(t)
	_, _, err := w.CreateWallet()
	require.NoError(t, err)

	_, err = w.SignX402Payment(200, "not-an-address", "base")
	require.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestSignX402PaymentProducesHexSignature(t *testing.T) {
	w := newTestWallet(t)
	_, _, err := w.CreateWallet()
	require.NoError(t, err)

	sig, err := w.SignX402Payment(200, "0x0000000000000000000000000000000000000001", "base")
	require.NoError(t, err)
	require.Regexp(t, "^0x[0-9a-f]{130}$", sig)
}

func TestChainIDMapping(t *testing.T) {
	require.EqualValues(t, 8453, chainIDFor("base"))
	require.EqualValues(t, 84532, chainIDFor("base-sepolia"))
	require.EqualValues(t, 8453, chainIDFor("unknown"))
}
