package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAddLockUnlockGetSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.enc")
	v := New(path)

	require.False(t, v.Exists())
	require.NoError(t, v.Create("correct horse battery"))
	require.True(t, v.Exists())
	require.True(t, v.IsUnlocked())

	require.NoError(t, v.AddEntry("openai", "sk-LIVEKEYVALUE", "openai"))

	v.Lock()
	require.False(t, v.IsUnlocked())

	_, err := v.GetSecret("openai")
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, v.Unlock("correct horse battery"))
	got, err := v.GetSecret("openai")
	require.NoError(t, err)
	require.Equal(t, "sk-LIVEKEYVALUE", got)
}

func TestCreateRejectsWeakPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.enc")
	v := New(path)
	err := v.Create("short")
	require.ErrorIs(t, err, ErrWeakPassphrase)
	require.False(t, v.Exists())
}

func TestUnlockWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.enc")
	v := New(path)
	require.NoError(t, v.Create("correct horse battery"))
	v.Lock()

	v2 := New(path)
	err := v2.Unlock("totally different passphrase")
	require.ErrorIs(t, err, ErrWrongPassphraseOrCorrupt)
}

func TestAddEntryUsesFreshNonceEachWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.enc")
	v := New(path)
	require.NoError(t, v.Create("correct horse battery"))

	require.NoError(t, v.AddEntry("a", "v1", "p"))
	hdr1, _, err := readSealedFile(path)
	require.NoError(t, err)

	require.NoError(t, v.AddEntry("b", "v2", "p"))
	hdr2, _, err := readSealedFile(path)
	require.NoError(t, err)

	require.NotEqual(t, hdr1.NonceHex, hdr2.NonceHex)
	require.Equal(t, hdr1.SaltHex, hdr2.SaltHex)
}

func TestListEntriesPreviewAndIdempotence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.enc")
	v := New(path)
	require.NoError(t, v.Create("correct horse battery"))
	require.NoError(t, v.AddEntry("short", "abcdef", "p"))      // len 6 -> ****
	require.NoError(t, v.AddEntry("long", "sk-ABCDEFGHIJ", "p")) // len > 6

	list1 := v.ListEntries()
	list2 := v.ListEntries()
	require.ElementsMatch(t, list1, list2)

	byAlias := map[string]EntrySummary{}
	for _, e := range list1 {
		byAlias[e.Alias] = e
	}
	require.Equal(t, "****", byAlias["short"].Preview)
	require.Equal(t, "sk-...HIJ", byAlias["long"].Preview)
}

func TestDeleteEntryIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.enc")
	v := New(path)
	require.NoError(t, v.Create("correct horse battery"))
	require.NoError(t, v.AddEntry("a", "v", "p"))

	require.NoError(t, v.DeleteEntry("a"))
	require.NoError(t, v.DeleteEntry("a")) // idempotent, no error

	_, err := v.GetSecret("a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteFileLocksSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.enc")
	v := New(path)
	require.NoError(t, v.Create("correct horse battery"))
	require.NoError(t, v.DeleteFile())
	require.False(t, v.Exists())
	require.False(t, v.IsUnlocked())
}

func TestEncryptWithVaultKeyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.enc")
	v := New(path)
	require.NoError(t, v.Create("correct horse battery"))

	out, err := v.EncryptWithVaultKey([]byte("hello backup"))
	require.NoError(t, err)
	require.Greater(t, len(out), 12)

	nonce, ciphertext := out[:12], out[12:]
	block, err := aes.NewCipher(v.key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	require.NoError(t, err)
	require.Equal(t, "hello backup", string(plaintext))
}
