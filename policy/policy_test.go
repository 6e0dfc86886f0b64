package policy

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultHardenedPolicy(t *testing.T) {
	p := Default()
	require.Contains(t, p.AllowDomains, "api.openai.com")
	require.Contains(t, p.AllowDomains, "api.anthropic.com")
	require.Contains(t, p.BlockDomains, "169.254.169.254")
	require.NotNil(t, p.SpendCapCents)
	require.EqualValues(t, 1000, *p.SpendCapCents)
	require.False(t, p.AutoSettle402)
}

func TestAdmitAllowList(t *testing.T) {
	p := Default()

	allowed, reason := p.Admit("api.openai.com")
	require.True(t, allowed)
	require.Empty(t, reason)

	allowed, reason = p.Admit("evil.example")
	require.False(t, allowed)
	require.Equal(t, "domain not in allow list", reason)
}

func TestAdmitBlockList(t *testing.T) {
	p := Policy{BlockDomains: []string{"169.254.169.254"}}
	allowed, reason := p.Admit("169.254.169.254")
	require.False(t, allowed)
	require.Equal(t, "domain blocked by policy", reason)

	allowed, _ = p.Admit("example.com")
	require.True(t, allowed)
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	s, err := NewStore(path)
	require.NoError(t, err)

	p := Default()
	p.AutoSettle402 = true
	s.Set(p)
	require.NoError(t, s.Save())

	s2, err := NewStore(path)
	require.NoError(t, err)
	require.True(t, s2.Snapshot().AutoSettle402)
}

func TestNewStoreNoPathUsesDefault(t *testing.T) {
	s, err := NewStore("")
	require.NoError(t, err)
	require.Equal(t, Default(), s.Snapshot())
}
