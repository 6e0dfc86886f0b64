package proxy

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vault0/vault0/evidence"
	"github.com/vault0/vault0/policy"
	"github.com/vault0/vault0/vault"
	"github.com/vault0/vault0/wallet"
	"github.com/vault0/vault0/x402"
)

func newTestProxy(t *testing.T, pol policy.Policy) (*Proxy, *vault.Vault, *wallet.Wallet) {
	t.Helper()
	dir := t.TempDir()

	v := vault.New(filepath.Join(dir, "vault.enc"))
	require.NoError(t, v.Create("a very strong passphrase"))

	store, err := policy.NewStore("")
	require.NoError(t, err)
	store.Set(pol)

	w := wallet.New(filepath.Join(dir, "wallet.json"), wallet.NewMemoryStore())

	p := New(v, store, evidence.NewLog(), w, x402.NewPendingQueue(), nil)
	return p, v, w
}

// doRequest builds an origin-form request (path only, Host header set
// separately) so policy/MCP checks see the fixed hostname under test rather
// than an ephemeral httptest server address.
func doRequest(p *Proxy, method, host, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Host = host
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)
	return rec
}

func TestAllowAndInject(t *testing.T) {
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-LIVE", r.Header.Get("Authorization"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	pol := policy.Default()
	pol.AllowDomains = []string{"api.openai.com"}
	p, v, _ := newTestProxy(t, pol)
	require.NoError(t, v.AddEntry("openai", "sk-LIVE", "openai"))

	// The origin-form request below is forwarded to https://api.openai.com/;
	// route that connection to the mock upstream instead.
	p.client.Transport = &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, network, upstream.Listener.Addr().String())
		},
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	rec := doRequest(p, http.MethodPost, "api.openai.com", "/", nil, map[string]string{
		"Authorization": "Bearer CLIENT_KEY",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok":true`)

	stats := p.Evidence.GetStats()
	require.Equal(t, 1, stats.Allowed)
}

func TestBlockByPolicy(t *testing.T) {
	pol := policy.Default()
	pol.AllowDomains = []string{"api.openai.com"}
	p, _, _ := newTestProxy(t, pol)

	rec := doRequest(p, http.MethodGet, "evil.example", "/", nil, nil)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "domain not in allow list")

	stats := p.Evidence.GetStats()
	require.Equal(t, 1, stats.Blocked)
}

func TestSSRFViaMCP(t *testing.T) {
	pol := policy.Default()
	pol.AllowDomains = nil
	p, _, _ := newTestProxy(t, pol)

	rec := doRequest(p, http.MethodGet, "mcp.local", "/mcp", nil, nil)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "MCP server not in allowlist")
}

func TestMCPTokenStrip(t *testing.T) {
	pol := policy.Default()
	pol.AllowDomains = nil
	p, _, _ := newTestProxy(t, pol)

	rec := doRequest(p, http.MethodGet, "localhost", "/mcp", nil, map[string]string{
		"Authorization": "Bearer x",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Token passthrough disabled for MCP")
}

func TestAutoSettle402(t *testing.T) {
	attempts := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if r.Header.Get("x-payment") == "" {
			w.Header().Set("payment-required", `{"amount_cents":200,"recipient":"0x0000000000000000000000000000000000000001","network":"base"}`)
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"settled":true}`))
	}))
	defer upstream.Close()

	capCents := int64(500)
	pol := policy.Default()
	pol.AllowDomains = nil
	pol.AutoSettle402 = true
	pol.SpendCapCents = &capCents

	p, _, w := newTestProxy(t, pol)
	_, _, err := w.CreateWallet()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, upstream.URL, nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "settled")
	require.Equal(t, 2, attempts)

	stats := p.Evidence.GetStats()
	require.Equal(t, 2, stats.Payment)
}

func TestRedaction(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"log":"sk-ABCDEFGHIJKLMNOPQRSTUV"}`))
	}))
	defer upstream.Close()

	pol := policy.Default()
	pol.AllowDomains = nil
	p, _, _ := newTestProxy(t, pol)

	req := httptest.NewRequest(http.MethodGet, upstream.URL, nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `{"log":"[REDACTED]"}`, rec.Body.String())
}

func TestStartStopLifecycle(t *testing.T) {
	p, _, _ := newTestProxy(t, policy.Default())
	require.NoError(t, p.Start())
	require.True(t, p.IsRunning())

	require.ErrorIs(t, p.Start(), ErrAlreadyRunning)

	require.NoError(t, p.Stop())
	require.ErrorIs(t, p.Stop(), ErrNotRunning)
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
