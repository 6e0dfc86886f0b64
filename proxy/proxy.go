// Package proxy implements the loopback forward proxy that mediates agent
// traffic: policy admission, MCP guarding, credential injection, 402
// settlement, and output redaction.
package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vault0/vault0/evidence"
	"github.com/vault0/vault0/gatewaytap"
	"github.com/vault0/vault0/policy"
	"github.com/vault0/vault0/vault"
	"github.com/vault0/vault0/wallet"
	"github.com/vault0/vault0/x402"
)

// ListenAddr is the loopback-only address the mediation proxy binds.
const ListenAddr = "127.0.0.1:3840"

// MaxBodyBytes caps how much of a request body is read before forwarding.
// Requests larger than this are forwarded with an empty body.
const MaxBodyBytes = 10 * 1024 * 1024

var (
	ErrAlreadyRunning = errors.New("proxy already running")
	ErrNotRunning     = errors.New("proxy not running")
	ErrBindFailed     = errors.New("proxy failed to bind listen address")
)

// Proxy is the mediation proxy. It is a process-wide singleton in practice;
// each shared resource it touches (vault, policy, evidence, pending queue)
// carries its own lock, and the handler never holds two at once.
type Proxy struct {
	Vault    *vault.Vault
	Policy   *policy.Store
	Evidence *evidence.Log
	Wallet   *wallet.Wallet
	Pending  *x402.PendingQueue
	Tap      gatewaytap.Tap

	client *http.Client

	running atomic.Bool
	mu      sync.Mutex
	server  *http.Server
}

// New wires a Proxy around its collaborators. tap may be nil, in which case
// a NoopTap is used.
func New(v *vault.Vault, p *policy.Store, e *evidence.Log, w *wallet.Wallet, pq *x402.PendingQueue, tap gatewaytap.Tap) *Proxy {
	if tap == nil {
		tap = gatewaytap.NoopTap{}
	}

	// Every evidence push is mirrored to the telemetry tap as it happens,
	// so a configured collector sees the same allowed/blocked/payment
	// trail the ring buffer records. Best-effort: Tap.Send never surfaces
	// an error here, but it runs synchronously inside Evidence.Push.
	e.SetMirror(func(entry evidence.Entry) {
		tap.Send(gatewaytap.Event{
			Timestamp: entry.Timestamp,
			Kind:      string(entry.Kind),
			Summary:   entry.Message,
		})
	})

	return &Proxy{
		Vault:    v,
		Policy:   p,
		Evidence: e,
		Wallet:   w,
		Pending:  pq,
		Tap:      tap,
		client: &http.Client{
			// The proxy is a forward proxy, not a user agent: responses,
			// including redirects, are relayed to the caller as-is.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// IsRunning reports whether the listener is currently accepting connections.
func (p *Proxy) IsRunning() bool {
	return p.running.Load()
}

// Start binds ListenAddr and begins serving. It returns ErrAlreadyRunning if
// called while already running, or ErrBindFailed if the listener cannot be
// created.
func (p *Proxy) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", ListenAddr)
	if err != nil {
		return ErrBindFailed
	}

	p.server = &http.Server{Handler: p}
	p.running.Store(true)

	go func() {
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mediation proxy stopped unexpectedly", "err", err)
		}
		p.running.Store(false)
	}()

	return nil
}

// Stop is advisory: it flips the running flag and asks the server to drain
// in-flight requests on its own time. It does not block waiting for that
// drain to finish, and it returns ErrNotRunning if the proxy is already off.
func (p *Proxy) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() {
		return ErrNotRunning
	}

	srv := p.server
	p.running.Store(false)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("mediation proxy shutdown did not complete cleanly", "err", err)
		}
	}()

	return nil
}
