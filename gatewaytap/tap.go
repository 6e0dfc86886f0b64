// Package gatewaytap mirrors evidence and gateway events to an optional
// remote telemetry collector over a WebSocket connection. It is purely a
// best-effort sink: the appliance's core behavior never depends on it, and
// connection failures are logged, never surfaced to callers.
package gatewaytap

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	eventCapacity = 500
	dialTimeout   = 5 * time.Second
)

// Event is a single telemetry record mirrored to the collector.
type Event struct {
	Timestamp string `json:"ts"`
	Kind      string `json:"kind"`
	SessionID string `json:"session_id,omitempty"`
	Platform  string `json:"platform,omitempty"`
	Summary   string `json:"summary"`
	Raw       []byte `json:"raw_payload,omitempty"`
}

// Tap accepts events for best-effort delivery.
type Tap interface {
	Send(Event)
	Close()
}

// NoopTap discards everything. Used when no collector URL is configured.
type NoopTap struct{}

func (NoopTap) Send(Event) {}
func (NoopTap) Close()     {}

// ring is a capped, thread-safe buffer of the most recent events mirrored,
// independent of whether the WebSocket connection is currently up.
type ring struct {
	mu     sync.Mutex
	events []Event
}

func (r *ring) push(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if len(r.events) > eventCapacity {
		r.events = r.events[len(r.events)-eventCapacity:]
	}
}

func (r *ring) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// WSTap is a Tap backed by an outbound gorilla/websocket connection to a
// collector URL. It keeps its own capped ring of recent events (readable
// whatever the connection state) and writes best-effort: any write error
// logs, drops the frame, and leaves the tap disconnected.
type WSTap struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn

	buf *ring
}

// NewWSTap dials url and returns a WSTap. If the initial dial fails, the tap
// is still returned (disconnected). The tap never redials: while it is
// disconnected, Send only buffers events in the ring.
func NewWSTap(url string) *WSTap {
	t := &WSTap{url: url, buf: &ring{}}
	t.dial()
	return t
}

func (t *WSTap) dial() {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(t.url, nil)
	if err != nil {
		slog.Warn("gateway tap dial failed", "url", t.url, "err", err)
		return
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
}

// Send mirrors e to the collector as a JSON text frame. Failures are
// logged and silently dropped. The write is synchronous on the caller's
// goroutine, and concurrent Sends are serialized, so a slow collector
// delays the caller.
func (t *WSTap) Send(e Event) {
	t.buf.push(e)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		slog.Warn("gateway tap encode failed", "err", err)
		return
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Warn("gateway tap write failed", "err", err)
		t.conn = nil
	}
}

// Recent returns the most recently buffered events, regardless of
// connection state.
func (t *WSTap) Recent() []Event { return t.buf.snapshot() }

// Close tears down the WebSocket connection.
func (t *WSTap) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}
