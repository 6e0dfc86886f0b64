package mcpguard

import "testing"

func TestIsMCPRequest(t *testing.T) {
	cases := []struct {
		host, path string
		want       bool
	}{
		{"mcp.local", "/", true},
		{"example.com", "/mcp/tools", true},
		{"EXAMPLE.COM", "/MCP", true},
		{"api.openai.com", "/v1/chat", false},
	}
	for _, c := range cases {
		if got := IsMCPRequest(c.host, c.path); got != c.want {
			t.Errorf("IsMCPRequest(%q,%q) = %v, want %v", c.host, c.path, got, c.want)
		}
	}
}

func TestOriginAllowed(t *testing.T) {
	if !OriginAllowed("localhost") {
		t.Error("localhost should be allowed")
	}
	if !OriginAllowed("127.0.0.1:8080") {
		t.Error("127.0.0.1:8080 should be allowed (port stripped)")
	}
	if OriginAllowed("mcp.local") {
		t.Error("mcp.local should not be allowed")
	}
}

func TestTokenPassthroughDisabled(t *testing.T) {
	if !TokenPassthroughDisabled() {
		t.Error("token passthrough must always be disabled")
	}
}

func TestWouldBeSSRF(t *testing.T) {
	cases := []struct {
		authority string
		want      bool
	}{
		{"127.0.0.1", false},
		{"localhost", false},
		{"10.0.0.5", true},
		{"169.254.169.254", true},
		{"192.168.1.1", true},
		{"8.8.8.8", false},
		{"127.0.0.2", true},
		{"::1", true},
		{"169.1.2.3", true},
		{"169.254.1.1", true},
		{"169.0.0.1", true},
	}
	for _, c := range cases {
		if got := WouldBeSSRF(c.authority); got != c.want {
			t.Errorf("WouldBeSSRF(%q) = %v, want %v", c.authority, got, c.want)
		}
	}
}
