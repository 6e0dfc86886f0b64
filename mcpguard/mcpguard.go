// Package mcpguard implements the coarse, substring-based classifier and
// SSRF check applied to "MCP-flavored" requests. It is defense-in-depth,
// not policy — the substring matching is deliberate, not an oversight.
package mcpguard

import (
	"net"
	"strings"
)

// localAllowlist is the fixed set of origins MCP requests may target.
var localAllowlist = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
}

// IsMCPRequest classifies host/path as MCP-flavored if either contains the
// substring "mcp" (case-insensitive).
func IsMCPRequest(host, path string) bool {
	return strings.Contains(strings.ToLower(host), "mcp") || strings.Contains(strings.ToLower(path), "mcp")
}

// OriginAllowed reports whether host (with or without a port) is in the
// fixed MCP allowlist.
func OriginAllowed(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	_, ok := localAllowlist[strings.ToLower(host)]
	return ok
}

// TokenPassthroughDisabled is always true: MCP requests must never forward
// an incoming Authorization header upstream.
func TokenPassthroughDisabled() bool { return true }

// WouldBeSSRF reports whether authority (host, optionally with a port) is a
// literal IP in a private, loopback, link-local, broadcast, or 169.0.0.0/8
// IPv4 range, or an IPv6 loopback or multicast address. Host names are not
// resolved and are never flagged. Textual localhost/127.0.0.1 are
// explicitly NOT flagged — they are the allowlisted MCP targets.
func WouldBeSSRF(authority string) bool {
	host := authority
	if h, _, err := net.SplitHostPort(authority); err == nil {
		host = h
	}

	if host == "localhost" || host == "127.0.0.1" {
		// Explicitly allowlisted MCP targets, not SSRF — even though
		// 127.0.0.1 is itself a loopback address.
		return false
	}

	ip := net.ParseIP(host)
	if ip == nil {
		// Not a literal IP (e.g. a DNS name other than "localhost"): not
		// classified as SSRF here.
		return false
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.IsPrivate() || v4.IsLoopback() || v4.IsLinkLocalUnicast() || isBroadcast(v4) || v4[0] == 169
	}
	return ip.IsLoopback() || ip.IsMulticast()
}

func isBroadcast(v4 net.IP) bool {
	return v4.Equal(net.IPv4bcast)
}
