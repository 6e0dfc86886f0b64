package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"unicode/utf8"
)

// hopByHopHeaders are stripped before a request or response crosses the
// proxy boundary, per RFC 7230 §6.1.
var hopByHopHeaders = []string{
	"Connection", "Proxy-Connection", "Keep-Alive",
	"Transfer-Encoding", "Upgrade", "Te", "Trailer",
}

func stripHopByHop(h http.Header) {
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}

// resolveHost derives the destination host (no port) the request targets:
// first from an absolute-URI request line, then from the Host header.
func resolveHost(r *http.Request) string {
	host := r.URL.Host
	if host == "" {
		host = r.Host
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// buildUpstreamURL reconstructs the full upstream URL for r. If the request
// line already carried an absolute URI (the standard forward-proxy form),
// it is used verbatim. Otherwise one is assembled from the Host header and
// the request's path/query, defaulting to https.
func buildUpstreamURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}

	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "https"
	}
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}

	u := fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
	return u
}

// newUpstreamRequest builds the request to send upstream, copying method,
// header (minus hop-by-hop fields), and body.
func newUpstreamRequest(ctx context.Context, method, upstreamURL string, header http.Header, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, upstreamURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = header.Clone()
	stripHopByHop(req.Header)
	req.ContentLength = int64(len(body))
	return req, nil
}

// readCappedBody reads up to MaxBodyBytes+1 bytes of r.Body. If the body
// exceeds the cap, an empty body is returned (bounded to prevent memory
// exhaustion), matching the forward step of the mediation pipeline.
func readCappedBody(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	limited := io.LimitReader(r.Body, MaxBodyBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil
	}
	if len(data) > MaxBodyBytes {
		return nil
	}
	return data
}

// isUTF8 reports whether body is valid UTF-8 text, the gate for whether
// redaction patterns are applied to a response.
func isUTF8(body []byte) bool {
	return utf8.Valid(body)
}
