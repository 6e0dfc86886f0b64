package proxy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/vault0/vault0/evidence"
	"github.com/vault0/vault0/mcpguard"
	"github.com/vault0/vault0/x402"
)

// paymentHeaderOut is the header the proxy sets on a retried request once a
// payment authorization has been signed.
const paymentHeaderOut = "x-payment"

// ServeHTTP implements the full per-request mediation pipeline: host
// resolution, policy admission, the MCP guard, credential injection, body
// capture, forwarding, 402 settlement, redaction, and evidence logging.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host := resolveHost(r)

	if denied, reason := p.admitPolicy(host); denied {
		p.deny(w, http.StatusForbidden, "Vault-0 policy denied: "+reason, reason)
		return
	}

	if mcpguard.IsMCPRequest(host, r.URL.Path) {
		if !mcpguard.OriginAllowed(host) {
			p.deny(w, http.StatusForbidden, "MCP server not in allowlist", "MCP server not in allowlist")
			return
		}
		if mcpguard.WouldBeSSRF(host) {
			p.deny(w, http.StatusForbidden, "MCP server not in allowlist", "SSRF target blocked")
			return
		}
		if r.Header.Get("Authorization") != "" {
			p.deny(w, http.StatusBadRequest, "Token passthrough disabled for MCP", "Token passthrough disabled for MCP")
			return
		}
	}

	p.injectCredential(r, host)

	body := readCappedBody(r)
	upstreamURL := buildUpstreamURL(r)

	status, respHeader, respBody, err := p.forward(r.Context(), r.Method, upstreamURL, r.Header, body)
	if err != nil {
		p.Evidence.Push(evidence.KindError, fmt.Sprintf("upstream transport error: %s %s: %v", r.Method, upstreamURL, err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	if status == http.StatusPaymentRequired {
		status, respHeader, respBody = p.handle402(r, upstreamURL, body, respHeader, respBody)
	} else {
		p.Evidence.Push(evidence.KindAllowed, fmt.Sprintf("%s %s", r.Method, upstreamURL))
	}

	respBody = p.redact(respBody)
	writeResponse(w, status, respHeader, respBody)
}

func (p *Proxy) admitPolicy(host string) (denied bool, reason string) {
	allowed, why := p.Policy.Snapshot().Admit(host)
	if !allowed {
		return true, why
	}
	return false, ""
}

func (p *Proxy) deny(w http.ResponseWriter, status int, body, evidenceMsg string) {
	p.Evidence.Push(evidence.KindBlocked, evidenceMsg)
	http.Error(w, body, status)
}

// injectCredential substitutes the vault-resident credential for the
// host-mapped alias, dropping whatever Authorization the client sent.
func (p *Proxy) injectCredential(r *http.Request, host string) {
	alias := aliasForHost(host)
	if alias == "" {
		return
	}
	r.Header.Del("Authorization")

	secret, err := p.Vault.GetSecret(alias)
	if err != nil {
		// No credential available for this alias: the client's header was
		// already stripped above, so the request simply proceeds without one.
		return
	}
	r.Header.Set("Authorization", "Bearer "+secret)
}

// aliasForHost implements the wired host→alias mapping: *openai.com* →
// openai, *anthropic.com* → anthropic, anything else → no injection.
func aliasForHost(host string) string {
	lower := strings.ToLower(host)
	switch {
	case strings.Contains(lower, "openai.com"):
		return "openai"
	case strings.Contains(lower, "anthropic.com"):
		return "anthropic"
	default:
		return ""
	}
}

// forward sends one request upstream and returns its status, header, and
// fully-read body.
func (p *Proxy) forward(ctx context.Context, method, upstreamURL string, header http.Header, body []byte) (int, http.Header, []byte, error) {
	req, err := newUpstreamRequest(ctx, method, upstreamURL, header, body)
	if err != nil {
		return 0, nil, nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}

	respHeader := resp.Header.Clone()
	stripHopByHop(respHeader)
	return resp.StatusCode, respHeader, respBody, nil
}

// handle402 implements the 402 settlement branch of the pipeline: parse the
// intent, record it as pending, and if auto-settlement applies, sign and
// retry. On any failure along the settlement path, the original 402
// response is returned unchanged.
func (p *Proxy) handle402(r *http.Request, upstreamURL string, reqBody []byte, header http.Header, body []byte) (int, http.Header, []byte) {
	intent := x402.ParsePaymentRequired(header, body)
	if intent == nil {
		intent = &x402.Intent{Network: "base"}
	}

	id := p.Pending.RecordPending(*intent)
	p.Evidence.Push(evidence.KindPayment, fmt.Sprintf("payment pending %d cents to %s [%s]", intent.AmountCents, intent.Recipient, id))

	snapshot := p.Policy.Snapshot()
	if !snapshot.AutoSettle402 || p.Wallet == nil {
		return http.StatusPaymentRequired, header, body
	}
	if snapshot.SpendCapCents == nil || intent.AmountCents > *snapshot.SpendCapCents {
		return http.StatusPaymentRequired, header, body
	}

	signature, err := p.Wallet.SignX402Payment(intent.AmountCents, intent.Recipient, intent.Network)
	if err != nil {
		return http.StatusPaymentRequired, header, body
	}

	paymentHeader, err := encodePaymentHeader(signature, *intent)
	if err != nil {
		return http.StatusPaymentRequired, header, body
	}

	retryHeader := r.Header.Clone()
	retryHeader.Set(paymentHeaderOut, paymentHeader)

	status, retryRespHeader, retryRespBody, err := p.forward(r.Context(), r.Method, upstreamURL, retryHeader, reqBody)
	if err != nil || status < 200 || status >= 300 {
		return http.StatusPaymentRequired, header, body
	}

	p.Evidence.Push(evidence.KindPayment, fmt.Sprintf("payment settled %d cents to %s [%s]", intent.AmountCents, intent.Recipient, id))
	return status, retryRespHeader, retryRespBody
}

type paymentAuthorization struct {
	Scheme      string `json:"scheme"`
	Signature   string `json:"signature"`
	AmountCents int64  `json:"amount_cents"`
	Recipient   string `json:"recipient"`
	Network     string `json:"network"`
}

func encodePaymentHeader(signature string, intent x402.Intent) (string, error) {
	auth := paymentAuthorization{
		Scheme:      "evm-eip3009",
		Signature:   signature,
		AmountCents: intent.AmountCents,
		Recipient:   intent.Recipient,
		Network:     intent.Network,
	}
	data, err := json.Marshal(auth)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// redact replaces every policy redact pattern match in body with
// "[REDACTED]". Non-UTF-8 bodies pass through unchanged.
func (p *Proxy) redact(body []byte) []byte {
	if !isUTF8(body) {
		return body
	}
	snapshot := p.Policy.Snapshot()
	text := string(body)
	for _, pattern := range snapshot.OutputRedactPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, "[REDACTED]")
	}
	return []byte(text)
}

func writeResponse(w http.ResponseWriter, status int, header http.Header, body []byte) {
	dst := w.Header()
	for k, v := range header {
		dst[k] = v
	}
	dst.Del("Content-Length")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
