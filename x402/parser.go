// Package x402 parses HTTP 402 "payment required" responses into payment
// intents and tracks them in a capped pending queue while they await
// settlement (automatic or human-approved).
package x402

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Intent describes what an upstream 402 response demands.
type Intent struct {
	AmountCents int64  `json:"amount_cents"`
	Recipient   string `json:"recipient"`
	Network     string `json:"network"`
	Resource    string `json:"resource,omitempty"`
}

// paymentRequiredHeader is the header name the wire contract uses to carry
// the JSON-encoded intent.
const paymentRequiredHeader = "payment-required"

// bodyProbe is the minimal shape checked against a 402 response body when
// no header announced the intent.
type bodyProbe struct {
	PaymentRequired bool   `json:"payment_required"`
	AmountCents     int64  `json:"amount_cents"`
	Recipient       string `json:"recipient"`
	Network         string `json:"network"`
	Resource        string `json:"resource,omitempty"`
}

// ParsePaymentRequired implements the precedence of spec.md §4.6:
//  1. A header named "payment-required" (case-insensitive), or any header
//     value containing the literal "402", declares a 402. Its value is
//     parsed as the intent JSON if possible; otherwise a zero-valued intent
//     with network "base" is returned (the amount cannot be auto-settled
//     under any non-trivial cap).
//  2. Otherwise, the body is parsed for payment_required:true and the same
//     fields.
//  3. Otherwise, nil.
func ParsePaymentRequired(header http.Header, body []byte) *Intent {
	declared := false
	var headerValue string

	for name, values := range header {
		if strings.EqualFold(name, paymentRequiredHeader) {
			declared = true
			if len(values) > 0 {
				headerValue = values[0]
			}
		}
		for _, v := range values {
			if strings.Contains(v, "402") {
				declared = true
			}
		}
	}

	if declared {
		if headerValue != "" {
			var intent Intent
			if err := json.Unmarshal([]byte(headerValue), &intent); err == nil {
				return &intent
			}
		}
		return &Intent{Network: "base"}
	}

	var probe bodyProbe
	if err := json.Unmarshal(body, &probe); err == nil && probe.PaymentRequired {
		return &Intent{
			AmountCents: probe.AmountCents,
			Recipient:   probe.Recipient,
			Network:     probe.Network,
			Resource:    probe.Resource,
		}
	}

	return nil
}
