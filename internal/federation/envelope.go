// Package federation implements the mesh hub's federation bridge (C8):
// envelope signing/verification and inbound/outbound traffic between hubs.
package federation

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the wire format exchanged between hubs (spec §4.8). JSON tags
// use compact encoding (no indentation) so the signature is computed over a
// bit-stable representation.
type Envelope struct {
	ID               string                 `json:"id"`
	From             string                 `json:"from"`
	To               string                 `json:"to"`
	Type             string                 `json:"type"`
	Payload          map[string]interface{} `json:"payload"`
	Timestamp        string                 `json:"timestamp,omitempty"`
	RequiresResponse bool                   `json:"requires_response"`
}

// marshalCompact renders the envelope as JSON with no extraneous whitespace
// so both sides of a federation link compute the signature over identical
// bytes.
func marshalCompact(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Sign computes the HMAC-SHA256 signature of raw over secret, formatted as
// the "X-Hub-Signature-256" header value (spec §4.8). Returns "" if secret
// is empty (unsigned, dev-mode).
func Sign(secret string, raw []byte) string {
	if secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifyOptions controls how an inbound signature is validated.
type VerifyOptions struct {
	Secret   string
	Required bool // false in dev environments or when FEDERATION_HMAC_REQUIRED=false
}

// Verify validates an inbound request's signature header against raw body
// bytes:
//   - not required, no secret configured: accept unsigned (dev mode)
//   - not required, secret configured, no header: accept (optional)
//   - required: secret and header must both be present and match
func Verify(opts VerifyOptions, raw []byte, headerValue string) bool {
	if !opts.Required {
		if opts.Secret == "" {
			return true
		}
		if headerValue == "" {
			return true
		}
	} else if opts.Secret == "" || headerValue == "" {
		return false
	}

	if !strings.HasPrefix(headerValue, "sha256=") {
		return false
	}
	sentHex := strings.TrimSpace(strings.TrimPrefix(headerValue, "sha256="))

	mac := hmac.New(sha256.New, []byte(opts.Secret))
	mac.Write(raw)
	expectedHex := hex.EncodeToString(mac.Sum(nil))

	// Compare the hex digests directly (constant-time), mirroring
	// hmac.compare_digest(sent_hex, expected_hex) in the original client.
	return hmac.Equal([]byte(sentHex), []byte(expectedHex))
}

// SplitAddress splits "name@domain" into its parts.
func SplitAddress(address string) (name, domain string, ok bool) {
	idx := strings.LastIndex(address, "@")
	if idx < 0 {
		return "", "", false
	}
	return address[:idx], address[idx+1:], true
}

// FormatAddress joins name and domain into "name@domain".
func FormatAddress(name, domain string) string {
	return fmt.Sprintf("%s@%s", name, domain)
}
