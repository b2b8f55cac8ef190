package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Verification failure reasons surfaced in logs and stored on rejected events.
const (
	ReasonMissingSecret  = "missing_secret"
	ReasonMissingHeader  = "missing_header"
	ReasonLengthMismatch = "length_mismatch"
	ReasonMismatch       = "mismatch"
)

const signaturePrefix = "sha256="

// VerifyResult reports the outcome of webhook signature verification.
type VerifyResult struct {
	Valid  bool
	Reason string
}

// SignatureVerifier checks provider webhook signatures. The provider signs
// the raw request body with HMAC-SHA256 and sends the hex digest, optionally
// prefixed with "sha256=".
type SignatureVerifier struct {
	secret string
}

// NewSignatureVerifier returns a verifier bound to the shared secret.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: strings.TrimSpace(secret)}
}

// Verify checks the signature header against the raw body. A missing secret
// fails closed: no delivery is accepted when verification cannot run.
func (v *SignatureVerifier) Verify(body []byte, header string) VerifyResult {
	if v == nil || v.secret == "" {
		return VerifyResult{Reason: ReasonMissingSecret}
	}

	provided := strings.TrimSpace(header)
	if provided == "" {
		return VerifyResult{Reason: ReasonMissingHeader}
	}
	provided = strings.TrimPrefix(provided, signaturePrefix)

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	// Providers send the digest hex-encoded; fall back to comparing the raw
	// header bytes when it does not decode.
	decoded, err := hex.DecodeString(strings.ToLower(provided))
	if err != nil {
		expectedHex := hex.EncodeToString(expected)
		if len(provided) != len(expectedHex) {
			return VerifyResult{Reason: ReasonLengthMismatch}
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(expectedHex)) != 1 {
			return VerifyResult{Reason: ReasonMismatch}
		}
		return VerifyResult{Valid: true}
	}

	if len(decoded) != len(expected) {
		return VerifyResult{Reason: ReasonLengthMismatch}
	}
	if !hmac.Equal(decoded, expected) {
		return VerifyResult{Reason: ReasonMismatch}
	}
	return VerifyResult{Valid: true}
}
