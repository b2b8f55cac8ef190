package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event_id":"evt_1","amount":"100.00"}`)
	v := NewSignatureVerifier(secret)

	res := v.Verify(body, sign(secret, body))
	if !res.Valid {
		t.Fatalf("expected valid signature, got reason %q", res.Reason)
	}

	res = v.Verify(body, "sha256="+sign(secret, body))
	if !res.Valid {
		t.Fatalf("expected valid prefixed signature, got reason %q", res.Reason)
	}
}

func TestVerifyIsCaseInsensitiveOnHex(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`payload`)
	v := NewSignatureVerifier(secret)

	upper := toUpperHex(sign(secret, body))
	if res := v.Verify(body, upper); !res.Valid {
		t.Fatalf("expected uppercase hex to verify, got reason %q", res.Reason)
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	body := []byte(`payload`)

	v := NewSignatureVerifier("")
	if res := v.Verify(body, sign("whsec_test", body)); res.Valid || res.Reason != ReasonMissingSecret {
		t.Fatalf("expected missing_secret, got %+v", res)
	}

	v = NewSignatureVerifier("whsec_test")
	if res := v.Verify(body, ""); res.Valid || res.Reason != ReasonMissingHeader {
		t.Fatalf("expected missing_header, got %+v", res)
	}
	if res := v.Verify(body, "sha256=abcd"); res.Valid || res.Reason != ReasonLengthMismatch {
		t.Fatalf("expected length_mismatch, got %+v", res)
	}
	if res := v.Verify(body, sign("other-secret", body)); res.Valid || res.Reason != ReasonMismatch {
		t.Fatalf("expected mismatch, got %+v", res)
	}
}

func TestVerifyTamperedBody(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"amount":"100.00"}`)
	v := NewSignatureVerifier(secret)

	sig := sign(secret, body)
	tampered := []byte(`{"amount":"999.00"}`)
	if res := v.Verify(tampered, sig); res.Valid {
		t.Fatalf("tampered body must not verify")
	}
}

func toUpperHex(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}
