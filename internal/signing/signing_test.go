package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestSign_KnownVector(t *testing.T) {
	// Independently computed: HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	const want = "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"

	got := Sign("key", []byte("The quick brown fox jumps over the lazy dog"))
	if got != want {
		t.Errorf("Sign = %s, want %s", got, want)
	}
}

func TestSign_MatchesStdlib(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		body   []byte
	}{
		{"basic payload", "whsec_abc123", []byte(`{"event_type":"rating","payload":{"score":5}}`)},
		{"empty body", "secret", []byte{}},
		{"empty secret", "", []byte(`{"x":1}`)},
		{"unicode", "clé-secrète", []byte(`{"name":"café"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Sign(tt.secret, tt.body)

			decoded, err := hex.DecodeString(sig)
			if err != nil {
				t.Fatalf("signature is not valid hex: %v", err)
			}
			if len(decoded) != sha256.Size {
				t.Fatalf("expected %d bytes, got %d", sha256.Size, len(decoded))
			}

			mac := hmac.New(sha256.New, []byte(tt.secret))
			mac.Write(tt.body)
			if want := hex.EncodeToString(mac.Sum(nil)); sig != want {
				t.Errorf("signature mismatch:\n  got:  %s\n  want: %s", sig, want)
			}
		})
	}
}

func TestSign_Deterministic(t *testing.T) {
	body := []byte(`{"event_type":"page_view"}`)

	if Sign("s", body) != Sign("s", body) {
		t.Error("same secret and body must produce the same signature")
	}
}

func TestSign_SingleByteSensitivity(t *testing.T) {
	a := Sign("s", []byte(`{"score":4}`))
	b := Sign("s", []byte(`{"score":5}`))
	if a == b {
		t.Error("changing one byte of the body must change the signature")
	}

	c := Sign("other", []byte(`{"score":4}`))
	if a == c {
		t.Error("different secrets must produce different signatures")
	}
}

func TestVerify(t *testing.T) {
	body := []byte(`{"event_type":"rating","delivery_id":"d-1"}`)
	sig := Sign("whsec_test", body)

	if !Verify("whsec_test", body, sig) {
		t.Error("signature should verify over the exact signed bytes")
	}
	if Verify("whsec_wrong", body, sig) {
		t.Error("wrong secret should not verify")
	}
	if Verify("whsec_test", append(body, ' '), sig) {
		t.Error("modified body should not verify")
	}
	if Verify("whsec_test", body, "not-hex") {
		t.Error("garbage signature should not verify")
	}
}
