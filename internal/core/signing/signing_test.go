package signing

import (
	"strings"
	"testing"
)

func TestSHA256Hex_KnownVector(t *testing.T) {
	got := SHA256Hex([]byte(""))
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Fatalf("SHA256Hex(\"\") = %s, want %s", got, want)
	}
}

func TestHMACSHA256Hex_KnownVector(t *testing.T) {
	// RFC 4231 test case 2
	got := HMACSHA256Hex("Jefe", "what do ya want for nothing?")
	want := "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843"
	if got != want {
		t.Fatalf("HMACSHA256Hex = %s, want %s", got, want)
	}
}

func TestTimingSafeEqualHex(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"abcd", "abcd", true},
		{"abcd", "abce", false},
		{"abcd", "abc", false},
		{"", "", true},
		{"ABCD", "abcd", false},
	}
	for _, c := range cases {
		if got := TimingSafeEqualHex(c.a, c.b); got != c.want {
			t.Fatalf("TimingSafeEqualHex(%q,%q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestCanonicalString_Layout(t *testing.T) {
	got := CanonicalString("/api/v1/imports/callback", 1757512800, "n0nce-n0nce-n0nce", "deadbeef")
	want := "POST\n/api/v1/imports/callback\n1757512800\nn0nce-n0nce-n0nce\ndeadbeef"
	if got != want {
		t.Fatalf("CanonicalString = %q, want %q", got, want)
	}
}

func TestSignVerify_RoundTrip(t *testing.T) {
	const (
		secret = "s3cret"
		path   = "/api/v1/imports/callback"
		ts     = int64(1757512800)
		nonce  = "0123456789abcdef0123"
	)
	body := []byte(`{"kind":"ack","batchId":"b1"}`)

	sig, bodyHash := Sign(secret, path, ts, nonce, body)
	if bodyHash != SHA256Hex(body) {
		t.Fatalf("body hash mismatch")
	}
	if !Verify(secret, path, ts, nonce, body, sig) {
		t.Fatalf("Verify(Sign()) = false")
	}
}

func flipBit(s string, i int) string {
	b := []byte(s)
	b[i] ^= 0x01
	return string(b)
}

func TestVerify_SingleBitFlipsReject(t *testing.T) {
	const (
		secret = "s3cret"
		path   = "/api/v1/imports/callback"
		ts     = int64(1757512800)
		nonce  = "0123456789abcdef0123"
	)
	body := []byte(`{"kind":"rows","batchId":"b1"}`)
	sig, _ := Sign(secret, path, ts, nonce, body)

	for i := range sig {
		if Verify(secret, path, ts, nonce, body, flipBit(sig, i)) {
			t.Fatalf("signature bit flip at %d accepted", i)
		}
	}
	for i := range nonce {
		if Verify(secret, path, ts, flipBit(nonce, i), body, sig) {
			t.Fatalf("nonce bit flip at %d accepted", i)
		}
	}
	for bit := 0; bit < 32; bit++ {
		if Verify(secret, path, ts^(1<<bit), nonce, body, sig) {
			t.Fatalf("timestamp bit flip %d accepted", bit)
		}
	}
	for i := range body {
		if Verify(secret, path, ts, nonce, []byte(flipBit(string(body), i)), sig) {
			t.Fatalf("body bit flip at %d accepted", i)
		}
	}
	if Verify("other", path, ts, nonce, body, sig) {
		t.Fatalf("wrong secret accepted")
	}
	if Verify(secret, strings.TrimSuffix(path, "k"), ts, nonce, body, sig) {
		t.Fatalf("different path accepted")
	}
}
