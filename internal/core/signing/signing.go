// Package signing implements the HMAC-SHA256 request signing scheme shared by
// the import worker dispatcher (signer) and the callback authenticator (verifier)
//
// Signing string layout, one field per line:
//
//	POST
//	<path>
//	<unix seconds>
//	<nonce>
//	<sha256 hex of the raw body>
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
)

// Header names carried by every signed request
const (
	HeaderTimestamp = "x-import-ts"
	HeaderNonce     = "x-import-nonce"
	HeaderSignature = "x-import-signature"
)

// Method is the only method covered by the scheme
const Method = "POST"

// SHA256Hex returns the lowercase hex sha256 digest of b
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HMACSHA256Hex returns the lowercase hex HMAC-SHA256 of message under secret
func HMACSHA256Hex(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// TimingSafeEqualHex compares two hex strings in constant time with respect to content.
// Lengths are public, so a length mismatch returns early
func TimingSafeEqualHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// CanonicalString builds the exact string that is signed
func CanonicalString(path string, ts int64, nonce, bodyHash string) string {
	var b strings.Builder
	b.Grow(len(Method) + len(path) + len(nonce) + len(bodyHash) + 24)
	b.WriteString(Method)
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(ts, 10))
	b.WriteByte('\n')
	b.WriteString(nonce)
	b.WriteByte('\n')
	b.WriteString(bodyHash)
	return b.String()
}

// Sign returns the signature and body hash for a request
func Sign(secret, path string, ts int64, nonce string, body []byte) (signature, bodyHash string) {
	bodyHash = SHA256Hex(body)
	return HMACSHA256Hex(secret, CanonicalString(path, ts, nonce, bodyHash)), bodyHash
}

// Verify reports whether signature matches the request fields under secret
func Verify(secret, path string, ts int64, nonce string, body []byte, signature string) bool {
	want, _ := Sign(secret, path, ts, nonce, body)
	return TimingSafeEqualHex(want, signature)
}
