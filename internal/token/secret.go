// ABOUTME: Webhook secret generation, parsing and keyed hashing
// ABOUTME: Secrets carry their token ID so verification is one indexed lookup plus a constant-time compare

package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Secret wire format: whk_<token_id>_<secret>. The token ID locates the
// credential row; the trailing part is the 256-bit random secret whose
// keyed hash is stored.
const secretPrefix = "whk"

const (
	tokenIDBytes = 8
	secretBytes  = 32
	saltBytes    = 16
)

// NewSecret generates a fresh credential: a token ID and the full
// plaintext secret in wire format. The plaintext is returned exactly
// once; callers must hash it before storage.
func NewSecret() (tokenID, plaintext string, err error) {
	idb := make([]byte, tokenIDBytes)
	if _, err := rand.Read(idb); err != nil {
		return "", "", fmt.Errorf("generating token id: %w", err)
	}
	tokenID = hex.EncodeToString(idb)

	sb := make([]byte, secretBytes)
	if _, err := rand.Read(sb); err != nil {
		return "", "", fmt.Errorf("generating secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(sb)

	return tokenID, secretPrefix + "_" + tokenID + "_" + secret, nil
}

// NewSalt generates a per-credential salt, hex encoded.
func NewSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ParseSecret splits a wire-format secret into its token ID and secret
// parts. Returns ok=false for anything that does not match the format;
// callers must treat that as an invalid token without a lookup.
func ParseSecret(s string) (tokenID, secret string, ok bool) {
	parts := strings.SplitN(s, "_", 3)
	if len(parts) != 3 || parts[0] != secretPrefix {
		return "", "", false
	}
	if len(parts[1]) != tokenIDBytes*2 || parts[2] == "" {
		return "", "", false
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// HashSecret computes the stored digest for a secret: HMAC-SHA256 keyed
// with the gateway-wide pepper over salt || secret. Deterministic so the
// validator can recompute it, keyed so a leaked database alone cannot be
// brute-forced offline against the token format.
func HashSecret(pepper []byte, salt, secret string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(salt))
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySecret recomputes the digest and compares it in constant time.
func VerifySecret(pepper []byte, salt, secret, wantHash string) bool {
	got := HashSecret(pepper, salt, secret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(wantHash)) == 1
}

// DummyVerify burns the same work as a real verification. Used when the
// token ID resolves to no credential, so response timing does not
// distinguish "no such token" from "wrong secret".
func DummyVerify(pepper []byte, secret string) {
	const dummySalt = "0000000000000000000000000000000000000000"
	got := HashSecret(pepper, dummySalt, secret)
	subtle.ConstantTimeCompare([]byte(got), []byte(got))
}
