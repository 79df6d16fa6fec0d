package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const MethodS256 = "S256"

// verifierLen is the number of raw random bytes behind a verifier or state token.
const verifierLen = 32

type Source struct{}

func (s Source) randURLString(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)

	return base64.RawURLEncoding.EncodeToString(b)
}

// Verifier returns a fresh PKCE code verifier.
func (s Source) Verifier() string {
	return s.randURLString(verifierLen)
}

// State returns a fresh anti-CSRF state token, independent from any verifier.
func (s Source) State() string {
	return s.randURLString(verifierLen)
}

// Challenge derives the S256 code challenge for a verifier. The digest is
// computed over the verifier's byte encoding, which is what the provider
// recomputes when the code is exchanged.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))

	return base64.RawURLEncoding.EncodeToString(sum[:])
}
