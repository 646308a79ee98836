package token

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/blake2b"
)

// Random returns n random bytes encoded as base64url.
func Random(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hash returns the BLAKE2b-256 digest of raw. Opaque tokens are stored
// only in this form.
func Hash(raw string) []byte {
	sum := blake2b.Sum256([]byte(raw))
	return sum[:]
}
