// Package token issues HMAC-signed payload tokens (magic links) and opaque
// random tokens stored only as hashes (refresh tokens).
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// signatureLength is the number of HMAC-SHA256 bytes kept in a token.
const signatureLength = 16

var (
	ErrInvalidToken     = errors.New("token: invalid format")
	ErrSignatureInvalid = errors.New("token: signature mismatch")
	ErrMissingSecret    = errors.New("token: missing secret")
)

// Sign encodes payload as base64url(JSON) "." base64url(HMAC).
func Sign[T any](payload T, secret string) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data) + "." +
		base64.RawURLEncoding.EncodeToString(mac(data, secret)), nil
}

// Parse verifies the signature before decoding the payload.
func Parse[T any](token, secret string) (T, error) {
	var payload T
	if secret == "" {
		return payload, ErrMissingSecret
	}

	encoded, sigEnc, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || sigEnc == "" {
		return payload, ErrInvalidToken
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return payload, ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigEnc)
	if err != nil {
		return payload, ErrInvalidToken
	}

	if subtle.ConstantTimeCompare(sig, mac(data, secret)) != 1 {
		return payload, ErrSignatureInvalid
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, errors.Join(ErrInvalidToken, err)
	}
	return payload, nil
}

func mac(data []byte, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return h.Sum(nil)[:signatureLength]
}
