// Package jwt signs and verifies HS256 tokens on top of golang-jwt and
// extracts them from requests.
package jwt

import (
	"errors"
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// RegisteredClaims is embedded by application claim types.
type RegisteredClaims = gojwt.RegisteredClaims

// NewNumericDate re-exports the time claim constructor.
var NewNumericDate = gojwt.NewNumericDate

// Service signs and verifies tokens with a single HMAC key.
type Service struct {
	signingKey []byte
	parser     *gojwt.Parser
}

// New returns an HS256 service; the key must not be empty.
func New(signingKey []byte) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	return &Service{
		signingKey: signingKey,
		parser:     gojwt.NewParser(gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()})),
	}, nil
}

func NewFromString(signingKey string) (*Service, error) {
	return New([]byte(signingKey))
}

func (s *Service) Generate(claims gojwt.Claims) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse verifies tokenString and decodes it into claims, which must be a pointer.
func (s *Service) Parse(tokenString string, claims gojwt.Claims) error {
	if tokenString == "" {
		return ErrInvalidToken
	}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(*gojwt.Token) (any, error) {
		return s.signingKey, nil
	})
	switch {
	case errors.Is(err, gojwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, gojwt.ErrTokenUnverifiable):
		return ErrUnexpectedSigningMethod
	case err != nil:
		return errors.Join(ErrInvalidToken, err)
	case !token.Valid:
		return ErrInvalidToken
	}
	return nil
}
