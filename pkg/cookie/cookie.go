// Package cookie sets plain and HMAC-signed cookies with shared defaults.
package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const minSecretLength = 32

// Manager sets and reads plain and HMAC-signed cookies.
type Manager struct {
	secret   []byte
	defaults Options
}

// New requires a secret of at least 32 bytes.
func New(secret string, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("%w: secret has %d chars, need at least %d", ErrSecretTooShort, len(secret), minSecretLength)
	}

	defaults := applyOptions(Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, opts)

	return &Manager{secret: []byte(secret), defaults: defaults}, nil
}

// NewFromConfig builds a Manager from Config plus extra options.
func NewFromConfig(secret string, cfg Config, opts ...Option) (*Manager, error) {
	configOpts := []Option{WithSecure(cfg.Secure)}
	if cfg.Domain != "" {
		configOpts = append(configOpts, WithDomain(cfg.Domain))
	}
	return New(secret, append(configOpts, opts...)...)
}

func (m *Manager) Set(w http.ResponseWriter, name, value string, opts ...Option) {
	o := applyOptions(m.defaults, opts)
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     o.Path,
		Domain:   o.Domain,
		MaxAge:   o.MaxAge,
		Secure:   o.Secure,
		HttpOnly: o.HttpOnly,
		SameSite: o.SameSite,
	})
}

func (m *Manager) Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrCookieNotFound
		}
		return "", err
	}
	return c.Value, nil
}

func (m *Manager) Delete(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     m.defaults.Path,
		Domain:   m.defaults.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: m.defaults.HttpOnly,
		SameSite: m.defaults.SameSite,
		Secure:   m.defaults.Secure,
	})
}

func (m *Manager) SetSigned(w http.ResponseWriter, name, value string, opts ...Option) {
	m.Set(w, name, m.sign(value), opts...)
}

// GetSigned returns the value of a cookie written by SetSigned, or
// ErrInvalidSignature when it was tampered with.
func (m *Manager) GetSigned(r *http.Request, name string) (string, error) {
	signed, err := m.Get(r, name)
	if err != nil {
		return "", err
	}
	return m.verify(signed)
}

func (m *Manager) sign(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value)) + "." + m.mac([]byte(value))
}

func (m *Manager) verify(signed string) (string, error) {
	encoded, signature, ok := strings.Cut(signed, ".")
	if !ok {
		return "", ErrInvalidFormat
	}
	value, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidFormat
	}
	if subtle.ConstantTimeCompare([]byte(signature), []byte(m.mac(value))) != 1 {
		return "", ErrInvalidSignature
	}
	return string(value), nil
}

func (m *Manager) mac(value []byte) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write(value)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
