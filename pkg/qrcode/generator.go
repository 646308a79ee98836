// Package qrcode renders PNG QR codes for printed invitations.
package qrcode

import (
	"errors"
	"net/url"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent     = errors.New("qrcode: content cannot be empty")
	ErrInvalidURL       = errors.New("qrcode: invalid url")
	ErrFailedToGenerate = errors.New("qrcode: failed to generate")
)

const (
	DefaultSize = 512
	MaxSize     = 2048
	minSize     = 64
)

// Generate encodes content as a PNG of size x size pixels.
// The size is clamped to [64, 2048]; zero means DefaultSize.
func Generate(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	switch {
	case size == 0:
		size = DefaultSize
	case size < minSize:
		size = minSize
	case size > MaxSize:
		size = MaxSize
	}

	png, err := skipqrcode.Encode(content, skipqrcode.High, size)
	if err != nil {
		return nil, errors.Join(ErrFailedToGenerate, err)
	}
	return png, nil
}

// InvitationLink returns siteURL with the given campaign tag as utm_source,
// so scans are distinguishable from typed visits.
func InvitationLink(siteURL, source string) (string, error) {
	u, err := url.Parse(siteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ErrInvalidURL
	}
	if source != "" {
		q := u.Query()
		q.Set("utm_source", source)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
