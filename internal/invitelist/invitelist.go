// Package invitelist reads the YAML invitation list used to seed the guest
// table.
//
//	guests:
//	  - email: ada@example.com
//	    name: Ada Lovelace
//	  - email: yitong@example.com
//	    admin: true
package invitelist

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/rsvpkit/wedding/pkg/validator"
	"github.com/rsvpkit/wedding/svc/guest"
)

var (
	ErrEmpty        = errors.New("invitelist: no guests")
	ErrInvalidEntry = errors.New("invitelist: invalid entry")
)

type document struct {
	Guests []guest.Invitee `yaml:"guests"`
}

// Parse decodes and normalizes the list: emails and names are trimmed,
// names are NFC-normalized and duplicate emails keep their last entry.
func Parse(r io.Reader) ([]guest.Invitee, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("invitelist: decode: %w", err)
	}

	index := make(map[string]int, len(doc.Guests))
	out := make([]guest.Invitee, 0, len(doc.Guests))
	for i, in := range doc.Guests {
		in.Email = strings.TrimSpace(in.Email)
		in.Name = norm.NFC.String(strings.TrimSpace(in.Name))
		if !validator.IsEmail(in.Email) {
			return nil, fmt.Errorf("%w: entry %d: invalid email %q", ErrInvalidEntry, i+1, in.Email)
		}
		if at, ok := index[in.Email]; ok {
			out[at] = in
			continue
		}
		index[in.Email] = len(out)
		out = append(out, in)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}
