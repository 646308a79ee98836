package validator

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"
)

func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Message: "field is required"},
	}
}

func MaxLen(field, value string, n int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) <= n },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters long", n)},
	}
}

// ValidEmail accepts a bare address (no display name) whose domain has at
// least one dot and no empty labels.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool { return IsEmail(value) },
		Error: ValidationError{Field: field, Message: "must be a valid email address"},
	}
}

// OptionalEmail is ValidEmail that also accepts an empty value.
func OptionalEmail(field, value string) Rule {
	return Rule{
		Check: func() bool { return value == "" || IsEmail(value) },
		Error: ValidationError{Field: field, Message: "must be a valid email address"},
	}
}

func NotEmpty[T any](field string, value []T) Rule {
	return Rule{
		Check: func() bool { return len(value) > 0 },
		Error: ValidationError{Field: field, Message: "must not be empty"},
	}
}

func OneOf[T comparable](field string, value T, allowed ...T) Rule {
	return Rule{
		Check: func() bool { return slices.Contains(allowed, value) },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be one of: %v", allowed)},
	}
}

// Check wraps an arbitrary predicate.
func Check(field string, ok bool, message string) Rule {
	return Rule{
		Check: func() bool { return ok },
		Error: ValidationError{Field: field, Message: message},
	}
}

func IsEmail(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return false
	}
	local, domain, ok := strings.Cut(addr.Address, "@")
	if !ok || local == "" {
		return false
	}
	if !strings.Contains(domain, ".") {
		return false
	}
	for label := range strings.SplitSeq(domain, ".") {
		if label == "" {
			return false
		}
	}
	return true
}
