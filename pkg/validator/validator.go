// Package validator applies field rules and collects every failure into a
// single ValidationErrors value.
package validator

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError describes one failed rule.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors collects rule failures in rule order.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(ve))
	for _, err := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (ve ValidationErrors) Has(field string) bool {
	for _, err := range ve {
		if err.Field == field {
			return true
		}
	}
	return false
}

// First returns the first failure. Callers must check len first.
func (ve ValidationErrors) First() ValidationError {
	return ve[0]
}

// Map groups messages by field.
func (ve ValidationErrors) Map() map[string][]string {
	m := make(map[string][]string, len(ve))
	for _, err := range ve {
		m[err.Field] = append(m[err.Field], err.Message)
	}
	return m
}

// Rule is a deferred check with the error it reports.
type Rule struct {
	Check func() bool
	Error ValidationError
}

// Apply runs every rule and returns ValidationErrors, or nil when all pass.
func Apply(rules ...Rule) error {
	var errs ValidationErrors
	for _, rule := range rules {
		if !rule.Check() {
			errs = append(errs, rule.Error)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Extract returns the ValidationErrors inside err, or nil.
func Extract(err error) ValidationErrors {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
