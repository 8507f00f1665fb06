// Package email normalises and validates email addresses supplied by users
// and applicants.
package email

import (
	"net/mail"
	"strings"

	dErrors "dynforms/pkg/domain-errors"
)

const maxLength = 254

// Normalize trims and lower-cases addr and checks that it is a bare address
// (no display name).
func Normalize(addr string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(addr))
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	if len(trimmed) > maxLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "email is too long")
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil || parsed.Address != trimmed || parsed.Name != "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "email is not a valid address")
	}
	return trimmed, nil
}

// NormalizeOptional is Normalize for optional fields; nil and blank input
// both mean "no address" and return nil.
func NormalizeOptional(addr *string) (*string, error) {
	if addr == nil || strings.TrimSpace(*addr) == "" {
		return nil, nil
	}
	n, err := Normalize(*addr)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
