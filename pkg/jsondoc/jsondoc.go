// Package jsondoc checks that opaque JSON columns (design, schema, answers,
// OCR output) are syntactically well-formed. Content is never interpreted.
package jsondoc

import (
	"encoding/json"
	"strings"

	dErrors "dynforms/pkg/domain-errors"
)

// Valid reports whether s is non-blank, syntactically valid JSON.
func Valid(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	return json.Valid([]byte(s))
}

// Require returns CodeInvalidInput unless s is valid JSON.
func Require(field, s string) error {
	if !Valid(s) {
		return dErrors.New(dErrors.CodeInvalidInput, field+" must be valid JSON")
	}
	return nil
}

// RequireOptional validates s only when it is present.
func RequireOptional(field string, s *string) error {
	if s == nil {
		return nil
	}
	return Require(field, *s)
}
