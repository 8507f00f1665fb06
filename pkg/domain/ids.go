package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "dynforms/pkg/domain-errors"
)

// Typed identifiers. Each entity gets its own type so a FileID can never be
// passed where a DocumentID is expected.
type (
	UserID            uuid.UUID
	TemplateID        uuid.UUID
	TemplateVersionID uuid.UUID
	InstanceID        uuid.UUID
	StepResponseID    uuid.UUID
	DocumentID        uuid.UUID
	BiometricID       uuid.UUID
	FileID            uuid.UUID
)

func (id UserID) String() string            { return uuid.UUID(id).String() }
func (id TemplateID) String() string        { return uuid.UUID(id).String() }
func (id TemplateVersionID) String() string { return uuid.UUID(id).String() }
func (id InstanceID) String() string        { return uuid.UUID(id).String() }
func (id StepResponseID) String() string    { return uuid.UUID(id).String() }
func (id DocumentID) String() string        { return uuid.UUID(id).String() }
func (id BiometricID) String() string       { return uuid.UUID(id).String() }
func (id FileID) String() string            { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id TemplateID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id TemplateVersionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id InstanceID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id StepResponseID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id BiometricID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id FileID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id TemplateID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id InstanceID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id DocumentID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id BiometricID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id FileID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id StepResponseID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id TemplateVersionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error     { return unmarshalID((*uuid.UUID)(id), b) }
func (id *TemplateID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *TemplateVersionID) UnmarshalText(b []byte) error {
	return unmarshalID((*uuid.UUID)(id), b)
}
func (id *InstanceID) UnmarshalText(b []byte) error     { return unmarshalID((*uuid.UUID)(id), b) }
func (id *StepResponseID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *DocumentID) UnmarshalText(b []byte) error     { return unmarshalID((*uuid.UUID)(id), b) }
func (id *BiometricID) UnmarshalText(b []byte) error    { return unmarshalID((*uuid.UUID)(id), b) }
func (id *FileID) UnmarshalText(b []byte) error         { return unmarshalID((*uuid.UUID)(id), b) }

// parseUUID is the single validation path shared by every Parse function.
// Rejects empty input, malformed UUIDs, and the nil UUID.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func unmarshalID(dst *uuid.UUID, b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid id")
	}
	*dst = u
	return nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

func ParseTemplateID(s string) (TemplateID, error) {
	u, err := parseUUID(s, "template ID")
	return TemplateID(u), err
}

func ParseInstanceID(s string) (InstanceID, error) {
	u, err := parseUUID(s, "form ID")
	return InstanceID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document ID")
	return DocumentID(u), err
}

func ParseBiometricID(s string) (BiometricID, error) {
	u, err := parseUUID(s, "biometric ID")
	return BiometricID(u), err
}

func ParseFileID(s string) (FileID, error) {
	u, err := parseUUID(s, "file ID")
	return FileID(u), err
}
