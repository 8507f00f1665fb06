package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
)

// FileObject is the metadata record for a blob held by the external object
// store. It never knows which evidence rows point at it; back-references are
// always computed by query.
type FileObject struct {
	ID              id.FileID `json:"file_id"`
	StorageKey      string    `json:"storage_key"`
	MimeType        string    `json:"mime_type"`
	SizeBytes       int64     `json:"size_bytes"`
	Sha256Hex       *string   `json:"sha256_hex,omitempty"`
	EncryptedAtRest bool      `json:"encrypted_at_rest"`
	CreatedAt       time.Time `json:"created_at"`
}

// Descriptor describes a blob submitted alongside evidence. Every field is
// optional on creation; replacement requires a complete descriptor.
type Descriptor struct {
	StorageKey      *string
	MimeType        *string
	SizeBytes       *int64
	Sha256Hex       *string
	EncryptedAtRest *bool
}

// IsComplete reports whether the descriptor names a concrete blob: storage
// key, mime type and size all present and non-blank.
func (d Descriptor) IsComplete() bool {
	return nonBlank(d.StorageKey) && nonBlank(d.MimeType) && d.SizeBytes != nil
}

// HasStorageKey reports whether a non-blank storage key was supplied.
func (d Descriptor) HasStorageKey() bool {
	return nonBlank(d.StorageKey)
}

// Slot names an evidence slot. Each slot has its own placeholder key prefix
// and default mime type for "submit now, attach bytes later" flows.
type Slot string

const (
	SlotDocument Slot = "doc"
	SlotSelfie   Slot = "selfie"
	SlotVideo    Slot = "video"
)

var slotDefaultMime = map[Slot]string{
	SlotDocument: "application/octet-stream",
	SlotSelfie:   "image/jpeg",
	SlotVideo:    "video/mp4",
}

// DefaultMimeType returns the mime type assumed when none is supplied.
func (s Slot) DefaultMimeType() string {
	if m, ok := slotDefaultMime[s]; ok {
		return m
	}
	return "application/octet-stream"
}

// PlaceholderKey mints a storage key for a blob whose bytes arrive later.
func (s Slot) PlaceholderKey() string {
	return string(s) + ":" + uuid.NewString()
}

// NewFileObject builds a FileObject from d, filling slot defaults for any
// missing field.
func NewFileObject(fileID id.FileID, d Descriptor, slot Slot, now time.Time) (*FileObject, error) {
	f := &FileObject{
		ID:              fileID,
		StorageKey:      slot.PlaceholderKey(),
		MimeType:        slot.DefaultMimeType(),
		EncryptedAtRest: true,
		CreatedAt:       now,
	}
	if nonBlank(d.StorageKey) {
		f.StorageKey = strings.TrimSpace(*d.StorageKey)
	}
	if nonBlank(d.MimeType) {
		f.MimeType = strings.TrimSpace(*d.MimeType)
	}
	if d.SizeBytes != nil {
		if *d.SizeBytes < 0 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "size_bytes cannot be negative")
		}
		f.SizeBytes = *d.SizeBytes
	}
	if nonBlank(d.Sha256Hex) {
		sum := strings.ToLower(strings.TrimSpace(*d.Sha256Hex))
		if !isSHA256Hex(sum) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "sha256_hex must be 64 hex characters")
		}
		f.Sha256Hex = &sum
	}
	if d.EncryptedAtRest != nil {
		f.EncryptedAtRest = *d.EncryptedAtRest
	}
	return f, nil
}

func nonBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func isSHA256Hex(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
