package models

import (
	"strings"
	"time"

	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	"dynforms/pkg/jsondoc"
)

// DocumentSide says which face of a physical document an image shows.
type DocumentSide string

const (
	SideFront  DocumentSide = "front"
	SideBack   DocumentSide = "back"
	SideSingle DocumentSide = "single"
)

const maxDocTypeLength = 50

func (s DocumentSide) IsValid() bool {
	switch s {
	case SideFront, SideBack, SideSingle:
		return true
	}
	return false
}

func (s DocumentSide) String() string {
	return string(s)
}

// ParseDocumentSide accepts front, back or single, case-insensitively.
func ParseDocumentSide(raw string) (DocumentSide, error) {
	s := DocumentSide(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "side must be one of front, back, single")
	}
	return s, nil
}

// IdentityDocument is an identity document image attached to a form. FileID
// points at the content store; the file does not know about the document.
type IdentityDocument struct {
	ID             id.DocumentID `json:"document_id"`
	InstanceID     id.InstanceID `json:"instance_id"`
	DocType        string        `json:"doc_type"`
	IssuingCountry *string       `json:"issuing_country,omitempty"`
	NumberRedacted *string       `json:"number_redacted,omitempty"`
	ExpiryDate     *time.Time    `json:"expiry_date,omitempty"`
	Side           DocumentSide  `json:"side"`
	FileID         id.FileID     `json:"file_id"`
	OcrJSON        *string       `json:"ocr_json,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// DocumentFields are the descriptive fields of a document. On update every
// nil field is left untouched.
type DocumentFields struct {
	DocType        *string
	IssuingCountry *string
	NumberRedacted *string
	ExpiryDate     *time.Time
	Side           *string
	OcrJSON        *string
}

func NewIdentityDocument(docID id.DocumentID, instanceID id.InstanceID, fileID id.FileID, f DocumentFields, now time.Time) (*IdentityDocument, error) {
	if f.DocType == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "doc_type is required")
	}
	doc := &IdentityDocument{
		ID:         docID,
		InstanceID: instanceID,
		Side:       SideSingle,
		FileID:     fileID,
		CreatedAt:  now,
	}
	if err := doc.Apply(f); err != nil {
		return nil, err
	}
	return doc, nil
}

// Apply validates every supplied field before writing any of them.
func (d *IdentityDocument) Apply(f DocumentFields) error {
	var docType string
	if f.DocType != nil {
		docType = strings.TrimSpace(*f.DocType)
		if docType == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "doc_type cannot be blank")
		}
		if len(docType) > maxDocTypeLength {
			return dErrors.New(dErrors.CodeInvalidInput, "doc_type is too long")
		}
	}
	var side DocumentSide
	if f.Side != nil {
		parsed, err := ParseDocumentSide(*f.Side)
		if err != nil {
			return err
		}
		side = parsed
	}
	if err := jsondoc.RequireOptional("ocr_json", f.OcrJSON); err != nil {
		return err
	}

	if f.DocType != nil {
		d.DocType = docType
	}
	if f.Side != nil {
		d.Side = side
	}
	if f.IssuingCountry != nil {
		d.IssuingCountry = f.IssuingCountry
	}
	if f.NumberRedacted != nil {
		d.NumberRedacted = f.NumberRedacted
	}
	if f.ExpiryDate != nil {
		day := truncateToDate(*f.ExpiryDate)
		d.ExpiryDate = &day
	}
	if f.OcrJSON != nil {
		d.OcrJSON = f.OcrJSON
	}
	return nil
}

func truncateToDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
