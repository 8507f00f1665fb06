package models

import (
	"time"

	contentmodels "dynforms/internal/content/models"
)

// FileRequest is the blob descriptor carried inline by evidence requests.
type FileRequest struct {
	StorageKey      *string `json:"storage_key,omitempty"`
	MimeType        *string `json:"mime_type,omitempty"`
	SizeBytes       *int64  `json:"size_bytes,omitempty"`
	Sha256Hex       *string `json:"sha256_hex,omitempty"`
	EncryptedAtRest *bool   `json:"encrypted_at_rest,omitempty"`
}

func (f FileRequest) Descriptor() contentmodels.Descriptor {
	return contentmodels.Descriptor{
		StorageKey:      f.StorageKey,
		MimeType:        f.MimeType,
		SizeBytes:       f.SizeBytes,
		Sha256Hex:       f.Sha256Hex,
		EncryptedAtRest: f.EncryptedAtRest,
	}
}

// DocumentBody holds the descriptive document fields shared by add and update.
type DocumentBody struct {
	DocType        *string    `json:"doc_type,omitempty"`
	IssuingCountry *string    `json:"issuing_country,omitempty"`
	NumberRedacted *string    `json:"number_redacted,omitempty"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
	Side           *string    `json:"side,omitempty"`
	OcrJSON        *string    `json:"ocr_json,omitempty"`
}

func (b DocumentBody) Fields() DocumentFields {
	return DocumentFields{
		DocType:        b.DocType,
		IssuingCountry: b.IssuingCountry,
		NumberRedacted: b.NumberRedacted,
		ExpiryDate:     b.ExpiryDate,
		Side:           b.Side,
		OcrJSON:        b.OcrJSON,
	}
}

type AddDocumentRequest struct {
	DocumentBody
	FileRequest
}

// UpdateDocumentRequest replaces the file only when FileRequest is complete.
type UpdateDocumentRequest struct {
	DocumentBody
	FileRequest
}

// LivenessBody holds the liveness result fields shared by add and update.
type LivenessBody struct {
	LivenessProvider  *string  `json:"liveness_provider,omitempty"`
	LivenessThreshold *float64 `json:"liveness_threshold,omitempty"`
	LivenessScore     *float64 `json:"liveness_score,omitempty"`
	ChallengeType     *string  `json:"challenge_type,omitempty"`
	FrameTimeMs       *int     `json:"frame_time_ms,omitempty"`
	RetryCount        *int     `json:"retry_count,omitempty"`
}

func (b LivenessBody) Fields() LivenessFields {
	return LivenessFields{
		Provider:      b.LivenessProvider,
		Threshold:     b.LivenessThreshold,
		Score:         b.LivenessScore,
		ChallengeType: b.ChallengeType,
		FrameTimeMs:   b.FrameTimeMs,
		RetryCount:    b.RetryCount,
	}
}

// BiometricFiles names the two slots of a capture.
type BiometricFiles struct {
	Selfie FileRequest `json:"selfie"`
	Video  FileRequest `json:"video"`
}

type AddBiometricRequest struct {
	LivenessBody
	BiometricFiles
}

type UpdateBiometricRequest struct {
	LivenessBody
	BiometricFiles
}
