package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestParseDocumentSide(t *testing.T) {
	side, err := ParseDocumentSide(" FRONT ")
	require.NoError(t, err)
	assert.Equal(t, SideFront, side)

	_, err = ParseDocumentSide("top")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestNewIdentityDocument(t *testing.T) {
	newDoc := func(f DocumentFields) (*IdentityDocument, error) {
		return NewIdentityDocument(id.DocumentID(uuid.New()), id.InstanceID(uuid.New()), id.FileID(uuid.New()), f, now)
	}

	t.Run("defaults side to single", func(t *testing.T) {
		doc, err := newDoc(DocumentFields{DocType: ptr("passport")})
		require.NoError(t, err)
		assert.Equal(t, SideSingle, doc.Side)
		assert.Equal(t, "passport", doc.DocType)
	})

	t.Run("doc type is required", func(t *testing.T) {
		_, err := newDoc(DocumentFields{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		_, err = newDoc(DocumentFields{DocType: ptr("  ")})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects malformed ocr json", func(t *testing.T) {
		_, err := newDoc(DocumentFields{DocType: ptr("passport"), OcrJSON: ptr("{")})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("expiry keeps the date only", func(t *testing.T) {
		doc, err := newDoc(DocumentFields{DocType: ptr("passport"), ExpiryDate: ptr(time.Date(2030, 5, 4, 18, 30, 0, 0, time.UTC))})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2030, 5, 4, 0, 0, 0, 0, time.UTC), *doc.ExpiryDate)
	})
}

func TestDocumentApplyIsAllOrNothing(t *testing.T) {
	doc, err := NewIdentityDocument(id.DocumentID(uuid.New()), id.InstanceID(uuid.New()), id.FileID(uuid.New()),
		DocumentFields{DocType: ptr("passport")}, now)
	require.NoError(t, err)

	err = doc.Apply(DocumentFields{DocType: ptr("licence"), Side: ptr("diagonal")})
	require.Error(t, err)
	assert.Equal(t, "passport", doc.DocType)

	require.NoError(t, doc.Apply(DocumentFields{Side: ptr("back"), IssuingCountry: ptr("NZ")}))
	assert.Equal(t, SideBack, doc.Side)
	assert.Equal(t, "passport", doc.DocType)
	assert.Equal(t, "NZ", *doc.IssuingCountry)
}

func TestBiometricCapture(t *testing.T) {
	selfie := id.FileID(uuid.New())
	video := id.FileID(uuid.New())

	b, err := NewBiometricCapture(id.BiometricID(uuid.New()), id.InstanceID(uuid.New()), selfie, &video,
		LivenessFields{Score: ptr(0.93), RetryCount: ptr(2)}, now)
	require.NoError(t, err)
	assert.Equal(t, []id.FileID{selfie, video}, b.FileIDs())
	assert.Equal(t, 2, b.RetryCount)

	b.VideoFileID = nil
	assert.Equal(t, []id.FileID{selfie}, b.FileIDs())

	tests := []struct {
		name string
		f    LivenessFields
	}{
		{name: "negative score", f: LivenessFields{Score: ptr(-0.1)}},
		{name: "nan threshold", f: LivenessFields{Threshold: ptr(math.NaN())}},
		{name: "negative retries", f: LivenessFields{RetryCount: ptr(-1)}},
		{name: "negative frame time", f: LivenessFields{FrameTimeMs: ptr(-5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Apply(tt.f)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestRequestDecoding(t *testing.T) {
	var req AddBiometricRequest
	body := `{"liveness_score":0.5,"selfie":{"storage_key":"s3://a"},"video":{"storage_key":"s3://b","size_bytes":10}}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	assert.Equal(t, 0.5, *req.Fields().Score)
	assert.Equal(t, "s3://a", *req.Selfie.StorageKey)
	assert.True(t, req.Video.Descriptor().HasStorageKey())
	assert.False(t, req.Video.Descriptor().IsComplete())

	var doc UpdateDocumentRequest
	require.NoError(t, json.Unmarshal([]byte(`{"side":"front","storage_key":"k","mime_type":"image/png","size_bytes":3}`), &doc))
	assert.Equal(t, "front", *doc.Fields().Side)
	assert.True(t, doc.Descriptor().IsComplete())
}
