package models

import (
	"math"
	"time"

	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
)

// BiometricCapture records a liveness check. It owns two evidence slots,
// the mandatory selfie and an optional video, each pointing at its own file.
type BiometricCapture struct {
	ID                id.BiometricID `json:"biometric_id"`
	InstanceID        id.InstanceID  `json:"instance_id"`
	VideoFileID       *id.FileID     `json:"video_file_id,omitempty"`
	SelfieFileID      id.FileID      `json:"selfie_file_id"`
	LivenessProvider  *string        `json:"liveness_provider,omitempty"`
	LivenessThreshold *float64       `json:"liveness_threshold,omitempty"`
	LivenessScore     *float64       `json:"liveness_score,omitempty"`
	ChallengeType     *string        `json:"challenge_type,omitempty"`
	FrameTimeMs       *int           `json:"frame_time_ms,omitempty"`
	RetryCount        int            `json:"retry_count"`
	CreatedAt         time.Time      `json:"created_at"`
}

// FileIDs lists the files this capture references.
func (b *BiometricCapture) FileIDs() []id.FileID {
	out := []id.FileID{b.SelfieFileID}
	if b.VideoFileID != nil {
		out = append(out, *b.VideoFileID)
	}
	return out
}

// LivenessFields carry liveness results. On update nil means untouched.
type LivenessFields struct {
	Provider      *string
	Threshold     *float64
	Score         *float64
	ChallengeType *string
	FrameTimeMs   *int
	RetryCount    *int
}

func NewBiometricCapture(bioID id.BiometricID, instanceID id.InstanceID, selfie id.FileID, video *id.FileID, f LivenessFields, now time.Time) (*BiometricCapture, error) {
	b := &BiometricCapture{
		ID:           bioID,
		InstanceID:   instanceID,
		SelfieFileID: selfie,
		VideoFileID:  video,
		CreatedAt:    now,
	}
	if err := b.Apply(f); err != nil {
		return nil, err
	}
	return b, nil
}

// Apply validates every supplied field before writing any of them.
func (b *BiometricCapture) Apply(f LivenessFields) error {
	for name, v := range map[string]*float64{"liveness_threshold": f.Threshold, "liveness_score": f.Score} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0) {
			return dErrors.New(dErrors.CodeInvalidInput, name+" must be a non-negative number")
		}
	}
	if f.FrameTimeMs != nil && *f.FrameTimeMs < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "frame_time_ms cannot be negative")
	}
	if f.RetryCount != nil && *f.RetryCount < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "retry_count cannot be negative")
	}

	if f.Provider != nil {
		b.LivenessProvider = f.Provider
	}
	if f.Threshold != nil {
		b.LivenessThreshold = f.Threshold
	}
	if f.Score != nil {
		b.LivenessScore = f.Score
	}
	if f.ChallengeType != nil {
		b.ChallengeType = f.ChallengeType
	}
	if f.FrameTimeMs != nil {
		b.FrameTimeMs = f.FrameTimeMs
	}
	if f.RetryCount != nil {
		b.RetryCount = *f.RetryCount
	}
	return nil
}
