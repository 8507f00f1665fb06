package service

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	contentmodels "dynforms/internal/content/models"
	"dynforms/internal/evidence/models"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	audit "dynforms/pkg/platform/audit"
	"dynforms/pkg/requestcontext"
)

// AddBiometric always mints a selfie file. A video file is minted only when a
// video storage key is supplied.
func (s *Service) AddBiometric(ctx context.Context, principal id.Principal, instanceID id.InstanceID, req models.AddBiometricRequest) (*models.BiometricCapture, error) {
	ctx, span := tracer.Start(ctx, "evidence.AddBiometric")
	defer span.End()

	var b *models.BiometricCapture
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireOwner(ctx, principal, instanceID, true); err != nil {
			return err
		}
		var err error
		b, err = models.NewBiometricCapture(id.BiometricID(uuid.New()), instanceID, id.FileID{}, nil,
			req.Fields(), requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		selfie, err := s.content.Create(ctx, req.Selfie.Descriptor(), contentmodels.SlotSelfie)
		if err != nil {
			return err
		}
		b.SelfieFileID = selfie.ID
		if req.Video.Descriptor().HasStorageKey() {
			video, err := s.content.Create(ctx, req.Video.Descriptor(), contentmodels.SlotVideo)
			if err != nil {
				return err
			}
			b.VideoFileID = &video.ID
		}
		if err := s.store.CreateBiometric(ctx, b); err != nil {
			return translate(err, "form not found", "failed to create biometric capture")
		}
		s.logAudit(ctx, string(audit.EventBiometricAdded),
			"instance_id", instanceID.String(),
			"biometric_id", b.ID.String(),
			"files", len(b.FileIDs()),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.BiometricsAdded.Inc()
	}
	return b, nil
}

// UpdateBiometric replaces the selfie and video slots independently when a
// complete descriptor is given for them and patches the liveness fields.
// Replaced files are left in place.
func (s *Service) UpdateBiometric(ctx context.Context, principal id.Principal, instanceID id.InstanceID, bioID id.BiometricID, req models.UpdateBiometricRequest) (*models.BiometricCapture, error) {
	ctx, span := tracer.Start(ctx, "evidence.UpdateBiometric")
	defer span.End()

	replaceSelfie := req.Selfie.Descriptor().IsComplete()
	replaceVideo := req.Video.Descriptor().IsComplete()
	span.SetAttributes(
		attribute.Bool("replace_selfie", replaceSelfie),
		attribute.Bool("replace_video", replaceVideo),
	)

	var b *models.BiometricCapture
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireOwner(ctx, principal, instanceID, true); err != nil {
			return err
		}
		var err error
		b, err = s.store.FindBiometric(ctx, instanceID, bioID)
		if err != nil {
			return translate(err, "biometric capture not found", "failed to load biometric capture")
		}
		if err := b.Apply(req.Fields()); err != nil {
			return err
		}
		if replaceSelfie {
			selfie, err := s.content.Create(ctx, req.Selfie.Descriptor(), contentmodels.SlotSelfie)
			if err != nil {
				return err
			}
			b.SelfieFileID = selfie.ID
		}
		if replaceVideo {
			video, err := s.content.Create(ctx, req.Video.Descriptor(), contentmodels.SlotVideo)
			if err != nil {
				return err
			}
			b.VideoFileID = &video.ID
		}
		if err := s.store.UpdateBiometric(ctx, b); err != nil {
			return translate(err, "biometric capture not found", "failed to update biometric capture")
		}
		s.logAudit(ctx, string(audit.EventBiometricUpdated),
			"instance_id", instanceID.String(),
			"biometric_id", b.ID.String(),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		if replaceSelfie {
			s.metrics.FilesReplaced.WithLabelValues(string(contentmodels.SlotSelfie)).Inc()
		}
		if replaceVideo {
			s.metrics.FilesReplaced.WithLabelValues(string(contentmodels.SlotVideo)).Inc()
		}
	}
	return b, nil
}

// DeleteBiometric removes the capture and, with deleteFiles, releases the
// selfie and video files independently.
func (s *Service) DeleteBiometric(ctx context.Context, principal id.Principal, instanceID id.InstanceID, bioID id.BiometricID, deleteFiles bool) error {
	ctx, span := tracer.Start(ctx, "evidence.DeleteBiometric", trace.WithAttributes(
		attribute.Bool("delete_files", deleteFiles),
	))
	defer span.End()

	var released []*contentmodels.FileObject
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireOwner(ctx, principal, instanceID, true); err != nil {
			return err
		}
		b, err := s.store.FindBiometric(ctx, instanceID, bioID)
		if err != nil {
			return translate(err, "biometric capture not found", "failed to load biometric capture")
		}
		if err := s.store.DeleteBiometric(ctx, instanceID, bioID); err != nil {
			return translate(err, "biometric capture not found", "failed to delete biometric capture")
		}
		if deleteFiles {
			if released, err = s.content.ReleaseUnreferenced(ctx, b.FileIDs()); err != nil {
				return err
			}
		}
		s.logAudit(ctx, string(audit.EventBiometricDeleted),
			"instance_id", instanceID.String(),
			"biometric_id", bioID.String(),
			"files_released", len(released),
		)
		return nil
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.EvidenceDeleted.WithLabelValues("biometric").Inc()
	}
	s.content.Purge(ctx, released)
	return nil
}

func (s *Service) ListBiometrics(ctx context.Context, principal id.Principal, instanceID id.InstanceID) ([]*models.BiometricCapture, error) {
	if err := s.requireOwner(ctx, principal, instanceID, false); err != nil {
		return nil, err
	}
	out, err := s.store.ListBiometrics(ctx, instanceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list biometric captures")
	}
	return out, nil
}
