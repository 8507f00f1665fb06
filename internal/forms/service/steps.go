package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"dynforms/internal/forms/models"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	audit "dynforms/pkg/platform/audit"
	"dynforms/pkg/platform/sentinel"
	"dynforms/pkg/requestcontext"
)

// UpsertStep writes the answers for one step. The first write creates the
// row with its table-derived order; later writes replace the payload only.
// The instance row is locked so concurrent upserts of one key serialise.
func (s *Service) UpsertStep(ctx context.Context, principal id.Principal, instanceID id.InstanceID, rawKey, dataJSON string) (*models.FormStepResponse, error) {
	ctx, span := tracer.Start(ctx, "forms.UpsertStep")
	defer span.End()

	stepKey, err := models.ParseStepKey(rawKey)
	if err != nil {
		return nil, err
	}

	var (
		out     *models.FormStepResponse
		outcome string
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.loadOwned(ctx, principal, instanceID, s.instances.FindByIDForUpdate); err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		existing, err := s.steps.FindByKey(ctx, instanceID, stepKey)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			step, err := models.NewStepResponse(id.StepResponseID(uuid.New()), instanceID, stepKey, dataJSON, now)
			if err != nil {
				return err
			}
			if err := s.steps.Create(ctx, step); err != nil {
				return translate(err, "form not found", "failed to create step")
			}
			out, outcome = step, "created"
		case err != nil:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load step")
		default:
			if err := existing.Replace(dataJSON, now); err != nil {
				return err
			}
			if err := s.steps.Update(ctx, existing); err != nil {
				return translate(err, "step not found", "failed to update step")
			}
			out, outcome = existing, "replaced"
		}
		s.logAudit(ctx, string(audit.EventStepUpdated),
			"instance_id", instanceID.String(),
			"step_key", stepKey,
			"outcome", outcome,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.StepUpserts.WithLabelValues(outcome).Inc()
	}
	return out, nil
}

// ListSteps returns the steps of an instance in display order.
func (s *Service) ListSteps(ctx context.Context, principal id.Principal, instanceID id.InstanceID) ([]*models.FormStepResponse, error) {
	if _, err := s.loadOwned(ctx, principal, instanceID, s.instances.FindByID); err != nil {
		return nil, err
	}
	out, err := s.steps.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list steps")
	}
	return out, nil
}

func (s *Service) DeleteStep(ctx context.Context, principal id.Principal, instanceID id.InstanceID, rawKey string) error {
	ctx, span := tracer.Start(ctx, "forms.DeleteStep")
	defer span.End()

	stepKey, err := models.ParseStepKey(rawKey)
	if err != nil {
		return err
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.loadOwned(ctx, principal, instanceID, s.instances.FindByIDForUpdate); err != nil {
			return err
		}
		if err := s.steps.Delete(ctx, instanceID, stepKey); err != nil {
			return translate(err, "step not found", "failed to delete step")
		}
		s.logAudit(ctx, string(audit.EventStepDeleted),
			"instance_id", instanceID.String(),
			"step_key", stepKey,
		)
		return nil
	})
}
