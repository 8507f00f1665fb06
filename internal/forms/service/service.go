package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	catalogmodels "dynforms/internal/catalog/models"
	contentmodels "dynforms/internal/content/models"
	"dynforms/internal/forms/metrics"
	"dynforms/internal/forms/models"
	"dynforms/pkg/attrs"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	audit "dynforms/pkg/platform/audit"
	"dynforms/pkg/platform/sentinel"
	"dynforms/pkg/platform/tx"
	"dynforms/pkg/requestcontext"
)

var tracer = otel.Tracer("dynforms/forms")

type InstanceStore interface {
	Create(ctx context.Context, fi *models.FormInstance) error
	FindByID(ctx context.Context, instanceID id.InstanceID) (*models.FormInstance, error)
	FindByIDForUpdate(ctx context.Context, instanceID id.InstanceID) (*models.FormInstance, error)
	List(ctx context.Context) ([]*models.FormInstance, error)
	ListByAssignee(ctx context.Context, userID id.UserID) ([]*models.FormInstance, error)
	Update(ctx context.Context, fi *models.FormInstance) error
	Delete(ctx context.Context, instanceID id.InstanceID) error
}

type StepStore interface {
	Create(ctx context.Context, step *models.FormStepResponse) error
	FindByKey(ctx context.Context, instanceID id.InstanceID, key string) (*models.FormStepResponse, error)
	ListByInstance(ctx context.Context, instanceID id.InstanceID) ([]*models.FormStepResponse, error)
	Update(ctx context.Context, step *models.FormStepResponse) error
	Delete(ctx context.Context, instanceID id.InstanceID, key string) error
	DeleteByInstance(ctx context.Context, instanceID id.InstanceID) (int, error)
}

// VersionReader resolves the template version an instance binds to.
type VersionReader interface {
	Find(ctx context.Context, templateID id.TemplateID, version int) (*catalogmodels.TemplateVersion, error)
	FindLatest(ctx context.Context, templateID id.TemplateID, publishedOnly bool) (*catalogmodels.TemplateVersion, error)
}

// EvidenceCascade removes every document and biometric capture of an
// instance and returns the file ids they referenced.
type EvidenceCascade interface {
	DeleteByInstance(ctx context.Context, instanceID id.InstanceID) ([]id.FileID, error)
}

// ContentReleaser is the reference-counted release path of the content store.
type ContentReleaser interface {
	ReleaseUnreferenced(ctx context.Context, candidates []id.FileID) ([]*contentmodels.FileObject, error)
	Purge(ctx context.Context, released []*contentmodels.FileObject)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the form instance lifecycle and the step ledger.
type Service struct {
	instances      InstanceStore
	steps          StepStore
	versions       VersionReader
	evidence       EvidenceCascade
	content        ContentReleaser
	tx             tx.Manager
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func New(instances InstanceStore, steps StepStore, versions VersionReader, evidence EvidenceCascade, content ContentReleaser, txm tx.Manager, opts ...Option) *Service {
	s := &Service{
		instances: instances,
		steps:     steps,
		versions:  versions,
		evidence:  evidence,
		content:   content,
		tx:        txm,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInstance binds a new instance to a published template version and
// assigns it to the caller. The version is resolved once, here, and never
// again.
func (s *Service) CreateInstance(ctx context.Context, principal id.Principal, req models.CreateInstanceRequest) (*models.FormInstance, error) {
	ctx, span := tracer.Start(ctx, "forms.CreateInstance", trace.WithAttributes(
		attribute.String("template_id", req.TemplateID.String()),
	))
	defer span.End()

	if req.TemplateID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "template_id is required")
	}
	contact, err := req.Contact()
	if err != nil {
		return nil, err
	}

	var created *models.FormInstance
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		version, err := s.resolveVersion(ctx, req.TemplateID, req.TemplateVersion)
		if err != nil {
			return err
		}
		fi, err := models.NewFormInstance(id.InstanceID(uuid.New()), req.TemplateID, version,
			principal.UserID, contact, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.instances.Create(ctx, fi); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "template version changed concurrently; retry")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create form")
		}
		s.logAudit(ctx, string(audit.EventFormCreated),
			"instance_id", fi.ID.String(),
			"template_id", fi.TemplateID.String(),
			"template_version", fi.TemplateVersion,
		)
		created = fi
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("template_version", created.TemplateVersion))
	if s.metrics != nil {
		s.metrics.InstancesCreated.Inc()
	}
	return created, nil
}

func (s *Service) resolveVersion(ctx context.Context, templateID id.TemplateID, requested *int) (int, error) {
	if requested != nil {
		v, err := s.versions.Find(ctx, templateID, *requested)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template version")
		}
		if v == nil || !v.IsPublished {
			return 0, dErrors.New(dErrors.CodeInvalidInput, "specified version not found or not published")
		}
		return v.Version, nil
	}
	v, err := s.versions.FindLatest(ctx, templateID, true)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeInvalidInput, "no published version found")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load latest published version")
	}
	return v.Version, nil
}

// GetInstance returns the instance when the caller owns it or is an admin.
func (s *Service) GetInstance(ctx context.Context, principal id.Principal, instanceID id.InstanceID) (*models.FormInstance, error) {
	return s.loadOwned(ctx, principal, instanceID, s.instances.FindByID)
}

// ListInstances returns every instance for admins and the caller's own
// instances for everyone else.
func (s *Service) ListInstances(ctx context.Context, principal id.Principal) ([]*models.FormInstance, error) {
	var (
		out []*models.FormInstance
		err error
	)
	if principal.IsAdmin() {
		out, err = s.instances.List(ctx)
	} else {
		out, err = s.instances.ListByAssignee(ctx, principal.UserID)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list forms")
	}
	return out, nil
}

// UpdateInstance applies a partial update. Admin only.
func (s *Service) UpdateInstance(ctx context.Context, principal id.Principal, instanceID id.InstanceID, req models.UpdateInstanceRequest) (*models.FormInstance, error) {
	ctx, span := tracer.Start(ctx, "forms.UpdateInstance")
	defer span.End()

	if !principal.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	patch, err := req.ToPatch()
	if err != nil {
		return nil, err
	}

	var (
		updated *models.FormInstance
		moved   bool
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		fi, err := s.instances.FindByIDForUpdate(ctx, instanceID)
		if err != nil {
			return translate(err, "form not found", "failed to load form")
		}
		from := fi.Status
		if err := fi.Apply(patch, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.instances.Update(ctx, fi); err != nil {
			return translate(err, "form not found", "failed to update form")
		}
		moved = from != fi.Status
		s.logAudit(ctx, string(audit.EventFormUpdated),
			"instance_id", fi.ID.String(),
			"from_status", from.String(),
			"to_status", fi.Status.String(),
		)
		updated = fi
		return nil
	})
	if err != nil {
		return nil, err
	}
	if moved && s.metrics != nil {
		s.metrics.StatusTransitions.WithLabelValues(updated.Status.String()).Inc()
	}
	return updated, nil
}

// DeleteInstance removes the instance with its steps, documents and
// biometrics. With deleteFiles the files those rows referenced are released
// in the same transaction once nothing else references them; their bytes are
// purged after commit.
func (s *Service) DeleteInstance(ctx context.Context, principal id.Principal, instanceID id.InstanceID, deleteFiles bool) error {
	ctx, span := tracer.Start(ctx, "forms.DeleteInstance", trace.WithAttributes(
		attribute.Bool("delete_files", deleteFiles),
	))
	defer span.End()

	if !principal.IsAdmin() {
		return dErrors.New(dErrors.CodeForbidden, "admin role required")
	}

	var released []*contentmodels.FileObject
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.instances.FindByIDForUpdate(ctx, instanceID); err != nil {
			return translate(err, "form not found", "failed to load form")
		}
		steps, err := s.steps.DeleteByInstance(ctx, instanceID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete form steps")
		}
		fileIDs, err := s.evidence.DeleteByInstance(ctx, instanceID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete form evidence")
		}
		if err := s.instances.Delete(ctx, instanceID); err != nil {
			return translate(err, "form not found", "failed to delete form")
		}
		if deleteFiles {
			released, err = s.content.ReleaseUnreferenced(ctx, fileIDs)
			if err != nil {
				return err
			}
		}
		s.logAudit(ctx, string(audit.EventFormDeleted),
			"instance_id", instanceID.String(),
			"steps_removed", steps,
			"files_candidates", len(fileIDs),
			"files_released", len(released),
		)
		return nil
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.InstancesDeleted.Inc()
	}
	s.content.Purge(ctx, released)
	return nil
}

// loadOwned fetches an instance and enforces the ownership policy. NotFound
// is reported before Forbidden.
func (s *Service) loadOwned(ctx context.Context, principal id.Principal, instanceID id.InstanceID,
	find func(context.Context, id.InstanceID) (*models.FormInstance, error)) (*models.FormInstance, error) {
	fi, err := find(ctx, instanceID)
	if err != nil {
		return nil, translate(err, "form not found", "failed to load form")
	}
	if !principal.Owns(fi.AssigneeUserID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "form belongs to another user")
	}
	return fi, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    requestcontext.UserID(ctx),
		Subject:   attrs.String(attributes, "instance_id"),
		Action:    event,
		RequestID: requestID,
	})
}

// translate maps store sentinels to domain errors. Domain errors pass through.
func translate(err error, notFound, internal string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFound)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "conflicting form change")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internal)
}
