package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dynforms/internal/catalog/cache"
	"dynforms/internal/catalog/metrics"
	"dynforms/internal/catalog/models"
	"dynforms/pkg/attrs"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	audit "dynforms/pkg/platform/audit"
	"dynforms/pkg/platform/sentinel"
	"dynforms/pkg/platform/tx"
	"dynforms/pkg/requestcontext"
)

var tracer = otel.Tracer("dynforms/catalog")

type TemplateStore interface {
	Create(ctx context.Context, t *models.Template) error
	FindByID(ctx context.Context, templateID id.TemplateID) (*models.Template, error)
	FindByIDForUpdate(ctx context.Context, templateID id.TemplateID) (*models.Template, error)
	List(ctx context.Context) ([]*models.Template, error)
	Update(ctx context.Context, t *models.Template) error
	Delete(ctx context.Context, templateID id.TemplateID) error
}

type VersionStore interface {
	Create(ctx context.Context, v *models.TemplateVersion) error
	MaxVersion(ctx context.Context, templateID id.TemplateID) (int, error)
	Find(ctx context.Context, templateID id.TemplateID, version int) (*models.TemplateVersion, error)
	FindLatest(ctx context.Context, templateID id.TemplateID, publishedOnly bool) (*models.TemplateVersion, error)
	ListByTemplate(ctx context.Context, templateID id.TemplateID) ([]*models.TemplateVersion, error)
	Update(ctx context.Context, v *models.TemplateVersion) error
	Delete(ctx context.Context, templateID id.TemplateID, version int) error
	DeleteByTemplate(ctx context.Context, templateID id.TemplateID) (int, error)
}

// InstanceUsage reports how many form instances are bound to a template.
type InstanceUsage interface {
	CountByTemplate(ctx context.Context, templateID id.TemplateID) (int, error)
	CountByTemplateVersion(ctx context.Context, templateID id.TemplateID, version int) (int, error)
}

// LatestCache fronts GetLatestVersion for published-only reads.
type LatestCache interface {
	LatestPublished(ctx context.Context, templateID id.TemplateID, load cache.Loader) (*models.TemplateVersion, error)
	Invalidate(ctx context.Context, templateID id.TemplateID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages templates and their numbered versions.
type Service struct {
	templates      TemplateStore
	versions       VersionStore
	usage          InstanceUsage
	tx             tx.Manager
	cache          LatestCache
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

func WithCache(c LatestCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func New(templates TemplateStore, versions VersionStore, usage InstanceUsage, txm tx.Manager, opts ...Option) *Service {
	s := &Service{
		templates: templates,
		versions:  versions,
		usage:     usage,
		tx:        txm,
		cache:     cache.Passthrough{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateTemplate(ctx context.Context, req models.CreateTemplateRequest) (*models.Template, error) {
	ctx, span := tracer.Start(ctx, "catalog.CreateTemplate")
	defer span.End()

	t, err := models.NewTemplate(id.TemplateID(uuid.New()), req.Name, req.Description, req.CreatedBy, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.templates.Create(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create template")
		}
		s.logAudit(ctx, string(audit.EventTemplateCreated), "template_id", t.ID.String())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.TemplatesCreated.Inc()
	}
	return t, nil
}

func (s *Service) GetTemplate(ctx context.Context, templateID id.TemplateID) (*models.Template, error) {
	t, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		return nil, translate(err, "template not found", "failed to load template")
	}
	return t, nil
}

func (s *Service) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	out, err := s.templates.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list templates")
	}
	return out, nil
}

func (s *Service) UpdateTemplate(ctx context.Context, templateID id.TemplateID, req models.UpdateTemplateRequest) (*models.Template, error) {
	ctx, span := tracer.Start(ctx, "catalog.UpdateTemplate")
	defer span.End()

	patch, err := req.ToPatch()
	if err != nil {
		return nil, err
	}
	var updated *models.Template
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.templates.FindByIDForUpdate(ctx, templateID)
		if err != nil {
			return translate(err, "template not found", "failed to load template")
		}
		if err := t.Apply(patch, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.templates.Update(ctx, t); err != nil {
			return translate(err, "template not found", "failed to update template")
		}
		s.logAudit(ctx, string(audit.EventTemplateUpdated), "template_id", t.ID.String())
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTemplate removes a template and all of its versions. Refused while
// any form instance references the template.
func (s *Service) DeleteTemplate(ctx context.Context, templateID id.TemplateID) error {
	ctx, span := tracer.Start(ctx, "catalog.DeleteTemplate")
	defer span.End()

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.templates.FindByIDForUpdate(ctx, templateID); err != nil {
			return translate(err, "template not found", "failed to load template")
		}
		inUse, err := s.usage.CountByTemplate(ctx, templateID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check template usage")
		}
		if inUse > 0 {
			return dErrors.New(dErrors.CodeConflict, "template is in use by form instances")
		}
		removed, err := s.versions.DeleteByTemplate(ctx, templateID)
		if err != nil {
			return translate(err, "template not found", "failed to delete template versions")
		}
		if err := s.templates.Delete(ctx, templateID); err != nil {
			return translate(err, "template not found", "failed to delete template")
		}
		s.logAudit(ctx, string(audit.EventTemplateDeleted),
			"template_id", templateID.String(),
			"versions_removed", removed,
		)
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, templateID)
	return nil
}

// CreateVersion appends version max+1. The template row lock serialises
// concurrent callers; the (template, version) unique constraint turns any
// remaining race into a Conflict.
func (s *Service) CreateVersion(ctx context.Context, templateID id.TemplateID, req models.CreateVersionRequest) (*models.TemplateVersion, error) {
	ctx, span := tracer.Start(ctx, "catalog.CreateVersion", trace.WithAttributes(
		attribute.String("template_id", templateID.String()),
	))
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveCreateVersion(time.Now())
	}

	var created *models.TemplateVersion
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.templates.FindByIDForUpdate(ctx, templateID); err != nil {
			return translate(err, "template not found", "failed to load template")
		}
		last, err := s.versions.MaxVersion(ctx, templateID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read latest version number")
		}
		v, err := models.NewTemplateVersion(id.TemplateVersionID(uuid.New()), templateID, last+1,
			req.DesignJSON, req.JSONSchema, req.CreatedBy, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.versions.Create(ctx, v); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				if s.metrics != nil {
					s.metrics.VersionConflicts.Inc()
				}
				return dErrors.Wrap(err, dErrors.CodeConflict, "version number already taken; retry")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create version")
		}
		s.logAudit(ctx, string(audit.EventVersionCreated),
			"template_id", templateID.String(),
			"version", v.Version,
		)
		created = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("version", created.Version))
	if s.metrics != nil {
		s.metrics.VersionsCreated.Inc()
	}
	return created, nil
}

func (s *Service) GetVersion(ctx context.Context, templateID id.TemplateID, version int) (*models.TemplateVersion, error) {
	v, err := s.versions.Find(ctx, templateID, version)
	if err != nil {
		return nil, translate(err, "template version not found", "failed to load template version")
	}
	return v, nil
}

func (s *Service) ListVersions(ctx context.Context, templateID id.TemplateID) ([]*models.TemplateVersion, error) {
	if _, err := s.templates.FindByID(ctx, templateID); err != nil {
		return nil, translate(err, "template not found", "failed to load template")
	}
	out, err := s.versions.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list template versions")
	}
	return out, nil
}

// UpdateVersion edits an unpublished version. Published versions are frozen.
func (s *Service) UpdateVersion(ctx context.Context, templateID id.TemplateID, version int, req models.UpdateVersionRequest) (*models.TemplateVersion, error) {
	ctx, span := tracer.Start(ctx, "catalog.UpdateVersion")
	defer span.End()

	var updated *models.TemplateVersion
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.templates.FindByIDForUpdate(ctx, templateID); err != nil {
			return translate(err, "template not found", "failed to load template")
		}
		v, err := s.versions.Find(ctx, templateID, version)
		if err != nil {
			return translate(err, "template version not found", "failed to load template version")
		}
		patch := models.VersionPatch{DesignJSON: req.DesignJSON, JSONSchema: req.JSONSchema}
		if err := v.Apply(patch, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.versions.Update(ctx, v); err != nil {
			return translate(err, "template version not found", "failed to update template version")
		}
		s.logAudit(ctx, string(audit.EventVersionUpdated),
			"template_id", templateID.String(),
			"version", version,
		)
		updated = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// PublishVersion marks a version published. Idempotent; siblings are not
// touched and there is no unpublish.
func (s *Service) PublishVersion(ctx context.Context, templateID id.TemplateID, version int) (*models.TemplateVersion, error) {
	ctx, span := tracer.Start(ctx, "catalog.PublishVersion")
	defer span.End()

	var published *models.TemplateVersion
	changed := false
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.templates.FindByIDForUpdate(ctx, templateID); err != nil {
			return translate(err, "template version not found", "failed to load template")
		}
		v, err := s.versions.Find(ctx, templateID, version)
		if err != nil {
			return translate(err, "template version not found", "failed to load template version")
		}
		published = v
		if !v.Publish(requestcontext.Now(ctx)) {
			return nil
		}
		if err := s.versions.Update(ctx, v); err != nil {
			return translate(err, "template version not found", "failed to publish template version")
		}
		s.logAudit(ctx, string(audit.EventVersionPublished),
			"template_id", templateID.String(),
			"version", version,
		)
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.invalidate(ctx, templateID)
		if s.metrics != nil {
			s.metrics.VersionsPublished.Inc()
		}
	}
	return published, nil
}

// GetLatestVersion returns the highest-numbered version matching the filter.
// Published-only reads go through the cache.
func (s *Service) GetLatestVersion(ctx context.Context, templateID id.TemplateID, publishedOnly bool) (*models.TemplateVersion, error) {
	ctx, span := tracer.Start(ctx, "catalog.GetLatestVersion", trace.WithAttributes(
		attribute.Bool("published_only", publishedOnly),
	))
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveLatestVersion(time.Now())
	}

	var (
		v   *models.TemplateVersion
		err error
	)
	if publishedOnly {
		v, err = s.cache.LatestPublished(ctx, templateID, func(ctx context.Context) (*models.TemplateVersion, error) {
			return s.versions.FindLatest(ctx, templateID, true)
		})
	} else {
		v, err = s.versions.FindLatest(ctx, templateID, false)
	}
	if err != nil {
		return nil, translate(err, "no matching template version", "failed to load latest version")
	}
	return v, nil
}

// DeleteVersion removes one version. Refused while any form instance is bound
// to that exact (template, version) pair.
func (s *Service) DeleteVersion(ctx context.Context, templateID id.TemplateID, version int) error {
	ctx, span := tracer.Start(ctx, "catalog.DeleteVersion")
	defer span.End()

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.templates.FindByIDForUpdate(ctx, templateID); err != nil {
			return translate(err, "template version not found", "failed to load template")
		}
		if _, err := s.versions.Find(ctx, templateID, version); err != nil {
			return translate(err, "template version not found", "failed to load template version")
		}
		inUse, err := s.usage.CountByTemplateVersion(ctx, templateID, version)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check version usage")
		}
		if inUse > 0 {
			return dErrors.New(dErrors.CodeConflict, "template version is in use by form instances")
		}
		if err := s.versions.Delete(ctx, templateID, version); err != nil {
			return translate(err, "template version not found", "failed to delete template version")
		}
		s.logAudit(ctx, string(audit.EventVersionDeleted),
			"template_id", templateID.String(),
			"version", version,
		)
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, templateID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, templateID id.TemplateID) {
	if err := s.cache.Invalidate(ctx, templateID); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to invalidate latest version cache",
			"template_id", templateID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
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
		Subject:   attrs.String(attributes, "template_id"),
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
		return dErrors.Wrap(err, dErrors.CodeConflict, "conflicting catalog change")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internal)
}
