package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	contentmodels "dynforms/internal/content/models"
	"dynforms/internal/evidence/metrics"
	"dynforms/internal/evidence/models"
	formsmodels "dynforms/internal/forms/models"
	"dynforms/pkg/attrs"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	audit "dynforms/pkg/platform/audit"
	"dynforms/pkg/platform/sentinel"
	"dynforms/pkg/platform/tx"
	"dynforms/pkg/requestcontext"
)

var tracer = otel.Tracer("dynforms/evidence")

type Store interface {
	CreateDocument(ctx context.Context, doc *models.IdentityDocument) error
	FindDocument(ctx context.Context, instanceID id.InstanceID, docID id.DocumentID) (*models.IdentityDocument, error)
	ListDocuments(ctx context.Context, instanceID id.InstanceID) ([]*models.IdentityDocument, error)
	UpdateDocument(ctx context.Context, doc *models.IdentityDocument) error
	DeleteDocument(ctx context.Context, instanceID id.InstanceID, docID id.DocumentID) error

	CreateBiometric(ctx context.Context, b *models.BiometricCapture) error
	FindBiometric(ctx context.Context, instanceID id.InstanceID, bioID id.BiometricID) (*models.BiometricCapture, error)
	ListBiometrics(ctx context.Context, instanceID id.InstanceID) ([]*models.BiometricCapture, error)
	UpdateBiometric(ctx context.Context, b *models.BiometricCapture) error
	DeleteBiometric(ctx context.Context, instanceID id.InstanceID, bioID id.BiometricID) error
}

// InstanceReader loads the form an evidence row hangs off for the ownership
// check. Writes lock the form row.
type InstanceReader interface {
	FindByID(ctx context.Context, instanceID id.InstanceID) (*formsmodels.FormInstance, error)
	FindByIDForUpdate(ctx context.Context, instanceID id.InstanceID) (*formsmodels.FormInstance, error)
}

// ContentStore creates files for new evidence and releases the ones nothing
// references any more.
type ContentStore interface {
	Create(ctx context.Context, d contentmodels.Descriptor, slot contentmodels.Slot) (*contentmodels.FileObject, error)
	ReleaseUnreferenced(ctx context.Context, candidates []id.FileID) ([]*contentmodels.FileObject, error)
	Purge(ctx context.Context, released []*contentmodels.FileObject)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service attaches identity documents and biometric captures to forms.
// Replacing a file never deletes the old one; only the delete paths release
// files, and only once no evidence row anywhere references them.
type Service struct {
	store          Store
	instances      InstanceReader
	content        ContentStore
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

func New(store Store, instances InstanceReader, content ContentStore, txm tx.Manager, opts ...Option) *Service {
	s := &Service{
		store:     store,
		instances: instances,
		content:   content,
		tx:        txm,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddDocument always mints a new file for the document.
func (s *Service) AddDocument(ctx context.Context, principal id.Principal, instanceID id.InstanceID, req models.AddDocumentRequest) (*models.IdentityDocument, error) {
	ctx, span := tracer.Start(ctx, "evidence.AddDocument")
	defer span.End()

	var doc *models.IdentityDocument
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireOwner(ctx, principal, instanceID, true); err != nil {
			return err
		}
		var err error
		doc, err = models.NewIdentityDocument(id.DocumentID(uuid.New()), instanceID, id.FileID{},
			req.Fields(), requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		file, err := s.content.Create(ctx, req.Descriptor(), contentmodels.SlotDocument)
		if err != nil {
			return err
		}
		doc.FileID = file.ID
		if err := s.store.CreateDocument(ctx, doc); err != nil {
			return translate(err, "form not found", "failed to create document")
		}
		s.logAudit(ctx, string(audit.EventDocumentAdded),
			"instance_id", instanceID.String(),
			"document_id", doc.ID.String(),
			"file_id", file.ID.String(),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DocumentsAdded.Inc()
	}
	return doc, nil
}

// UpdateDocument patches the document. A complete file descriptor creates a
// new file and repoints the document; the previous file is left in place. An
// incomplete descriptor replaces nothing and the other fields still apply.
func (s *Service) UpdateDocument(ctx context.Context, principal id.Principal, instanceID id.InstanceID, docID id.DocumentID, req models.UpdateDocumentRequest) (*models.IdentityDocument, error) {
	ctx, span := tracer.Start(ctx, "evidence.UpdateDocument")
	defer span.End()

	replace := req.Descriptor().IsComplete()

	var doc *models.IdentityDocument
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireOwner(ctx, principal, instanceID, true); err != nil {
			return err
		}
		var err error
		doc, err = s.store.FindDocument(ctx, instanceID, docID)
		if err != nil {
			return translate(err, "document not found", "failed to load document")
		}
		if err := doc.Apply(req.Fields()); err != nil {
			return err
		}
		previous := doc.FileID
		if replace {
			file, err := s.content.Create(ctx, req.Descriptor(), contentmodels.SlotDocument)
			if err != nil {
				return err
			}
			doc.FileID = file.ID
		}
		if err := s.store.UpdateDocument(ctx, doc); err != nil {
			return translate(err, "document not found", "failed to update document")
		}
		s.logAudit(ctx, string(audit.EventDocumentUpdated),
			"instance_id", instanceID.String(),
			"document_id", doc.ID.String(),
			"file_id", doc.FileID.String(),
			"previous_file_id", previous.String(),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if replace && s.metrics != nil {
		s.metrics.FilesReplaced.WithLabelValues(string(contentmodels.SlotDocument)).Inc()
	}
	return doc, nil
}

// DeleteDocument removes the document and, with deleteFile, releases its file
// if no other evidence row references it.
func (s *Service) DeleteDocument(ctx context.Context, principal id.Principal, instanceID id.InstanceID, docID id.DocumentID, deleteFile bool) error {
	ctx, span := tracer.Start(ctx, "evidence.DeleteDocument", trace.WithAttributes(
		attribute.Bool("delete_files", deleteFile),
	))
	defer span.End()

	var released []*contentmodels.FileObject
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireOwner(ctx, principal, instanceID, true); err != nil {
			return err
		}
		doc, err := s.store.FindDocument(ctx, instanceID, docID)
		if err != nil {
			return translate(err, "document not found", "failed to load document")
		}
		if err := s.store.DeleteDocument(ctx, instanceID, docID); err != nil {
			return translate(err, "document not found", "failed to delete document")
		}
		if deleteFile {
			if released, err = s.content.ReleaseUnreferenced(ctx, []id.FileID{doc.FileID}); err != nil {
				return err
			}
		}
		s.logAudit(ctx, string(audit.EventDocumentDeleted),
			"instance_id", instanceID.String(),
			"document_id", docID.String(),
			"file_id", doc.FileID.String(),
			"files_released", len(released),
		)
		return nil
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.EvidenceDeleted.WithLabelValues("document").Inc()
	}
	s.content.Purge(ctx, released)
	return nil
}

func (s *Service) ListDocuments(ctx context.Context, principal id.Principal, instanceID id.InstanceID) ([]*models.IdentityDocument, error) {
	if err := s.requireOwner(ctx, principal, instanceID, false); err != nil {
		return nil, err
	}
	out, err := s.store.ListDocuments(ctx, instanceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}
	return out, nil
}

// requireOwner loads the form and applies the ownership policy. NotFound is
// reported before Forbidden.
func (s *Service) requireOwner(ctx context.Context, principal id.Principal, instanceID id.InstanceID, forUpdate bool) error {
	find := s.instances.FindByID
	if forUpdate {
		find = s.instances.FindByIDForUpdate
	}
	fi, err := find(ctx, instanceID)
	if err != nil {
		return translate(err, "form not found", "failed to load form")
	}
	if !principal.Owns(fi.AssigneeUserID) {
		return dErrors.New(dErrors.CodeForbidden, "form belongs to another user")
	}
	return nil
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
		return dErrors.Wrap(err, dErrors.CodeConflict, "conflicting evidence change")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internal)
}
