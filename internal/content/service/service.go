package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"dynforms/internal/content/blob"
	"dynforms/internal/content/metrics"
	"dynforms/internal/content/models"
	"dynforms/pkg/attrs"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	audit "dynforms/pkg/platform/audit"
	"dynforms/pkg/platform/sentinel"
	"dynforms/pkg/requestcontext"
)

var tracer = otel.Tracer("dynforms/content")

// FileStore persists FileObject metadata.
type FileStore interface {
	Create(ctx context.Context, f *models.FileObject) error
	FindByID(ctx context.Context, fileID id.FileID) (*models.FileObject, error)
	FindByIDs(ctx context.Context, ids []id.FileID) ([]*models.FileObject, error)
	DeleteByIDs(ctx context.Context, ids []id.FileID) (int, error)
	// LockByIDs holds the rows until the caller's transaction ends. Concurrent
	// releases of a shared file then see each other's committed deletes.
	LockByIDs(ctx context.Context, ids []id.FileID) error
}

// ReferenceFinder answers which of the candidate ids are still referenced by
// any evidence row in the whole store.
type ReferenceFinder interface {
	ReferencedFileIDs(ctx context.Context, candidates []id.FileID) ([]id.FileID, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns FileObject records and the reference-counted release path.
type Service struct {
	files          FileStore
	refs           ReferenceFinder
	purger         blob.Purger
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

func WithPurger(p blob.Purger) Option {
	return func(s *Service) {
		s.purger = p
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func New(files FileStore, refs ReferenceFinder, opts ...Option) *Service {
	s := &Service{files: files, refs: refs, purger: blob.Noop{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create always mints a new FileObject; storage keys are never reused.
func (s *Service) Create(ctx context.Context, d models.Descriptor, slot models.Slot) (*models.FileObject, error) {
	f, err := models.NewFileObject(id.FileID(uuid.New()), d, slot, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.files.Create(ctx, f); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create file")
	}
	if s.metrics != nil {
		s.metrics.FilesCreated.Inc()
	}
	return f, nil
}

func (s *Service) Get(ctx context.Context, fileID id.FileID) (*models.FileObject, error) {
	f, err := s.files.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "file not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load file")
	}
	return f, nil
}

// ReleaseUnreferenced deletes every candidate no evidence row references any
// more and returns the deleted records. Callers must already have removed the
// rows that owned the candidates and must pass a transactional ctx so the
// reference check and the delete see the same state.
func (s *Service) ReleaseUnreferenced(ctx context.Context, candidates []id.FileID) ([]*models.FileObject, error) {
	ctx, span := tracer.Start(ctx, "content.ReleaseUnreferenced")
	defer span.End()

	candidates = dedupe(candidates)
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	if s.metrics != nil {
		s.metrics.ReleaseBatches.Observe(float64(len(candidates)))
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if err := s.files.LockByIDs(ctx, candidates); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock files")
	}
	referenced, err := s.refs.ReferencedFileIDs(ctx, candidates)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check file references")
	}
	still := make(map[id.FileID]struct{}, len(referenced))
	for _, fileID := range referenced {
		still[fileID] = struct{}{}
	}

	orphans := make([]id.FileID, 0, len(candidates))
	for _, fileID := range candidates {
		if _, ok := still[fileID]; !ok {
			orphans = append(orphans, fileID)
		}
	}
	if s.metrics != nil {
		s.metrics.FilesRetained.Add(float64(len(candidates) - len(orphans)))
	}
	if len(orphans) == 0 {
		return nil, nil
	}

	released, err := s.files.FindByIDs(ctx, orphans)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load released files")
	}
	if _, err := s.files.DeleteByIDs(ctx, orphans); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete files")
	}

	for _, f := range released {
		s.logAudit(ctx, string(audit.EventFileReleased),
			"file_id", f.ID.String(),
			"storage_key", f.StorageKey,
		)
	}
	if s.metrics != nil {
		s.metrics.FilesReleased.Add(float64(len(released)))
	}
	span.SetAttributes(attribute.Int("released", len(released)))
	return released, nil
}

// Purge deletes the bytes of released files from the object store. Call it
// only after the release transaction committed. Failures are logged and
// counted; the metadata is already gone so there is nothing to roll back.
func (s *Service) Purge(ctx context.Context, released []*models.FileObject) {
	for _, f := range released {
		if err := s.purger.Purge(ctx, f.StorageKey); err != nil {
			if s.metrics != nil {
				s.metrics.PurgeFailures.Inc()
			}
			if s.logger != nil {
				s.logger.WarnContext(ctx, "blob purge failed",
					"file_id", f.ID.String(),
					"storage_key", f.StorageKey,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
			}
		}
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
		Subject:   attrs.String(attributes, "file_id"),
		Action:    event,
		RequestID: requestID,
	})
}

func dedupe(ids []id.FileID) []id.FileID {
	seen := make(map[id.FileID]struct{}, len(ids))
	out := make([]id.FileID, 0, len(ids))
	for _, fileID := range ids {
		if fileID.IsNil() {
			continue
		}
		if _, ok := seen[fileID]; ok {
			continue
		}
		seen[fileID] = struct{}{}
		out = append(out, fileID)
	}
	return out
}
