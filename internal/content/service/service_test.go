package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks FileStore,ReferenceFinder,AuditPublisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"dynforms/internal/content/blob"
	"dynforms/internal/content/metrics"
	"dynforms/internal/content/models"
	"dynforms/internal/content/service/mocks"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	audit "dynforms/pkg/platform/audit"
	"dynforms/pkg/platform/sentinel"
	"dynforms/pkg/requestcontext"
)

type ContentServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	files   *mocks.MockFileStore
	refs    *mocks.MockReferenceFinder
	auditor *mocks.MockAuditPublisher
	purger  *blob.Memory
	metrics *metrics.Metrics
	service *Service
	ctx     context.Context
	now     time.Time
}

func TestContentServiceSuite(t *testing.T) {
	suite.Run(t, new(ContentServiceSuite))
}

func (s *ContentServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.files = mocks.NewMockFileStore(s.ctrl)
	s.refs = mocks.NewMockReferenceFinder(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.purger = blob.NewMemory()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.files, s.refs,
		WithPurger(s.purger),
		WithMetrics(s.metrics),
		WithAuditPublisher(s.auditor),
	)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ContentServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func newFileID() id.FileID {
	return id.FileID(uuid.New())
}

func (s *ContentServiceSuite) TestCreate() {
	s.Run("fills placeholder defaults for an empty descriptor", func() {
		var stored *models.FileObject
		s.files.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, f *models.FileObject) error {
				stored = f
				return nil
			})

		f, err := s.service.Create(s.ctx, models.Descriptor{}, models.SlotSelfie)
		s.Require().NoError(err)
		s.Same(stored, f)
		s.Contains(f.StorageKey, "selfie:")
		s.Equal("image/jpeg", f.MimeType)
		s.Equal(s.now, f.CreatedAt)
		s.True(f.EncryptedAtRest)
	})

	s.Run("rejects negative size before touching the store", func() {
		size := int64(-1)
		_, err := s.service.Create(s.ctx, models.Descriptor{SizeBytes: &size}, models.SlotDocument)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("store failure is internal", func() {
		s.files.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

		_, err := s.service.Create(s.ctx, models.Descriptor{}, models.SlotDocument)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ContentServiceSuite) TestGet() {
	s.Run("not found", func() {
		s.files.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Get(s.ctx, newFileID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ContentServiceSuite) TestReleaseUnreferenced() {
	s.Run("empty candidate set is a no-op", func() {
		released, err := s.service.ReleaseUnreferenced(s.ctx, nil)
		s.Require().NoError(err)
		s.Empty(released)
	})

	s.Run("deletes only candidates with zero references", func() {
		shared, orphan := newFileID(), newFileID()
		orphanFile := &models.FileObject{ID: orphan, StorageKey: "doc:orphan"}

		gomock.InOrder(
			s.files.EXPECT().LockByIDs(gomock.Any(), []id.FileID{shared, orphan}).Return(nil),
			s.refs.EXPECT().ReferencedFileIDs(gomock.Any(), []id.FileID{shared, orphan}).
				Return([]id.FileID{shared}, nil),
			s.files.EXPECT().FindByIDs(gomock.Any(), []id.FileID{orphan}).
				Return([]*models.FileObject{orphanFile}, nil),
			s.files.EXPECT().DeleteByIDs(gomock.Any(), []id.FileID{orphan}).Return(1, nil),
		)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Event) error {
				s.Equal(string(audit.EventFileReleased), e.Action)
				s.Equal(orphan.String(), e.Subject)
				return nil
			})

		released, err := s.service.ReleaseUnreferenced(s.ctx, []id.FileID{shared, orphan, shared})
		s.Require().NoError(err)
		s.Require().Len(released, 1)
		s.Equal(orphan, released[0].ID)
	})

	s.Run("nothing deleted when every candidate is still referenced", func() {
		fileID := newFileID()
		s.files.EXPECT().LockByIDs(gomock.Any(), []id.FileID{fileID}).Return(nil)
		s.refs.EXPECT().ReferencedFileIDs(gomock.Any(), []id.FileID{fileID}).Return([]id.FileID{fileID}, nil)

		released, err := s.service.ReleaseUnreferenced(s.ctx, []id.FileID{fileID, {}})
		s.Require().NoError(err)
		s.Empty(released)
	})

	s.Run("lock failure aborts before the reference lookup", func() {
		s.files.EXPECT().LockByIDs(gomock.Any(), gomock.Any()).Return(errors.New("lock timeout"))

		_, err := s.service.ReleaseUnreferenced(s.ctx, []id.FileID{newFileID()})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("reference lookup failure aborts without deleting", func() {
		s.files.EXPECT().LockByIDs(gomock.Any(), gomock.Any()).Return(nil)
		s.refs.EXPECT().ReferencedFileIDs(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

		_, err := s.service.ReleaseUnreferenced(s.ctx, []id.FileID{newFileID()})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ContentServiceSuite) TestPurge() {
	s.service.Purge(s.ctx, []*models.FileObject{
		{ID: newFileID(), StorageKey: "doc:a"},
		{ID: newFileID(), StorageKey: "selfie:b"},
	})
	s.Equal([]string{"doc:a", "selfie:b"}, s.purger.Purged())
	s.Equal(float64(0), testutil.ToFloat64(s.metrics.PurgeFailures))
}

type failingPurger struct{}

func (failingPurger) Purge(context.Context, string) error { return errors.New("s3 unavailable") }

func (s *ContentServiceSuite) TestPurgeFailureIsCountedNotReturned() {
	svc := New(s.files, s.refs, WithPurger(failingPurger{}), WithMetrics(s.metrics))
	svc.Purge(s.ctx, []*models.FileObject{{ID: newFileID(), StorageKey: "doc:a"}})
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PurgeFailures))
}
