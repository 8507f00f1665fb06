package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"dynforms/internal/content/blob"
	contentservice "dynforms/internal/content/service"
	contentstore "dynforms/internal/content/store"
	"dynforms/internal/evidence/metrics"
	"dynforms/internal/evidence/models"
	"dynforms/internal/evidence/store"
	formsmodels "dynforms/internal/forms/models"
	formsstore "dynforms/internal/forms/store"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	"dynforms/pkg/platform/tx"
	"dynforms/pkg/requestcontext"
)

func ptr[T any](v T) *T { return &v }

type EvidenceServiceSuite struct {
	suite.Suite
	ctx       context.Context
	instances *formsstore.InMemoryInstances
	evidence  *store.InMemory
	files     *contentstore.InMemory
	purger    *blob.Memory
	metrics   *metrics.Metrics
	service   *Service

	owner    id.Principal
	stranger id.Principal
	admin    id.Principal
	instance *formsmodels.FormInstance
}

func TestEvidenceServiceSuite(t *testing.T) {
	suite.Run(t, new(EvidenceServiceSuite))
}

func (s *EvidenceServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	s.instances = formsstore.NewInMemoryInstances()
	s.evidence = store.NewInMemory()
	s.files = contentstore.NewInMemory()
	s.purger = blob.NewMemory()
	s.metrics = metrics.New(prometheus.NewRegistry())

	content := contentservice.New(s.files, s.evidence, contentservice.WithPurger(s.purger))
	txm := tx.NewMemoryManager(s.instances, s.evidence, s.files)
	s.service = New(s.evidence, s.instances, content, txm, WithMetrics(s.metrics))

	s.owner = id.Principal{UserID: id.UserID(uuid.New()), Role: id.RoleUser}
	s.stranger = id.Principal{UserID: id.UserID(uuid.New()), Role: id.RoleUser}
	s.admin = id.Principal{UserID: id.UserID(uuid.New()), Role: id.RoleAdmin}
	s.instance = s.newInstance(s.owner)
}

func (s *EvidenceServiceSuite) newInstance(owner id.Principal) *formsmodels.FormInstance {
	fi, err := formsmodels.NewFormInstance(id.InstanceID(uuid.New()), id.TemplateID(uuid.New()), 1,
		owner.UserID, formsmodels.Contact{}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.instances.Create(s.ctx, fi))
	return fi
}

func (s *EvidenceServiceSuite) fileExists(fileID id.FileID) bool {
	_, err := s.files.FindByID(s.ctx, fileID)
	return err == nil
}

func completeFile(key, mime string, size int64) models.FileRequest {
	return models.FileRequest{StorageKey: ptr(key), MimeType: ptr(mime), SizeBytes: ptr(size)}
}

func documentRequest(file models.FileRequest) models.AddDocumentRequest {
	return models.AddDocumentRequest{
		DocumentBody: models.DocumentBody{DocType: ptr("passport")},
		FileRequest:  file,
	}
}

func (s *EvidenceServiceSuite) TestAddDocumentDefaults() {
	doc, err := s.service.AddDocument(s.ctx, s.owner, s.instance.ID, documentRequest(models.FileRequest{}))
	s.Require().NoError(err)
	s.Equal(models.SideSingle, doc.Side)

	f, err := s.files.FindByID(s.ctx, doc.FileID)
	s.Require().NoError(err)
	s.Contains(f.StorageKey, "doc:")
	s.Equal("application/octet-stream", f.MimeType)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.DocumentsAdded))
}

func (s *EvidenceServiceSuite) TestAddDocumentNeverReusesFiles() {
	file := completeFile("bucket/passport.png", "image/png", 42)
	first, err := s.service.AddDocument(s.ctx, s.owner, s.instance.ID, documentRequest(file))
	s.Require().NoError(err)
	second, err := s.service.AddDocument(s.ctx, s.owner, s.instance.ID, documentRequest(file))
	s.Require().NoError(err)
	s.NotEqual(first.FileID, second.FileID)
}

func (s *EvidenceServiceSuite) TestAccessPolicy() {
	s.Run("stranger is forbidden", func() {
		_, err := s.service.AddDocument(s.ctx, s.stranger, s.instance.ID, documentRequest(models.FileRequest{}))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		_, err = s.service.ListBiometrics(s.ctx, s.stranger, s.instance.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("admin may act on any form", func() {
		_, err := s.service.AddDocument(s.ctx, s.admin, s.instance.ID, documentRequest(models.FileRequest{}))
		s.NoError(err)
	})

	s.Run("unknown form is not found", func() {
		_, err := s.service.ListDocuments(s.ctx, s.admin, id.InstanceID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("invalid side leaves no file behind", func() {
		before, _ := s.files.Count(s.ctx)
		req := documentRequest(models.FileRequest{})
		req.Side = ptr("diagonal")
		_, err := s.service.AddDocument(s.ctx, s.owner, s.instance.ID, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		after, _ := s.files.Count(s.ctx)
		s.Equal(before, after)
	})
}

// Attach, replace, then delete with cleanup: only the current file goes.
func (s *EvidenceServiceSuite) TestDocumentReplaceThenDelete() {
	doc, err := s.service.AddDocument(s.ctx, s.owner, s.instance.ID, documentRequest(completeFile("k1", "image/png", 1)))
	s.Require().NoError(err)
	f1 := doc.FileID

	updated, err := s.service.UpdateDocument(s.ctx, s.owner, s.instance.ID, doc.ID, models.UpdateDocumentRequest{
		FileRequest: completeFile("k2", "image/png", 2),
	})
	s.Require().NoError(err)
	f2 := updated.FileID
	s.NotEqual(f1, f2)
	s.True(s.fileExists(f1), "replaced file is left untouched")
	s.Equal("passport", updated.DocType)

	s.Require().NoError(s.service.DeleteDocument(s.ctx, s.owner, s.instance.ID, doc.ID, true))
	s.False(s.fileExists(f2))
	s.True(s.fileExists(f1), "orphan is not reachable from this delete")
	s.Equal([]string{"k2"}, s.purger.Purged())
}

func (s *EvidenceServiceSuite) TestUpdateDocumentIgnoresPartialDescriptor() {
	doc, err := s.service.AddDocument(s.ctx, s.owner, s.instance.ID, documentRequest(models.FileRequest{}))
	s.Require().NoError(err)

	updated, err := s.service.UpdateDocument(s.ctx, s.owner, s.instance.ID, doc.ID, models.UpdateDocumentRequest{
		DocumentBody: models.DocumentBody{DocType: ptr("id_card")},
		FileRequest:  models.FileRequest{MimeType: ptr("image/png")},
	})
	s.Require().NoError(err)
	s.Equal("id_card", updated.DocType)
	s.Equal(doc.FileID, updated.FileID, "incomplete descriptor replaces nothing")

	stored, err := s.service.ListDocuments(s.ctx, s.owner, s.instance.ID)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal("id_card", stored[0].DocType)

	_, err = s.service.UpdateDocument(s.ctx, s.owner, s.instance.ID, id.DocumentID(uuid.New()), models.UpdateDocumentRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *EvidenceServiceSuite) TestDeleteDocumentKeepsSharedFile() {
	doc, err := s.service.AddDocument(s.ctx, s.owner, s.instance.ID, documentRequest(models.FileRequest{}))
	s.Require().NoError(err)

	other := s.newInstance(s.owner)
	shared, err := models.NewIdentityDocument(id.DocumentID(uuid.New()), other.ID, doc.FileID,
		models.DocumentFields{DocType: ptr("licence")}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.evidence.CreateDocument(s.ctx, shared))

	s.Require().NoError(s.service.DeleteDocument(s.ctx, s.owner, s.instance.ID, doc.ID, true))
	s.True(s.fileExists(doc.FileID), "file still referenced from another form")
	s.Empty(s.purger.Purged())
}

func (s *EvidenceServiceSuite) TestBiometricSlots() {
	s.Run("selfie always minted, video only with a key", func() {
		b, err := s.service.AddBiometric(s.ctx, s.owner, s.instance.ID, models.AddBiometricRequest{})
		s.Require().NoError(err)
		s.Nil(b.VideoFileID)
		selfie, err := s.files.FindByID(s.ctx, b.SelfieFileID)
		s.Require().NoError(err)
		s.Equal("image/jpeg", selfie.MimeType)
		s.Contains(selfie.StorageKey, "selfie:")

		b, err = s.service.AddBiometric(s.ctx, s.owner, s.instance.ID, models.AddBiometricRequest{
			BiometricFiles: models.BiometricFiles{Video: models.FileRequest{StorageKey: ptr("v1")}},
		})
		s.Require().NoError(err)
		s.Require().NotNil(b.VideoFileID)
		video, err := s.files.FindByID(s.ctx, *b.VideoFileID)
		s.Require().NoError(err)
		s.Equal("video/mp4", video.MimeType)
	})

	s.Run("slots replace independently and old files stay", func() {
		b, err := s.service.AddBiometric(s.ctx, s.owner, s.instance.ID, models.AddBiometricRequest{
			LivenessBody:   models.LivenessBody{LivenessScore: ptr(0.4)},
			BiometricFiles: models.BiometricFiles{Video: models.FileRequest{StorageKey: ptr("v1")}},
		})
		s.Require().NoError(err)
		oldSelfie, oldVideo := b.SelfieFileID, *b.VideoFileID

		updated, err := s.service.UpdateBiometric(s.ctx, s.owner, s.instance.ID, b.ID, models.UpdateBiometricRequest{
			LivenessBody:   models.LivenessBody{RetryCount: ptr(3)},
			BiometricFiles: models.BiometricFiles{Video: completeFile("v2", "video/webm", 10)},
		})
		s.Require().NoError(err)
		s.Equal(oldSelfie, updated.SelfieFileID)
		s.NotEqual(oldVideo, *updated.VideoFileID)
		s.True(s.fileExists(oldVideo))
		s.Equal(3, updated.RetryCount)
		s.Equal(0.4, *updated.LivenessScore)
	})

	s.Run("partial slot descriptors leave files and apply liveness", func() {
		b, err := s.service.AddBiometric(s.ctx, s.owner, s.instance.ID, models.AddBiometricRequest{})
		s.Require().NoError(err)

		updated, err := s.service.UpdateBiometric(s.ctx, s.owner, s.instance.ID, b.ID, models.UpdateBiometricRequest{
			LivenessBody: models.LivenessBody{LivenessScore: ptr(0.9)},
			BiometricFiles: models.BiometricFiles{
				Selfie: models.FileRequest{StorageKey: ptr("s2")},
				Video:  models.FileRequest{StorageKey: ptr("v9"), MimeType: ptr("video/webm")},
			},
		})
		s.Require().NoError(err)
		s.Equal(b.SelfieFileID, updated.SelfieFileID)
		s.Nil(updated.VideoFileID)
		s.Equal(0.9, *updated.LivenessScore)
	})

	s.Run("delete releases both slots", func() {
		b, err := s.service.AddBiometric(s.ctx, s.owner, s.instance.ID, models.AddBiometricRequest{
			BiometricFiles: models.BiometricFiles{Video: models.FileRequest{StorageKey: ptr("v3")}},
		})
		s.Require().NoError(err)
		s.Require().NoError(s.service.DeleteBiometric(s.ctx, s.owner, s.instance.ID, b.ID, true))
		s.False(s.fileExists(b.SelfieFileID))
		s.False(s.fileExists(*b.VideoFileID))
	})

	s.Run("delete without cleanup keeps files", func() {
		b, err := s.service.AddBiometric(s.ctx, s.owner, s.instance.ID, models.AddBiometricRequest{})
		s.Require().NoError(err)
		s.Require().NoError(s.service.DeleteBiometric(s.ctx, s.owner, s.instance.ID, b.ID, false))
		s.True(s.fileExists(b.SelfieFileID))
	})
}

// A capture whose selfie and video point at the same file releases it once
// and only after the row is gone.
func (s *EvidenceServiceSuite) TestBiometricSlotsSharingOneFile() {
	b, err := s.service.AddBiometric(s.ctx, s.owner, s.instance.ID, models.AddBiometricRequest{})
	s.Require().NoError(err)
	b.VideoFileID = ptr(b.SelfieFileID)
	s.Require().NoError(s.evidence.UpdateBiometric(s.ctx, b))

	s.Require().NoError(s.service.DeleteBiometric(s.ctx, s.owner, s.instance.ID, b.ID, true))
	s.False(s.fileExists(b.SelfieFileID))
	s.Len(s.purger.Purged(), 1)
}

// evidenceRow is the test's model of one live evidence row.
type evidenceRow struct {
	instanceID id.InstanceID
	docID      *id.DocumentID
	bioID      *id.BiometricID
	files      []id.FileID
}

// Random interleavings of attach, replace, share and detach never leave a
// row pointing at a missing file, and a cleanup delete removes exactly the
// candidates nothing references any more.
func (s *EvidenceServiceSuite) TestReferenceCountSafetyUnderRandomOperations() {
	rng := rand.New(rand.NewSource(7))
	forms := []*formsmodels.FormInstance{s.instance, s.newInstance(s.owner), s.newInstance(s.owner)}
	var rows []*evidenceRow

	referenced := func(fileID id.FileID) bool {
		for _, r := range rows {
			for _, f := range r.files {
				if f == fileID {
					return true
				}
			}
		}
		return false
	}
	anyFile := func() (id.FileID, bool) {
		if len(rows) == 0 {
			return id.FileID{}, false
		}
		r := rows[rng.Intn(len(rows))]
		return r.files[rng.Intn(len(r.files))], true
	}
	removeRow := func(i int) *evidenceRow {
		r := rows[i]
		rows = append(rows[:i], rows[i+1:]...)
		return r
	}

	for step := 0; step < 400; step++ {
		fi := forms[rng.Intn(len(forms))]
		switch op := rng.Intn(7); op {
		case 0:
			doc, err := s.service.AddDocument(s.ctx, s.owner, fi.ID, documentRequest(models.FileRequest{}))
			s.Require().NoError(err)
			rows = append(rows, &evidenceRow{instanceID: fi.ID, docID: &doc.ID, files: []id.FileID{doc.FileID}})
		case 1:
			req := models.AddBiometricRequest{}
			if rng.Intn(2) == 0 {
				req.Video = models.FileRequest{StorageKey: ptr(uuid.NewString())}
			}
			b, err := s.service.AddBiometric(s.ctx, s.owner, fi.ID, req)
			s.Require().NoError(err)
			rows = append(rows, &evidenceRow{instanceID: fi.ID, bioID: &b.ID, files: b.FileIDs()})
		case 2:
			// share an existing file from a new document row
			fileID, ok := anyFile()
			if !ok {
				continue
			}
			doc, err := models.NewIdentityDocument(id.DocumentID(uuid.New()), fi.ID, fileID,
				models.DocumentFields{DocType: ptr("shared")}, time.Now())
			s.Require().NoError(err)
			s.Require().NoError(s.evidence.CreateDocument(s.ctx, doc))
			rows = append(rows, &evidenceRow{instanceID: fi.ID, docID: &doc.ID, files: []id.FileID{fileID}})
		case 3:
			for _, r := range rows {
				if r.docID == nil {
					continue
				}
				doc, err := s.service.UpdateDocument(s.ctx, s.owner, r.instanceID, *r.docID, models.UpdateDocumentRequest{
					FileRequest: completeFile(uuid.NewString(), "image/png", 1),
				})
				s.Require().NoError(err)
				r.files = []id.FileID{doc.FileID}
				break
			}
		case 4:
			for _, r := range rows {
				if r.bioID == nil {
					continue
				}
				b, err := s.service.UpdateBiometric(s.ctx, s.owner, r.instanceID, *r.bioID, models.UpdateBiometricRequest{
					BiometricFiles: models.BiometricFiles{Selfie: completeFile(uuid.NewString(), "image/jpeg", 1)},
				})
				s.Require().NoError(err)
				r.files = b.FileIDs()
				break
			}
		default:
			if len(rows) == 0 {
				continue
			}
			r := removeRow(rng.Intn(len(rows)))
			cleanup := rng.Intn(3) > 0
			if r.docID != nil {
				s.Require().NoError(s.service.DeleteDocument(s.ctx, s.owner, r.instanceID, *r.docID, cleanup))
			} else {
				s.Require().NoError(s.service.DeleteBiometric(s.ctx, s.owner, r.instanceID, *r.bioID, cleanup))
			}
			if cleanup {
				for _, f := range r.files {
					s.Require().Equal(referenced(f), s.fileExists(f),
						"step %d: file %s exists=%v referenced=%v", step, f, s.fileExists(f), referenced(f))
				}
			}
		}

		for _, r := range rows {
			for _, f := range r.files {
				s.Require().True(s.fileExists(f), "step %d: dangling reference to %s", step, f)
			}
		}
	}
}
