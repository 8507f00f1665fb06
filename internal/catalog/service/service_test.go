package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"dynforms/internal/catalog/cache"
	"dynforms/internal/catalog/metrics"
	"dynforms/internal/catalog/models"
	"dynforms/internal/catalog/store"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	"dynforms/pkg/platform/tx"
	"dynforms/pkg/requestcontext"
)

type fakeUsage struct {
	mu       sync.Mutex
	bindings map[id.TemplateID][]int
}

func (f *fakeUsage) bind(templateID id.TemplateID, version int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindings[templateID] = append(f.bindings[templateID], version)
}

func (f *fakeUsage) CountByTemplate(_ context.Context, templateID id.TemplateID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bindings[templateID]), nil
}

func (f *fakeUsage) CountByTemplateVersion(_ context.Context, templateID id.TemplateID, version int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.bindings[templateID] {
		if v == version {
			n++
		}
	}
	return n, nil
}

type recordingCache struct {
	cache.Passthrough
	mu          sync.Mutex
	invalidated []id.TemplateID
}

func (c *recordingCache) Invalidate(_ context.Context, templateID id.TemplateID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, templateID)
	return nil
}

type CatalogServiceSuite struct {
	suite.Suite
	templates *store.InMemoryTemplates
	versions  *store.InMemoryVersions
	usage     *fakeUsage
	cache     *recordingCache
	service   *Service
	ctx       context.Context
}

func TestCatalogServiceSuite(t *testing.T) {
	suite.Run(t, new(CatalogServiceSuite))
}

func (s *CatalogServiceSuite) SetupTest() {
	s.templates = store.NewInMemoryTemplates()
	s.versions = store.NewInMemoryVersions()
	s.usage = &fakeUsage{bindings: make(map[id.TemplateID][]int)}
	s.cache = &recordingCache{}
	s.service = New(s.templates, s.versions, s.usage,
		tx.NewMemoryManager(s.templates, s.versions),
		WithCache(s.cache),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
}

func (s *CatalogServiceSuite) createTemplate() *models.Template {
	t, err := s.service.CreateTemplate(s.ctx, models.CreateTemplateRequest{Name: "KYC onboarding"})
	s.Require().NoError(err)
	return t
}

func (s *CatalogServiceSuite) createVersion(templateID id.TemplateID) *models.TemplateVersion {
	v, err := s.service.CreateVersion(s.ctx, templateID, models.CreateVersionRequest{DesignJSON: "{}"})
	s.Require().NoError(err)
	return v
}

func (s *CatalogServiceSuite) TestCreateTemplate() {
	s.Run("starts in draft", func() {
		t := s.createTemplate()
		s.Equal(models.TemplateStatusDraft, t.Status)
	})

	s.Run("empty name is invalid", func() {
		_, err := s.service.CreateTemplate(s.ctx, models.CreateTemplateRequest{Name: " "})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *CatalogServiceSuite) TestCreateVersion() {
	s.Run("numbers start at one and increase", func() {
		t := s.createTemplate()
		s.Equal(1, s.createVersion(t.ID).Version)
		v2 := s.createVersion(t.ID)
		s.Equal(2, v2.Version)
		s.False(v2.IsPublished)
	})

	s.Run("unknown template is not found", func() {
		_, err := s.service.CreateVersion(s.ctx, id.TemplateID(uuid.New()), models.CreateVersionRequest{DesignJSON: "{}"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("malformed design is invalid and consumes no number", func() {
		t := s.createTemplate()
		_, err := s.service.CreateVersion(s.ctx, t.ID, models.CreateVersionRequest{DesignJSON: "{"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		s.Equal(1, s.createVersion(t.ID).Version)
	})

	s.Run("malformed schema is invalid", func() {
		t := s.createTemplate()
		bad := "not-json"
		_, err := s.service.CreateVersion(s.ctx, t.ID, models.CreateVersionRequest{DesignJSON: "{}", JSONSchema: &bad})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *CatalogServiceSuite) TestConcurrentCreateVersionIsContiguous() {
	t := s.createTemplate()
	const n = 40

	var wg sync.WaitGroup
	results := make(chan int, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.service.CreateVersion(s.ctx, t.ID, models.CreateVersionRequest{DesignJSON: "{}"})
			if err != nil {
				s.Fail("unexpected error", err.Error())
				return
			}
			results <- v.Version
		}()
	}
	wg.Wait()
	close(results)

	var got []int
	for v := range results {
		got = append(got, v)
	}
	sort.Ints(got)
	s.Require().Len(got, n)
	for i, v := range got {
		s.Equal(i+1, v)
	}
}

func (s *CatalogServiceSuite) TestPublishVersion() {
	s.Run("publish is idempotent and leaves siblings alone", func() {
		t := s.createTemplate()
		s.createVersion(t.ID)
		s.createVersion(t.ID)

		v, err := s.service.PublishVersion(s.ctx, t.ID, 1)
		s.Require().NoError(err)
		s.True(v.IsPublished)
		_, err = s.service.PublishVersion(s.ctx, t.ID, 1)
		s.Require().NoError(err)

		sibling, err := s.service.GetVersion(s.ctx, t.ID, 2)
		s.Require().NoError(err)
		s.False(sibling.IsPublished)
		s.Contains(s.cache.invalidated, t.ID)
	})

	s.Run("missing pair is not found", func() {
		t := s.createTemplate()
		_, err := s.service.PublishVersion(s.ctx, t.ID, 7)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("published version is frozen", func() {
		t := s.createTemplate()
		s.createVersion(t.ID)
		_, err := s.service.PublishVersion(s.ctx, t.ID, 1)
		s.Require().NoError(err)

		design := `{"fields":[]}`
		_, err = s.service.UpdateVersion(s.ctx, t.ID, 1, models.UpdateVersionRequest{DesignJSON: &design})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		v, err := s.service.GetVersion(s.ctx, t.ID, 1)
		s.Require().NoError(err)
		s.Equal("{}", v.DesignJSON)
	})
}

func (s *CatalogServiceSuite) TestUpdateVersion() {
	t := s.createTemplate()
	s.createVersion(t.ID)

	design := `{"steps":["personal_info"]}`
	v, err := s.service.UpdateVersion(s.ctx, t.ID, 1, models.UpdateVersionRequest{DesignJSON: &design})
	s.Require().NoError(err)
	s.Equal(design, v.DesignJSON)

	bad := "{"
	_, err = s.service.UpdateVersion(s.ctx, t.ID, 1, models.UpdateVersionRequest{JSONSchema: &bad})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// Versions 1 and 2 exist, only 2 is published: both filters return 2.
func (s *CatalogServiceSuite) TestLatestVersionPrefersHighestNumber() {
	t := s.createTemplate()
	s.createVersion(t.ID)
	s.createVersion(t.ID)
	_, err := s.service.PublishVersion(s.ctx, t.ID, 2)
	s.Require().NoError(err)

	published, err := s.service.GetLatestVersion(s.ctx, t.ID, true)
	s.Require().NoError(err)
	s.Equal(2, published.Version)

	latest, err := s.service.GetLatestVersion(s.ctx, t.ID, false)
	s.Require().NoError(err)
	s.Equal(2, latest.Version)
}

func (s *CatalogServiceSuite) TestLatestVersionNotFound() {
	t := s.createTemplate()
	s.createVersion(t.ID)

	_, err := s.service.GetLatestVersion(s.ctx, t.ID, true)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	v, err := s.service.GetLatestVersion(s.ctx, t.ID, false)
	s.Require().NoError(err)
	s.Equal(1, v.Version)
}

func (s *CatalogServiceSuite) TestUpdateTemplate() {
	t := s.createTemplate()

	status := "archived"
	updated, err := s.service.UpdateTemplate(s.ctx, t.ID, models.UpdateTemplateRequest{Status: &status})
	s.Require().NoError(err)
	s.Equal(models.TemplateStatusArchived, updated.Status)
	s.Equal(t.Name, updated.Name)

	bogus := "canceled"
	_, err = s.service.UpdateTemplate(s.ctx, t.ID, models.UpdateTemplateRequest{Status: &bogus})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.UpdateTemplate(s.ctx, id.TemplateID(uuid.New()), models.UpdateTemplateRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CatalogServiceSuite) TestDeleteTemplate() {
	s.Run("refused while an instance references it", func() {
		t := s.createTemplate()
		s.createVersion(t.ID)
		s.usage.bind(t.ID, 1)

		err := s.service.DeleteTemplate(s.ctx, t.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		_, err = s.service.GetTemplate(s.ctx, t.ID)
		s.NoError(err)
	})

	s.Run("removes template and versions", func() {
		t := s.createTemplate()
		s.createVersion(t.ID)
		s.createVersion(t.ID)

		s.Require().NoError(s.service.DeleteTemplate(s.ctx, t.ID))
		_, err := s.service.GetTemplate(s.ctx, t.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		_, err = s.service.GetVersion(s.ctx, t.ID, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("absent template is not found", func() {
		err := s.service.DeleteTemplate(s.ctx, id.TemplateID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *CatalogServiceSuite) TestDeleteVersion() {
	t := s.createTemplate()
	s.createVersion(t.ID)
	s.createVersion(t.ID)
	s.usage.bind(t.ID, 1)

	err := s.service.DeleteVersion(s.ctx, t.ID, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	s.Require().NoError(s.service.DeleteVersion(s.ctx, t.ID, 2))
	_, err = s.service.GetVersion(s.ctx, t.ID, 2)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	err = s.service.DeleteVersion(s.ctx, t.ID, 2)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	// Numbering continues from the highest surviving version.
	s.Equal(2, s.createVersion(t.ID).Version)
}

func (s *CatalogServiceSuite) TestListVersions() {
	t := s.createTemplate()
	s.createVersion(t.ID)
	s.createVersion(t.ID)

	versions, err := s.service.ListVersions(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Require().Len(versions, 2)
	s.Equal(1, versions[0].Version)

	_, err = s.service.ListVersions(s.ctx, id.TemplateID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
