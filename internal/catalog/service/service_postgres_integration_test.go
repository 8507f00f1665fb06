//go:build integration

package service_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"dynforms/internal/catalog/models"
	"dynforms/internal/catalog/service"
	"dynforms/internal/catalog/store"
	formsmodels "dynforms/internal/forms/models"
	formsstore "dynforms/internal/forms/store"
	"dynforms/internal/platform/postgres"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	"dynforms/pkg/requestcontext"
	"dynforms/pkg/testutil/containers"
)

type CatalogPostgresSuite struct {
	suite.Suite
	ctx       context.Context
	postgres  *containers.PostgresContainer
	instances *formsstore.PostgresInstances
	service   *service.Service
}

func TestCatalogPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CatalogPostgresSuite))
}

func (s *CatalogPostgresSuite) SetupTest() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	db := s.postgres.DB
	s.instances = formsstore.NewPostgresInstances(db)
	s.service = service.New(
		store.NewPostgresTemplates(db),
		store.NewPostgresVersions(db),
		s.instances,
		postgres.NewTxManager(db),
	)
}

func (s *CatalogPostgresSuite) TestConcurrentVersionCreationIsContiguous() {
	tpl, err := s.service.CreateTemplate(s.ctx, models.CreateTemplateRequest{Name: "Onboarding"})
	s.Require().NoError(err)

	const writers = 12
	got := make([]int, writers)
	var g errgroup.Group
	for i := range writers {
		g.Go(func() error {
			v, err := s.service.CreateVersion(s.ctx, tpl.ID, models.CreateVersionRequest{DesignJSON: `{"pages":[]}`})
			if err != nil {
				return err
			}
			got[i] = v.Version
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	slices.Sort(got)
	want := make([]int, writers)
	for i := range want {
		want[i] = i + 1
	}
	s.Equal(want, got)

	versions, err := s.service.ListVersions(s.ctx, tpl.ID)
	s.Require().NoError(err)
	s.Len(versions, writers)
	s.Equal(1, versions[0].Version)
	s.Equal(writers, versions[writers-1].Version)
}

func (s *CatalogPostgresSuite) TestPublishFreezesDesign() {
	tpl, err := s.service.CreateTemplate(s.ctx, models.CreateTemplateRequest{Name: "KYC"})
	s.Require().NoError(err)
	v, err := s.service.CreateVersion(s.ctx, tpl.ID, models.CreateVersionRequest{DesignJSON: "{}"})
	s.Require().NoError(err)

	published, err := s.service.PublishVersion(s.ctx, tpl.ID, v.Version)
	s.Require().NoError(err)
	s.True(published.IsPublished)

	design := `{"changed":true}`
	_, err = s.service.UpdateVersion(s.ctx, tpl.ID, v.Version, models.UpdateVersionRequest{DesignJSON: &design})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	latest, err := s.service.GetLatestVersion(s.ctx, tpl.ID, true)
	s.Require().NoError(err)
	s.Equal(v.Version, latest.Version)
	s.Equal("{}", latest.DesignJSON)
}

func (s *CatalogPostgresSuite) TestBoundVersionAndTemplateCannotBeDeleted() {
	tpl, err := s.service.CreateTemplate(s.ctx, models.CreateTemplateRequest{Name: "KYC"})
	s.Require().NoError(err)
	v, err := s.service.CreateVersion(s.ctx, tpl.ID, models.CreateVersionRequest{DesignJSON: "{}"})
	s.Require().NoError(err)

	fi, err := formsmodels.NewFormInstance(id.InstanceID(uuid.New()), tpl.ID, v.Version, id.UserID(uuid.New()),
		formsmodels.Contact{}, requestcontext.Now(s.ctx))
	s.Require().NoError(err)
	s.Require().NoError(s.instances.Create(s.ctx, fi))

	err = s.service.DeleteVersion(s.ctx, tpl.ID, v.Version)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	err = s.service.DeleteTemplate(s.ctx, tpl.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	s.Require().NoError(s.instances.Delete(s.ctx, fi.ID))
	s.Require().NoError(s.service.DeleteTemplate(s.ctx, tpl.ID))
	_, err = s.service.GetTemplate(s.ctx, tpl.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
