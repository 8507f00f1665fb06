package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"dynforms/internal/forms/models"
	id "dynforms/pkg/domain"
	"dynforms/pkg/platform/sentinel"
)

type FormsStoreSuite struct {
	suite.Suite
	instances *InMemoryInstances
	steps     *InMemorySteps
	ctx       context.Context
	now       time.Time
}

func TestFormsStoreSuite(t *testing.T) {
	suite.Run(t, new(FormsStoreSuite))
}

func (s *FormsStoreSuite) SetupTest() {
	s.instances = NewInMemoryInstances()
	s.steps = NewInMemorySteps()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *FormsStoreSuite) newInstance(templateID id.TemplateID, version int, assignee id.UserID, offset time.Duration) *models.FormInstance {
	fi, err := models.NewFormInstance(id.InstanceID(uuid.New()), templateID, version, assignee, models.Contact{}, s.now.Add(offset))
	s.Require().NoError(err)
	s.Require().NoError(s.instances.Create(s.ctx, fi))
	return fi
}

func (s *FormsStoreSuite) TestInstanceQueries() {
	templateID := id.TemplateID(uuid.New())
	alice := id.UserID(uuid.New())
	bob := id.UserID(uuid.New())

	first := s.newInstance(templateID, 1, alice, 0)
	second := s.newInstance(templateID, 2, alice, time.Minute)
	s.newInstance(id.TemplateID(uuid.New()), 1, bob, 2*time.Minute)

	s.Run("lists by assignee newest first", func() {
		got, err := s.instances.ListByAssignee(s.ctx, alice)
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(second.ID, got[0].ID)
		s.Equal(first.ID, got[1].ID)
	})

	s.Run("counts usage by template and version", func() {
		n, err := s.instances.CountByTemplate(s.ctx, templateID)
		s.Require().NoError(err)
		s.Equal(2, n)

		n, err = s.instances.CountByTemplateVersion(s.ctx, templateID, 2)
		s.Require().NoError(err)
		s.Equal(1, n)

		n, err = s.instances.CountByTemplateVersion(s.ctx, templateID, 3)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("delete then find is not found", func() {
		s.Require().NoError(s.instances.Delete(s.ctx, first.ID))
		_, err := s.instances.FindByID(s.ctx, first.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.ErrorIs(s.instances.Delete(s.ctx, first.ID), sentinel.ErrNotFound)
	})
}

func (s *FormsStoreSuite) TestStepUniquenessAndOrder() {
	instanceID := id.InstanceID(uuid.New())
	for _, key := range []string{"zeta", "biometric", "personal_info", "alpha"} {
		step, err := models.NewStepResponse(id.StepResponseID(uuid.New()), instanceID, key, `{}`, s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.steps.Create(s.ctx, step))
	}

	dup, err := models.NewStepResponse(id.StepResponseID(uuid.New()), instanceID, "alpha", `{}`, s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.steps.Create(s.ctx, dup), sentinel.ErrConflict)

	got, err := s.steps.ListByInstance(s.ctx, instanceID)
	s.Require().NoError(err)
	keys := make([]string, 0, len(got))
	for _, step := range got {
		keys = append(keys, step.StepKey)
	}
	s.Equal([]string{"personal_info", "biometric", "alpha", "zeta"}, keys)

	n, err := s.steps.DeleteByInstance(s.ctx, instanceID)
	s.Require().NoError(err)
	s.Equal(4, n)
}

func (s *FormsStoreSuite) TestSnapshotRestores() {
	fi := s.newInstance(id.TemplateID(uuid.New()), 1, id.UserID(uuid.New()), 0)
	restore := s.instances.Snapshot()
	s.Require().NoError(s.instances.Delete(s.ctx, fi.ID))
	restore()

	_, err := s.instances.FindByID(s.ctx, fi.ID)
	s.NoError(err)
}
