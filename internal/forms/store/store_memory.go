package store

import (
	"context"
	"maps"
	"sort"
	"sync"

	"dynforms/internal/forms/models"
	id "dynforms/pkg/domain"
	"dynforms/pkg/platform/sentinel"
)

// InMemoryInstances keeps form instances in a map. It implements
// tx.Snapshotter for the in-memory transaction manager.
type InMemoryInstances struct {
	mu        sync.RWMutex
	instances map[id.InstanceID]models.FormInstance
}

func NewInMemoryInstances() *InMemoryInstances {
	return &InMemoryInstances{instances: make(map[id.InstanceID]models.FormInstance)}
}

func (s *InMemoryInstances) Create(_ context.Context, fi *models.FormInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.instances[fi.ID]; exists {
		return sentinel.ErrConflict
	}
	s.instances[fi.ID] = *fi
	return nil
}

func (s *InMemoryInstances) FindByID(_ context.Context, instanceID id.InstanceID) (*models.FormInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fi, ok := s.instances[instanceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &fi, nil
}

// FindByIDForUpdate is FindByID; the in-memory transaction lock already
// serialises writers.
func (s *InMemoryInstances) FindByIDForUpdate(ctx context.Context, instanceID id.InstanceID) (*models.FormInstance, error) {
	return s.FindByID(ctx, instanceID)
}

func (s *InMemoryInstances) List(_ context.Context) ([]*models.FormInstance, error) {
	return s.filter(func(*models.FormInstance) bool { return true }), nil
}

func (s *InMemoryInstances) ListByAssignee(_ context.Context, userID id.UserID) ([]*models.FormInstance, error) {
	return s.filter(func(fi *models.FormInstance) bool {
		return fi.AssigneeUserID != nil && *fi.AssigneeUserID == userID
	}), nil
}

// filter returns matches newest first.
func (s *InMemoryInstances) filter(keep func(*models.FormInstance) bool) []*models.FormInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.FormInstance
	for _, fi := range s.instances {
		if keep(&fi) {
			out = append(out, &fi)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (s *InMemoryInstances) Update(_ context.Context, fi *models.FormInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[fi.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.instances[fi.ID] = *fi
	return nil
}

func (s *InMemoryInstances) Delete(_ context.Context, instanceID id.InstanceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[instanceID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.instances, instanceID)
	return nil
}

func (s *InMemoryInstances) CountByTemplate(_ context.Context, templateID id.TemplateID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, fi := range s.instances {
		if fi.TemplateID == templateID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryInstances) CountByTemplateVersion(_ context.Context, templateID id.TemplateID, version int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, fi := range s.instances {
		if fi.TemplateID == templateID && fi.TemplateVersion == version {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryInstances) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.instances)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.instances = saved
		s.mu.Unlock()
	}
}

type stepKey struct {
	instanceID id.InstanceID
	key        string
}

// InMemorySteps keys step responses by (instance, step key), mirroring the
// unique constraint in Postgres.
type InMemorySteps struct {
	mu    sync.RWMutex
	steps map[stepKey]models.FormStepResponse
}

func NewInMemorySteps() *InMemorySteps {
	return &InMemorySteps{steps: make(map[stepKey]models.FormStepResponse)}
}

func (s *InMemorySteps) Create(_ context.Context, step *models.FormStepResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stepKey{step.InstanceID, step.StepKey}
	if _, exists := s.steps[key]; exists {
		return sentinel.ErrConflict
	}
	s.steps[key] = *step
	return nil
}

func (s *InMemorySteps) FindByKey(_ context.Context, instanceID id.InstanceID, key string) (*models.FormStepResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	step, ok := s.steps[stepKey{instanceID, key}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &step, nil
}

// ListByInstance orders by step order, then step key.
func (s *InMemorySteps) ListByInstance(_ context.Context, instanceID id.InstanceID) ([]*models.FormStepResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.FormStepResponse
	for key, step := range s.steps {
		if key.instanceID == instanceID {
			out = append(out, &step)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StepOrder != out[j].StepOrder {
			return out[i].StepOrder < out[j].StepOrder
		}
		return out[i].StepKey < out[j].StepKey
	})
	return out, nil
}

func (s *InMemorySteps) Update(_ context.Context, step *models.FormStepResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stepKey{step.InstanceID, step.StepKey}
	if _, ok := s.steps[key]; !ok {
		return sentinel.ErrNotFound
	}
	s.steps[key] = *step
	return nil
}

func (s *InMemorySteps) Delete(_ context.Context, instanceID id.InstanceID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := stepKey{instanceID, key}
	if _, ok := s.steps[k]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.steps, k)
	return nil
}

func (s *InMemorySteps) DeleteByInstance(_ context.Context, instanceID id.InstanceID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key := range s.steps {
		if key.instanceID == instanceID {
			delete(s.steps, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemorySteps) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.steps)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.steps = saved
		s.mu.Unlock()
	}
}
