package store

import (
	"context"
	"maps"
	"sort"
	"sync"

	"dynforms/internal/catalog/models"
	id "dynforms/pkg/domain"
	"dynforms/pkg/platform/sentinel"
)

// InMemoryTemplates stores templates in a map guarded by a RWMutex.
type InMemoryTemplates struct {
	mu        sync.RWMutex
	templates map[id.TemplateID]models.Template
}

func NewInMemoryTemplates() *InMemoryTemplates {
	return &InMemoryTemplates{templates: make(map[id.TemplateID]models.Template)}
}

func (s *InMemoryTemplates) Create(_ context.Context, t *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.templates[t.ID]; exists {
		return sentinel.ErrConflict
	}
	s.templates[t.ID] = *t
	return nil
}

func (s *InMemoryTemplates) FindByID(_ context.Context, templateID id.TemplateID) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[templateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &t, nil
}

// FindByIDForUpdate matches FindByID; the memory transaction manager already
// serialises writers.
func (s *InMemoryTemplates) FindByIDForUpdate(ctx context.Context, templateID id.TemplateID) (*models.Template, error) {
	return s.FindByID(ctx, templateID)
}

func (s *InMemoryTemplates) List(_ context.Context) ([]*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryTemplates) Update(_ context.Context, t *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.templates[t.ID] = *t
	return nil
}

func (s *InMemoryTemplates) Delete(_ context.Context, templateID id.TemplateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[templateID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.templates, templateID)
	return nil
}

func (s *InMemoryTemplates) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.templates)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.templates = saved
		s.mu.Unlock()
	}
}

type versionKey struct {
	templateID id.TemplateID
	version    int
}

// InMemoryVersions stores template versions keyed by (template, version),
// which enforces the same uniqueness as the Postgres constraint.
type InMemoryVersions struct {
	mu       sync.RWMutex
	versions map[versionKey]models.TemplateVersion
}

func NewInMemoryVersions() *InMemoryVersions {
	return &InMemoryVersions{versions: make(map[versionKey]models.TemplateVersion)}
}

func (s *InMemoryVersions) Create(_ context.Context, v *models.TemplateVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := versionKey{v.TemplateID, v.Version}
	if _, exists := s.versions[key]; exists {
		return sentinel.ErrConflict
	}
	s.versions[key] = *v
	return nil
}

func (s *InMemoryVersions) MaxVersion(_ context.Context, templateID id.TemplateID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	highest := 0
	for key := range s.versions {
		if key.templateID == templateID && key.version > highest {
			highest = key.version
		}
	}
	return highest, nil
}

func (s *InMemoryVersions) Find(_ context.Context, templateID id.TemplateID, version int) (*models.TemplateVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[versionKey{templateID, version}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &v, nil
}

func (s *InMemoryVersions) FindLatest(_ context.Context, templateID id.TemplateID, publishedOnly bool) (*models.TemplateVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.TemplateVersion
	for key, v := range s.versions {
		if key.templateID != templateID || (publishedOnly && !v.IsPublished) {
			continue
		}
		if latest == nil || v.Version > latest.Version {
			latest = &v
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest, nil
}

func (s *InMemoryVersions) ListByTemplate(_ context.Context, templateID id.TemplateID) ([]*models.TemplateVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TemplateVersion
	for key, v := range s.versions {
		if key.templateID == templateID {
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *InMemoryVersions) Update(_ context.Context, v *models.TemplateVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := versionKey{v.TemplateID, v.Version}
	if _, ok := s.versions[key]; !ok {
		return sentinel.ErrNotFound
	}
	s.versions[key] = *v
	return nil
}

func (s *InMemoryVersions) Delete(_ context.Context, templateID id.TemplateID, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := versionKey{templateID, version}
	if _, ok := s.versions[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.versions, key)
	return nil
}

func (s *InMemoryVersions) DeleteByTemplate(_ context.Context, templateID id.TemplateID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key := range s.versions {
		if key.templateID == templateID {
			delete(s.versions, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemoryVersions) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.versions)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.versions = saved
		s.mu.Unlock()
	}
}
