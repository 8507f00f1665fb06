package store

import (
	"context"
	"maps"
	"sync"

	"dynforms/internal/content/models"
	id "dynforms/pkg/domain"
	"dynforms/pkg/platform/sentinel"
)

// InMemory keeps file metadata in a map. It implements tx.Snapshotter so the
// in-memory transaction manager can roll it back.
type InMemory struct {
	mu    sync.RWMutex
	files map[id.FileID]models.FileObject
}

func NewInMemory() *InMemory {
	return &InMemory{files: make(map[id.FileID]models.FileObject)}
}

func (s *InMemory) Create(_ context.Context, f *models.FileObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.files[f.ID]; exists {
		return sentinel.ErrConflict
	}
	s.files[f.ID] = *f
	return nil
}

func (s *InMemory) FindByID(_ context.Context, fileID id.FileID) (*models.FileObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[fileID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &f, nil
}

func (s *InMemory) FindByIDs(_ context.Context, ids []id.FileID) ([]*models.FileObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.FileObject, 0, len(ids))
	for _, fileID := range ids {
		if f, ok := s.files[fileID]; ok {
			out = append(out, &f)
		}
	}
	return out, nil
}

func (s *InMemory) DeleteByIDs(_ context.Context, ids []id.FileID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, fileID := range ids {
		if _, ok := s.files[fileID]; ok {
			delete(s.files, fileID)
			deleted++
		}
	}
	return deleted, nil
}

// LockByIDs is a no-op: the in-memory transaction manager already runs one
// transaction at a time.
func (s *InMemory) LockByIDs(context.Context, []id.FileID) error {
	return nil
}

// Count returns the number of stored files.
func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files), nil
}

func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.files)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.files = saved
		s.mu.Unlock()
	}
}
