package store

import (
	"context"
	"maps"
	"sort"
	"sync"

	"dynforms/internal/evidence/models"
	id "dynforms/pkg/domain"
	"dynforms/pkg/platform/sentinel"
)

// InMemory holds documents and biometric captures together so the
// reference query sees both tables at once. It implements tx.Snapshotter.
type InMemory struct {
	mu         sync.RWMutex
	documents  map[id.DocumentID]models.IdentityDocument
	biometrics map[id.BiometricID]models.BiometricCapture
}

func NewInMemory() *InMemory {
	return &InMemory{
		documents:  make(map[id.DocumentID]models.IdentityDocument),
		biometrics: make(map[id.BiometricID]models.BiometricCapture),
	}
}

func (s *InMemory) CreateDocument(_ context.Context, doc *models.IdentityDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.documents[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	s.documents[doc.ID] = *doc
	return nil
}

// FindDocument only returns the document when it belongs to instanceID.
func (s *InMemory) FindDocument(_ context.Context, instanceID id.InstanceID, docID id.DocumentID) (*models.IdentityDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[docID]
	if !ok || doc.InstanceID != instanceID {
		return nil, sentinel.ErrNotFound
	}
	return &doc, nil
}

func (s *InMemory) ListDocuments(_ context.Context, instanceID id.InstanceID) ([]*models.IdentityDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.IdentityDocument
	for _, doc := range s.documents {
		if doc.InstanceID == instanceID {
			out = append(out, &doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemory) UpdateDocument(_ context.Context, doc *models.IdentityDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.documents[doc.ID] = *doc
	return nil
}

func (s *InMemory) DeleteDocument(_ context.Context, instanceID id.InstanceID, docID id.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[docID]
	if !ok || doc.InstanceID != instanceID {
		return sentinel.ErrNotFound
	}
	delete(s.documents, docID)
	return nil
}

func (s *InMemory) CreateBiometric(_ context.Context, b *models.BiometricCapture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.biometrics[b.ID]; exists {
		return sentinel.ErrConflict
	}
	s.biometrics[b.ID] = *b
	return nil
}

func (s *InMemory) FindBiometric(_ context.Context, instanceID id.InstanceID, bioID id.BiometricID) (*models.BiometricCapture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.biometrics[bioID]
	if !ok || b.InstanceID != instanceID {
		return nil, sentinel.ErrNotFound
	}
	return &b, nil
}

func (s *InMemory) ListBiometrics(_ context.Context, instanceID id.InstanceID) ([]*models.BiometricCapture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.BiometricCapture
	for _, b := range s.biometrics {
		if b.InstanceID == instanceID {
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemory) UpdateBiometric(_ context.Context, b *models.BiometricCapture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.biometrics[b.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.biometrics[b.ID] = *b
	return nil
}

func (s *InMemory) DeleteBiometric(_ context.Context, instanceID id.InstanceID, bioID id.BiometricID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.biometrics[bioID]
	if !ok || b.InstanceID != instanceID {
		return sentinel.ErrNotFound
	}
	delete(s.biometrics, bioID)
	return nil
}

// DeleteByInstance removes every document and capture of the instance and
// returns the file ids they referenced, duplicates included.
func (s *InMemory) DeleteByInstance(_ context.Context, instanceID id.InstanceID) ([]id.FileID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fileIDs []id.FileID
	for docID, doc := range s.documents {
		if doc.InstanceID == instanceID {
			fileIDs = append(fileIDs, doc.FileID)
			delete(s.documents, docID)
		}
	}
	for bioID, b := range s.biometrics {
		if b.InstanceID == instanceID {
			fileIDs = append(fileIDs, b.FileIDs()...)
			delete(s.biometrics, bioID)
		}
	}
	return fileIDs, nil
}

// ReferencedFileIDs returns the candidates still referenced by any document
// or either biometric slot, across all instances.
func (s *InMemory) ReferencedFileIDs(_ context.Context, candidates []id.FileID) ([]id.FileID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[id.FileID]bool, len(candidates))
	for _, fileID := range candidates {
		wanted[fileID] = false
	}
	mark := func(fileID id.FileID) {
		if _, ok := wanted[fileID]; ok {
			wanted[fileID] = true
		}
	}
	for _, doc := range s.documents {
		mark(doc.FileID)
	}
	for _, b := range s.biometrics {
		for _, fileID := range b.FileIDs() {
			mark(fileID)
		}
	}
	var out []id.FileID
	for _, fileID := range candidates {
		if wanted[fileID] {
			out = append(out, fileID)
			wanted[fileID] = false
		}
	}
	return out, nil
}

func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	docs := maps.Clone(s.documents)
	bios := maps.Clone(s.biometrics)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.documents = docs
		s.biometrics = bios
		s.mu.Unlock()
	}
}
