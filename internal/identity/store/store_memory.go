// Package store persists user accounts in memory or PostgreSQL.
package store

import (
	"context"
	"maps"
	"sync"

	"dynforms/internal/identity/models"
	id "dynforms/pkg/domain"
	"dynforms/pkg/platform/sentinel"
)

// InMemoryUsers keeps users keyed by ID with an email index.
type InMemoryUsers struct {
	mu      sync.RWMutex
	users   map[id.UserID]models.User
	byEmail map[string]id.UserID
}

func NewInMemoryUsers() *InMemoryUsers {
	return &InMemoryUsers{
		users:   make(map[id.UserID]models.User),
		byEmail: make(map[string]id.UserID),
	}
}

// Create fails with ErrConflict when the ID or email is taken.
func (s *InMemoryUsers) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byEmail[u.Email]; exists {
		return sentinel.ErrConflict
	}
	s.users[u.ID] = *u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *InMemoryUsers) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

func (s *InMemoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	u := s.users[userID]
	return &u, nil
}

func (s *InMemoryUsers) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *InMemoryUsers) Snapshot() func() {
	s.mu.RLock()
	users := maps.Clone(s.users)
	byEmail := maps.Clone(s.byEmail)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.users = users
		s.byEmail = byEmail
	}
}
