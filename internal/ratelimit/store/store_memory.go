// Package store persists login lockout records in process memory or Redis.
package store

import (
	"context"
	"sync"
	"time"

	"dynforms/internal/ratelimit/models"
)

// InMemory keeps lockout records in a map. Records outlive their window until
// the next failure resets them or Clear removes them.
type InMemory struct {
	mu      sync.Mutex
	records map[models.Key]*models.Lockout
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[models.Key]*models.Lockout)}
}

// Get returns a copy of the record, or nil when none exists.
func (s *InMemory) Get(_ context.Context, key models.Key) (*models.Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return clone(rec), nil
}

// RecordFailure counts a failure, opening a fresh window when the previous
// one has lapsed.
func (s *InMemory) RecordFailure(_ context.Context, key models.Key, now time.Time, window time.Duration) (*models.Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok || (rec.WindowExpiredAt(now, window) && !rec.IsLockedAt(now)) {
		rec = &models.Lockout{Key: key, WindowStart: now}
		s.records[key] = rec
	}
	rec.Failures++
	return clone(rec), nil
}

func (s *InMemory) Lock(_ context.Context, key models.Key, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		rec = &models.Lockout{Key: key, WindowStart: until}
		s.records[key] = rec
	}
	rec.LockedUntil = &until
	return nil
}

func (s *InMemory) Clear(_ context.Context, key models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func clone(rec *models.Lockout) *models.Lockout {
	out := *rec
	if rec.LockedUntil != nil {
		until := *rec.LockedUntil
		out.LockedUntil = &until
	}
	return &out
}
