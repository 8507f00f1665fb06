// Package blob deletes object bytes from the external content store once the
// matching FileObject metadata has been released.
package blob

import (
	"context"
	"slices"
	"sync"
)

// Driver names a purge backend.
type Driver string

const (
	DriverNone   Driver = "none"
	DriverMemory Driver = "memory"
	DriverS3     Driver = "s3"
)

// Purger removes the bytes stored under key. Deleting a key that holds no
// object is not an error.
type Purger interface {
	Purge(ctx context.Context, key string) error
}

// Noop discards purge requests. Used when no object store is configured.
type Noop struct{}

func (Noop) Purge(context.Context, string) error { return nil }

// Memory records purged keys. Used by tests and the in-memory wiring.
type Memory struct {
	mu   sync.Mutex
	keys []string
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Purge(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

// Purged returns the keys purged so far, in call order.
func (m *Memory) Purged() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.keys)
}
