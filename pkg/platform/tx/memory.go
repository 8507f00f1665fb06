package tx

import (
	"context"
	"sync"
)

// Snapshotter is implemented by in-memory stores that can roll back to a copy
// of their state.
type Snapshotter interface {
	// Snapshot copies the current state and returns a func restoring it.
	Snapshot() (restore func())
}

type memoryTxKey struct{}

// MemoryManager serialises transactions with a single lock and restores every
// registered store when the callback fails. It backs the in-memory wiring used
// by tests and single-node development.
type MemoryManager struct {
	mu     sync.Mutex
	stores []Snapshotter
}

// NewMemoryManager builds a manager that snapshots stores on every transaction.
func NewMemoryManager(stores ...Snapshotter) *MemoryManager {
	return &MemoryManager{stores: stores}
}

func (m *MemoryManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, ok := ctx.Value(memoryTxKey{}).(*MemoryManager); ok && owner == m {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	restores := make([]func(), 0, len(m.stores))
	for _, s := range m.stores {
		restores = append(restores, s.Snapshot())
	}

	if err := fn(context.WithValue(ctx, memoryTxKey{}, m)); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}
	return nil
}
