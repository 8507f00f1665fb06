//go:build integration

// Package containers starts the Postgres and Redis containers shared by the
// integration suites. Containers are started lazily, once per test binary.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out the shared containers.
type Manager struct {
	pgOnce    sync.Once
	pg        *PostgresContainer
	pgErr     string
	redisOnce sync.Once
	redis     *RedisContainer
	redisErr  string
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide manager.
func GetManager() *Manager {
	managerOnce.Do(func() { manager = &Manager{} })
	return manager
}

// GetPostgres returns the shared Postgres container, migrated and with all
// tables truncated.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.pgOnce.Do(func() {
		pg, err := startPostgres()
		if err != nil {
			m.pgErr = err.Error()
			return
		}
		m.pg = pg
	})
	if m.pg == nil {
		t.Fatalf("postgres container unavailable: %s", m.pgErr)
	}
	if err := m.pg.TruncateTables(t.Context()); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return m.pg
}

// GetRedis returns the shared Redis container.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.redisOnce.Do(func() {
		rc, err := startRedis()
		if err != nil {
			m.redisErr = err.Error()
			return
		}
		m.redis = rc
	})
	if m.redis == nil {
		t.Fatalf("redis container unavailable: %s", m.redisErr)
	}
	return m.redis
}
