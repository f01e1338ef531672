//go:build integration

// Package containers starts the Postgres and Redis instances integration
// suites run against. Each container starts once per test binary.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out the shared containers.
type Manager struct {
	postgresOnce sync.Once
	postgres     *PostgresContainer
	postgresErr  error

	redisOnce sync.Once
	redis     *RedisContainer
	redisErr  error
}

var manager = &Manager{}

// GetManager returns the process-wide manager.
func GetManager() *Manager {
	return manager
}

// GetPostgres returns the shared Postgres container, starting it and
// applying migrations on first use. A failed start fails every caller.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.postgresOnce.Do(func() {
		m.postgres, m.postgresErr = startPostgres()
	})
	if m.postgresErr != nil {
		t.Fatalf("postgres container: %v", m.postgresErr)
	}
	return m.postgres
}

// GetRedis returns the shared Redis container, starting it on first use.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.redisOnce.Do(func() {
		m.redis, m.redisErr = startRedis()
	})
	if m.redisErr != nil {
		t.Fatalf("redis container: %v", m.redisErr)
	}
	return m.redis
}
