package database

import (
	"context"
	"sync"
	"time"

	"github.com/Moaaz208/Mizo-Candle/pkg/cache"
)

// MemoryDB keeps records in process memory. Nothing survives a restart.
type MemoryDB struct {
	mu       sync.Mutex
	records  map[string][]byte
	counters map[string]*windowCounter
	now      func() time.Time
}

type windowCounter struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryDB returns an empty in-memory backend.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		records:  make(map[string][]byte),
		counters: make(map[string]*windowCounter),
		now:      time.Now,
	}
}

func (m *MemoryDB) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *MemoryDB) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryDB) Ping(context.Context) error { return nil }

func (m *MemoryDB) Close() error { return nil }

func (m *MemoryDB) Name() string { return "memory" }

// IncrementRateLimit mirrors RedisDB.IncrementRateLimit: the window starts
// with the first request and the counter resets once it has passed.
func (m *MemoryDB) IncrementRateLimit(_ context.Context, ip, endpoint string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := cache.RateLimitKey(ip, endpoint)
	now := m.now()

	c, ok := m.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = &windowCounter{expiresAt: now.Add(window)}
		m.counters[key] = c
	}
	c.count++

	// Keep the map from growing without bound on a busy instance.
	if len(m.counters) > 10000 {
		for k, v := range m.counters {
			if !now.Before(v.expiresAt) {
				delete(m.counters, k)
			}
		}
	}

	return c.count, nil
}
