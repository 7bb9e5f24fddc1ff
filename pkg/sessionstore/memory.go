package sessionstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory snapshot store.
// It is the default store and suitable for single-server deployments.
// For multi-server deployments, use RedisStore, SQLStore, or S3Store.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*storedSnapshot
	closed    bool
	done      chan struct{}
}

type storedSnapshot struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStoreOption configures MemoryStore behavior.
type MemoryStoreOption func(*memoryStoreConfig)

type memoryStoreConfig struct {
	cleanupInterval time.Duration
}

// WithCleanupInterval sets how often expired snapshots are swept.
// Default: 1 minute.
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(c *memoryStoreConfig) {
		c.cleanupInterval = d
	}
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	cfg := &memoryStoreConfig{
		cleanupInterval: 1 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := &MemoryStore{
		snapshots: make(map[string]*storedSnapshot),
		done:      make(chan struct{}),
	}

	go store.cleanupLoop(cfg.cleanupInterval)
	return store
}

// Save stores snapshot bytes with an expiry.
func (m *MemoryStore) Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	// Copy so the caller's buffer can't mutate stored state.
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	m.snapshots[id] = &storedSnapshot{
		data:      dataCopy,
		expiresAt: expiresAt,
	}
	return nil
}

// Load retrieves snapshot bytes if they exist and haven't expired.
func (m *MemoryStore) Load(ctx context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed{}
	}

	s, ok := m.snapshots[id]
	if !ok {
		return nil, nil
	}
	if time.Now().After(s.expiresAt) {
		return nil, nil
	}

	dataCopy := make([]byte, len(s.data))
	copy(dataCopy, s.data)
	return dataCopy, nil
}

// Delete removes a snapshot from the store.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	delete(m.snapshots, id)
	return nil
}

// Touch extends the expiry of a snapshot.
func (m *MemoryStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	if s, ok := m.snapshots[id]; ok {
		s.expiresAt = expiresAt
	}
	return nil
}

// SaveAll stores multiple snapshots under one lock acquisition.
func (m *MemoryStore) SaveAll(ctx context.Context, snapshots map[string]Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	for id, rec := range snapshots {
		dataCopy := make([]byte, len(rec.Data))
		copy(dataCopy, rec.Data)

		m.snapshots[id] = &storedSnapshot{
			data:      dataCopy,
			expiresAt: rec.ExpiresAt,
		}
	}
	return nil
}

// Close shuts down the store and releases resources.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.done)
	m.snapshots = nil
	return nil
}

// Count returns the number of snapshots in the store.
// This is for monitoring/testing purposes.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}

// cleanupLoop periodically sweeps expired snapshots.
func (m *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

func (m *MemoryStore) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	now := time.Now()
	var expired []string

	for id, s := range m.snapshots {
		if now.After(s.expiresAt) {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		delete(m.snapshots, id)
	}
}
