package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryLockStore is an in-memory LockStore. Locks do not survive a restart.
type MemoryLockStore struct {
	mu    sync.Mutex
	locks map[string]*LockRecord
}

func NewMemoryLockStore() *MemoryLockStore {
	return &MemoryLockStore{
		locks: make(map[string]*LockRecord),
	}
}

func (m *MemoryLockStore) Close() error {
	return nil
}

// InitSchema is a no-op; the map is ready on construction.
func (m *MemoryLockStore) InitSchema() error {
	return nil
}

func (m *MemoryLockStore) InsertLock(_ context.Context, rec *LockRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.locks[rec.LockURI]; exists {
		return fmt.Errorf("%w: %s", ErrLockExists, rec.LockURI)
	}
	clone := *rec
	m.locks[rec.LockURI] = &clone
	return nil
}

func (m *MemoryLockStore) GetLock(_ context.Context, lockURI string) (*LockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, exists := m.locks[lockURI]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrLockNotFound, lockURI)
	}
	clone := *rec
	return &clone, nil
}

func (m *MemoryLockStore) DeleteLock(_ context.Context, lockURI string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.locks[lockURI]; !exists {
		return fmt.Errorf("%w: %s", ErrLockNotFound, lockURI)
	}
	delete(m.locks, lockURI)
	return nil
}

func (m *MemoryLockStore) ListLocks(_ context.Context) ([]*LockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]*LockRecord, 0, len(m.locks))
	for _, rec := range m.locks {
		clone := *rec
		records = append(records, &clone)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].LockURI < records[j].LockURI })
	return records, nil
}

var _ LockStore = (*MemoryLockStore)(nil)
