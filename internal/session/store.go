package session

import (
	"context"
	"sync"
	"time"
)

// UpdateFunc mutates a session's state. Returning an error aborts the update
// and leaves the stored state unchanged.
type UpdateFunc func(*State) error

// Store keeps component state by session ID. A missing or expired session
// reads as NewState.
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	// Update applies fn atomically and returns the state it stored.
	Update(ctx context.Context, id string, fn UpdateFunc) (*State, error)
}

type memoryEntry struct {
	state   *State
	expires time.Time
}

// MemoryStore is a process-local Store for single-instance deployments and tests.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	entries   map[string]memoryEntry
	lastSweep time.Time
}

// NewMemoryStore creates a store whose sessions expire after ttl of inactivity.
// A zero ttl keeps sessions forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(id).Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.load(id).Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	now := m.now()
	next.UpdatedAt = now

	entry := memoryEntry{state: next}
	if m.ttl > 0 {
		entry.expires = now.Add(m.ttl)
	}
	m.entries[id] = entry
	if m.ttl > 0 && now.Sub(m.lastSweep) >= m.ttl {
		m.sweep()
	}
	return next.Clone(), nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	return len(m.entries)
}

// load must be called with mu held.
func (m *MemoryStore) load(id string) *State {
	entry, ok := m.entries[id]
	if !ok {
		return NewState()
	}
	if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		delete(m.entries, id)
		return NewState()
	}
	return entry.state
}

func (m *MemoryStore) sweep() {
	now := m.now()
	m.lastSweep = now
	for id, entry := range m.entries {
		if !entry.expires.IsZero() && !now.Before(entry.expires) {
			delete(m.entries, id)
		}
	}
}
