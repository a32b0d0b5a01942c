package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Sessions idle for longer
// than the TTL are removed by Cleanup, which Run calls periodically.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*State
}

// NewMemoryStore creates a store whose sessions expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*State),
	}
}

// Get returns a copy of the session. Expired sessions are ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, id string) (*State, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok || m.expired(s) {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Save stores a copy of s.
func (m *MemoryStore) Save(_ context.Context, s *State) error {
	c := s.Clone()
	c.UpdatedAt = m.now()

	m.mu.Lock()
	m.sessions[s.ID] = c
	m.mu.Unlock()
	return nil
}

// Delete removes a session. Deleting an unknown ID is not an error.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes expired sessions and returns how many were removed.
func (m *MemoryStore) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Cleanup(); n > 0 {
				slog.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

func (m *MemoryStore) expired(s *State) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}
