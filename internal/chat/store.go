package chat

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in-process. Sessions are lost on restart,
// which is acceptable for the single-operator back office; the Redis store
// externalizes them when configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	if m.ttl > 0 && time.Since(session.UpdatedAt) > m.ttl {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (m *MemoryStore) Put(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session.UpdatedAt = time.Now()
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
