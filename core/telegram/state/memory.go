package state

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewMemoryStore returns a process-local Store. Sessions are lost on restart.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[int64]Session)}
}

func (m *memoryStore) Load(_ context.Context, userID int64) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	s.Formats = append([]string(nil), s.Formats...)
	return s, ok, nil
}

func (m *memoryStore) Save(_ context.Context, userID int64, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Formats = append([]string(nil), s.Formats...)
	m.sessions[userID] = s
	return nil
}

func (m *memoryStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *memoryStore) ResetActive(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.Busy() {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) Stats(_ context.Context) (map[State]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[State]int)
	for _, s := range m.sessions {
		out[s.State]++
	}
	return out, nil
}
