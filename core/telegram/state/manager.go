package state

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Manager serializes access to each user's session. Different users never
// share a lock; the per-user lock is dropped once nobody holds or waits on it.
type Manager struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[int64]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager wraps store with per-user mutual exclusion.
func NewManager(store Store) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		store: store,
		now:   time.Now,
		locks: make(map[int64]*keyLock),
	}
}

func (m *Manager) lock(userID int64) func() {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &keyLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, userID)
		}
		m.mu.Unlock()
	}
}

func (m *Manager) load(ctx context.Context, userID int64) (Session, error) {
	s, ok, err := m.store.Load(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if !ok || s.State == "" {
		s.State = StateIdle
	}
	return s, nil
}

// Update runs fn on the user's session and saves the result, all under the
// user's lock. When fn fails nothing is saved and the stored session is returned.
func (m *Manager) Update(ctx context.Context, userID int64, fn func(*Session) error) (Session, error) {
	unlock := m.lock(userID)
	defer unlock()

	current, err := m.load(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	next := current
	if err := fn(&next); err != nil {
		return current, err
	}
	next.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, userID, next); err != nil {
		return current, err
	}
	return next, nil
}

// Get returns a snapshot of the user's session; unknown users are idle.
func (m *Manager) Get(ctx context.Context, userID int64) (Session, error) {
	unlock := m.lock(userID)
	defer unlock()
	return m.load(ctx, userID)
}

// Reset drops the session when it is still owned by requestID; an unknown
// user loads as idle, so nothing is kept for finished dialogues. An empty
// requestID resets unconditionally. It reports whether a reset happened.
func (m *Manager) Reset(ctx context.Context, userID int64, requestID string) (bool, error) {
	unlock := m.lock(userID)
	defer unlock()

	current, err := m.load(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("reset session %d: %w", userID, err)
	}
	if requestID != "" && current.RequestID != requestID {
		return false, nil
	}
	if err := m.store.Delete(ctx, userID); err != nil {
		return false, fmt.Errorf("reset session %d: %w", userID, err)
	}
	return true, nil
}

// ResetActive drops sessions that were busy when the process stopped.
func (m *Manager) ResetActive(ctx context.Context) (int, error) {
	return m.store.ResetActive(ctx)
}

// Stats counts sessions per state.
func (m *Manager) Stats(ctx context.Context) (map[State]int, error) {
	return m.store.Stats(ctx)
}
