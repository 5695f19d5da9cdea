package auth

import (
	"context"
	"sync"
	"time"
)

const defaultSweepInterval = 5 * time.Minute

// MemorySessionStore keeps sessions in a process-local map guarded by a
// single RWMutex. Expired sessions are left in place for Get to report as
// expired and are removed by a background sweeper.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	nowFunc  func() time.Time
	done     chan struct{}
	once     sync.Once
}

// NewMemorySessionStore creates a store and starts a goroutine that removes
// expired sessions every interval. A non-positive interval uses 5 minutes.
func NewMemorySessionStore(interval time.Duration) *MemorySessionStore {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	s := &MemorySessionStore{
		sessions: make(map[string]Session),
		nowFunc:  time.Now,
		done:     make(chan struct{}),
	}
	go s.sweepLoop(interval)
	return s
}

func (s *MemorySessionStore) Put(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Count returns the number of stored sessions, expired ones included.
func (s *MemorySessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the sweeper. It is safe to call multiple times.
func (s *MemorySessionStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemorySessionStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes sessions whose expiry has passed.
func (s *MemorySessionStore) sweep() int {
	now := s.nowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
