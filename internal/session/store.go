// Package session keeps one order workflow state per logged-in operator.
package session

import (
	"context"
	"sync"
	"time"

	"club-pos/internal/order"

	"github.com/google/uuid"
)

// Session serializes every action on its State.
type Session struct {
	ID string

	mu       sync.Mutex
	state    *order.State
	lastSeen time.Time
}

// Do runs fn with exclusive access to the session state.
func (s *Session) Do(fn func(st *order.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

type Store struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore keeps idle sessions for ttl. ttl <= 0 keeps them forever.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create registers a session holding st.
func (s *Store) Create(st *order.State) *Session {
	sess := &Session{
		ID:       uuid.NewString(),
		state:    st,
		lastSeen: s.clock(),
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns a live session and refreshes its idle timer.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.clock()
	if s.expired(sess, now) {
		delete(s.sessions, id)
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops idle sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastSeen) >= s.ttl
}
