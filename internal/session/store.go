package session

import (
	"context"
	"sync"
	"time"

	"backoffice/internal/clock"

	"github.com/rs/zerolog/log"
)

type storeEntry struct {
	session  *Session
	lastSeen time.Time
}

// Store creates sessions on first use and evicts them after a period of
// inactivity.
type Store struct {
	clock   clock.Clock
	idle    time.Duration
	build   func(userID string) *Session
	onEvict func(*Session)

	mu       sync.Mutex
	sessions map[string]*storeEntry
}

// NewStore returns a store. build creates a fresh session; onEvict, when
// set, runs for every evicted session outside the store lock.
func NewStore(c clock.Clock, idle time.Duration, build func(userID string) *Session, onEvict func(*Session)) *Store {
	return &Store{
		clock:    c,
		idle:     idle,
		build:    build,
		onEvict:  onEvict,
		sessions: make(map[string]*storeEntry),
	}
}

// Get returns the user's session, creating it if needed, and marks it as
// active.
func (st *Store) Get(userID string) *Session {
	now := st.clock.Now()
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.sessions[userID]
	if !ok {
		e = &storeEntry{session: st.build(userID)}
		st.sessions[userID] = e
		log.Debug().Str("user_id", userID).Msg("session created")
	}
	e.lastSeen = now
	return e.session
}

// Peek returns an existing session without touching it.
func (st *Store) Peek(userID string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.sessions[userID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Touch marks a session as active without creating it.
func (st *Store) Touch(userID string) {
	now := st.clock.Now()
	st.mu.Lock()
	defer st.mu.Unlock()
	if e, ok := st.sessions[userID]; ok {
		e.lastSeen = now
	}
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Drop evicts one session immediately.
func (st *Store) Drop(userID string) bool {
	st.mu.Lock()
	e, ok := st.sessions[userID]
	delete(st.sessions, userID)
	st.mu.Unlock()
	if ok && st.onEvict != nil {
		st.onEvict(e.session)
	}
	return ok
}

// Sweep evicts the sessions idle for longer than the idle TTL and returns
// their user ids.
func (st *Store) Sweep() []string {
	now := st.clock.Now()
	st.mu.Lock()
	var evicted []*Session
	for id, e := range st.sessions {
		if now.Sub(e.lastSeen) >= st.idle {
			evicted = append(evicted, e.session)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	ids := make([]string, 0, len(evicted))
	for _, s := range evicted {
		if st.onEvict != nil {
			st.onEvict(s)
		}
		ids = append(ids, s.UserID)
	}
	if len(ids) > 0 {
		log.Info().Int("count", len(ids)).Msg("idle sessions evicted")
	}
	return ids
}

// Run sweeps every interval until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Sweep()
		}
	}
}
