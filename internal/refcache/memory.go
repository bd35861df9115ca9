package refcache

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"backoffice/internal/clock"
	"backoffice/internal/model"
)

type memoryEntry struct {
	opts      []model.Option
	expiresAt time.Time
}

// MemoryStore keeps lists in process memory.
type MemoryStore struct {
	clock   clock.Clock
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.Real()
	}
	return &MemoryStore{clock: c, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]model.Option, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !s.clock.Now().Before(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return slices.Clone(e.opts), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, opts []model.Option, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = memoryEntry{opts: slices.Clone(opts), expiresAt: s.clock.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
