package query

import (
	"context"
	"sync"
	"time"

	"backoffice/internal/clock"

	"github.com/rs/zerolog/log"
)

// FetchFunc runs one remote search.
type FetchFunc[T any] func(ctx context.Context, text string) ([]T, error)

// Searcher debounces search text and forwards only the latest query's
// response. Each Submit bumps a generation counter; a response whose
// generation is no longer current is discarded. apply receives the
// generation so callers can re-check it under their own lock.
type Searcher[T any] struct {
	clock   clock.Clock
	delay   time.Duration
	fetch   FetchFunc[T]
	apply   func(gen uint64, text string, rows []T)
	onError func(text string, err error)

	mu    sync.Mutex
	gen   uint64
	timer clock.Timer
}

func NewSearcher[T any](c clock.Clock, delay time.Duration, fetch FetchFunc[T], apply func(uint64, string, []T), onError func(string, error)) *Searcher[T] {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Searcher[T]{clock: c, delay: delay, fetch: fetch, apply: apply, onError: onError}
}

// Submit schedules a search for text after the debounce delay, replacing
// any search not yet sent. ctx carries request-scoped values only; its
// cancellation is ignored because the fetch outlives the caller.
func (s *Searcher[T]) Submit(ctx context.Context, text string) uint64 {
	bg := context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.delay, func() { s.run(bg, gen, text) })
	return gen
}

// Cancel drops the pending search and invalidates any response in flight.
func (s *Searcher[T]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Searcher[T]) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Searcher[T]) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

func (s *Searcher[T]) run(ctx context.Context, gen uint64, text string) {
	if !s.current(gen) {
		return
	}
	rows, err := s.fetch(ctx, text)
	if !s.current(gen) {
		log.Debug().Uint64("generation", gen).Str("search", text).Msg("discarding stale search response")
		return
	}
	if err != nil {
		s.onError(text, err)
		return
	}
	s.apply(gen, text, rows)
}
