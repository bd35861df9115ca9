package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"backoffice/internal/clock"
)

func TestSearcher_DebounceCoalesces(t *testing.T) {
	c := clock.NewFake(time.Now())
	var calls []string
	var applied []string
	s := NewSearcher(c, 300*time.Millisecond,
		func(_ context.Context, text string) ([]string, error) {
			calls = append(calls, text)
			return []string{text}, nil
		},
		func(_ uint64, text string, _ []string) { applied = append(applied, text) },
		nil)

	ctx := context.Background()
	s.Submit(ctx, "j")
	c.Advance(100 * time.Millisecond)
	s.Submit(ctx, "jo")
	c.Advance(100 * time.Millisecond)
	s.Submit(ctx, "jose")
	c.Advance(299 * time.Millisecond)
	if len(calls) != 0 {
		t.Fatalf("fetched before debounce elapsed: %v", calls)
	}
	c.Advance(time.Millisecond)
	if len(calls) != 1 || calls[0] != "jose" || len(applied) != 1 {
		t.Fatalf("calls %v applied %v", calls, applied)
	}
}

func TestSearcher_DiscardsStaleResponse(t *testing.T) {
	c := clock.NewFake(time.Now())
	started := make(chan struct{})
	release := make(chan struct{})

	var mu sync.Mutex
	var applied []string
	s := NewSearcher(c, 300*time.Millisecond,
		func(_ context.Context, text string) ([]string, error) {
			if text == "slow" {
				close(started)
				<-release
			}
			return []string{text}, nil
		},
		func(_ uint64, text string, _ []string) {
			mu.Lock()
			applied = append(applied, text)
			mu.Unlock()
		},
		nil)

	ctx := context.Background()
	s.Submit(ctx, "slow")
	done := make(chan struct{})
	go func() {
		c.Advance(300 * time.Millisecond)
		close(done)
	}()
	<-started

	s.Submit(ctx, "fast")
	c.Advance(300 * time.Millisecond)
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(applied) != 1 || applied[0] != "fast" {
		t.Fatalf("applied %v, want only the latest", applied)
	}
}

func TestSearcher_CancelAndErrors(t *testing.T) {
	c := clock.NewFake(time.Now())
	var errs []error
	fetched := 0
	s := NewSearcher(c, 300*time.Millisecond,
		func(context.Context, string) ([]int, error) {
			fetched++
			return nil, errors.New("boom")
		},
		func(uint64, string, []int) { t.Fatal("apply must not run on error") },
		func(_ string, err error) { errs = append(errs, err) })

	s.Submit(context.Background(), "a")
	s.Cancel()
	c.Advance(time.Second)
	if fetched != 0 {
		t.Fatal("cancelled search was fetched")
	}

	s.Submit(context.Background(), "b")
	c.Advance(time.Second)
	if len(errs) != 1 {
		t.Fatalf("errors %v", errs)
	}
}
