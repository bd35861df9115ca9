package session

import (
	"errors"
	"slices"
	"sort"
	"testing"
	"time"

	"backoffice/internal/clock"
	"backoffice/internal/model"
)

func TestParseTableKind(t *testing.T) {
	for _, s := range []string{"requests", "reposiciones", "users"} {
		if k, err := ParseTableKind(s); err != nil || string(k) != s {
			t.Fatalf("%s: %v", s, err)
		}
	}
	if _, err := ParseTableKind("orders"); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("got %v", err)
	}
}

func TestSession_TablesByKind(t *testing.T) {
	s := New("u1", 5)
	for _, tbl := range s.Tables() {
		got, err := s.Table(tbl.Kind())
		if err != nil || got != tbl {
			t.Fatalf("%s: %v", tbl.Kind(), err)
		}
		if tbl.Loaded() {
			t.Fatalf("%s loaded before first fetch", tbl.Kind())
		}
	}

	switch tbl := Table(s.Requests).(type) {
	case *RequestsTable:
		tbl.Engine.SetRows([]model.Request{{UniqueID: "G-1"}})
		if tbl.Engine.View().PageSize != 5 {
			t.Fatal("page size not applied")
		}
	default:
		t.Fatalf("unexpected %T", tbl)
	}
}

func TestLoadState_Stale(t *testing.T) {
	var l loadState
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	if !l.Stale(now, time.Minute) {
		t.Fatal("never loaded must be stale")
	}
	l.MarkLoaded(now)
	if l.Stale(now.Add(30*time.Second), time.Minute) {
		t.Fatal("fresh table reported stale")
	}
	if !l.Stale(now.Add(time.Minute), time.Minute) {
		t.Fatal("expired table not stale")
	}
	if l.Stale(now.Add(time.Hour), 0) {
		t.Fatal("zero ttl means loaded once")
	}
	l.Invalidate()
	if l.Loaded() {
		t.Fatal("invalidate did not reset")
	}
}

func TestStore_CreatesOncePerUser(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	built := 0
	st := NewStore(c, time.Hour, func(id string) *Session { built++; return New(id, 10) }, nil)

	a := st.Get("u1")
	if st.Get("u1") != a || built != 1 {
		t.Fatalf("session rebuilt: %d", built)
	}
	if st.Get("u2") == a || st.Len() != 2 {
		t.Fatal("users share a session")
	}
	if _, ok := st.Peek("u3"); ok {
		t.Fatal("peek created a session")
	}
}

func TestStore_SweepEvictsIdle(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	var evicted []string
	st := NewStore(c, 10*time.Minute, func(id string) *Session { return New(id, 10) },
		func(s *Session) { evicted = append(evicted, s.UserID) })

	st.Get("idle")
	st.Get("busy")
	c.Advance(6 * time.Minute)
	st.Touch("busy")
	c.Advance(5 * time.Minute)

	got := st.Sweep()
	sort.Strings(got)
	if !slices.Equal(got, []string{"idle"}) || !slices.Equal(evicted, []string{"idle"}) {
		t.Fatalf("evicted %v / %v", got, evicted)
	}
	if _, ok := st.Peek("busy"); !ok {
		t.Fatal("active session evicted")
	}
	if !st.Drop("busy") || st.Len() != 0 {
		t.Fatal("drop failed")
	}
}
