// Package undo runs deferred, cancellable actions. Scheduling an action
// shows a countdown to the user; nothing is sent to the backend and no
// local state changes until the window elapses. Undo inside the window
// drops the action entirely.
package undo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"backoffice/internal/clock"
	"backoffice/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrActionNotFound = errors.New("action not found or no longer pending")
	ErrInvalidAction  = errors.New("action has no commit step")
)

const (
	DefaultWindow        = 4000 * time.Millisecond
	DefaultTick          = 250 * time.Millisecond
	DefaultCommitTimeout = 15 * time.Second
)

// Action is one deferred mutation.
type Action struct {
	UserID string
	// Entity identifies what the action changes. At most one action per
	// entity is pending; a newer one replaces the older.
	Entity string
	Label  string
	Kind   string
	// Details is journaled with the outcome.
	Details any
	// Cascade lists the entity keys changed together with Entity. It is
	// called once, after a successful commit.
	Cascade func() []string

	// Commit performs the backend call once the window elapses.
	Commit func(ctx context.Context) error
	// Apply mutates local state after a successful commit.
	Apply func()
	// Rollback restores the last known-good state after a failed commit.
	Rollback func(err error)
	// Discard runs when the action is undone or superseded.
	Discard func()
}

// Pending describes an action still inside its window.
type Pending struct {
	ID          string    `json:"id"`
	Entity      string    `json:"entity"`
	Label       string    `json:"label"`
	Kind        string    `json:"kind"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Result is handed to the Recorder once per action.
type Result struct {
	Pending
	UserID  string
	Outcome string
	Err     error
	Details any
	// Cascade is set for committed actions only.
	Cascade []string
}

// Recorder persists final outcomes.
type Recorder interface {
	Record(ctx context.Context, r Result)
}

type entry struct {
	Pending
	action   Action
	ctx      context.Context
	deadline clock.Timer
	ticker   clock.Timer
}

type Manager struct {
	clock         clock.Clock
	window        time.Duration
	tick          time.Duration
	commitTimeout time.Duration
	notifier      Notifier
	recorder      Recorder
	message       func(error) string

	mu       sync.Mutex
	pending  map[string]*entry
	byEntity map[string]string
}

type Option func(*Manager)

func WithClock(c clock.Clock) Option { return func(m *Manager) { m.clock = c } }

func WithWindow(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.window = d
		}
	}
}

func WithTick(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.tick = d
		}
	}
}

func WithCommitTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.commitTimeout = d
		}
	}
}

func WithNotifier(n Notifier) Option { return func(m *Manager) { m.notifier = n } }

func WithRecorder(r Recorder) Option { return func(m *Manager) { m.recorder = r } }

// WithErrorMessage sets how a failed commit is described to the user.
func WithErrorMessage(f func(error) string) Option { return func(m *Manager) { m.message = f } }

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		clock:         clock.Real(),
		window:        DefaultWindow,
		tick:          DefaultTick,
		commitTimeout: DefaultCommitTimeout,
		notifier:      nopNotifier{},
		message:       func(err error) string { return err.Error() },
		pending:       make(map[string]*entry),
		byEntity:      make(map[string]string),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) Window() time.Duration { return m.window }

// Schedule starts the undo window for a. Request-scoped values of ctx are
// kept for the commit; its cancellation is not.
func (m *Manager) Schedule(ctx context.Context, a Action) (Pending, error) {
	if a.Commit == nil {
		return Pending{}, ErrInvalidAction
	}

	now := m.clock.Now()
	e := &entry{
		Pending: Pending{
			ID:          uuid.NewString(),
			Entity:      a.Entity,
			Label:       a.Label,
			Kind:        a.Kind,
			ScheduledAt: now,
			ExpiresAt:   now.Add(m.window),
		},
		action: a,
		ctx:    context.WithoutCancel(ctx),
	}

	m.mu.Lock()
	var replaced *entry
	if prevID, ok := m.byEntity[a.Entity]; ok {
		replaced = m.takeLocked(prevID)
	}
	m.pending[e.ID] = e
	m.byEntity[a.Entity] = e.ID
	e.deadline = m.clock.AfterFunc(m.window, func() { m.fire(e.ID) })
	e.ticker = m.clock.AfterFunc(m.tick, func() { m.progress(e.ID) })
	m.mu.Unlock()
	actionsPending.Inc()

	if replaced != nil {
		log.Info().Str("action_id", replaced.ID).Str("entity", replaced.Entity).Str("by", e.ID).Msg("action superseded")
		m.finish(replaced, model.OutcomeSuperseded, nil)
		if replaced.action.Discard != nil {
			replaced.action.Discard()
		}
		m.notify(replaced, EventSuperseded, "")
	}

	expires := e.ExpiresAt
	m.notifier.Notify(a.UserID, Notification{
		Type:        EventScheduled,
		ActionID:    e.ID,
		Entity:      e.Entity,
		Label:       e.Label,
		DurationMS:  m.window.Milliseconds(),
		RemainingMS: m.window.Milliseconds(),
		Progress:    1,
		ExpiresAt:   &expires,
	})
	log.Debug().Str("action_id", e.ID).Str("entity", e.Entity).Dur("window", m.window).Msg("action scheduled")
	return e.Pending, nil
}

// Undo cancels a pending action owned by userID. No backend call is made.
func (m *Manager) Undo(userID, actionID string) error {
	m.mu.Lock()
	e, ok := m.pending[actionID]
	if !ok || e.action.UserID != userID {
		m.mu.Unlock()
		return ErrActionNotFound
	}
	m.takeLocked(actionID)
	m.mu.Unlock()

	log.Info().Str("action_id", e.ID).Str("entity", e.Entity).Msg("action undone")
	m.finish(e, model.OutcomeUndone, nil)
	if e.action.Discard != nil {
		e.action.Discard()
	}
	m.notify(e, EventUndone, "")
	return nil
}

// Pending lists userID's actions still inside their window, oldest first.
func (m *Manager) Pending(userID string) []Pending {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Pending, 0)
	for _, e := range m.pending {
		if e.action.UserID == userID {
			out = append(out, e.Pending)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

// PendingFor returns the action pending on entity, if any.
func (m *Manager) PendingFor(entity string) (Pending, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEntity[entity]
	if !ok {
		return Pending{}, false
	}
	return m.pending[id].Pending, true
}

// DiscardUser drops every pending action of userID without committing.
func (m *Manager) DiscardUser(userID string) int {
	m.mu.Lock()
	var dropped []*entry
	for id, e := range m.pending {
		if e.action.UserID == userID {
			dropped = append(dropped, m.takeLocked(id))
		}
	}
	m.mu.Unlock()

	for _, e := range dropped {
		log.Warn().Str("action_id", e.ID).Str("entity", e.Entity).Msg("pending action abandoned")
		if e.action.Discard != nil {
			e.action.Discard()
		}
	}
	return len(dropped)
}

// Close abandons every pending action.
func (m *Manager) Close() {
	m.mu.Lock()
	users := make(map[string]struct{})
	for _, e := range m.pending {
		users[e.action.UserID] = struct{}{}
	}
	m.mu.Unlock()
	for u := range users {
		m.DiscardUser(u)
	}
}

// takeLocked removes an entry and stops its timers. m.mu must be held.
func (m *Manager) takeLocked(id string) *entry {
	e, ok := m.pending[id]
	if !ok {
		return nil
	}
	delete(m.pending, id)
	if m.byEntity[e.Entity] == id {
		delete(m.byEntity, e.Entity)
	}
	if e.deadline != nil {
		e.deadline.Stop()
	}
	if e.ticker != nil {
		e.ticker.Stop()
	}
	actionsPending.Dec()
	return e
}

func (m *Manager) progress(id string) {
	m.mu.Lock()
	e, ok := m.pending[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	remaining := e.ExpiresAt.Sub(m.clock.Now())
	if remaining <= 0 {
		m.mu.Unlock()
		return
	}
	e.ticker = m.clock.AfterFunc(m.tick, func() { m.progress(id) })
	m.mu.Unlock()

	m.notifier.Notify(e.action.UserID, Notification{
		Type:        EventProgress,
		ActionID:    e.ID,
		Entity:      e.Entity,
		RemainingMS: remaining.Milliseconds(),
		Progress:    float64(remaining) / float64(m.window),
	})
}

func (m *Manager) fire(id string) {
	m.mu.Lock()
	e := m.takeLocked(id)
	m.mu.Unlock()
	if e == nil {
		return
	}

	ctx, cancel := context.WithTimeout(e.ctx, m.commitTimeout)
	defer cancel()

	if err := e.action.Commit(ctx); err != nil {
		log.Error().Err(err).Str("action_id", e.ID).Str("entity", e.Entity).Msg("action commit failed")
		if e.action.Rollback != nil {
			e.action.Rollback(err)
		}
		m.finish(e, model.OutcomeFailed, err)
		m.notify(e, EventFailed, m.message(err))
		return
	}

	if e.action.Apply != nil {
		e.action.Apply()
	}
	log.Info().Str("action_id", e.ID).Str("entity", e.Entity).Msg("action committed")
	m.finish(e, model.OutcomeCommitted, nil)
	m.notify(e, EventCommitted, "")
}

func (m *Manager) finish(e *entry, outcome string, err error) {
	actionsTotal.WithLabelValues(outcome).Inc()
	if m.recorder == nil {
		return
	}
	r := Result{Pending: e.Pending, UserID: e.action.UserID, Outcome: outcome, Err: err, Details: e.action.Details}
	if outcome == model.OutcomeCommitted && e.action.Cascade != nil {
		r.Cascade = e.action.Cascade()
	}
	m.recorder.Record(e.ctx, r)
}

func (m *Manager) notify(e *entry, typ, msg string) {
	m.notifier.Notify(e.action.UserID, Notification{
		Type:     typ,
		ActionID: e.ID,
		Entity:   e.Entity,
		Label:    e.Label,
		Message:  msg,
	})
}

// EntityKey builds the key used to detect same-entity races.
func EntityKey(entityType string, id any) string {
	return fmt.Sprintf("%s:%v", entityType, id)
}

// SplitEntityKey is the inverse of EntityKey.
func SplitEntityKey(key string) (entityType, id string) {
	entityType, id, _ = strings.Cut(key, ":")
	return entityType, id
}
