package undo

import "time"

// Notification types pushed to the acting user.
const (
	EventScheduled  = "action.scheduled"
	EventProgress   = "action.progress"
	EventUndone     = "action.undone"
	EventSuperseded = "action.superseded"
	EventCommitted  = "action.committed"
	EventFailed     = "action.failed"
)

// Notification is one step of an action's countdown or its outcome.
type Notification struct {
	Type        string     `json:"type"`
	ActionID    string     `json:"action_id"`
	Entity      string     `json:"entity"`
	Label       string     `json:"label,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty"`
	RemainingMS int64      `json:"remaining_ms"`
	Progress    float64    `json:"progress"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Message     string     `json:"message,omitempty"`
}

type Notifier interface {
	Notify(userID string, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(userID string, n Notification)

func (f NotifierFunc) Notify(userID string, n Notification) { f(userID, n) }

type nopNotifier struct{}

func (nopNotifier) Notify(string, Notification) {}
