package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrTransitionNotAllowed is returned for a status change the state
	// machine does not offer from the current status.
	ErrTransitionNotAllowed = errors.New("status transition not allowed")

	// ErrRequestLocked is returned when editing a paid or rejected request.
	ErrRequestLocked = errors.New("request is locked")

	// ErrRequestInReposition is returned when editing a request that is
	// already part of a reposición.
	ErrRequestInReposition = errors.New("request belongs to a reposición")
)

// Violation codes
const (
	CodeRequired       = "required"
	CodeInvalid        = "invalid"
	CodeMustBePositive = "must_be_positive"
	CodeNegative       = "must_not_be_negative"
	CodeMismatch       = "mismatch"
	CodeNotPending     = "not_pending"
	CodeExactlyOne     = "exactly_one"
)

// Violations maps a field to a violation code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Required records a violation when value is blank.
func (v Violations) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v[field] = CodeRequired
	}
}

// Fields returns the violated fields in sorted order.
func (v Violations) Fields() []string {
	out := make([]string, 0, len(v))
	for f := range v {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Err returns nil when there are no violations.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &ValidationError{Violations: v}
}

// ValidationError is a local validation failure. It never reaches the
// network.
type ValidationError struct {
	Violations Violations
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, f := range e.Violations.Fields() {
		parts = append(parts, f+" "+e.Violations[f])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move %s from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrTransitionNotAllowed }
