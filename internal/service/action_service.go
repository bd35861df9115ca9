package service

import (
	"context"

	"backoffice/internal/undo"
)

// --- Interface ---

// ActionService exposes the user's undoable actions still inside their
// window.
type ActionService interface {
	Pending(ctx context.Context, userID string) []undo.Pending
	Undo(ctx context.Context, userID, actionID string) error
}

type actionService struct {
	undo *undo.Manager
}

func NewActionService(manager *undo.Manager) ActionService {
	return &actionService{undo: manager}
}

// --- Implementation ---

func (s *actionService) Pending(_ context.Context, userID string) []undo.Pending {
	return s.undo.Pending(userID)
}

// Undo drops the action. No backend call is made and the session is left
// as it was before scheduling.
func (s *actionService) Undo(_ context.Context, userID, actionID string) error {
	return s.undo.Undo(userID, actionID)
}
