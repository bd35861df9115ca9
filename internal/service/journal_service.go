package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/internal/undo"

	"github.com/rs/zerolog/log"
)

// --- DTOs ---

type JournalQuery struct {
	UserID     string
	EntityType string
	EntityID   string
	Outcome    string
	Page       int
	Limit      int
}

type JournalEntryResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Outcome    string          `json:"outcome"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// --- Interface ---

// JournalService writes and reads the action journal. It is the undo
// manager's Recorder.
type JournalService interface {
	undo.Recorder
	Log(ctx context.Context, userID, action, entityType, entityID, outcome string, details any) error
	List(ctx context.Context, q JournalQuery) ([]JournalEntryResponse, int64, error)
	Summary(ctx context.Context, q JournalQuery, since time.Time) ([]repository.JournalSummaryRow, error)
}

type journalService struct {
	repo repository.JournalRepository
	tx   repository.TransactionManager
}

func NewJournalService(repo repository.JournalRepository, tx repository.TransactionManager) JournalService {
	return &journalService{repo: repo, tx: tx}
}

// --- Implementation ---

func encodeDetails(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Record journals the final outcome of an undoable action. For committed
// actions the cascaded entities are written in the same transaction.
func (s *journalService) Record(ctx context.Context, r undo.Result) {
	entityType, entityID := undo.SplitEntityKey(r.Entity)
	details := map[string]any{"action_id": r.ID, "label": r.Label}
	if r.Details != nil {
		details["payload"] = r.Details
	}
	if r.Err != nil {
		details["error"] = r.Err.Error()
	}

	entries := []*model.ActionLog{{
		UserID:     r.UserID,
		Action:     r.Kind,
		EntityType: entityType,
		EntityID:   entityID,
		Outcome:    r.Outcome,
		Details:    encodeDetails(details),
	}}
	for _, key := range r.Cascade {
		typ, id := undo.SplitEntityKey(key)
		entries = append(entries, &model.ActionLog{
			UserID:     r.UserID,
			Action:     model.ActionRequestCascade,
			EntityType: typ,
			EntityID:   id,
			Outcome:    r.Outcome,
			Details:    encodeDetails(map[string]any{"action_id": r.ID, "via": r.Entity}),
		})
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.Append(txCtx, entries...)
	})
	if err != nil {
		log.Error().Err(err).Str("action_id", r.ID).Str("entity", r.Entity).Msg("failed to journal action")
	}
}

func (s *journalService) Log(ctx context.Context, userID, action, entityType, entityID, outcome string, details any) error {
	entry := &model.ActionLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Outcome:    outcome,
		Details:    encodeDetails(details),
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	return nil
}

func (q JournalQuery) filter() repository.JournalFilter {
	return repository.JournalFilter{
		UserID:     q.UserID,
		EntityType: q.EntityType,
		EntityID:   q.EntityID,
		Outcome:    q.Outcome,
	}
}

func (s *journalService) List(ctx context.Context, q JournalQuery) ([]JournalEntryResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, q.filter(), q.Page, q.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list journal: %w", err)
	}

	res := make([]JournalEntryResponse, 0, len(logs))
	for _, l := range logs {
		e := JournalEntryResponse{
			ID:         l.ID.String(),
			UserID:     l.UserID,
			Action:     l.Action,
			EntityType: l.EntityType,
			EntityID:   l.EntityID,
			Outcome:    l.Outcome,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if l.Details != "" {
			e.Details = json.RawMessage(l.Details)
		}
		res = append(res, e)
	}
	return res, total, nil
}

// Summary counts journaled actions per action and outcome.
func (s *journalService) Summary(ctx context.Context, q JournalQuery, since time.Time) ([]repository.JournalSummaryRow, error) {
	rows, err := s.repo.Summary(ctx, q.filter(), since)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []repository.JournalSummaryRow{}
	}
	return rows, nil
}
