package service

import (
	"context"
	"fmt"
	"slices"

	"backoffice/internal/gateway"
	"backoffice/internal/model"
	"backoffice/internal/session"
	"backoffice/internal/undo"
	"backoffice/internal/workflow"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// --- DTOs ---

type CreateReposicionInput struct {
	// RequestIDs defaults to the current selection of the requests table.
	RequestIDs  []string
	Attachments []gateway.Attachment
}

type TransitionReposicionInput struct {
	Status model.ReposicionStatus `json:"status" binding:"required"`
	Month  string                 `json:"month"`
	When   model.PaymentWhen      `json:"when"`
	Note   string                 `json:"note"`
}

func (in TransitionReposicionInput) data() workflow.TransitionData {
	return workflow.TransitionData{Month: in.Month, When: in.When, Note: in.Note}
}

type ReposicionDetail struct {
	model.Reposicion
	Targets []model.ReposicionStatus `json:"targets"`
	Pending *undo.Pending            `json:"pending,omitempty"`
}

// --- Interface ---

type ReposicionService interface {
	Create(ctx context.Context, userID string, in CreateReposicionInput) (ReposicionDetail, error)
	// ScheduleTransition starts the undo window. Nothing changes locally or
	// remotely until it elapses.
	ScheduleTransition(ctx context.Context, userID, id string, in TransitionReposicionInput) (undo.Pending, error)
	Detail(ctx context.Context, userID, id string) (ReposicionDetail, error)
}

type reposicionService struct {
	api       gateway.API
	sessions  *session.Store
	undo      *undo.Manager
	journal   JournalService
	publisher Publisher
}

func NewReposicionService(api gateway.API, sessions *session.Store, manager *undo.Manager, journal JournalService, publisher Publisher) ReposicionService {
	return &reposicionService{
		api:       api,
		sessions:  sessions,
		undo:      manager,
		journal:   journal,
		publisher: publisherOrNop(publisher),
	}
}

// --- Implementation ---

func (s *reposicionService) detail(r model.Reposicion) ReposicionDetail {
	targets := workflow.ReposicionTargets(r.Status)
	if targets == nil {
		targets = []model.ReposicionStatus{}
	}
	d := ReposicionDetail{Reposicion: r, Targets: targets}
	if p, ok := s.undo.PendingFor(undo.EntityKey(model.EntityReposicion, r.ID)); ok {
		d.Pending = &p
	}
	return d
}

func (s *reposicionService) publishTable(userID string, kind session.TableKind, view TableView) {
	s.publisher.Publish(userID, Event{Type: EventTableUpdated, Table: kind, Data: view})
}

// selectedRequestsLocked resolves the batch members. Unknown ids are looked
// up on the backend.
func (s *reposicionService) selectedRequestsLocked(ctx context.Context, sess *session.Session, ids []string) ([]string, []model.Request, error) {
	e := sess.Requests.Engine
	if len(ids) == 0 {
		for _, r := range e.Selected() {
			ids = append(ids, r.UniqueID)
		}
	}

	seen := make(map[string]struct{}, len(ids))
	var (
		uniq []string
		reqs []model.Request
	)
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		r, ok := e.Row(id)
		if !ok {
			var err error
			if r, err = s.api.GetRequest(ctx, id); err != nil {
				return nil, nil, fmt.Errorf("failed to get request %s: %w", id, err)
			}
		}
		uniq = append(uniq, id)
		reqs = append(reqs, r)
	}
	return uniq, reqs, nil
}

func (s *reposicionService) Create(ctx context.Context, userID string, in CreateReposicionInput) (ReposicionDetail, error) {
	sess := s.sessions.Get(userID)
	sess.Lock()
	defer sess.Unlock()

	ids, reqs, err := s.selectedRequestsLocked(ctx, sess, in.RequestIDs)
	if err != nil {
		return ReposicionDetail{}, err
	}
	project, total, err := workflow.CheckCreateReposicion(reqs, len(in.Attachments))
	if err != nil {
		return ReposicionDetail{}, err
	}

	e := sess.Requests.Engine
	prev := e.Rows()
	removed := e.Remove(ids...)
	s.publishTable(userID, session.TableRequests, renderLocked(sess, session.TableRequests))

	rep, err := s.api.CreateReposicion(ctx, ids, in.Attachments[0])
	if err != nil {
		e.Restore(prev, removed)
		s.publishTable(userID, session.TableRequests, renderLocked(sess, session.TableRequests))
		s.journal.Record(ctx, undo.Result{
			Pending: undo.Pending{ID: uuid.NewString(), Entity: undo.EntityKey(model.EntityReposicion, ""), Kind: model.ActionReposicionCreate},
			UserID:  userID,
			Outcome: model.OutcomeFailed,
			Err:     err,
			Details: map[string]any{"requests": ids},
		})
		return ReposicionDetail{}, fmt.Errorf("failed to create reposición: %w", err)
	}

	if rep.Project == "" {
		rep.Project = project
	}
	if rep.TotalReposicion.IsZero() {
		rep.TotalReposicion = total
	}
	members := make([]model.Request, 0, len(removed))
	for _, r := range reqs {
		r.Status = model.RequestInReposition
		r.ReposicionID = rep.ID
		members = append(members, r)
	}
	if len(rep.Requests) == 0 {
		rep.Requests = members
	}

	// rows stay visible unless the table only lists pending requests
	if sess.Requests.Filter.Status != model.RequestPending {
		e.Restore(prev, removed)
		for _, m := range members {
			e.Update(m)
		}
	}
	e.ClearSelection()
	if sess.Reposiciones.Loaded() {
		sess.Reposiciones.Engine.Prepend(rep)
	}

	cascade := make([]string, 0, len(ids))
	for _, id := range ids {
		cascade = append(cascade, undo.EntityKey(model.EntityRequest, id))
	}
	s.journal.Record(ctx, undo.Result{
		Pending: undo.Pending{ID: uuid.NewString(), Entity: undo.EntityKey(model.EntityReposicion, rep.ID), Kind: model.ActionReposicionCreate},
		UserID:  userID,
		Outcome: model.OutcomeCommitted,
		Details: map[string]any{"requests": ids, "total": rep.TotalReposicion.StringFixed(2), "project": rep.Project},
		Cascade: cascade,
	})

	s.publishTable(userID, session.TableRequests, renderLocked(sess, session.TableRequests))
	s.publisher.Publish(userID, Event{Type: EventReposicionNew, Table: session.TableReposiciones, Data: rep})
	log.Info().Str("user_id", userID).Str("reposicion_id", rep.ID.String()).Int("requests", len(ids)).Msg("reposición created")
	return s.detail(rep), nil
}

// currentReposicionLocked prefers the session copy, which reflects the last
// committed state.
func (s *reposicionService) currentReposicionLocked(ctx context.Context, sess *session.Session, id string) (model.Reposicion, error) {
	if r, ok := sess.Reposiciones.Engine.Row(id); ok {
		return r, nil
	}
	r, err := s.api.GetReposicion(ctx, id)
	if err != nil {
		return model.Reposicion{}, fmt.Errorf("failed to get reposición %s: %w", id, err)
	}
	return r, nil
}

func (s *reposicionService) ScheduleTransition(ctx context.Context, userID, id string, in TransitionReposicionInput) (undo.Pending, error) {
	if !in.Status.IsValid() {
		return undo.Pending{}, (workflow.Violations{"status": workflow.CodeInvalid}).Err()
	}

	sess := s.sessions.Get(userID)
	sess.Lock()
	current, err := s.currentReposicionLocked(ctx, sess, id)
	sess.Unlock()
	if err != nil {
		return undo.Pending{}, err
	}
	data := in.data()
	if err := workflow.CheckReposicionTransition(current, in.Status, data); err != nil {
		return undo.Pending{}, err
	}

	upd := model.ReposicionUpdate{Status: in.Status, Month: in.Month, When: in.When, Note: in.Note}
	var committed model.Reposicion

	action := undo.Action{
		UserID:  userID,
		Entity:  undo.EntityKey(model.EntityReposicion, id),
		Label:   fmt.Sprintf("Reposición %s: %s", id, in.Status),
		Kind:    model.ActionReposicionTransition,
		Details: map[string]any{"from": current.Status, "to": in.Status, "month": in.Month, "when": in.When, "note": in.Note},
		Commit: func(ctx context.Context) error {
			rep, err := s.api.UpdateReposicion(ctx, id, upd)
			if err != nil {
				return err
			}
			committed = rep
			return nil
		},
		Apply: func() {
			s.applyTransition(sess, id, in.Status, data, &committed)
		},
		Rollback: func(err error) {
			// local state was never touched; re-render the last known-good rows
			sess.Lock()
			view := renderLocked(sess, session.TableReposiciones)
			sess.Unlock()
			s.publishTable(userID, session.TableReposiciones, view)
		},
		Cascade: func() []string {
			keys := make([]string, 0, len(committed.Requests))
			for _, r := range committed.Requests {
				keys = append(keys, undo.EntityKey(model.EntityRequest, r.UniqueID))
			}
			return keys
		},
	}
	return s.undo.Schedule(ctx, action)
}

// applyTransition writes a committed transition into the session and
// cascades the member statuses. rep is filled with the members it updated.
func (s *reposicionService) applyTransition(sess *session.Session, id string, to model.ReposicionStatus, data workflow.TransitionData, rep *model.Reposicion) {
	sess.Lock()
	reqs := sess.Requests.Engine

	if rep.ID == "" {
		if local, ok := sess.Reposiciones.Engine.Row(id); ok {
			*rep = local
		}
	}
	if len(rep.Requests) == 0 {
		for _, r := range reqs.Rows() {
			if r.ReposicionID.String() == id {
				rep.Requests = append(rep.Requests, r)
			}
		}
	}
	// the backend answer is authoritative for metadata; the cascade is
	// enforced here regardless
	workflow.ApplyReposicionTransition(rep, to, data)
	if err := workflow.CheckCascade(*rep); err != nil {
		log.Error().Err(err).Msg("cascade mismatch after transition")
	}

	row := *rep
	row.Requests = slices.Clone(rep.Requests)
	if !sess.Reposiciones.Engine.Update(row) {
		log.Debug().Str("reposicion_id", id).Msg("transitioned reposición not in session table")
	}
	for _, m := range rep.Requests {
		if local, ok := reqs.Row(m.UniqueID); ok {
			local.Status = m.Status
			local.ReposicionID = m.ReposicionID
			reqs.Update(local)
		}
	}

	repView := renderLocked(sess, session.TableReposiciones)
	reqView := renderLocked(sess, session.TableRequests)
	userID := sess.UserID
	sess.Unlock()

	s.publishTable(userID, session.TableReposiciones, repView)
	s.publishTable(userID, session.TableRequests, reqView)
}

func (s *reposicionService) Detail(ctx context.Context, userID, id string) (ReposicionDetail, error) {
	rep, err := s.api.GetReposicion(ctx, id)
	if err != nil {
		return ReposicionDetail{}, fmt.Errorf("failed to get reposición %s: %w", id, err)
	}

	d := s.detail(rep)
	if d.Pending == nil {
		sess := s.sessions.Get(userID)
		sess.Lock()
		sess.Reposiciones.Engine.Update(rep)
		sess.Unlock()
	}
	return d, nil
}
