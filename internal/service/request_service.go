package service

import (
	"context"
	"fmt"
	"io"

	"backoffice/internal/composer"
	"backoffice/internal/gateway"
	"backoffice/internal/model"
	"backoffice/internal/session"
	"backoffice/internal/workflow"

	"github.com/rs/zerolog/log"
)

// --- DTOs ---

// RequestDetail is one request with the actions the UI may offer for it.
type RequestDetail struct {
	model.Request
	Editable bool                  `json:"editable"`
	Targets  []model.RequestStatus `json:"targets"`
}

type TransitionRequestInput struct {
	Status model.RequestStatus `json:"status" binding:"required"`
	Note   string              `json:"note"`
}

type ImportResponse struct {
	Imported int             `json:"imported"`
	Requests []model.Request `json:"requests,omitempty"`
}

// --- Interface ---

type RequestService interface {
	Get(ctx context.Context, userID, id string) (RequestDetail, error)
	Edit(ctx context.Context, userID, id string, patch model.RequestPatch) (RequestDetail, error)
	Transition(ctx context.Context, userID, id string, in TransitionRequestInput) (RequestDetail, error)
	Import(ctx context.Context, userID, filename string, r io.Reader) (ImportResponse, error)
}

type requestService struct {
	api       gateway.API
	sessions  *session.Store
	journal   JournalService
	publisher Publisher
}

func NewRequestService(api gateway.API, sessions *session.Store, journal JournalService, publisher Publisher) RequestService {
	return &requestService{
		api:       api,
		sessions:  sessions,
		journal:   journal,
		publisher: publisherOrNop(publisher),
	}
}

// --- Implementation ---

func toRequestDetail(r model.Request) RequestDetail {
	targets := workflow.RequestTargets(r.Status)
	if targets == nil {
		targets = []model.RequestStatus{}
	}
	return RequestDetail{
		Request:  r,
		Editable: workflow.CheckEditable(r) == nil,
		Targets:  targets,
	}
}

// currentLocked returns the session's copy of a request, falling back to
// the backend when the requests table does not hold it.
func (s *requestService) currentLocked(ctx context.Context, sess *session.Session, id string) (model.Request, error) {
	if r, ok := sess.Requests.Engine.Row(id); ok {
		return r, nil
	}
	r, err := s.api.GetRequest(ctx, id)
	if err != nil {
		return model.Request{}, fmt.Errorf("failed to get request %s: %w", id, err)
	}
	return r, nil
}

func (s *requestService) Get(ctx context.Context, userID, id string) (RequestDetail, error) {
	sess := s.sessions.Get(userID)
	sess.Lock()
	defer sess.Unlock()
	r, err := s.currentLocked(ctx, sess, id)
	if err != nil {
		return RequestDetail{}, err
	}
	return toRequestDetail(r), nil
}

func validatePatch(p model.RequestPatch) error {
	v := workflow.Violations{}
	if p.IsEmpty() {
		v["fields"] = workflow.CodeRequired
	}
	if p.Status != nil {
		// status moves go through Transition
		v["status"] = workflow.CodeInvalid
	}
	if p.Amount != nil && p.Amount.IsNegative() {
		v["amount"] = workflow.CodeNegative
	}
	if p.AccountID != nil && *p.AccountID == "" {
		v["account_id"] = workflow.CodeRequired
	}
	if p.Project != nil && *p.Project == "" {
		v["project"] = workflow.CodeRequired
	}
	return v.Err()
}

// checkPersonnelFields rejects patch fields that do not apply to the
// request's personnel type.
func checkPersonnelFields(r model.Request, p model.RequestPatch) error {
	v := workflow.Violations{}
	switch r.PersonnelType {
	case model.PersonnelNomina:
		if p.VehiclePlate != nil {
			v["vehicle_plate"] = workflow.CodeInvalid
		}
		if p.VehicleNumber != nil {
			v["vehicle_number"] = workflow.CodeInvalid
		}
	case model.PersonnelTransportista:
		if p.ResponsibleID != nil {
			v["responsible_id"] = workflow.CodeInvalid
		}
	}
	return v.Err()
}

func (s *requestService) Edit(ctx context.Context, userID, id string, patch model.RequestPatch) (RequestDetail, error) {
	if err := validatePatch(patch); err != nil {
		return RequestDetail{}, err
	}

	sess := s.sessions.Get(userID)
	sess.Lock()
	defer sess.Unlock()

	current, err := s.currentLocked(ctx, sess, id)
	if err != nil {
		return RequestDetail{}, err
	}
	if err := workflow.CheckEditable(current); err != nil {
		return RequestDetail{}, err
	}
	if err := checkPersonnelFields(current, patch); err != nil {
		return RequestDetail{}, err
	}

	updated, err := s.api.UpdateRequest(ctx, id, patch)
	if err != nil {
		s.logOutcome(ctx, userID, model.ActionRequestEdit, id, model.OutcomeFailed, map[string]any{"error": err.Error()})
		return RequestDetail{}, fmt.Errorf("failed to update request %s: %w", id, err)
	}
	sess.Requests.Engine.Update(updated)
	s.logOutcome(ctx, userID, model.ActionRequestEdit, id, model.OutcomeCommitted, patch)
	return toRequestDetail(updated), nil
}

func (s *requestService) Transition(ctx context.Context, userID, id string, in TransitionRequestInput) (RequestDetail, error) {
	if !in.Status.IsValid() {
		return RequestDetail{}, (workflow.Violations{"status": workflow.CodeInvalid}).Err()
	}

	sess := s.sessions.Get(userID)
	sess.Lock()
	defer sess.Unlock()

	current, err := s.currentLocked(ctx, sess, id)
	if err != nil {
		return RequestDetail{}, err
	}
	if err := workflow.CheckRequestTransition(current.Status, in.Status, workflow.OriginDirect); err != nil {
		return RequestDetail{}, err
	}

	patch := model.RequestPatch{Status: &in.Status}
	if in.Note != "" {
		patch.Note = &in.Note
	}
	details := map[string]any{"from": current.Status, "to": in.Status}

	updated, err := s.api.UpdateRequest(ctx, id, patch)
	if err != nil {
		details["error"] = err.Error()
		s.logOutcome(ctx, userID, model.ActionRequestTransition, id, model.OutcomeFailed, details)
		return RequestDetail{}, fmt.Errorf("failed to move request %s to %s: %w", id, in.Status, err)
	}
	sess.Requests.Engine.Update(updated)
	s.logOutcome(ctx, userID, model.ActionRequestTransition, id, model.OutcomeCommitted, details)
	return toRequestDetail(updated), nil
}

// Import parses a spreadsheet and submits it in one call. Any row error
// rejects the whole file before the backend is contacted.
func (s *requestService) Import(ctx context.Context, userID, filename string, r io.Reader) (ImportResponse, error) {
	rows, err := composer.ParseImport(filename, r)
	if err != nil {
		return ImportResponse{}, err
	}

	res, err := s.api.ImportRequests(ctx, rows)
	if err != nil {
		s.logOutcome(ctx, userID, model.ActionRequestImport, filename, model.OutcomeFailed, map[string]any{"rows": len(rows), "error": err.Error()})
		return ImportResponse{}, fmt.Errorf("failed to import requests: %w", err)
	}
	s.logOutcome(ctx, userID, model.ActionRequestImport, filename, model.OutcomeCommitted, map[string]any{"rows": len(rows), "imported": res.Imported})

	sess := s.sessions.Get(userID)
	sess.Lock()
	sess.Requests.Invalidate()
	sess.Unlock()
	s.publisher.Publish(userID, Event{Type: EventTableUpdated, Table: session.TableRequests, Message: fmt.Sprintf("%d requests imported", res.Imported)})

	return ImportResponse{Imported: res.Imported, Requests: res.Requests}, nil
}

func (s *requestService) logOutcome(ctx context.Context, userID, action, entityID, outcome string, details any) {
	if err := s.journal.Log(ctx, userID, action, model.EntityRequest, entityID, outcome, details); err != nil {
		log.Error().Err(err).Str("action", action).Str("request_id", entityID).Msg("failed to journal request action")
	}
}
