package service

import (
	"context"
	"fmt"

	"backoffice/internal/composer"
	"backoffice/internal/gateway"
	"backoffice/internal/model"
	"backoffice/internal/session"
	"backoffice/internal/undo"

	"github.com/google/uuid"
)

// Form names used in events and routes.
const (
	FormRequest = "request"
	FormMass    = "mass"
)

// --- DTOs ---

type SetFieldInput struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

type EmployeesInput struct {
	IDs    []string `json:"ids"`
	Toggle string   `json:"toggle"`
	All    *bool    `json:"all"`
}

type MassSubmitResponse struct {
	Created  int             `json:"created"`
	Requests []model.Request `json:"requests"`
}

// --- Interface ---

type FormService interface {
	Request(ctx context.Context, userID string) composer.Snapshot
	SetRequestField(ctx context.Context, userID string, in SetFieldInput) (composer.Snapshot, error)
	SetRequestAttachment(ctx context.Context, userID string, att *gateway.Attachment) composer.Snapshot
	SubmitRequest(ctx context.Context, userID string) (model.Request, error)
	ResetRequest(ctx context.Context, userID string) composer.Snapshot

	Mass(ctx context.Context, userID string) composer.MassSnapshot
	SetMassField(ctx context.Context, userID string, in SetFieldInput) (composer.MassSnapshot, error)
	SetMassEmployees(ctx context.Context, userID string, in EmployeesInput) (composer.MassSnapshot, error)
	SetMassAttachment(ctx context.Context, userID string, att *gateway.Attachment) composer.MassSnapshot
	SubmitMass(ctx context.Context, userID string) (MassSubmitResponse, error)
	ResetMass(ctx context.Context, userID string) composer.MassSnapshot
}

type formService struct {
	api       gateway.API
	sessions  *session.Store
	refs      ReferenceService
	journal   JournalService
	publisher Publisher
}

func NewFormService(api gateway.API, sessions *session.Store, refs ReferenceService, journal JournalService, publisher Publisher) FormService {
	return &formService{
		api:       api,
		sessions:  sessions,
		refs:      refs,
		journal:   journal,
		publisher: publisherOrNop(publisher),
	}
}

// --- Implementation ---

// requestForm returns the user's draft, creating and loading it on first
// use. The form has its own lock; the session lock only guards creation.
func (s *formService) requestForm(ctx context.Context, userID string) *composer.RequestForm {
	sess := s.sessions.Get(userID)
	sess.Lock()
	f := sess.Form
	created := f == nil
	if created {
		f = composer.NewRequestForm(s.refs.Source(userID), func(snap composer.Snapshot) {
			s.publisher.Publish(userID, Event{Type: EventFormUpdated, Form: FormRequest, Data: snap})
		})
		sess.Form = f
	}
	sess.Unlock()
	if created {
		f.Load(ctx)
	}
	return f
}

func (s *formService) massForm(ctx context.Context, userID string) *composer.MassForm {
	sess := s.sessions.Get(userID)
	sess.Lock()
	f := sess.Mass
	created := f == nil
	if created {
		f = composer.NewMassForm(s.refs.Source(userID), func(snap composer.MassSnapshot) {
			s.publisher.Publish(userID, Event{Type: EventFormUpdated, Form: FormMass, Data: snap})
		})
		sess.Mass = f
	}
	sess.Unlock()
	if created {
		f.Load(ctx)
	}
	return f
}

func (s *formService) Request(ctx context.Context, userID string) composer.Snapshot {
	return s.requestForm(ctx, userID).Snapshot()
}

func (s *formService) SetRequestField(ctx context.Context, userID string, in SetFieldInput) (composer.Snapshot, error) {
	f := s.requestForm(ctx, userID)
	if err := f.Set(ctx, composer.Field(in.Field), in.Value); err != nil {
		return composer.Snapshot{}, err
	}
	return f.Snapshot(), nil
}

func (s *formService) SetRequestAttachment(ctx context.Context, userID string, att *gateway.Attachment) composer.Snapshot {
	f := s.requestForm(ctx, userID)
	f.SetAttachment(att)
	return f.Snapshot()
}

func (s *formService) SubmitRequest(ctx context.Context, userID string) (model.Request, error) {
	created, err := s.requestForm(ctx, userID).Submit(ctx, s.api)
	if err != nil {
		return model.Request{}, fmt.Errorf("failed to create request: %w", err)
	}

	s.addRequests(userID, created)
	s.journal.Record(ctx, undo.Result{
		Pending: undo.Pending{ID: uuid.NewString(), Entity: undo.EntityKey(model.EntityRequest, created.UniqueID), Kind: model.ActionRequestCreate},
		UserID:  userID,
		Outcome: model.OutcomeCommitted,
		Details: map[string]any{"type": created.Type, "amount": created.Amount.StringFixed(2), "project": created.Project},
	})
	s.publisher.Publish(userID, Event{Type: EventRequestSaved, Table: session.TableRequests, Data: created})
	return created, nil
}

func (s *formService) ResetRequest(ctx context.Context, userID string) composer.Snapshot {
	f := s.requestForm(ctx, userID)
	f.Reset()
	return f.Snapshot()
}

func (s *formService) Mass(ctx context.Context, userID string) composer.MassSnapshot {
	return s.massForm(ctx, userID).Snapshot()
}

func (s *formService) SetMassField(ctx context.Context, userID string, in SetFieldInput) (composer.MassSnapshot, error) {
	f := s.massForm(ctx, userID)
	if err := f.Set(ctx, composer.Field(in.Field), in.Value); err != nil {
		return composer.MassSnapshot{}, err
	}
	return f.Snapshot(), nil
}

// SetMassEmployees applies, in order of precedence, select-all, a single
// toggle, or a full replacement of the selection.
func (s *formService) SetMassEmployees(ctx context.Context, userID string, in EmployeesInput) (composer.MassSnapshot, error) {
	f := s.massForm(ctx, userID)
	var err error
	switch {
	case in.All != nil:
		f.SelectAllEmployees(*in.All)
	case in.Toggle != "":
		err = f.ToggleEmployee(in.Toggle)
	default:
		err = f.SetEmployees(in.IDs)
	}
	if err != nil {
		return composer.MassSnapshot{}, err
	}
	return f.Snapshot(), nil
}

func (s *formService) SetMassAttachment(ctx context.Context, userID string, att *gateway.Attachment) composer.MassSnapshot {
	f := s.massForm(ctx, userID)
	f.SetAttachment(att)
	return f.Snapshot()
}

func (s *formService) SubmitMass(ctx context.Context, userID string) (MassSubmitResponse, error) {
	created, err := s.massForm(ctx, userID).Submit(ctx, s.api)
	if err != nil {
		return MassSubmitResponse{}, fmt.Errorf("failed to create mass requests: %w", err)
	}

	s.addRequests(userID, created...)
	ids := make([]string, 0, len(created))
	for _, r := range created {
		ids = append(ids, r.UniqueID)
	}
	s.journal.Record(ctx, undo.Result{
		Pending: undo.Pending{ID: uuid.NewString(), Entity: undo.EntityKey(model.EntityRequest, ""), Kind: model.ActionRequestMass},
		UserID:  userID,
		Outcome: model.OutcomeCommitted,
		Details: map[string]any{"requests": ids},
	})
	s.publisher.Publish(userID, Event{Type: EventRequestSaved, Table: session.TableRequests, Data: created})
	return MassSubmitResponse{Created: len(created), Requests: created}, nil
}

func (s *formService) ResetMass(ctx context.Context, userID string) composer.MassSnapshot {
	f := s.massForm(ctx, userID)
	f.Reset()
	return f.Snapshot()
}

// addRequests puts new rows at the head of a loaded requests table.
func (s *formService) addRequests(userID string, reqs ...model.Request) {
	sess := s.sessions.Get(userID)
	sess.Lock()
	defer sess.Unlock()
	if sess.Requests.Loaded() {
		sess.Requests.Engine.Prepend(reqs...)
	}
}
