// Package composer builds backend payloads from form state: the single
// request form, the mass form and spreadsheet import. Dependent option
// lists are fetched as upstream fields change, and a field change always
// invalidates the fetches issued for its previous value.
package composer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"backoffice/internal/gateway"
	"backoffice/internal/model"
	"backoffice/internal/workflow"
)

var (
	ErrUnknownField = errors.New("unknown form field")
	ErrSubmitting   = errors.New("submission already in progress")
)

// Snapshot is what the UI renders for a request form.
type Snapshot struct {
	Values             Values            `json:"values"`
	Attachment         string            `json:"attachment,omitempty"`
	AttachmentRequired bool              `json:"attachment_required"`
	Required           []Field           `json:"required"`
	Options            Options           `json:"options"`
	Loading            Loading           `json:"loading"`
	Errors             map[string]string `json:"errors,omitempty"`
}

type RequestForm struct {
	mu         sync.Mutex
	refs       ReferenceSource
	deps       *deps
	onChange   func(Snapshot)
	values     Values
	attachment *gateway.Attachment
	submitting bool
}

func NewRequestForm(refs ReferenceSource, onChange func(Snapshot)) *RequestForm {
	f := &RequestForm{refs: refs, onChange: onChange}
	f.deps = newDeps(&f.mu, f.notify)
	return f
}

func (f *RequestForm) notify() {
	if f.onChange != nil {
		f.onChange(f.Snapshot())
	}
}

// Load fetches the lists that have no upstream field.
func (f *RequestForm) Load(ctx context.Context) {
	f.mu.Lock()
	f.deps.fetchLocked(ctx, model.RefProjects, f.refs.Projects)
	f.mu.Unlock()
	f.notify()
}

// Set changes one field and starts the fetches that depend on it.
func (f *RequestForm) Set(ctx context.Context, field Field, value string) error {
	value = strings.TrimSpace(value)

	f.mu.Lock()
	p := f.values.ptr(field)
	if p == nil {
		f.mu.Unlock()
		return ErrUnknownField
	}
	if *p == value {
		f.mu.Unlock()
		return nil
	}
	*p = value

	switch field {
	case FieldPersonnelType:
		f.values.AccountID = ""
		f.deps.clearLocked(model.RefAccounts)
		if value != "" {
			personnel := model.PersonnelType(value)
			f.deps.fetchLocked(ctx, model.RefAccounts, func(ctx context.Context) ([]model.Option, error) {
				return f.refs.Accounts(ctx, personnel)
			})
		}
		f.projectChangedLocked(ctx)
	case FieldProject:
		f.projectChangedLocked(ctx)
	case FieldVehiclePlate:
		for _, o := range f.deps.optionsLocked(model.RefTransports) {
			if strings.EqualFold(o.VehiclePlate, value) && o.VehicleNumber != "" {
				f.values.VehicleNumber = o.VehicleNumber
				break
			}
		}
	}
	f.mu.Unlock()

	f.notify()
	return nil
}

// projectChangedLocked resets the project-scoped inputs and loads the list
// matching the personnel type. f.mu must be held.
func (f *RequestForm) projectChangedLocked(ctx context.Context) {
	f.values.ResponsibleID = ""
	f.values.VehiclePlate = ""
	f.values.VehicleNumber = ""
	f.deps.clearLocked(model.RefResponsibles)
	f.deps.clearLocked(model.RefTransports)

	project := f.values.Project
	if project == "" {
		return
	}
	switch model.PersonnelType(f.values.PersonnelType) {
	case model.PersonnelNomina:
		f.deps.fetchLocked(ctx, model.RefResponsibles, func(ctx context.Context) ([]model.Option, error) {
			return f.refs.Responsibles(ctx, project)
		})
	case model.PersonnelTransportista:
		f.deps.fetchLocked(ctx, model.RefTransports, func(ctx context.Context) ([]model.Option, error) {
			return f.refs.Transports(ctx, project)
		})
	}
}

// SetAttachment replaces the attached file; nil removes it.
func (f *RequestForm) SetAttachment(att *gateway.Attachment) {
	f.mu.Lock()
	f.attachment = att
	f.mu.Unlock()
	f.notify()
}

func (f *RequestForm) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	opts, loading, errs := f.deps.snapshotLocked()
	loading.Submit = f.submitting
	t := model.RequestType(f.values.Type)
	s := Snapshot{
		Values:             f.values,
		AttachmentRequired: AttachmentRequired(t),
		Required:           RequiredFields(t, model.PersonnelType(f.values.PersonnelType)),
		Options:            opts,
		Loading:            loading,
		Errors:             errs,
	}
	if f.attachment != nil {
		s.Attachment = f.attachment.Filename
	}
	return s
}

// Wait blocks until every fetch in flight has finished.
func (f *RequestForm) Wait() { f.deps.wait() }

// Validate returns the payload, or a *workflow.ValidationError naming every
// missing or malformed field.
func (f *RequestForm) Validate() (gateway.RequestInput, *gateway.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateLocked()
}

func (f *RequestForm) validateLocked() (gateway.RequestInput, *gateway.Attachment, error) {
	in, viol := validateValues(f.values)
	if AttachmentRequired(in.Type) && f.attachment == nil {
		viol[string(FieldAttachment)] = workflow.CodeRequired
	}
	if err := viol.Err(); err != nil {
		return gateway.RequestInput{}, nil, err
	}
	return in, f.attachment, nil
}

// Submit validates and creates the request. An invalid form never reaches
// the backend. The form is reset after a successful submission.
func (f *RequestForm) Submit(ctx context.Context, api gateway.API) (model.Request, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return model.Request{}, ErrSubmitting
	}
	in, att, err := f.validateLocked()
	if err != nil {
		f.mu.Unlock()
		return model.Request{}, err
	}
	f.submitting = true
	f.mu.Unlock()
	f.notify()

	created, err := api.CreateRequest(ctx, in, att)

	f.mu.Lock()
	f.submitting = false
	if err == nil {
		f.resetLocked()
	}
	f.mu.Unlock()
	f.notify()
	return created, err
}

// Reset clears every input. Loaded projects are kept.
func (f *RequestForm) Reset() {
	f.mu.Lock()
	f.resetLocked()
	f.mu.Unlock()
	f.notify()
}

func (f *RequestForm) resetLocked() {
	f.values = Values{}
	f.attachment = nil
	f.deps.clearLocked(model.RefAccounts)
	f.deps.clearLocked(model.RefResponsibles)
	f.deps.clearLocked(model.RefTransports)
}
