package composer

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"backoffice/internal/gateway"
	"backoffice/internal/model"
	"backoffice/internal/workflow"

	"github.com/shopspring/decimal"
)

var ErrUnknownEmployee = errors.New("employee is not in the project's responsible list")

// MassValues is the state of the mass form. Personnel type is always
// nomina: the employees are the project's responsibles.
type MassValues struct {
	Type        string   `json:"type"`
	Project     string   `json:"project"`
	AccountID   string   `json:"account_id"`
	TotalAmount string   `json:"total_amount"`
	RequestDate string   `json:"request_date"`
	Note        string   `json:"note"`
	EmployeeIDs []string `json:"employee_ids"`
}

type MassSnapshot struct {
	Values            MassValues        `json:"values"`
	PersonnelType     string            `json:"personnel_type"`
	SelectedCount     int               `json:"selected_count"`
	AmountPerEmployee string            `json:"amount_per_employee,omitempty"`
	Attachment        string            `json:"attachment,omitempty"`
	Options           Options           `json:"options"`
	Loading           Loading           `json:"loading"`
	Errors            map[string]string `json:"errors,omitempty"`
}

type MassForm struct {
	mu         sync.Mutex
	refs       ReferenceSource
	deps       *deps
	onChange   func(MassSnapshot)
	values     MassValues
	attachment *gateway.Attachment
	submitting bool
}

func NewMassForm(refs ReferenceSource, onChange func(MassSnapshot)) *MassForm {
	f := &MassForm{refs: refs, onChange: onChange}
	f.deps = newDeps(&f.mu, f.notify)
	return f
}

func (f *MassForm) notify() {
	if f.onChange != nil {
		f.onChange(f.Snapshot())
	}
}

func (f *MassForm) Load(ctx context.Context) {
	f.mu.Lock()
	f.deps.fetchLocked(ctx, model.RefProjects, f.refs.Projects)
	f.deps.fetchLocked(ctx, model.RefAccounts, func(ctx context.Context) ([]model.Option, error) {
		return f.refs.Accounts(ctx, model.PersonnelNomina)
	})
	f.mu.Unlock()
	f.notify()
}

func (f *MassForm) Set(ctx context.Context, field Field, value string) error {
	value = strings.TrimSpace(value)

	f.mu.Lock()
	var p *string
	switch field {
	case FieldType:
		p = &f.values.Type
	case FieldProject:
		p = &f.values.Project
	case FieldAccountID:
		p = &f.values.AccountID
	case FieldAmount, FieldTotalAmount:
		p = &f.values.TotalAmount
	case FieldRequestDate:
		p = &f.values.RequestDate
	case FieldNote:
		p = &f.values.Note
	default:
		f.mu.Unlock()
		return ErrUnknownField
	}
	if *p == value {
		f.mu.Unlock()
		return nil
	}
	*p = value

	if field == FieldProject {
		f.values.EmployeeIDs = nil
		f.deps.clearLocked(model.RefResponsibles)
		if value != "" {
			project := value
			f.deps.fetchLocked(ctx, model.RefResponsibles, func(ctx context.Context) ([]model.Option, error) {
				return f.refs.Responsibles(ctx, project)
			})
		}
	}
	f.mu.Unlock()

	f.notify()
	return nil
}

// SetEmployees replaces the selection. Every id must be one of the loaded
// responsibles.
func (f *MassForm) SetEmployees(ids []string) error {
	f.mu.Lock()
	known := f.deps.optionsLocked(model.RefResponsibles)
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := model.FindOption(known, model.ID(id)); !ok {
			f.mu.Unlock()
			return ErrUnknownEmployee
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	f.values.EmployeeIDs = out
	f.mu.Unlock()

	f.notify()
	return nil
}

// ToggleEmployee adds or removes one employee.
func (f *MassForm) ToggleEmployee(id string) error {
	f.mu.Lock()
	if _, ok := model.FindOption(f.deps.optionsLocked(model.RefResponsibles), model.ID(id)); !ok {
		f.mu.Unlock()
		return ErrUnknownEmployee
	}
	if i := slices.Index(f.values.EmployeeIDs, id); i >= 0 {
		f.values.EmployeeIDs = slices.Delete(f.values.EmployeeIDs, i, i+1)
	} else {
		f.values.EmployeeIDs = append(f.values.EmployeeIDs, id)
	}
	f.mu.Unlock()

	f.notify()
	return nil
}

// SelectAllEmployees selects every loaded responsible; all=false clears.
func (f *MassForm) SelectAllEmployees(all bool) {
	f.mu.Lock()
	f.values.EmployeeIDs = nil
	if all {
		for _, o := range f.deps.optionsLocked(model.RefResponsibles) {
			f.values.EmployeeIDs = append(f.values.EmployeeIDs, string(o.ID))
		}
	}
	f.mu.Unlock()
	f.notify()
}

func (f *MassForm) SetAttachment(att *gateway.Attachment) {
	f.mu.Lock()
	f.attachment = att
	f.mu.Unlock()
	f.notify()
}

// AmountPerEmployee is total/selected rounded to cents. It is for display
// only; the backend receives the total and does its own split.
func AmountPerEmployee(total string, selected int) (decimal.Decimal, bool) {
	if selected <= 0 {
		return decimal.Zero, false
	}
	amt, err := ParseAmount(total)
	if err != nil || !amt.IsPositive() {
		return decimal.Zero, false
	}
	return amt.DivRound(decimal.NewFromInt(int64(selected)), 2), true
}

func (f *MassForm) Snapshot() MassSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	opts, loading, errs := f.deps.snapshotLocked()
	loading.Submit = f.submitting
	s := MassSnapshot{
		Values:        f.values,
		PersonnelType: string(model.PersonnelNomina),
		SelectedCount: len(f.values.EmployeeIDs),
		Options:       opts,
		Loading:       loading,
		Errors:        errs,
	}
	s.Values.EmployeeIDs = slices.Clone(f.values.EmployeeIDs)
	if per, ok := AmountPerEmployee(f.values.TotalAmount, len(f.values.EmployeeIDs)); ok {
		s.AmountPerEmployee = per.StringFixed(2)
	}
	if f.attachment != nil {
		s.Attachment = f.attachment.Filename
	}
	return s
}

func (f *MassForm) Wait() { f.deps.wait() }

func (f *MassForm) Validate() (gateway.MassInput, *gateway.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateLocked()
}

func (f *MassForm) validateLocked() (gateway.MassInput, *gateway.Attachment, error) {
	v := f.values
	viol := workflow.Violations{}
	viol.Required("type", v.Type)
	viol.Required("project", v.Project)
	viol.Required("account_id", v.AccountID)
	viol.Required("total_amount", v.TotalAmount)
	viol.Required("request_date", v.RequestDate)
	viol.Required("note", v.Note)

	t := model.RequestType(v.Type)
	if v.Type != "" && t != model.RequestTypeDiscount && t != model.RequestTypeExpense {
		viol["type"] = workflow.CodeInvalid
	}
	if len(v.EmployeeIDs) == 0 {
		viol[string(FieldEmployeeIDs)] = workflow.CodeRequired
	}
	if f.attachment == nil {
		viol[string(FieldAttachment)] = workflow.CodeRequired
	}

	in := gateway.MassInput{
		Type:          t,
		PersonnelType: model.PersonnelNomina,
		AccountID:     v.AccountID,
		Project:       v.Project,
		Note:          v.Note,
		EmployeeIDs:   slices.Clone(v.EmployeeIDs),
	}
	if v.TotalAmount != "" {
		amt, err := ParseAmount(v.TotalAmount)
		switch {
		case err != nil:
			viol["total_amount"] = workflow.CodeInvalid
		case !amt.IsPositive():
			viol["total_amount"] = workflow.CodeMustBePositive
		default:
			in.TotalAmount = amt
		}
	}
	if v.RequestDate != "" {
		d, err := model.ParseDate(v.RequestDate)
		if err != nil {
			viol["request_date"] = workflow.CodeInvalid
		} else {
			in.RequestDate = d.String()
		}
	}

	if err := viol.Err(); err != nil {
		return gateway.MassInput{}, nil, err
	}
	return in, f.attachment, nil
}

// Submit validates and posts the mass creation. The form is reset after
// success.
func (f *MassForm) Submit(ctx context.Context, api gateway.API) ([]model.Request, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return nil, ErrSubmitting
	}
	in, att, err := f.validateLocked()
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.submitting = true
	f.mu.Unlock()
	f.notify()

	created, err := api.CreateMassRequests(ctx, in, att)

	f.mu.Lock()
	f.submitting = false
	if err == nil {
		f.resetLocked()
	}
	f.mu.Unlock()
	f.notify()
	return created, err
}

// Reset clears the inputs and the employee list. Projects and nomina
// accounts stay loaded.
func (f *MassForm) Reset() {
	f.mu.Lock()
	f.resetLocked()
	f.mu.Unlock()
	f.notify()
}

func (f *MassForm) resetLocked() {
	f.values = MassValues{}
	f.attachment = nil
	f.deps.clearLocked(model.RefResponsibles)
}
