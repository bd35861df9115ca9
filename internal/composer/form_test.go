package composer

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"backoffice/internal/gateway"
	"backoffice/internal/gateway/gatewaytest"
	"backoffice/internal/model"
	"backoffice/internal/workflow"

	"github.com/shopspring/decimal"
)

type fakeRefs struct {
	mu    sync.Mutex
	calls []string
	// gates block a fetch for the given scope until closed
	gates map[string]chan struct{}
}

func newFakeRefs() *fakeRefs { return &fakeRefs{gates: map[string]chan struct{}{}} }

func (r *fakeRefs) wait(scope string) {
	r.mu.Lock()
	r.calls = append(r.calls, scope)
	g := r.gates[scope]
	r.mu.Unlock()
	if g != nil {
		<-g
	}
}

func (r *fakeRefs) Accounts(_ context.Context, p model.PersonnelType) ([]model.Option, error) {
	r.wait("accounts:" + string(p))
	return []model.Option{{ID: model.ID("acc-" + string(p)), Name: "Cuenta " + string(p)}}, nil
}

func (r *fakeRefs) Projects(context.Context) ([]model.Option, error) {
	r.wait("projects")
	return []model.Option{{ID: "CNQT", Name: "CNQT"}, {ID: "ADMN", Name: "ADMN"}}, nil
}

func (r *fakeRefs) Responsibles(_ context.Context, project string) ([]model.Option, error) {
	r.wait("responsibles:" + project)
	return []model.Option{{ID: model.ID(project + "-1"), Name: "Ana"}, {ID: model.ID(project + "-2"), Name: "José"}}, nil
}

func (r *fakeRefs) Transports(_ context.Context, project string) ([]model.Option, error) {
	r.wait("transports:" + project)
	return []model.Option{{ID: "t1", Name: "PBA-1234", VehiclePlate: "PBA-1234", VehicleNumber: "17"}}, nil
}

func (r *fakeRefs) called() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func mustSet(t *testing.T, f *RequestForm, field Field, v string) {
	t.Helper()
	if err := f.Set(context.Background(), field, v); err != nil {
		t.Fatalf("set %s: %v", field, err)
	}
}

func TestRequestForm_DependencyGraph(t *testing.T) {
	refs := newFakeRefs()
	f := NewRequestForm(refs, nil)
	f.Load(context.Background())
	f.Wait()

	mustSet(t, f, FieldProject, "CNQT")
	f.Wait()
	if got := refs.called(); !slices.Equal(got, []string{"projects"}) {
		t.Fatalf("project without personnel type must not fetch: %v", got)
	}

	mustSet(t, f, FieldPersonnelType, "nomina")
	f.Wait()
	s := f.Snapshot()
	if len(s.Options.Accounts) != 1 || s.Options.Accounts[0].ID != "acc-nomina" {
		t.Fatalf("accounts %v", s.Options.Accounts)
	}
	if len(s.Options.Responsibles) != 2 || len(s.Options.Transports) != 0 {
		t.Fatalf("responsibles %v transports %v", s.Options.Responsibles, s.Options.Transports)
	}

	mustSet(t, f, FieldAccountID, "acc-nomina")
	mustSet(t, f, FieldResponsibleID, "CNQT-1")
	mustSet(t, f, FieldPersonnelType, "transportista")
	f.Wait()
	s = f.Snapshot()
	if s.Values.AccountID != "" || s.Values.ResponsibleID != "" {
		t.Fatalf("dependent values not cleared: %+v", s.Values)
	}
	if len(s.Options.Responsibles) != 0 || len(s.Options.Transports) != 1 {
		t.Fatalf("responsibles %v transports %v", s.Options.Responsibles, s.Options.Transports)
	}

	mustSet(t, f, FieldVehiclePlate, "pba-1234")
	if got := f.Snapshot().Values.VehicleNumber; got != "17" {
		t.Fatalf("vehicle number %q", got)
	}

	want := []string{"accounts:nomina", "accounts:transportista", "projects", "responsibles:CNQT", "transports:CNQT"}
	got := refs.called()
	slices.Sort(got)
	if !slices.Equal(got, want) {
		t.Fatalf("calls %v, want %v", got, want)
	}
}

func TestRequestForm_LoadingFlagAndStaleResponse(t *testing.T) {
	refs := newFakeRefs()
	gateA := make(chan struct{})
	refs.gates["responsibles:CNQT"] = gateA
	f := NewRequestForm(refs, nil)

	mustSet(t, f, FieldPersonnelType, "nomina")
	mustSet(t, f, FieldProject, "CNQT")
	if !f.Snapshot().Loading.Responsibles {
		t.Fatal("responsibles should be loading")
	}

	mustSet(t, f, FieldProject, "ADMN")
	close(gateA)
	f.Wait()

	s := f.Snapshot()
	if s.Loading.Responsibles {
		t.Fatal("still loading")
	}
	for _, o := range s.Options.Responsibles {
		if o.ID == "CNQT-1" || o.ID == "CNQT-2" {
			t.Fatalf("stale options applied: %v", s.Options.Responsibles)
		}
	}
	if len(s.Options.Responsibles) != 2 {
		t.Fatalf("options %v", s.Options.Responsibles)
	}
}

func TestRequestForm_UnknownField(t *testing.T) {
	f := NewRequestForm(newFakeRefs(), nil)
	if err := f.Set(context.Background(), "colour", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("got %v", err)
	}
}

func fillExpense(t *testing.T, f *RequestForm) {
	t.Helper()
	mustSet(t, f, FieldType, "expense")
	mustSet(t, f, FieldPersonnelType, "nomina")
	mustSet(t, f, FieldProject, "CNQT")
	f.Wait()
	mustSet(t, f, FieldRequestDate, "2025-01-15")
	mustSet(t, f, FieldInvoiceNumber, "001-001-000123")
	mustSet(t, f, FieldAccountID, "acc-nomina")
	mustSet(t, f, FieldAmount, "25,50")
	mustSet(t, f, FieldResponsibleID, "CNQT-2")
	mustSet(t, f, FieldNote, "almuerzo")
}

func TestRequestForm_InvalidNeverReachesBackend(t *testing.T) {
	backend := gatewaytest.New()
	f := NewRequestForm(newFakeRefs(), nil)
	mustSet(t, f, FieldType, "expense")
	mustSet(t, f, FieldPersonnelType, "transportista")
	mustSet(t, f, FieldAmount, "-3")
	f.Wait()

	_, err := f.Submit(context.Background(), backend)
	var verr *workflow.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"request_date", "invoice_number", "account_id", "project", "note", "vehicle_plate", "vehicle_number", "attachment"} {
		if verr.Violations[field] != workflow.CodeRequired {
			t.Errorf("%s: %q", field, verr.Violations[field])
		}
	}
	if verr.Violations["amount"] != workflow.CodeNegative {
		t.Errorf("amount: %q", verr.Violations["amount"])
	}
	if len(backend.Calls()) != 0 {
		t.Fatalf("backend called: %v", backend.Calls())
	}
}

func TestRequestForm_SubmitExpense(t *testing.T) {
	backend := gatewaytest.New()
	var last Snapshot
	var mu sync.Mutex
	f := NewRequestForm(newFakeRefs(), func(s Snapshot) { mu.Lock(); last = s; mu.Unlock() })
	fillExpense(t, f)

	if _, _, err := f.Validate(); err == nil {
		t.Fatal("attachment should be required")
	}
	f.SetAttachment(&gateway.Attachment{Filename: "factura.pdf", Content: []byte("pdf")})

	created, err := f.Submit(context.Background(), backend)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if created.UniqueID == "" || created.UniqueID[0] != 'G' || created.Status != model.RequestPending {
		t.Fatalf("created %+v", created)
	}

	calls := backend.CallsTo("CreateRequest")
	if len(calls) != 1 {
		t.Fatalf("calls %v", backend.Calls())
	}
	in := calls[0].Arg.(gateway.RequestInput)
	if !in.Amount.Equal(decimal.RequireFromString("25.5")) || in.ResponsibleID != "CNQT-2" || in.VehiclePlate != "" {
		t.Fatalf("payload %+v", in)
	}

	mu.Lock()
	defer mu.Unlock()
	if last.Values != (Values{}) || last.Attachment != "" || last.Loading.Submit {
		t.Fatalf("form not reset: %+v", last)
	}
}

func TestRequestForm_IncomeNeedsNoAttachment(t *testing.T) {
	f := NewRequestForm(newFakeRefs(), nil)
	mustSet(t, f, FieldType, "income")
	mustSet(t, f, FieldPersonnelType, "nomina")
	mustSet(t, f, FieldRequestDate, "15/01/2025")
	mustSet(t, f, FieldAccountID, "acc")
	mustSet(t, f, FieldAmount, "100")
	mustSet(t, f, FieldProject, "ADMN")
	f.Wait()

	in, att, err := f.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if att != nil || in.RequestDate != "2025-01-15" || in.Type != model.RequestTypeIncome {
		t.Fatalf("in %+v att %v", in, att)
	}
	if s := f.Snapshot(); s.AttachmentRequired || slices.Contains(s.Required, FieldNote) {
		t.Fatalf("snapshot %+v", s)
	}
}

func TestRequestForm_BackendFailureKeepsInput(t *testing.T) {
	backend := gatewaytest.New()
	backend.Fail("CreateRequest", &gateway.APIError{StatusCode: 422, Message: "invoice already registered"})
	f := NewRequestForm(newFakeRefs(), nil)
	fillExpense(t, f)
	f.SetAttachment(&gateway.Attachment{Filename: "f.pdf"})

	_, err := f.Submit(context.Background(), backend)
	if gateway.UserMessage(err) != "invoice already registered" {
		t.Fatalf("got %v", err)
	}
	if f.Snapshot().Values.InvoiceNumber == "" {
		t.Fatal("input lost after failure")
	}
}

func TestRequiredFields(t *testing.T) {
	got := RequiredFields(model.RequestTypeDiscount, model.PersonnelNomina)
	if slices.Contains(got, FieldInvoiceNumber) || !slices.Contains(got, FieldResponsibleID) {
		t.Fatalf("discount nomina: %v", got)
	}
	got = RequiredFields(model.RequestTypeExpense, model.PersonnelTransportista)
	if !slices.Contains(got, FieldInvoiceNumber) || !slices.Contains(got, FieldVehicleNumber) || slices.Contains(got, FieldResponsibleID) {
		t.Fatalf("expense transportista: %v", got)
	}
}
