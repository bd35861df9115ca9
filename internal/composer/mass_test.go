package composer

import (
	"context"
	"errors"
	"testing"

	"backoffice/internal/gateway"
	"backoffice/internal/gateway/gatewaytest"
	"backoffice/internal/workflow"

	"github.com/shopspring/decimal"
)

func TestAmountPerEmployee(t *testing.T) {
	cases := []struct {
		total    string
		selected int
		want     string
		ok       bool
	}{
		{"100", 3, "33.33", true},
		{"100,00", 4, "25.00", true},
		{"10", 0, "", false},
		{"abc", 2, "", false},
		{"0", 2, "", false},
	}
	for _, c := range cases {
		got, ok := AmountPerEmployee(c.total, c.selected)
		if ok != c.ok || (ok && got.StringFixed(2) != c.want) {
			t.Errorf("%s/%d: got %s %v", c.total, c.selected, got, ok)
		}
	}
}

func TestMassForm_SubmitSendsTotal(t *testing.T) {
	ctx := context.Background()
	backend := gatewaytest.New()
	f := NewMassForm(newFakeRefs(), nil)
	f.Load(ctx)
	for field, v := range map[Field]string{
		FieldType:        "discount",
		FieldProject:     "CNQT",
		FieldAccountID:   "acc-nomina",
		FieldTotalAmount: "100",
		FieldRequestDate: "2025-02-01",
		FieldNote:        "uniformes",
	} {
		if err := f.Set(ctx, field, v); err != nil {
			t.Fatalf("set %s: %v", field, err)
		}
	}
	f.Wait()

	if err := f.SetEmployees([]string{"nobody"}); !errors.Is(err, ErrUnknownEmployee) {
		t.Fatalf("got %v", err)
	}
	f.SelectAllEmployees(true)
	if err := f.ToggleEmployee("CNQT-2"); err != nil {
		t.Fatal(err)
	}
	if err := f.ToggleEmployee("CNQT-2"); err != nil {
		t.Fatal(err)
	}

	s := f.Snapshot()
	if s.SelectedCount != 2 || s.AmountPerEmployee != "50.00" || s.PersonnelType != "nomina" {
		t.Fatalf("snapshot %+v", s)
	}

	if _, err := f.Submit(ctx, backend); err == nil {
		t.Fatal("attachment should be required")
	}
	if len(backend.Calls()) != 0 {
		t.Fatal("invalid mass form reached the backend")
	}

	f.SetAttachment(&gateway.Attachment{Filename: "rol.pdf", Content: []byte("x")})
	created, err := f.Submit(ctx, backend)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d", len(created))
	}
	in := backend.CallsTo("CreateMassRequests")[0].Arg.(gateway.MassInput)
	if !in.TotalAmount.Equal(decimal.NewFromInt(100)) || len(in.EmployeeIDs) != 2 {
		t.Fatalf("payload %+v", in)
	}
}

func TestMassForm_ProjectChangeClearsEmployees(t *testing.T) {
	ctx := context.Background()
	f := NewMassForm(newFakeRefs(), nil)
	f.Set(ctx, FieldProject, "CNQT")
	f.Wait()
	f.SelectAllEmployees(true)
	f.Set(ctx, FieldProject, "ADMN")
	f.Wait()
	if s := f.Snapshot(); s.SelectedCount != 0 || s.Options.Responsibles[0].ID != "ADMN-1" {
		t.Fatalf("snapshot %+v", s)
	}
}

func TestMassForm_Validation(t *testing.T) {
	f := NewMassForm(newFakeRefs(), nil)
	f.Set(context.Background(), FieldType, "income")
	_, _, err := f.Validate()
	var verr *workflow.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v", err)
	}
	if verr.Violations["type"] != workflow.CodeInvalid || verr.Violations["employee_ids"] != workflow.CodeRequired {
		t.Fatalf("violations %v", verr.Violations)
	}
}
