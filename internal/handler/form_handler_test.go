package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"backoffice/internal/model"
)

func TestFormHandler_RequestFormFlow(t *testing.T) {
	s := newAdminServer(t)
	s.api.SeedReference(model.RefProjects, model.Option{ID: "CNQT", Name: "CNQT"})
	s.api.SeedReference(model.RefAccounts, model.Option{ID: "acc-1", Name: "Bonos"})

	if w, _ := s.json(t, http.MethodPatch, "/api/forms/request", map[string]string{"field": "color", "value": "rojo"}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status %d", w.Code)
	}

	w, env := s.json(t, http.MethodPost, "/api/forms/request/submit", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty form: status %d: %s", w.Code, w.Body.String())
	}
	var details map[string]string
	if err := json.Unmarshal(env.Details, &details); err != nil {
		t.Fatal(err)
	}
	if details["type"] != "required" {
		t.Fatalf("details = %v", details)
	}

	fields := [][2]string{
		{"type", "income"},
		{"personnel_type", "nomina"},
		{"request_date", "2025-01-10"},
		{"project", "CNQT"},
		{"account_id", "acc-1"},
		{"amount", "25.00"},
	}
	for _, f := range fields {
		if w, _ := s.json(t, http.MethodPatch, "/api/forms/request", map[string]string{"field": f[0], "value": f[1]}); w.Code != http.StatusOK {
			t.Fatalf("set %s: status %d: %s", f[0], w.Code, w.Body.String())
		}
	}

	w, env = s.json(t, http.MethodPost, "/api/forms/request/submit", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: status %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		UniqueID string `json:"unique_id"`
		Status   string `json:"status"`
	}
	decodeData(t, env, &created)
	if created.UniqueID == "" || created.Status != "pending" {
		t.Fatalf("created = %+v", created)
	}

	// the draft is cleared after a successful submit
	_, env = s.json(t, http.MethodGet, "/api/forms/request", nil)
	var snap struct {
		Values map[string]string `json:"values"`
	}
	decodeData(t, env, &snap)
	if snap.Values["type"] != "" {
		t.Fatalf("form not reset: %v", snap.Values)
	}
}

func TestFormHandler_Attachment(t *testing.T) {
	s := newAdminServer(t)

	req := multipartRequest(t, http.MethodPut, "/api/forms/request/attachment", []upload{{"attachment", "factura.pdf", []byte("%PDF-1.4")}}, nil)
	w := s.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var snap struct {
		Attachment string `json:"attachment"`
	}
	decodeData(t, decode(t, w), &snap)
	if snap.Attachment != "factura.pdf" {
		t.Fatalf("attachment = %q", snap.Attachment)
	}

	req = multipartRequest(t, http.MethodPut, "/api/forms/request/attachment", nil, map[string][]string{"note": {"x"}})
	if w := s.do(req); w.Code != http.StatusBadRequest {
		t.Fatalf("missing file: status %d", w.Code)
	}

	_, env := s.json(t, http.MethodDelete, "/api/forms/request/attachment", nil)
	snap.Attachment = "?"
	decodeData(t, env, &snap)
	if snap.Attachment != "" {
		t.Fatalf("attachment not cleared: %q", snap.Attachment)
	}
}

func TestFormHandler_MassEmployees(t *testing.T) {
	s := newAdminServer(t)
	s.api.SeedReference(model.RefResponsibles,
		model.Option{ID: "e-1", Name: "Ana"},
		model.Option{ID: "e-2", Name: "Luis"},
	)

	w, _ := s.json(t, http.MethodPatch, "/api/forms/mass", map[string]string{"field": "project", "value": "CNQT"})
	if w.Code != http.StatusOK {
		t.Fatalf("set project: status %d: %s", w.Code, w.Body.String())
	}
	if w, _ := s.json(t, http.MethodPut, "/api/forms/mass/employees", map[string][]string{"ids": {"e-9"}}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown employee: status %d", w.Code)
	}
}
