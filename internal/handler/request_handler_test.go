package handler

import (
	"net/http"
	"strings"
	"testing"

	"backoffice/internal/gateway"
)

func TestRequestHandler_LockedEditIsConflict(t *testing.T) {
	s := newAdminServer(t)
	s.seed()

	w, env := s.json(t, http.MethodPatch, "/api/requests/G00005", map[string]string{"note": "corregido"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if env.Error == "" {
		t.Fatal("conflict without message")
	}
	if n := len(s.api.CallsTo("UpdateRequest")); n != 0 {
		t.Fatalf("locked edit reached the backend %d times", n)
	}
}

func TestRequestHandler_EditAndValidation(t *testing.T) {
	s := newAdminServer(t)
	s.seed()

	w, env := s.json(t, http.MethodPatch, "/api/requests/G00001", map[string]string{"note": "corregido"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var detail struct {
		Note     string `json:"note"`
		Editable bool   `json:"editable"`
	}
	decodeData(t, env, &detail)
	if detail.Note != "corregido" || !detail.Editable {
		t.Fatalf("detail = %+v", detail)
	}

	w, env = s.json(t, http.MethodPatch, "/api/requests/G00001", map[string]string{"amount": "-5"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative amount: status %d", w.Code)
	}
	if !strings.Contains(string(env.Details), "amount") {
		t.Fatalf("details = %s", env.Details)
	}
}

func TestRequestHandler_TransitionRules(t *testing.T) {
	s := newAdminServer(t)
	s.seed()

	w, env := s.json(t, http.MethodPost, "/api/requests/G00001/transition", map[string]string{"status": "review"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var detail struct {
		Status  string   `json:"status"`
		Targets []string `json:"targets"`
	}
	decodeData(t, env, &detail)
	if detail.Status != "review" {
		t.Fatalf("status = %s", detail.Status)
	}

	w, _ = s.json(t, http.MethodPost, "/api/requests/G00002/transition", map[string]string{"status": "in_reposition"})
	if w.Code != http.StatusConflict {
		t.Fatalf("direct in_reposition: status %d", w.Code)
	}
}

func TestRequestHandler_BackendErrors(t *testing.T) {
	s := newAdminServer(t)
	s.seed()

	s.api.Fail("UpdateRequest", &gateway.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "El número de factura ya existe"})
	w, env := s.json(t, http.MethodPatch, "/api/requests/G00001", map[string]string{"invoice_number": "001-001-1"})
	if w.Code != http.StatusUnprocessableEntity || env.Error != "El número de factura ya existe" {
		t.Fatalf("status %d error %q", w.Code, env.Error)
	}

	s.api.Fail("UpdateRequest", &gateway.APIError{StatusCode: http.StatusInternalServerError})
	w, env = s.json(t, http.MethodPatch, "/api/requests/G00001", map[string]string{"invoice_number": "001-001-1"})
	if w.Code != http.StatusBadGateway || env.Error != gateway.FallbackMessage {
		t.Fatalf("status %d error %q", w.Code, env.Error)
	}
}

func TestRequestHandler_Import(t *testing.T) {
	s := newAdminServer(t)

	bad := "type,personnel_type,request_date,project,amount,note\nincome,nomina,2025-01-10,CNQT,10.00,bono\n"
	req := multipartRequest(t, http.MethodPost, "/api/requests/import", []upload{{"file", "solicitudes.csv", []byte(bad)}}, nil)
	w := s.do(req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing column: status %d: %s", w.Code, w.Body.String())
	}
	if env := decode(t, w); !strings.Contains(string(env.Details), "account_id") {
		t.Fatalf("details = %s", env.Details)
	}

	good := "Tipo,Tipo Personal,Fecha,Proyecto,Cuenta,Monto,Nota\n" +
		"ingreso,nomina,2025-01-10,CNQT,acc-1,10.00,bono\n" +
		"ingreso,nomina,2025-01-11,ADMN,acc-1,12.50,bono\n"
	req = multipartRequest(t, http.MethodPost, "/api/requests/import", []upload{{"file", "solicitudes.csv", []byte(good)}}, nil)
	w = s.do(req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		Imported int `json:"imported"`
	}
	decodeData(t, decode(t, w), &res)
	if res.Imported != 2 {
		t.Fatalf("imported %d", res.Imported)
	}

	req = multipartRequest(t, http.MethodPost, "/api/requests/import", []upload{{"file", "solicitudes.pdf", []byte("%PDF")}}, nil)
	if w := s.do(req); w.Code != http.StatusBadRequest {
		t.Fatalf("unsupported format: status %d", w.Code)
	}
}
