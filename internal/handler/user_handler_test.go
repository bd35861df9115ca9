package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"backoffice/internal/model"
)

func seedRoles(s *testServer) {
	s.api.SeedRoles(
		model.Role{ID: "1", Name: "admin"},
		model.Role{ID: "2", Name: "staff", Permissions: []model.Permission{
			{ID: "10", Code: "requests.read", Name: "Ver solicitudes", Group: "requests"},
			{ID: "11", Code: "requests.write", Name: "Crear solicitudes", Group: "requests"},
		}},
	)
}

func TestUserHandler_CreateUpdateDelete(t *testing.T) {
	s := newAdminServer(t)
	seedRoles(s)

	w, env := s.json(t, http.MethodPost, "/api/users", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "secreto1", "role": "auditor",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown role: status %d: %s", w.Code, w.Body.String())
	}
	var details map[string]string
	json.Unmarshal(env.Details, &details)
	if details["role"] != "invalid" {
		t.Fatalf("details = %v", details)
	}

	if w, _ := s.json(t, http.MethodPost, "/api/users", map[string]string{"name": "Ana"}); w.Code != http.StatusBadRequest {
		t.Fatalf("binding: status %d", w.Code)
	}

	w, env = s.json(t, http.MethodPost, "/api/users", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "secreto1", "role": "staff",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d: %s", w.Code, w.Body.String())
	}
	var user struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	}
	decodeData(t, env, &user)

	w, env = s.json(t, http.MethodPut, "/api/users/"+user.ID, map[string]string{"area": "Finanzas"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: status %d: %s", w.Code, w.Body.String())
	}

	if w, _ := s.json(t, http.MethodDelete, "/api/users/"+user.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: status %d", w.Code)
	}
	if len(s.api.CallsTo("DeleteUser")) != 1 {
		t.Fatal("delete not forwarded")
	}
}

func TestRoleHandler_Permissions(t *testing.T) {
	s := newAdminServer(t)
	seedRoles(s)

	w, env := s.json(t, http.MethodGet, "/api/roles/staff/permissions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var codes []string
	decodeData(t, env, &codes)
	if len(codes) != 2 || codes[0] != "requests.read" {
		t.Fatalf("codes = %v", codes)
	}

	if w, _ := s.json(t, http.MethodGet, "/api/roles/auditor/permissions", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown role: status %d", w.Code)
	}

	_, env = s.json(t, http.MethodGet, "/api/permissions", nil)
	var perms []struct {
		Code string `json:"code"`
	}
	decodeData(t, env, &perms)
	if len(perms) != 2 {
		t.Fatalf("permissions = %+v", perms)
	}
}

func TestUserHandler_Me(t *testing.T) {
	s := newTestServer(t, authAs("u-7", "staff", "requests.read"))
	_, env := s.json(t, http.MethodGet, "/api/me", nil)
	var me MeResponse
	decodeData(t, env, &me)
	if me.ID != "u-7" || me.Role != "staff" || len(me.Permissions) != 1 {
		t.Fatalf("me = %+v", me)
	}
}
