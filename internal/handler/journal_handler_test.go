package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"backoffice/internal/middleware"

	"github.com/gin-gonic/gin"
)

// authFromHeaders lets one router serve several callers.
func authFromHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, c.GetHeader("X-Test-User"))
		c.Set(middleware.UserRoleKey, c.GetHeader("X-Test-Role"))
		c.Set(middleware.PermissionsKey, []string{"requests.read", "requests.write", "requests.approve"})
		c.Next()
	}
}

func TestJournalHandler_ScopedByRole(t *testing.T) {
	s := newTestServer(t, authFromHeaders())
	s.seed()

	as := func(method, path, user, role, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if body != "" {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("X-Test-User", user)
		req.Header.Set("X-Test-Role", role)
		return s.do(req)
	}

	if w := as(http.MethodPost, "/api/requests/G00001/transition", "u-1", "staff", `{"status":"review"}`); w.Code != http.StatusOK {
		t.Fatalf("u-1 transition: %d %s", w.Code, w.Body.String())
	}
	if w := as(http.MethodPost, "/api/requests/G00004/transition", "u-2", "staff", `{"status":"rejected"}`); w.Code != http.StatusOK {
		t.Fatalf("u-2 transition: %d %s", w.Code, w.Body.String())
	}

	var page struct {
		Items []struct {
			UserID   string `json:"user_id"`
			EntityID string `json:"entity_id"`
			Outcome  string `json:"outcome"`
		} `json:"items"`
		Total int64 `json:"total"`
	}

	w := as(http.MethodGet, "/api/journal?user_id=u-2", "u-1", "staff", "")
	decodeData(t, decode(t, w), &page)
	if page.Total != 1 || page.Items[0].UserID != "u-1" || page.Items[0].EntityID != "G00001" {
		t.Fatalf("staff journal = %+v", page)
	}

	w = as(http.MethodGet, "/api/journal", "admin-1", "admin", "")
	decodeData(t, decode(t, w), &page)
	if page.Total != 2 {
		t.Fatalf("admin sees %d entries", page.Total)
	}
	for _, it := range page.Items {
		if it.Outcome != "committed" {
			t.Fatalf("outcome %s", it.Outcome)
		}
	}
}

func TestJournalHandler_Summary(t *testing.T) {
	s := newAdminServer(t)
	s.seed()

	if w, _ := s.json(t, http.MethodPost, "/api/requests/G00001/transition", map[string]string{"status": "review"}); w.Code != http.StatusOK {
		t.Fatalf("transition: %d %s", w.Code, w.Body.String())
	}

	w, env := s.json(t, http.MethodGet, "/api/journal/summary?since=2025-01-01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var rows []struct {
		Action  string `json:"action"`
		Outcome string `json:"outcome"`
		Total   int64  `json:"total"`
	}
	decodeData(t, env, &rows)
	if len(rows) != 1 || rows[0].Outcome != "committed" || rows[0].Total != 1 {
		t.Fatalf("summary = %+v", rows)
	}

	if w, _ := s.json(t, http.MethodGet, "/api/journal/summary?since=enero", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad since: status %d", w.Code)
	}

	staff := newTestServer(t, authAs("u-3", "staff", "requests.read"))
	if w, _ := staff.json(t, http.MethodGet, "/api/journal/summary", nil); w.Code != http.StatusForbidden {
		t.Fatalf("staff summary: status %d", w.Code)
	}
}
