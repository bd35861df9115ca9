package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backoffice/internal/clock"
	"backoffice/internal/gateway"
	"backoffice/internal/gateway/gatewaytest"
	"backoffice/internal/middleware"
	"backoffice/internal/model"
	"backoffice/internal/refcache"
	"backoffice/internal/repository"
	"backoffice/internal/service"
	"backoffice/internal/session"
	"backoffice/internal/undo"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testUser = "u-1"

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Details    json.RawMessage `json:"details"`
}

type testServer struct {
	api    *gatewaytest.Backend
	clock  *clock.Fake
	router *gin.Engine
}

// authAs stands in for RequireAuth.
func authAs(userID, role string, perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Set(middleware.UserRoleKey, role)
		c.Set(middleware.PermissionsKey, perms)
		c.Next()
	}
}

func newTestServer(t *testing.T, auth gin.HandlerFunc) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.ActionLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	c := clock.NewFake(time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC))
	journal := service.NewJournalService(repository.NewJournalRepository(db), repository.NewTransactionManager(db))
	manager := undo.NewManager(undo.WithClock(c), undo.WithRecorder(journal), undo.WithErrorMessage(gateway.UserMessage))
	t.Cleanup(manager.Close)

	api := gatewaytest.New()
	sessions := session.NewStore(c, time.Hour, func(id string) *session.Session { return session.New(id, 10) }, nil)
	refs := service.NewReferenceService(api, refcache.New(refcache.NewMemoryStore(c), time.Minute))
	roles := service.NewRoleService(api)

	router := gin.New()
	group := router.Group("", auth)
	NewTableHandler(service.NewTableService(api, sessions, nil, c, 300*time.Millisecond, 5*time.Minute)).RegisterRoutes(group)
	NewFormHandler(service.NewFormService(api, sessions, refs, journal, nil)).RegisterRoutes(group)
	NewRequestHandler(service.NewRequestService(api, sessions, journal, nil)).RegisterRoutes(group)
	NewReposicionHandler(service.NewReposicionService(api, sessions, manager, journal, nil)).RegisterRoutes(group)
	NewActionHandler(service.NewActionService(manager)).RegisterRoutes(group)
	NewReferenceHandler(refs).RegisterRoutes(group)
	NewUserHandler(service.NewUserService(api, sessions, roles)).RegisterRoutes(group)
	NewRoleHandler(roles).RegisterRoutes(group)
	NewJournalHandler(journal).RegisterRoutes(group)

	return &testServer{api: api, clock: c, router: router}
}

func newAdminServer(t *testing.T) *testServer {
	return newTestServer(t, authAs(testUser, "admin"))
}

func request(id, project, amount string, status model.RequestStatus) model.Request {
	return model.Request{
		UniqueID:      id,
		Type:          model.RequestTypeExpense,
		PersonnelType: model.PersonnelNomina,
		RequestDate:   model.NewDate(2025, time.January, 10),
		AccountID:     "acc-1",
		Amount:        decimal.RequireFromString(amount),
		Project:       project,
		Note:          "viaje " + project,
		Status:        status,
	}
}

func (s *testServer) seed() {
	s.api.SeedRequests(
		request("G00001", "CNQT", "10.00", model.RequestPending),
		request("G00002", "CNQT", "20.00", model.RequestPending),
		request("G00003", "CNQT", "30.50", model.RequestPending),
		request("G00004", "ADMN", "15.00", model.RequestPending),
		request("G00005", "CNQT", "99.00", model.RequestPaid),
	)
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) json(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := s.do(req)
	return w, decode(t, w)
}

type upload struct {
	field, filename string
	content         []byte
}

// multipartRequest builds a multipart body with files and repeated fields.
func multipartRequest(t *testing.T, method, path string, files []upload, fields map[string][]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(f.content)
	}
	for k, vals := range fields {
		for _, v := range vals {
			writer.WriteField(k, v)
		}
	}
	writer.Close()

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}
