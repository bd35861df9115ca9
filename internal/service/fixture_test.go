package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"backoffice/internal/clock"
	"backoffice/internal/gateway"
	"backoffice/internal/gateway/gatewaytest"
	"backoffice/internal/model"
	"backoffice/internal/refcache"
	"backoffice/internal/repository"
	"backoffice/internal/session"
	"backoffice/internal/undo"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testUser = "u-1"

// capture records pushed events and undo notifications.
type capture struct {
	mu            sync.Mutex
	events        []Event
	notifications []undo.Notification
}

func (c *capture) Publish(_ string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch e := v.(type) {
	case Event:
		c.events = append(c.events, e)
	case undo.Notification:
		c.notifications = append(c.notifications, e)
	}
}

func (c *capture) Notify(userID string, n undo.Notification) { c.Publish(userID, n) }

func (c *capture) eventTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

func (c *capture) notification(typ string) (undo.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.notifications {
		if n.Type == typ {
			return n, true
		}
	}
	return undo.Notification{}, false
}

type fixture struct {
	api      *gatewaytest.Backend
	clock    *clock.Fake
	sessions *session.Store
	manager  *undo.Manager
	journal  JournalService
	pushed   *capture

	tables       TableService
	requests     RequestService
	reposiciones ReposicionService
	forms        FormService
	actions      ActionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:service_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.ActionLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	c := clock.NewFake(time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC))
	pushed := &capture{}
	journal := NewJournalService(repository.NewJournalRepository(db), repository.NewTransactionManager(db))
	manager := undo.NewManager(
		undo.WithClock(c),
		undo.WithNotifier(pushed),
		undo.WithRecorder(journal),
		undo.WithErrorMessage(gateway.UserMessage),
	)
	t.Cleanup(manager.Close)

	api := gatewaytest.New()
	sessions := session.NewStore(c, time.Hour, func(id string) *session.Session { return session.New(id, 10) }, nil)
	refs := NewReferenceService(api, refcache.New(refcache.NewMemoryStore(c), time.Minute))

	return &fixture{
		api:          api,
		clock:        c,
		sessions:     sessions,
		manager:      manager,
		journal:      journal,
		pushed:       pushed,
		tables:       NewTableService(api, sessions, pushed, c, 300*time.Millisecond, 5*time.Minute),
		requests:     NewRequestService(api, sessions, journal, pushed),
		reposiciones: NewReposicionService(api, sessions, manager, journal, pushed),
		forms:        NewFormService(api, sessions, refs, journal, pushed),
		actions:      NewActionService(manager),
	}
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

// seed loads three pending CNQT requests, one pending ADMN request and a
// paid one.
func (f *fixture) seed() {
	f.api.SeedRequests(
		request("G00001", "CNQT", "10.00", model.RequestPending),
		request("G00002", "CNQT", "20.00", model.RequestPending),
		request("G00003", "CNQT", "30.50", model.RequestPending),
		request("G00004", "ADMN", "15.00", model.RequestPending),
		request("G00005", "CNQT", "99.00", model.RequestPaid),
	)
}

func (f *fixture) view(t *testing.T, kind session.TableKind) TableView {
	t.Helper()
	v, err := f.tables.View(context.Background(), testUser, kind)
	if err != nil {
		t.Fatalf("view %s: %v", kind, err)
	}
	return v
}

// localRequest reads the session copy of a request.
func (f *fixture) localRequest(t *testing.T, id string) model.Request {
	t.Helper()
	sess := f.sessions.Get(testUser)
	sess.Lock()
	defer sess.Unlock()
	r, ok := sess.Requests.Engine.Row(id)
	if !ok {
		t.Fatalf("request %s not in session", id)
	}
	return r
}

func (f *fixture) journalEntries(t *testing.T, q JournalQuery) []JournalEntryResponse {
	t.Helper()
	q.Page, q.Limit = 1, 100
	entries, _, err := f.journal.List(context.Background(), q)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	return entries
}

func attachment() gateway.Attachment {
	return gateway.Attachment{Filename: "soporte.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")}
}
