package service

import (
	"context"
	"fmt"
	"time"

	"backoffice/internal/clock"
	"backoffice/internal/gateway"
	"backoffice/internal/model"
	"backoffice/internal/query"
	"backoffice/internal/session"
	"backoffice/internal/workflow"

	"github.com/xuri/excelize/v2"
)

// --- DTOs ---

type ColumnInfo struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Kind    string `json:"kind"`
	Visible bool   `json:"visible"`
}

type RequestFilterDTO struct {
	Status string `json:"status,omitempty"`
	Type   string `json:"type,omitempty"`
	Period string `json:"period,omitempty"`
}

// TableView is one rendered page. Page is 1-based; an empty result has
// page 0 and page_count 0.
type TableView struct {
	Kind      session.TableKind `json:"kind"`
	Columns   []ColumnInfo      `json:"columns"`
	Rows      any               `json:"rows"`
	Page      int               `json:"page"`
	PerPage   int               `json:"per_page"`
	PageCount int               `json:"page_count"`
	Filtered  int               `json:"filtered"`
	Total     int               `json:"total"`
	Search    string            `json:"search"`
	Sort      *query.Sort       `json:"sort"`
	Selected  []string          `json:"selected"`
	LoadedAt  *time.Time        `json:"loaded_at,omitempty"`
	Searching bool              `json:"searching,omitempty"`
	Filter    *RequestFilterDTO `json:"filter,omitempty"`
}

// TableQuery changes the query state. Nil fields are left as they are.
// Status, Type and Period apply to the requests table only.
type TableQuery struct {
	Search    *string `json:"search"`
	SortBy    *string `json:"sort_by"`
	SortOrder string  `json:"sort_order"`
	Page      *int    `json:"page"`
	PerPage   *int    `json:"per_page"`
	Status    *string `json:"status"`
	Type      *string `json:"type"`
	Period    *string `json:"period"`
}

type SelectionInput struct {
	Mode query.SelectMode `json:"mode" binding:"required"`
	ID   string           `json:"id"`
}

// --- Interface ---

type TableService interface {
	View(ctx context.Context, userID string, kind session.TableKind) (TableView, error)
	Query(ctx context.Context, userID string, kind session.TableKind, q TableQuery) (TableView, error)
	Select(ctx context.Context, userID string, kind session.TableKind, in SelectionInput) (TableView, error)
	Refresh(ctx context.Context, userID string, kind session.TableKind) (TableView, error)
	// Export renders every filtered row in sort order, across all pages.
	Export(ctx context.Context, userID string, kind session.TableKind) (*excelize.File, string, error)
}

type tableService struct {
	api       gateway.API
	sessions  *session.Store
	publisher Publisher
	clock     clock.Clock
	debounce  time.Duration
	ttl       time.Duration
}

func NewTableService(api gateway.API, sessions *session.Store, publisher Publisher, c clock.Clock, debounce, ttl time.Duration) TableService {
	return &tableService{
		api:       api,
		sessions:  sessions,
		publisher: publisherOrNop(publisher),
		clock:     c,
		debounce:  debounce,
		ttl:       ttl,
	}
}

// --- Implementation ---

func columnInfo[T any](cols []query.Column[T]) []ColumnInfo {
	out := make([]ColumnInfo, 0, len(cols))
	for _, c := range cols {
		out = append(out, ColumnInfo{Key: c.Key, Label: c.Label, Kind: c.Kind.String(), Visible: c.Visible})
	}
	return out
}

func renderView[T any](kind session.TableKind, e *query.Engine[T], t session.Table) TableView {
	v := e.View()
	page := v.Page + 1
	if v.PageCount == 0 {
		page = 0
	}
	tv := TableView{
		Kind:      kind,
		Columns:   columnInfo(e.Columns()),
		Rows:      v.Rows,
		Page:      page,
		PerPage:   v.PageSize,
		PageCount: v.PageCount,
		Filtered:  v.Filtered,
		Total:     v.Total,
		Search:    v.Search,
		Sort:      v.Sort,
		Selected:  v.Selected,
	}
	if t.Loaded() {
		at := t.LoadedAt()
		tv.LoadedAt = &at
	}
	return tv
}

// renderLocked renders the table of kind. The session lock must be held.
func renderLocked(sess *session.Session, kind session.TableKind) TableView {
	switch kind {
	case session.TableRequests:
		t := sess.Requests
		v := renderView(kind, t.Engine, t)
		v.Search = t.Search
		v.Searching = t.Searching
		v.Filter = &RequestFilterDTO{Status: string(t.Filter.Status), Type: string(t.Filter.Type), Period: t.Filter.Period}
		return v
	case session.TableReposiciones:
		return renderView(kind, sess.Reposiciones.Engine, sess.Reposiciones)
	default:
		return renderView(kind, sess.Users.Engine, sess.Users)
	}
}

// loadLocked fetches the table when it was never loaded, is older than the
// TTL, or force is set.
func (s *tableService) loadLocked(ctx context.Context, sess *session.Session, kind session.TableKind, force bool) error {
	now := s.clock.Now()
	switch kind {
	case session.TableRequests:
		t := sess.Requests
		if !force && !t.Stale(now, s.ttl) {
			return nil
		}
		if sess.Search != nil {
			sess.Search.Cancel()
		}
		f := t.Filter
		f.Search = t.Search
		rows, err := fetchAllRequests(ctx, s.api, f)
		if err != nil {
			return err
		}
		t.Engine.SetRows(rows)
		t.Searching = false
		t.MarkLoaded(now)
	case session.TableReposiciones:
		t := sess.Reposiciones
		if !force && !t.Stale(now, s.ttl) {
			return nil
		}
		rows, err := s.api.ListReposiciones(ctx)
		if err != nil {
			return fmt.Errorf("failed to list reposiciones: %w", err)
		}
		t.Engine.SetRows(rows)
		t.MarkLoaded(now)
	case session.TableUsers:
		t := sess.Users
		if !force && !t.Stale(now, s.ttl) {
			return nil
		}
		rows, err := s.api.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		t.Engine.SetRows(rows)
		t.MarkLoaded(now)
	default:
		return session.ErrUnknownTable
	}
	return nil
}

func (s *tableService) View(ctx context.Context, userID string, kind session.TableKind) (TableView, error) {
	sess := s.sessions.Get(userID)
	sess.Lock()
	defer sess.Unlock()
	if err := s.loadLocked(ctx, sess, kind, false); err != nil {
		return TableView{}, err
	}
	return renderLocked(sess, kind), nil
}

func (s *tableService) Refresh(ctx context.Context, userID string, kind session.TableKind) (TableView, error) {
	sess := s.sessions.Get(userID)
	sess.Lock()
	defer sess.Unlock()
	if err := s.loadLocked(ctx, sess, kind, true); err != nil {
		return TableView{}, err
	}
	return renderLocked(sess, kind), nil
}

// applyQuery updates search (when local), sort, page size and page, in that
// order, so a new search or page size starts from the first page.
func applyQuery[T any](e *query.Engine[T], q TableQuery, localSearch bool) {
	if localSearch && q.Search != nil {
		e.SetSearch(*q.Search)
	}
	if q.SortBy != nil {
		// unknown keys keep the previous sort
		e.SetSort(*q.SortBy, query.Direction(q.SortOrder))
	}
	if q.PerPage != nil && *q.PerPage > 0 {
		e.SetPageSize(min(*q.PerPage, 100))
	}
	if q.Page != nil {
		e.SetPage(*q.Page - 1)
	}
}

// mergeRequestFilter validates the server filters of q and applies them to
// f, reporting whether anything changed.
func mergeRequestFilter(f *model.RequestFilter, q TableQuery) (bool, error) {
	v := workflow.Violations{}
	next := *f
	if q.Status != nil {
		st := model.RequestStatus(*q.Status)
		if st != "" && !st.IsValid() {
			v["status"] = workflow.CodeInvalid
		}
		next.Status = st
	}
	if q.Type != nil {
		typ := model.RequestType(*q.Type)
		if typ != "" && !typ.IsValid() {
			v["type"] = workflow.CodeInvalid
		}
		next.Type = typ
	}
	if q.Period != nil {
		if *q.Period != "" {
			if _, err := time.Parse("2006-01", *q.Period); err != nil {
				v["period"] = workflow.CodeInvalid
			}
		}
		next.Period = *q.Period
	}
	if err := v.Err(); err != nil {
		return false, err
	}
	changed := next.Status != f.Status || next.Type != f.Type || next.Period != f.Period
	*f = next
	return changed, nil
}

func (s *tableService) Query(ctx context.Context, userID string, kind session.TableKind, q TableQuery) (TableView, error) {
	sess := s.sessions.Get(userID)
	sess.Lock()
	defer sess.Unlock()
	if err := s.loadLocked(ctx, sess, kind, false); err != nil {
		return TableView{}, err
	}

	switch kind {
	case session.TableRequests:
		t := sess.Requests
		filterChanged, err := mergeRequestFilter(&t.Filter, q)
		if err != nil {
			return TableView{}, err
		}
		searchChanged := q.Search != nil && *q.Search != t.Search
		if searchChanged {
			t.Search = *q.Search
		}
		applyQuery(t.Engine, q, false)

		switch {
		case filterChanged:
			if err := s.loadLocked(ctx, sess, kind, true); err != nil {
				return TableView{}, err
			}
			t.Engine.SetPage(0)
		case searchChanged:
			t.Searching = true
			t.Engine.SetPage(0)
			s.searcherLocked(sess).Submit(ctx, t.Search)
		}
	case session.TableReposiciones:
		applyQuery(sess.Reposiciones.Engine, q, true)
	case session.TableUsers:
		applyQuery(sess.Users.Engine, q, true)
	}
	return renderLocked(sess, kind), nil
}

// searcherLocked returns the session's debounced request search, creating
// it on first use.
func (s *tableService) searcherLocked(sess *session.Session) *query.Searcher[model.Request] {
	if sess.Search != nil {
		return sess.Search
	}
	fetch := func(ctx context.Context, text string) ([]model.Request, error) {
		sess.Lock()
		f := sess.Requests.Filter
		sess.Unlock()
		f.Search = text
		return fetchAllRequests(ctx, s.api, f)
	}
	apply := func(gen uint64, text string, rows []model.Request) {
		if view, ok := s.applySearch(sess, gen, text, rows); ok {
			s.publisher.Publish(sess.UserID, Event{Type: EventTableUpdated, Table: session.TableRequests, Data: view})
		}
	}
	onError := func(text string, err error) {
		sess.Lock()
		sess.Requests.Searching = false
		sess.Unlock()
		s.publisher.Publish(sess.UserID, Event{Type: EventSearchFailed, Table: session.TableRequests, Message: gateway.UserMessage(err)})
	}
	sess.Search = query.NewSearcher(s.clock, s.debounce, fetch, apply, onError)
	return sess.Search
}

// applySearch installs a remote search response. The generation is checked
// again under the session lock: a refresh or filter change that ran while
// the response waited for the lock has already replaced the rows.
func (s *tableService) applySearch(sess *session.Session, gen uint64, text string, rows []model.Request) (TableView, bool) {
	sess.Lock()
	defer sess.Unlock()
	t := sess.Requests
	if sess.Search == nil || sess.Search.Generation() != gen || t.Search != text {
		return TableView{}, false
	}
	t.Engine.SetRows(rows)
	t.Searching = false
	t.MarkLoaded(s.clock.Now())
	return renderLocked(sess, session.TableRequests), true
}

func (s *tableService) Select(ctx context.Context, userID string, kind session.TableKind, in SelectionInput) (TableView, error) {
	if !in.Mode.IsValid() {
		return TableView{}, (workflow.Violations{"mode": workflow.CodeInvalid}).Err()
	}
	sess := s.sessions.Get(userID)
	sess.Lock()
	defer sess.Unlock()
	if err := s.loadLocked(ctx, sess, kind, false); err != nil {
		return TableView{}, err
	}

	var err error
	switch kind {
	case session.TableRequests:
		err = sess.Requests.Engine.Select(in.Mode, in.ID)
	case session.TableReposiciones:
		err = sess.Reposiciones.Engine.Select(in.Mode, in.ID)
	case session.TableUsers:
		err = sess.Users.Engine.Select(in.Mode, in.ID)
	}
	if err != nil {
		return TableView{}, err
	}
	return renderLocked(sess, kind), nil
}

func (s *tableService) Export(ctx context.Context, userID string, kind session.TableKind) (*excelize.File, string, error) {
	sess := s.sessions.Get(userID)
	sess.Lock()
	defer sess.Unlock()
	if err := s.loadLocked(ctx, sess, kind, false); err != nil {
		return nil, "", err
	}

	var (
		f   *excelize.File
		err error
	)
	switch kind {
	case session.TableRequests:
		e := sess.Requests.Engine
		f, err = query.ExportXLSX("Solicitudes", e.Columns(), e.Ordered())
	case session.TableReposiciones:
		e := sess.Reposiciones.Engine
		f, err = query.ExportXLSX("Reposiciones", e.Columns(), e.Ordered())
	case session.TableUsers:
		e := sess.Users.Engine
		f, err = query.ExportXLSX("Usuarios", e.Columns(), e.Ordered())
	default:
		err = session.ErrUnknownTable
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to export %s: %w", kind, err)
	}
	name := fmt.Sprintf("%s_%s.xlsx", kind, s.clock.Now().Format("20060102_150405"))
	return f, name, nil
}
