// Package query is the table engine every screen renders through: filter
// text, sort, pagination and row selection over an in-memory collection.
// The pipeline is always filter, then sort, then paginate, and every view
// is derived from the current inputs on each call.
package query

import (
	"errors"
	"slices"
	"strings"
	"time"

	"backoffice/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var ErrUnknownRow = errors.New("row not found in current view")

// ColumnKind selects the comparison used when sorting a column.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindNumber
	KindDate
)

func (k ColumnKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "string"
	}
}

// Column describes one field of a row. Only visible columns take part in
// search.
type Column[T any] struct {
	Key     string
	Label   string
	Kind    ColumnKind
	Visible bool
	Value   func(T) any
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Sort struct {
	Key       string    `json:"key"`
	Direction Direction `json:"direction"`
}

// ApplyFilter keeps the rows where any visible column contains search after
// normalization. A blank search keeps everything.
func ApplyFilter[T any](rows []T, cols []Column[T], search string) []T {
	needle := Normalize(search)
	if needle == "" {
		return slices.Clone(rows)
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		for _, c := range cols {
			if !c.Visible || c.Value == nil {
				continue
			}
			if strings.Contains(Normalize(Stringify(c.Value(r))), needle) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// ApplySort returns a stably sorted copy. A nil sort or an unknown key
// leaves the order untouched.
func ApplySort[T any](rows []T, cols []Column[T], s *Sort) []T {
	out := slices.Clone(rows)
	if s == nil {
		return out
	}
	col, ok := findColumn(cols, s.Key)
	if !ok || col.Value == nil {
		return out
	}

	coll := collate.New(language.Spanish)
	slices.SortStableFunc(out, func(a, b T) int {
		c := compareValues(coll, col.Kind, col.Value(a), col.Value(b))
		if s.Direction == Desc {
			return -c
		}
		return c
	})
	return out
}

// ApplyPagination slices page (0-based) out of rows. Out of range pages are
// clamped. An empty collection has zero pages and is always page 0.
func ApplyPagination[T any](rows []T, page, pageSize int) ([]T, int, int) {
	if pageSize <= 0 {
		pageSize = 1
	}
	count := (len(rows) + pageSize - 1) / pageSize
	if count == 0 {
		return []T{}, 0, 0
	}
	page = min(max(page, 0), count-1)
	start := page * pageSize
	end := min(start+pageSize, len(rows))
	return slices.Clone(rows[start:end]), page, count
}

func findColumn[T any](cols []Column[T], key string) (Column[T], bool) {
	for _, c := range cols {
		if c.Key == key {
			return c, true
		}
	}
	return Column[T]{}, false
}

func compareValues(coll *collate.Collator, kind ColumnKind, a, b any) int {
	switch kind {
	case KindNumber:
		return toDecimal(a).Cmp(toDecimal(b))
	case KindDate:
		return toTime(a).Compare(toTime(b))
	default:
		return coll.CompareString(Stringify(a), Stringify(b))
	}
}

func toDecimal(v any) decimal.Decimal {
	switch x := v.(type) {
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x != nil {
			return *x
		}
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case float64:
		return decimal.NewFromFloat(x)
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(x)); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func toTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case model.Date:
		return x.Time
	case string:
		if d, err := model.ParseDate(x); err == nil {
			return d.Time
		}
	}
	return time.Time{}
}

// State is the user-controlled input of an Engine.
type State struct {
	Search   string `json:"search"`
	Sort     *Sort  `json:"sort"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// View is the derived slice a screen renders.
type View[T any] struct {
	Rows      []T      `json:"rows"`
	Page      int      `json:"page"`
	PageSize  int      `json:"page_size"`
	PageCount int      `json:"page_count"`
	Filtered  int      `json:"filtered"`
	Total     int      `json:"total"`
	Search    string   `json:"search"`
	Sort      *Sort    `json:"sort"`
	Selected  []string `json:"selected"`
}

// Engine holds a collection and its query state. It is not safe for
// concurrent use; callers serialize access.
type Engine[T any] struct {
	columns   []Column[T]
	idOf      func(T) string
	rows      []T
	state     State
	selection map[string]struct{}
	anchor    string
}

func NewEngine[T any](columns []Column[T], idOf func(T) string, pageSize int) *Engine[T] {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Engine[T]{
		columns:   columns,
		idOf:      idOf,
		state:     State{PageSize: pageSize},
		selection: make(map[string]struct{}),
	}
}

func (e *Engine[T]) Columns() []Column[T] { return e.columns }

func (e *Engine[T]) State() State { return e.state }

// SetRows replaces the collection. Selected ids that no longer exist are
// dropped.
func (e *Engine[T]) SetRows(rows []T) {
	e.rows = slices.Clone(rows)
	present := make(map[string]struct{}, len(rows))
	for _, r := range e.rows {
		present[e.idOf(r)] = struct{}{}
	}
	for id := range e.selection {
		if _, ok := present[id]; !ok {
			delete(e.selection, id)
		}
	}
	if _, ok := present[e.anchor]; !ok {
		e.anchor = ""
	}
}

func (e *Engine[T]) Rows() []T { return slices.Clone(e.rows) }

// Row returns the row with the given id from the full collection.
func (e *Engine[T]) Row(id string) (T, bool) {
	for _, r := range e.rows {
		if e.idOf(r) == id {
			return r, true
		}
	}
	var zero T
	return zero, false
}

// Update replaces the row with the same id, reporting whether it existed.
func (e *Engine[T]) Update(row T) bool {
	id := e.idOf(row)
	for i, r := range e.rows {
		if e.idOf(r) == id {
			e.rows[i] = row
			return true
		}
	}
	return false
}

// Remove drops rows by id and returns what was removed, in collection order.
func (e *Engine[T]) Remove(ids ...string) []T {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	var removed []T
	kept := e.rows[:0:0]
	for _, r := range e.rows {
		id := e.idOf(r)
		if _, ok := drop[id]; ok {
			removed = append(removed, r)
			delete(e.selection, id)
			continue
		}
		kept = append(kept, r)
	}
	e.rows = kept
	return removed
}

// Prepend puts rows at the head of the collection, skipping ids already
// present.
func (e *Engine[T]) Prepend(rows ...T) {
	var add []T
	for _, r := range rows {
		if _, ok := e.Row(e.idOf(r)); !ok {
			add = append(add, r)
		}
	}
	e.rows = append(add, e.rows...)
}

// Restore undoes a Remove. Rows in removed go back to the position they
// had in prev and are selected again; rows added since prev stay at the
// head and rows dropped since prev stay dropped.
func (e *Engine[T]) Restore(prev, removed []T) {
	back := make(map[string]T, len(removed))
	for _, r := range removed {
		back[e.idOf(r)] = r
	}
	current := make(map[string]T, len(e.rows))
	for _, r := range e.rows {
		current[e.idOf(r)] = r
	}
	inPrev := make(map[string]struct{}, len(prev))
	for _, r := range prev {
		inPrev[e.idOf(r)] = struct{}{}
	}

	out := make([]T, 0, len(e.rows)+len(removed))
	for _, r := range e.rows {
		if _, ok := inPrev[e.idOf(r)]; !ok {
			out = append(out, r)
		}
	}
	for _, r := range prev {
		id := e.idOf(r)
		if b, ok := back[id]; ok {
			out = append(out, b)
			e.selection[id] = struct{}{}
		} else if c, ok := current[id]; ok {
			out = append(out, c)
		}
	}
	e.rows = out
}

// SetSearch changes the filter text and returns to the first page.
func (e *Engine[T]) SetSearch(s string) {
	if s == e.state.Search {
		return
	}
	e.state.Search = s
	e.state.Page = 0
}

// SetSort sorts by key. An empty key clears sorting; an unknown key is
// ignored and reported as false.
func (e *Engine[T]) SetSort(key string, dir Direction) bool {
	if key == "" {
		e.state.Sort = nil
		return true
	}
	if _, ok := findColumn(e.columns, key); !ok {
		return false
	}
	if dir != Desc {
		dir = Asc
	}
	e.state.Sort = &Sort{Key: key, Direction: dir}
	return true
}

func (e *Engine[T]) SetPage(page int) {
	e.state.Page = max(page, 0)
}

func (e *Engine[T]) SetPageSize(n int) {
	if n <= 0 {
		return
	}
	e.state.PageSize = n
	e.state.Page = 0
}

// Ordered returns every row that passes the filter, in sort order. This is
// the sequence selection ranges and exports operate on.
func (e *Engine[T]) Ordered() []T {
	return ApplySort(ApplyFilter(e.rows, e.columns, e.state.Search), e.columns, e.state.Sort)
}

func (e *Engine[T]) View() View[T] {
	ordered := e.Ordered()
	rows, page, count := ApplyPagination(ordered, e.state.Page, e.state.PageSize)
	e.state.Page = page

	var sortCopy *Sort
	if e.state.Sort != nil {
		s := *e.state.Sort
		sortCopy = &s
	}
	return View[T]{
		Rows:      rows,
		Page:      page,
		PageSize:  e.state.PageSize,
		PageCount: count,
		Filtered:  len(ordered),
		Total:     len(e.rows),
		Search:    e.state.Search,
		Sort:      sortCopy,
		Selected:  e.selectedIDs(ordered),
	}
}
