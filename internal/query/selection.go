package query

import "slices"

// SelectMode is the kind of click that changes the selection.
type SelectMode string

const (
	SelectSingle SelectMode = "single"
	SelectRange  SelectMode = "range"
	SelectToggle SelectMode = "toggle"
	SelectAll    SelectMode = "all"
	SelectNone   SelectMode = "none"
)

func (m SelectMode) IsValid() bool {
	switch m {
	case SelectSingle, SelectRange, SelectToggle, SelectAll, SelectNone:
		return true
	}
	return false
}

// Select applies one selection gesture. Row gestures only accept ids
// visible under the current filter; all and none act on the filtered set.
func (e *Engine[T]) Select(mode SelectMode, id string) error {
	ordered := e.Ordered()

	switch mode {
	case SelectAll:
		for _, r := range ordered {
			e.selection[e.idOf(r)] = struct{}{}
		}
		return nil
	case SelectNone:
		for _, r := range ordered {
			delete(e.selection, e.idOf(r))
		}
		e.anchor = ""
		return nil
	}

	idx := e.indexOf(ordered, id)
	if idx < 0 {
		return ErrUnknownRow
	}

	switch mode {
	case SelectSingle:
		clear(e.selection)
		e.selection[id] = struct{}{}
		e.anchor = id
	case SelectToggle:
		if _, ok := e.selection[id]; ok {
			delete(e.selection, id)
		} else {
			e.selection[id] = struct{}{}
		}
		e.anchor = id
	case SelectRange:
		from := e.indexOf(ordered, e.anchor)
		if from < 0 {
			clear(e.selection)
			e.selection[id] = struct{}{}
			e.anchor = id
			return nil
		}
		lo, hi := min(from, idx), max(from, idx)
		for _, r := range ordered[lo : hi+1] {
			e.selection[e.idOf(r)] = struct{}{}
		}
	}
	return nil
}

func (e *Engine[T]) IsSelected(id string) bool {
	_, ok := e.selection[id]
	return ok
}

// Selected returns the selected rows in filtered and sorted order, followed
// by selected rows hidden by the current filter.
func (e *Engine[T]) Selected() []T {
	return e.selectedFrom(e.Ordered())
}

func (e *Engine[T]) selectedFrom(ordered []T) []T {
	out := make([]T, 0, len(e.selection))
	seen := make(map[string]struct{}, len(e.selection))
	for _, r := range ordered {
		id := e.idOf(r)
		if _, ok := e.selection[id]; ok {
			out = append(out, r)
			seen[id] = struct{}{}
		}
	}
	for _, r := range e.rows {
		id := e.idOf(r)
		if _, ok := e.selection[id]; !ok {
			continue
		}
		if _, ok := seen[id]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine[T]) ClearSelection() {
	clear(e.selection)
	e.anchor = ""
}

func (e *Engine[T]) indexOf(rows []T, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(rows, func(r T) bool { return e.idOf(r) == id })
}

func (e *Engine[T]) selectedIDs(ordered []T) []string {
	ids := make([]string, 0, len(e.selection))
	for _, r := range e.selectedFrom(ordered) {
		ids = append(ids, e.idOf(r))
	}
	return ids
}
