package session

import (
	"errors"
	"time"

	"backoffice/internal/model"
	"backoffice/internal/query"
)

var ErrUnknownTable = errors.New("unknown table")

type TableKind string

const (
	TableRequests     TableKind = "requests"
	TableReposiciones TableKind = "reposiciones"
	TableUsers        TableKind = "users"
)

func ParseTableKind(s string) (TableKind, error) {
	switch k := TableKind(s); k {
	case TableRequests, TableReposiciones, TableUsers:
		return k, nil
	}
	return "", ErrUnknownTable
}

// Table is one of *RequestsTable, *ReposicionesTable or *UsersTable.
type Table interface {
	Kind() TableKind
	LoadedAt() time.Time
	Loaded() bool
	Invalidate()
	table()
}

type loadState struct {
	loadedAt time.Time
}

func (l *loadState) LoadedAt() time.Time { return l.loadedAt }

func (l *loadState) Loaded() bool { return !l.loadedAt.IsZero() }

func (l *loadState) MarkLoaded(at time.Time) { l.loadedAt = at }

func (l *loadState) Invalidate() { l.loadedAt = time.Time{} }

// Stale reports whether the table must be fetched again.
func (l *loadState) Stale(now time.Time, ttl time.Duration) bool {
	return !l.Loaded() || (ttl > 0 && now.Sub(l.loadedAt) >= ttl)
}

// RequestsTable is searched remotely: Search is sent to the backend with
// Filter and the engine only sorts, paginates and selects the result.
type RequestsTable struct {
	loadState
	Engine    *query.Engine[model.Request]
	Filter    model.RequestFilter
	Search    string
	Searching bool
}

func (*RequestsTable) Kind() TableKind { return TableRequests }
func (*RequestsTable) table()          {}

// ReposicionesTable filters locally.
type ReposicionesTable struct {
	loadState
	Engine *query.Engine[model.Reposicion]
}

func (*ReposicionesTable) Kind() TableKind { return TableReposiciones }
func (*ReposicionesTable) table()          {}

// UsersTable filters locally.
type UsersTable struct {
	loadState
	Engine *query.Engine[model.User]
}

func (*UsersTable) Kind() TableKind { return TableUsers }
func (*UsersTable) table()          {}

func RequestColumns() []query.Column[model.Request] {
	return []query.Column[model.Request]{
		{Key: "unique_id", Label: "ID", Kind: query.KindString, Visible: true, Value: func(r model.Request) any { return r.UniqueID }},
		{Key: "type", Label: "Tipo", Kind: query.KindString, Visible: true, Value: func(r model.Request) any { return string(r.Type) }},
		{Key: "personnel_type", Label: "Personal", Kind: query.KindString, Visible: true, Value: func(r model.Request) any { return string(r.PersonnelType) }},
		{Key: "request_date", Label: "Fecha", Kind: query.KindDate, Visible: true, Value: func(r model.Request) any { return r.RequestDate }},
		{Key: "invoice_number", Label: "Factura", Kind: query.KindString, Visible: true, Value: func(r model.Request) any { return r.InvoiceNumber }},
		{Key: "account_id", Label: "Cuenta", Kind: query.KindString, Visible: true, Value: func(r model.Request) any { return r.AccountID }},
		{Key: "amount", Label: "Monto", Kind: query.KindNumber, Visible: true, Value: func(r model.Request) any { return r.Amount }},
		{Key: "project", Label: "Proyecto", Kind: query.KindString, Visible: true, Value: func(r model.Request) any { return r.Project }},
		{Key: "responsible_id", Label: "Responsable", Kind: query.KindString, Visible: true, Value: func(r model.Request) any { return r.ResponsibleID }},
		{Key: "vehicle_plate", Label: "Placa", Kind: query.KindString, Visible: true, Value: func(r model.Request) any { return r.VehiclePlate }},
		{Key: "vehicle_number", Label: "No. Vehículo", Kind: query.KindString, Visible: false, Value: func(r model.Request) any { return r.VehicleNumber }},
		{Key: "note", Label: "Nota", Kind: query.KindString, Visible: true, Value: func(r model.Request) any { return r.Note }},
		{Key: "status", Label: "Estado", Kind: query.KindString, Visible: true, Value: func(r model.Request) any { return string(r.Status) }},
	}
}

func ReposicionColumns() []query.Column[model.Reposicion] {
	return []query.Column[model.Reposicion]{
		{Key: "id", Label: "ID", Kind: query.KindString, Visible: true, Value: func(r model.Reposicion) any { return r.ID }},
		{Key: "fecha_reposicion", Label: "Fecha", Kind: query.KindDate, Visible: true, Value: func(r model.Reposicion) any { return r.FechaReposicion }},
		{Key: "total_reposicion", Label: "Total", Kind: query.KindNumber, Visible: true, Value: func(r model.Reposicion) any { return r.TotalReposicion }},
		{Key: "project", Label: "Proyecto", Kind: query.KindString, Visible: true, Value: func(r model.Reposicion) any { return r.Project }},
		{Key: "requests", Label: "Solicitudes", Kind: query.KindNumber, Visible: false, Value: func(r model.Reposicion) any { return len(r.Requests) }},
		{Key: "month", Label: "Mes", Kind: query.KindString, Visible: true, Value: func(r model.Reposicion) any { return r.Month }},
		{Key: "when", Label: "Cuándo", Kind: query.KindString, Visible: true, Value: func(r model.Reposicion) any { return string(r.When) }},
		{Key: "note", Label: "Nota", Kind: query.KindString, Visible: true, Value: func(r model.Reposicion) any { return r.Note }},
		{Key: "status", Label: "Estado", Kind: query.KindString, Visible: true, Value: func(r model.Reposicion) any { return string(r.Status) }},
	}
}

func UserColumns() []query.Column[model.User] {
	return []query.Column[model.User]{
		{Key: "id", Label: "ID", Kind: query.KindString, Visible: false, Value: func(u model.User) any { return u.ID }},
		{Key: "name", Label: "Nombre", Kind: query.KindString, Visible: true, Value: func(u model.User) any { return u.Name }},
		{Key: "email", Label: "Correo", Kind: query.KindString, Visible: true, Value: func(u model.User) any { return u.Email }},
		{Key: "role", Label: "Rol", Kind: query.KindString, Visible: true, Value: func(u model.User) any { return u.Role }},
		{Key: "area", Label: "Área", Kind: query.KindString, Visible: true, Value: func(u model.User) any { return u.Area }},
		{Key: "created_at", Label: "Creado", Kind: query.KindDate, Visible: true, Value: func(u model.User) any { return u.CreatedAt }},
	}
}
