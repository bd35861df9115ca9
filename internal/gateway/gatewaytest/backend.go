// Package gatewaytest provides an in-memory backend that records every
// call, so tests can assert that a local rejection never reached it.
package gatewaytest

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"backoffice/internal/gateway"
	"backoffice/internal/model"

	"github.com/shopspring/decimal"
)

// Call is one recorded backend invocation.
type Call struct {
	Method string
	ID     string
	Arg    any
}

type Backend struct {
	mu          sync.Mutex
	calls       []Call
	failures    map[string]error
	requests    []model.Request
	reposicions []model.Reposicion
	reference   map[model.ReferenceResource][]model.Option
	users       []model.User
	roles       []model.Role
	nextID      int
}

var _ gateway.API = (*Backend)(nil)

func New() *Backend {
	return &Backend{
		failures:  make(map[string]error),
		reference: make(map[model.ReferenceResource][]model.Option),
		nextID:    100,
	}
}

// SeedRequests adds requests as the backend's current state.
func (b *Backend) SeedRequests(reqs ...model.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, reqs...)
}

func (b *Backend) SeedReposiciones(reps ...model.Reposicion) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reposicions = append(b.reposicions, reps...)
}

func (b *Backend) SeedReference(res model.ReferenceResource, opts ...model.Option) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reference[res] = append(b.reference[res], opts...)
}

func (b *Backend) SeedUsers(users ...model.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = append(b.users, users...)
}

func (b *Backend) SeedRoles(roles ...model.Role) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roles = append(b.roles, roles...)
}

// Fail makes every later call of method return err until cleared with nil.
func (b *Backend) Fail(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, method)
		return
	}
	b.failures[method] = err
}

func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

// CallsTo returns the recorded calls of one method.
func (b *Backend) CallsTo(method string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (b *Backend) Request(id string) (model.Request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.requestIndex(id)
	if i < 0 {
		return model.Request{}, false
	}
	return b.requests[i], true
}

func (b *Backend) Reposicion(id string) (model.Reposicion, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.reposicionIndex(id)
	if i < 0 {
		return model.Reposicion{}, false
	}
	return b.withMembers(b.reposicions[i]), true
}

// record logs the call and returns the injected failure, if any. b.mu must
// be held.
func (b *Backend) record(method, id string, arg any) error {
	b.calls = append(b.calls, Call{Method: method, ID: id, Arg: arg})
	return b.failures[method]
}

func (b *Backend) requestIndex(id string) int {
	return slices.IndexFunc(b.requests, func(r model.Request) bool { return r.UniqueID == id })
}

func (b *Backend) reposicionIndex(id string) int {
	return slices.IndexFunc(b.reposicions, func(r model.Reposicion) bool { return string(r.ID) == id })
}

func (b *Backend) withMembers(r model.Reposicion) model.Reposicion {
	r.Requests = nil
	for _, req := range b.requests {
		if req.ReposicionID == r.ID {
			r.Requests = append(r.Requests, req)
		}
	}
	return r
}

func (b *Backend) newUniqueID(t model.RequestType) string {
	b.nextID++
	return fmt.Sprintf("%s%05d", t.UniqueIDPrefix(), b.nextID)
}

func fromInput(in gateway.RequestInput) model.Request {
	date, _ := model.ParseDate(in.RequestDate)
	return model.Request{
		Type:          in.Type,
		PersonnelType: in.PersonnelType,
		RequestDate:   date,
		InvoiceNumber: in.InvoiceNumber,
		AccountID:     model.ID(in.AccountID),
		Amount:        in.Amount,
		Project:       in.Project,
		ResponsibleID: model.ID(in.ResponsibleID),
		VehiclePlate:  in.VehiclePlate,
		VehicleNumber: in.VehicleNumber,
		Note:          in.Note,
		Status:        model.RequestPending,
	}
}

func conflict(msg string) error {
	return &gateway.APIError{StatusCode: http.StatusConflict, Message: msg}
}

func notFound(what string) error {
	return &gateway.APIError{StatusCode: http.StatusNotFound, Message: what + " not found"}
}

// --- requests ---

func (b *Backend) ListRequests(_ context.Context, f model.RequestFilter) (gateway.ListResult[model.Request], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ListRequests", "", f); err != nil {
		return gateway.ListResult[model.Request]{}, err
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))
	var rows []model.Request
	for _, r := range b.requests {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if f.Period != "" && !strings.HasPrefix(r.RequestDate.String(), f.Period) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(r.UniqueID+" "+r.Project+" "+r.Note+" "+r.InvoiceNumber), search) {
			continue
		}
		rows = append(rows, r)
	}
	if rows == nil {
		rows = []model.Request{}
	}

	perPage := f.PerPage
	if perPage <= 0 {
		perPage = max(len(rows), 1)
	}
	page := max(f.Page, 1)
	last := max((len(rows)+perPage-1)/perPage, 1)
	start := min((page-1)*perPage, len(rows))
	end := min(start+perPage, len(rows))
	return gateway.ListResult[model.Request]{
		Data: slices.Clone(rows[start:end]),
		Meta: &model.PageMeta{CurrentPage: page, LastPage: last, PerPage: perPage, Total: int64(len(rows)), HasMore: page < last},
	}, nil
}

func (b *Backend) GetRequest(_ context.Context, id string) (model.Request, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("GetRequest", id, nil); err != nil {
		return model.Request{}, err
	}
	i := b.requestIndex(id)
	if i < 0 {
		return model.Request{}, notFound("request")
	}
	return b.requests[i], nil
}

func (b *Backend) CreateRequest(_ context.Context, in gateway.RequestInput, att *gateway.Attachment) (model.Request, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("CreateRequest", "", in); err != nil {
		return model.Request{}, err
	}
	r := fromInput(in)
	r.UniqueID = b.newUniqueID(in.Type)
	b.requests = append(b.requests, r)
	return r, nil
}

func (b *Backend) CreateMassRequests(_ context.Context, in gateway.MassInput, att *gateway.Attachment) ([]model.Request, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("CreateMassRequests", "", in); err != nil {
		return nil, err
	}
	if len(in.EmployeeIDs) == 0 {
		return nil, &gateway.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "employee_ids is required"}
	}
	share := in.TotalAmount.DivRound(decimal.NewFromInt(int64(len(in.EmployeeIDs))), 2)
	out := make([]model.Request, 0, len(in.EmployeeIDs))
	for _, emp := range in.EmployeeIDs {
		r := fromInput(gateway.RequestInput{
			Type: in.Type, PersonnelType: in.PersonnelType, RequestDate: in.RequestDate,
			AccountID: in.AccountID, Amount: share, Project: in.Project, ResponsibleID: emp, Note: in.Note,
		})
		r.UniqueID = b.newUniqueID(in.Type)
		b.requests = append(b.requests, r)
		out = append(out, r)
	}
	return out, nil
}

func (b *Backend) ImportRequests(_ context.Context, rows []gateway.RequestInput) (gateway.ImportResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ImportRequests", "", rows); err != nil {
		return gateway.ImportResult{}, err
	}
	res := gateway.ImportResult{}
	for _, in := range rows {
		r := fromInput(in)
		r.UniqueID = b.newUniqueID(in.Type)
		b.requests = append(b.requests, r)
		res.Requests = append(res.Requests, r)
	}
	res.Imported = len(rows)
	return res, nil
}

func (b *Backend) UpdateRequest(_ context.Context, id string, patch model.RequestPatch) (model.Request, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("UpdateRequest", id, patch); err != nil {
		return model.Request{}, err
	}
	i := b.requestIndex(id)
	if i < 0 {
		return model.Request{}, notFound("request")
	}
	if b.requests[i].Status.IsTerminal() {
		return model.Request{}, conflict("request " + id + " is locked")
	}
	patch.ApplyTo(&b.requests[i])
	return b.requests[i], nil
}

// --- reposiciones ---

func (b *Backend) ListReposiciones(_ context.Context) ([]model.Reposicion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ListReposiciones", "", nil); err != nil {
		return nil, err
	}
	out := make([]model.Reposicion, 0, len(b.reposicions))
	for _, r := range b.reposicions {
		r.Requests = nil
		out = append(out, r)
	}
	return out, nil
}

func (b *Backend) GetReposicion(_ context.Context, id string) (model.Reposicion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("GetReposicion", id, nil); err != nil {
		return model.Reposicion{}, err
	}
	i := b.reposicionIndex(id)
	if i < 0 {
		return model.Reposicion{}, notFound("reposicion")
	}
	return b.withMembers(b.reposicions[i]), nil
}

func (b *Backend) CreateReposicion(_ context.Context, requestIDs []string, att gateway.Attachment) (model.Reposicion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("CreateReposicion", "", slices.Clone(requestIDs)); err != nil {
		return model.Reposicion{}, err
	}

	b.nextID++
	rep := model.Reposicion{
		ID:              model.ID(fmt.Sprint(b.nextID)),
		Status:          model.ReposicionPending,
		TotalReposicion: decimal.Zero,
		Attachment:      att.Filename,
	}
	for _, id := range requestIDs {
		i := b.requestIndex(id)
		if i < 0 {
			return model.Reposicion{}, notFound("request " + id)
		}
		if b.requests[i].Status != model.RequestPending {
			return model.Reposicion{}, conflict("request " + id + " is not pending")
		}
		if rep.Project == "" {
			rep.Project = b.requests[i].Project
			rep.FechaReposicion = b.requests[i].RequestDate
		}
	}
	for _, id := range requestIDs {
		i := b.requestIndex(id)
		b.requests[i].Status = model.RequestInReposition
		b.requests[i].ReposicionID = rep.ID
		rep.TotalReposicion = rep.TotalReposicion.Add(b.requests[i].Amount)
	}
	b.reposicions = append(b.reposicions, rep)
	return b.withMembers(rep), nil
}

func (b *Backend) UpdateReposicion(_ context.Context, id string, upd model.ReposicionUpdate) (model.Reposicion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("UpdateReposicion", id, upd); err != nil {
		return model.Reposicion{}, err
	}
	i := b.reposicionIndex(id)
	if i < 0 {
		return model.Reposicion{}, notFound("reposicion")
	}
	rep := &b.reposicions[i]
	if rep.Status.IsTerminal() {
		return model.Reposicion{}, conflict("reposicion " + id + " is already " + string(rep.Status))
	}
	rep.Status = upd.Status
	if upd.Month != "" {
		rep.Month = upd.Month
	}
	if upd.When != "" {
		rep.When = upd.When
	}
	if upd.Note != "" {
		rep.Note = upd.Note
	}

	member := model.RequestInReposition
	switch upd.Status {
	case model.ReposicionPaid:
		member = model.RequestPaid
	case model.ReposicionRejected:
		member = model.RequestRejected
	}
	for j := range b.requests {
		if b.requests[j].ReposicionID == rep.ID {
			b.requests[j].Status = member
		}
	}
	return b.withMembers(*rep), nil
}

// --- reference data ---

func (b *Backend) ListReference(_ context.Context, res model.ReferenceResource, scope map[string]string) ([]model.Option, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ListReference", string(res), scope); err != nil {
		return nil, err
	}
	return slices.Clone(b.reference[res]), nil
}

// --- users and roles ---

func (b *Backend) ListUsers(_ context.Context) ([]model.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ListUsers", "", nil); err != nil {
		return nil, err
	}
	return slices.Clone(b.users), nil
}

func (b *Backend) CreateUser(_ context.Context, in gateway.UserInput) (model.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("CreateUser", "", in); err != nil {
		return model.User{}, err
	}
	b.nextID++
	u := model.User{ID: model.ID(fmt.Sprint(b.nextID)), Name: in.Name, Email: in.Email, Role: in.Role, Area: in.Area, Permissions: in.Permissions}
	b.users = append(b.users, u)
	return u, nil
}

func (b *Backend) UpdateUser(_ context.Context, id string, in gateway.UserInput) (model.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("UpdateUser", id, in); err != nil {
		return model.User{}, err
	}
	for i := range b.users {
		if string(b.users[i].ID) == id {
			b.users[i].Name, b.users[i].Email, b.users[i].Role, b.users[i].Area = in.Name, in.Email, in.Role, in.Area
			b.users[i].Permissions = in.Permissions
			return b.users[i], nil
		}
	}
	return model.User{}, notFound("user")
}

func (b *Backend) DeleteUser(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("DeleteUser", id, nil); err != nil {
		return err
	}
	i := slices.IndexFunc(b.users, func(u model.User) bool { return string(u.ID) == id })
	if i < 0 {
		return notFound("user")
	}
	b.users = slices.Delete(b.users, i, i+1)
	return nil
}

func (b *Backend) ListRoles(_ context.Context) ([]model.Role, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ListRoles", "", nil); err != nil {
		return nil, err
	}
	return slices.Clone(b.roles), nil
}
