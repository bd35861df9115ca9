// Package session holds the per-user state of the back office: the tables
// on screen, draft forms and the remote search coordinator. One Session
// belongs to one signed-in user and every mutation of it runs under its
// lock, so operations of the same user never interleave.
package session

import (
	"sync"

	"backoffice/internal/composer"
	"backoffice/internal/model"
	"backoffice/internal/query"
)

type Session struct {
	UserID string

	mu sync.Mutex

	Requests     *RequestsTable
	Reposiciones *ReposicionesTable
	Users        *UsersTable

	// Lazily created by the services that own them.
	Form   *composer.RequestForm
	Mass   *composer.MassForm
	Search *query.Searcher[model.Request]
}

func New(userID string, pageSize int) *Session {
	return &Session{
		UserID: userID,
		Requests: &RequestsTable{
			Engine: query.NewEngine(RequestColumns(), func(r model.Request) string { return r.UniqueID }, pageSize),
		},
		Reposiciones: &ReposicionesTable{
			Engine: query.NewEngine(ReposicionColumns(), func(r model.Reposicion) string { return string(r.ID) }, pageSize),
		},
		Users: &UsersTable{
			Engine: query.NewEngine(UserColumns(), func(u model.User) string { return string(u.ID) }, pageSize),
		},
	}
}

func (s *Session) Lock() { s.mu.Lock() }

func (s *Session) Unlock() { s.mu.Unlock() }

// Table returns the table of the given kind.
func (s *Session) Table(kind TableKind) (Table, error) {
	switch kind {
	case TableRequests:
		return s.Requests, nil
	case TableReposiciones:
		return s.Reposiciones, nil
	case TableUsers:
		return s.Users, nil
	}
	return nil, ErrUnknownTable
}

// Tables lists every table of the session.
func (s *Session) Tables() []Table {
	return []Table{s.Requests, s.Reposiciones, s.Users}
}
