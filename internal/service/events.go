package service

import (
	"context"
	"fmt"

	"backoffice/internal/gateway"
	"backoffice/internal/model"
	"backoffice/internal/session"
)

// Push event types besides the undo countdown.
const (
	EventTableUpdated  = "table.updated"
	EventSearchFailed  = "search.failed"
	EventRequestSaved  = "request.saved"
	EventReposicionNew = "reposicion.created"
	EventFormUpdated   = "form.updated"
)

// Event is a push message for the user's open tabs.
type Event struct {
	Type    string            `json:"type"`
	Table   session.TableKind `json:"table,omitempty"`
	Form    string            `json:"form,omitempty"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
}

// Publisher delivers events to one user. The websocket hub implements it.
type Publisher interface {
	Publish(userID string, v any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

const (
	fetchPageSize = 100
	maxFetchPages = 50
)

// fetchAllRequests walks the backend pages of a request listing.
func fetchAllRequests(ctx context.Context, api gateway.API, f model.RequestFilter) ([]model.Request, error) {
	f.Page, f.PerPage = 1, fetchPageSize
	var all []model.Request
	for {
		res, err := api.ListRequests(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("failed to list requests: %w", err)
		}
		all = append(all, res.Data...)
		if res.Meta == nil || len(res.Data) == 0 {
			break
		}
		if !res.Meta.HasMore && res.Meta.CurrentPage >= res.Meta.LastPage {
			break
		}
		if f.Page >= maxFetchPages {
			return nil, fmt.Errorf("failed to list requests: more than %d pages", maxFetchPages)
		}
		f.Page++
	}
	if all == nil {
		all = []model.Request{}
	}
	return all, nil
}
