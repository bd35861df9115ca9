// Package gateway is the typed REST client for the back-office backend.
// Every call runs with the credentials stored in its context.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"backoffice/internal/model"

	"github.com/go-resty/resty/v2"
)

// API is the backend surface the services depend on.
type API interface {
	ListRequests(ctx context.Context, f model.RequestFilter) (ListResult[model.Request], error)
	GetRequest(ctx context.Context, id string) (model.Request, error)
	CreateRequest(ctx context.Context, in RequestInput, att *Attachment) (model.Request, error)
	CreateMassRequests(ctx context.Context, in MassInput, att *Attachment) ([]model.Request, error)
	ImportRequests(ctx context.Context, rows []RequestInput) (ImportResult, error)
	UpdateRequest(ctx context.Context, id string, patch model.RequestPatch) (model.Request, error)

	ListReposiciones(ctx context.Context) ([]model.Reposicion, error)
	GetReposicion(ctx context.Context, id string) (model.Reposicion, error)
	CreateReposicion(ctx context.Context, requestIDs []string, att Attachment) (model.Reposicion, error)
	UpdateReposicion(ctx context.Context, id string, upd model.ReposicionUpdate) (model.Reposicion, error)

	ListReference(ctx context.Context, res model.ReferenceResource, scope map[string]string) ([]model.Option, error)

	ListUsers(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, in UserInput) (model.User, error)
	UpdateUser(ctx context.Context, id string, in UserInput) (model.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListRoles(ctx context.Context) ([]model.Role, error)
}

type Client struct {
	http *resty.Client
}

var _ API = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: r}
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if cred, ok := CredentialsFrom(ctx); ok {
		if cred.Token != "" {
			req.SetAuthToken(cred.Token)
		}
		if len(cred.Cookies) > 0 {
			req.SetCookies(cred.Cookies)
		}
	}
	return req
}

func (c *Client) execute(req *resty.Request, method, path string) ([]byte, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	if resp.IsError() {
		return nil, newAPIError(resp.StatusCode(), resp.Body())
	}
	return resp.Body(), nil
}

func withAttachment(req *resty.Request, field string, att Attachment) *resty.Request {
	if att.ContentType != "" {
		return req.SetMultipartField(field, att.Filename, att.ContentType, bytes.NewReader(att.Content))
	}
	return req.SetFileReader(field, att.Filename, bytes.NewReader(att.Content))
}

// --- requests ---

func (c *Client) ListRequests(ctx context.Context, f model.RequestFilter) (ListResult[model.Request], error) {
	body, err := c.execute(c.newRequest(ctx).SetQueryParams(filterQuery(f)), http.MethodGet, "/requests")
	if err != nil {
		return ListResult[model.Request]{}, fmt.Errorf("failed to list requests: %w", err)
	}
	return decodeList[model.Request](body)
}

func (c *Client) GetRequest(ctx context.Context, id string) (model.Request, error) {
	body, err := c.execute(c.newRequest(ctx), http.MethodGet, "/requests/"+url.PathEscape(id))
	if err != nil {
		return model.Request{}, fmt.Errorf("failed to get request: %w", err)
	}
	return decodeOne[model.Request](body)
}

// CreateRequest posts multipart form data when att is set, JSON otherwise.
func (c *Client) CreateRequest(ctx context.Context, in RequestInput, att *Attachment) (model.Request, error) {
	req := c.newRequest(ctx)
	if att != nil {
		req = withAttachment(req.SetFormDataFromValues(in.Form()), "attachment", *att)
	} else {
		req = req.SetBody(in)
	}
	body, err := c.execute(req, http.MethodPost, "/requests")
	if err != nil {
		return model.Request{}, fmt.Errorf("failed to create request: %w", err)
	}
	return decodeOne[model.Request](body)
}

func (c *Client) CreateMassRequests(ctx context.Context, in MassInput, att *Attachment) ([]model.Request, error) {
	req := c.newRequest(ctx)
	if att != nil {
		req = withAttachment(req.SetFormDataFromValues(in.Form()), "attachment", *att)
	} else {
		req = req.SetBody(in)
	}
	body, err := c.execute(req, http.MethodPost, "/requests/mass")
	if err != nil {
		return nil, fmt.Errorf("failed to create mass requests: %w", err)
	}
	res, err := decodeList[model.Request](body)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (c *Client) ImportRequests(ctx context.Context, rows []RequestInput) (ImportResult, error) {
	payload := struct {
		Requests []RequestInput `json:"requests"`
	}{Requests: rows}

	body, err := c.execute(c.newRequest(ctx).SetBody(payload), http.MethodPost, "/requests/import")
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to import requests: %w", err)
	}
	res, err := decodeOne[ImportResult](body)
	if err != nil {
		return ImportResult{}, err
	}
	if res.Imported == 0 {
		res.Imported = len(rows)
	}
	return res, nil
}

func (c *Client) UpdateRequest(ctx context.Context, id string, patch model.RequestPatch) (model.Request, error) {
	body, err := c.execute(c.newRequest(ctx).SetBody(patch), http.MethodPatch, "/requests/"+url.PathEscape(id))
	if err != nil {
		return model.Request{}, fmt.Errorf("failed to update request: %w", err)
	}
	return decodeOne[model.Request](body)
}

// --- reposiciones ---

func (c *Client) ListReposiciones(ctx context.Context) ([]model.Reposicion, error) {
	body, err := c.execute(c.newRequest(ctx), http.MethodGet, "/reposiciones")
	if err != nil {
		return nil, fmt.Errorf("failed to list reposiciones: %w", err)
	}
	res, err := decodeList[model.Reposicion](body)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (c *Client) GetReposicion(ctx context.Context, id string) (model.Reposicion, error) {
	body, err := c.execute(c.newRequest(ctx), http.MethodGet, "/reposiciones/"+url.PathEscape(id))
	if err != nil {
		return model.Reposicion{}, fmt.Errorf("failed to get reposicion: %w", err)
	}
	return decodeOne[model.Reposicion](body)
}

func (c *Client) CreateReposicion(ctx context.Context, requestIDs []string, att Attachment) (model.Reposicion, error) {
	form := url.Values{}
	for _, id := range requestIDs {
		form.Add("request_ids[]", id)
	}
	req := withAttachment(c.newRequest(ctx).SetFormDataFromValues(form), "attachment", att)
	body, err := c.execute(req, http.MethodPost, "/reposiciones")
	if err != nil {
		return model.Reposicion{}, fmt.Errorf("failed to create reposicion: %w", err)
	}
	return decodeOne[model.Reposicion](body)
}

func (c *Client) UpdateReposicion(ctx context.Context, id string, upd model.ReposicionUpdate) (model.Reposicion, error) {
	body, err := c.execute(c.newRequest(ctx).SetBody(upd), http.MethodPut, "/reposiciones/"+url.PathEscape(id))
	if err != nil {
		return model.Reposicion{}, fmt.Errorf("failed to update reposicion: %w", err)
	}
	return decodeOne[model.Reposicion](body)
}

// --- reference data ---

func (c *Client) ListReference(ctx context.Context, res model.ReferenceResource, scope map[string]string) ([]model.Option, error) {
	if !res.IsValid() {
		return nil, fmt.Errorf("unknown reference resource %q", res)
	}
	body, err := c.execute(c.newRequest(ctx).SetQueryParams(scope), http.MethodGet, "/"+string(res))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", res, err)
	}
	out, err := decodeList[model.Option](body)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// --- users and roles ---

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	body, err := c.execute(c.newRequest(ctx), http.MethodGet, "/users")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	res, err := decodeList[model.User](body)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (c *Client) CreateUser(ctx context.Context, in UserInput) (model.User, error) {
	body, err := c.execute(c.newRequest(ctx).SetBody(in), http.MethodPost, "/users")
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return decodeOne[model.User](body)
}

func (c *Client) UpdateUser(ctx context.Context, id string, in UserInput) (model.User, error) {
	body, err := c.execute(c.newRequest(ctx).SetBody(in), http.MethodPut, "/users/"+url.PathEscape(id))
	if err != nil {
		return model.User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return decodeOne[model.User](body)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if _, err := c.execute(c.newRequest(ctx), http.MethodDelete, "/users/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (c *Client) ListRoles(ctx context.Context) ([]model.Role, error) {
	body, err := c.execute(c.newRequest(ctx), http.MethodGet, "/roles")
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	res, err := decodeList[model.Role](body)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}
