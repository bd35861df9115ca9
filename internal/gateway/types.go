package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"backoffice/internal/model"

	"github.com/shopspring/decimal"
)

// ListResult is a page of rows. Meta is nil when the backend returned a
// bare array.
type ListResult[T any] struct {
	Data []T
	Meta *model.PageMeta
}

// Attachment is an uploaded file forwarded to the backend.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// RequestInput is the create payload of a single request.
type RequestInput struct {
	Type          model.RequestType   `json:"type"`
	PersonnelType model.PersonnelType `json:"personnel_type"`
	RequestDate   string              `json:"request_date"`
	InvoiceNumber string              `json:"invoice_number,omitempty"`
	AccountID     string              `json:"account_id"`
	Amount        decimal.Decimal     `json:"amount"`
	Project       string              `json:"project"`
	ResponsibleID string              `json:"responsible_id,omitempty"`
	VehiclePlate  string              `json:"vehicle_plate,omitempty"`
	VehicleNumber string              `json:"vehicle_number,omitempty"`
	Note          string              `json:"note,omitempty"`
}

// Form renders the payload as multipart fields, skipping empty values.
func (in RequestInput) Form() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("type", string(in.Type))
	set("personnel_type", string(in.PersonnelType))
	set("request_date", in.RequestDate)
	set("invoice_number", in.InvoiceNumber)
	set("account_id", in.AccountID)
	set("amount", in.Amount.StringFixed(2))
	set("project", in.Project)
	set("responsible_id", in.ResponsibleID)
	set("vehicle_plate", in.VehiclePlate)
	set("vehicle_number", in.VehicleNumber)
	set("note", in.Note)
	return v
}

// MassInput creates one request per employee. The backend splits
// TotalAmount.
type MassInput struct {
	Type          model.RequestType   `json:"type"`
	PersonnelType model.PersonnelType `json:"personnel_type"`
	RequestDate   string              `json:"request_date"`
	AccountID     string              `json:"account_id"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	Project       string              `json:"project"`
	Note          string              `json:"note"`
	EmployeeIDs   []string            `json:"employee_ids"`
}

func (in MassInput) Form() url.Values {
	v := url.Values{}
	v.Set("type", string(in.Type))
	v.Set("personnel_type", string(in.PersonnelType))
	v.Set("request_date", in.RequestDate)
	v.Set("account_id", in.AccountID)
	v.Set("total_amount", in.TotalAmount.StringFixed(2))
	v.Set("project", in.Project)
	v.Set("note", in.Note)
	for _, id := range in.EmployeeIDs {
		v.Add("employee_ids[]", id)
	}
	return v
}

type ImportResult struct {
	Imported int             `json:"imported"`
	Requests []model.Request `json:"requests,omitempty"`
}

type UserInput struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Password    string   `json:"password,omitempty"`
	Role        string   `json:"role"`
	Area        string   `json:"area,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// decodeList accepts a bare array, {data: [...], meta: {...}} or a
// paginator body with the page fields at the top level.
func decodeList[T any](body []byte) (ListResult[T], error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return ListResult[T]{Data: []T{}}, nil
	}
	if body[0] == '[' {
		var rows []T
		if err := json.Unmarshal(body, &rows); err != nil {
			return ListResult[T]{}, fmt.Errorf("failed to decode list: %w", err)
		}
		return ListResult[T]{Data: rows}, nil
	}

	var env struct {
		Data        json.RawMessage `json:"data"`
		Meta        *model.PageMeta `json:"meta"`
		CurrentPage int             `json:"current_page"`
		LastPage    int             `json:"last_page"`
		PerPage     int             `json:"per_page"`
		Total       int64           `json:"total"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ListResult[T]{}, fmt.Errorf("failed to decode list envelope: %w", err)
	}
	if len(env.Data) == 0 {
		return ListResult[T]{Data: []T{}, Meta: env.Meta}, nil
	}

	inner := bytes.TrimSpace(env.Data)
	if len(inner) > 0 && inner[0] == '{' {
		// {data: {data: [...], current_page: ...}}
		nested, err := decodeList[T](inner)
		if err != nil {
			return ListResult[T]{}, err
		}
		if nested.Meta == nil {
			nested.Meta = env.Meta
		}
		return nested, nil
	}

	var rows []T
	if err := json.Unmarshal(inner, &rows); err != nil {
		return ListResult[T]{}, fmt.Errorf("failed to decode list data: %w", err)
	}
	if rows == nil {
		rows = []T{}
	}
	meta := env.Meta
	if meta == nil && env.CurrentPage > 0 {
		meta = &model.PageMeta{
			CurrentPage: env.CurrentPage,
			LastPage:    env.LastPage,
			PerPage:     env.PerPage,
			Total:       env.Total,
			HasMore:     env.CurrentPage < env.LastPage,
		}
	}
	return ListResult[T]{Data: rows, Meta: meta}, nil
}

// decodeOne accepts {data: {...}} or the bare object.
func decodeOne[T any](body []byte) (T, error) {
	var out T
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		inner := bytes.TrimSpace(env.Data)
		if len(inner) > 0 && inner[0] == '{' {
			if err := json.Unmarshal(inner, &out); err != nil {
				return out, fmt.Errorf("failed to decode data: %w", err)
			}
			return out, nil
		}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("failed to decode body: %w", err)
	}
	return out, nil
}

func filterQuery(f model.RequestFilter) map[string]string {
	q := map[string]string{}
	set := func(k, v string) {
		if strings.TrimSpace(v) != "" {
			q[k] = v
		}
	}
	set("status", string(f.Status))
	set("type", string(f.Type))
	set("period", f.Period)
	set("search", f.Search)
	set("sort_by", f.SortBy)
	set("sort_order", f.SortOrder)
	if f.Page > 0 {
		q["page"] = fmt.Sprint(f.Page)
	}
	if f.PerPage > 0 {
		q["per_page"] = fmt.Sprint(f.PerPage)
	}
	return q
}
