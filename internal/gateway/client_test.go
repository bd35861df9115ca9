package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backoffice/internal/model"

	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func TestListRequests_EnvelopeAndQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/requests" {
			t.Errorf("path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("status") != "pending" || q.Get("per_page") != "50" || q.Get("search") != "jose" || q.Has("type") {
			t.Errorf("query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":[{"unique_id":"G00001","type":"expense","amount":"12.50","account_id":7,"status":"pending","request_date":"2025-01-15"}],
			"meta":{"current_page":1,"last_page":3,"per_page":50,"total":120,"has_more":true}}`)
	})

	res, err := c.ListRequests(context.Background(), model.RequestFilter{Status: model.RequestPending, Search: "jose", PerPage: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res.Data) != 1 || res.Meta == nil || res.Meta.Total != 120 || !res.Meta.HasMore {
		t.Fatalf("unexpected result %+v", res)
	}
	r := res.Data[0]
	if r.AccountID != "7" || !r.Amount.Equal(decimal.RequireFromString("12.5")) || r.RequestDate.String() != "2025-01-15" {
		t.Fatalf("decoded %+v", r)
	}
}

func TestListRequests_BareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"unique_id":"D1","status":"paid"},{"unique_id":"D2","status":"review"}]`)
	})
	res, err := c.ListRequests(context.Background(), model.RequestFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res.Data) != 2 || res.Meta != nil {
		t.Fatalf("unexpected %+v", res)
	}
}

func TestDecodeList_PaginatorShapes(t *testing.T) {
	res, err := decodeList[model.Option]([]byte(`{"data":[{"id":1,"nombre_completo":"José"}],"current_page":2,"last_page":2,"per_page":1,"total":2}`))
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta == nil || res.Meta.CurrentPage != 2 || res.Meta.HasMore {
		t.Fatalf("meta %+v", res.Meta)
	}
	if res.Data[0].Name != "José" {
		t.Fatalf("name %q", res.Data[0].Name)
	}

	res, err = decodeList[model.Option]([]byte(`{"data":{"data":[{"id":"a","name":"A"}],"current_page":1,"last_page":1}}`))
	if err != nil || len(res.Data) != 1 || res.Meta == nil {
		t.Fatalf("nested: %+v %v", res, err)
	}

	res, err = decodeList[model.Option]([]byte(`{"data":[]}`))
	if err != nil || len(res.Data) != 0 {
		t.Fatalf("empty: %+v %v", res, err)
	}
}

func TestCredentialsForwarded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization %q", got)
		}
		if ck, err := r.Cookie("laravel_session"); err != nil || ck.Value != "abc" {
			t.Errorf("cookie %v %v", ck, err)
		}
		io.WriteString(w, `{"data":[]}`)
	})
	ctx := WithCredentials(context.Background(), Credentials{
		Token:   "tok",
		Cookies: []*http.Cookie{{Name: "laravel_session", Value: "abc"}},
	})
	if _, err := c.ListRoles(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestAPIError_MessageVerbatim(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"message":"La solicitud ya fue pagada"}`)
	})
	_, err := c.UpdateRequest(context.Background(), "G1", model.RequestPatch{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.Conflict() || apiErr.Message != "La solicitud ya fue pagada" {
		t.Fatalf("got %+v", apiErr)
	}
	if UserMessage(err) != "La solicitud ya fue pagada" {
		t.Fatalf("user message %q", UserMessage(err))
	}
}

func TestExtractMessage(t *testing.T) {
	cases := map[string]string{
		`{"message":"m"}`:                              "m",
		`{"error":"e"}`:                                "e",
		`{"error":{"message":"nested"}}`:               "nested",
		`{"errors":{"note":["is required"],"a":["x"]}}`: "a: x; note: is required",
		`plain text`:                                   "plain text",
		`{}`:                                           "",
	}
	for body, want := range cases {
		if got := extractMessage([]byte(body)); got != want {
			t.Errorf("%s: got %q want %q", body, got, want)
		}
	}
}

func TestUserMessage_Fallback(t *testing.T) {
	if got := UserMessage(errors.New("dial tcp: refused")); got != FallbackMessage {
		t.Fatalf("got %q", got)
	}
	if got := UserMessage(&APIError{StatusCode: 500}); got != FallbackMessage {
		t.Fatalf("got %q", got)
	}
}

func TestCreateReposicion_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/reposiciones" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart: %v", err)
			return
		}
		ids := r.MultipartForm.Value["request_ids[]"]
		if len(ids) != 2 || ids[0] != "G1" || ids[1] != "G2" {
			t.Errorf("ids %v", ids)
		}
		f, hdr, err := r.FormFile("attachment")
		if err != nil {
			t.Errorf("attachment: %v", err)
			return
		}
		defer f.Close()
		content, _ := io.ReadAll(f)
		if hdr.Filename != "voucher.pdf" || string(content) != "%PDF" {
			t.Errorf("file %s %q", hdr.Filename, content)
		}
		io.WriteString(w, `{"data":{"id":5,"status":"pending","project":"CNQT","total_reposicion":30}}`)
	})

	rep, err := c.CreateReposicion(context.Background(), []string{"G1", "G2"}, Attachment{Filename: "voucher.pdf", Content: []byte("%PDF")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rep.ID != "5" || rep.Status != model.ReposicionPending || !rep.TotalReposicion.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("got %+v", rep)
	}
}

func TestCreateRequest_JSONWithoutAttachment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body["type"] != "income" || body["amount"] != "40" {
			t.Errorf("body %v", body)
		}
		io.WriteString(w, `{"unique_id":"I9","type":"income","status":"pending"}`)
	})
	r, err := c.CreateRequest(context.Background(), RequestInput{Type: model.RequestTypeIncome, Amount: decimal.NewFromInt(40)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.UniqueID != "I9" {
		t.Fatalf("got %+v", r)
	}
}

func TestUpdateReposicion_PutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/reposiciones/7" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var upd model.ReposicionUpdate
		json.NewDecoder(r.Body).Decode(&upd)
		if upd.Status != model.ReposicionPaid || upd.Month != "2025-01" || upd.When != model.WhenRol {
			t.Errorf("body %+v", upd)
		}
		io.WriteString(w, `{"id":"7","status":"paid"}`)
	})
	rep, err := c.UpdateReposicion(context.Background(), "7", model.ReposicionUpdate{Status: model.ReposicionPaid, Month: "2025-01", When: model.WhenRol, Note: "n"})
	if err != nil || rep.Status != model.ReposicionPaid {
		t.Fatalf("got %+v %v", rep, err)
	}
}

func TestTransportFailure(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)
	_, err := c.ListUsers(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestListReference_RejectsUnknown(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)
	if _, err := c.ListReference(context.Background(), "vendors", nil); err == nil {
		t.Fatal("expected error")
	}
}
