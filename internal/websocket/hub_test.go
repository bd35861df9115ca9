package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backoffice/internal/undo"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

var secret = []byte("ws-secret")

func dial(t *testing.T, srv *httptest.Server, sub string) *websocket.Conn {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_DeliversOnlyToAddressedUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(hub, c, secret) })
	srv := httptest.NewServer(r)
	defer srv.Close()

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")

	hub.Notify("alice", undo.Notification{Type: undo.EventScheduled, ActionID: "a1"})

	var got undo.Notification
	_ = alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := alice.ReadJSON(&got); err != nil {
		t.Fatalf("alice read: %v", err)
	}
	if got.Type != undo.EventScheduled || got.ActionID != "a1" {
		t.Fatalf("got %+v", got)
	}

	_ = bob.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Fatal("bob received alice's notification")
	}
}

func TestServeWs_RejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(hub, c, secret) })
	srv := httptest.NewServer(r)
	defer srv.Close()

	for _, q := range []string{"", "?token=garbage"} {
		_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws"+q, nil)
		if err == nil {
			t.Fatalf("%q: dial succeeded", q)
		}
		if resp == nil || resp.StatusCode != 401 {
			t.Fatalf("%q: response %v", q, resp)
		}
	}
}
