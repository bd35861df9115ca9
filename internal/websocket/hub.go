package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"backoffice/internal/middleware"
	"backoffice/internal/undo"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Client is one browser tab of a user.
type Client struct {
	UserID string
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
}

type envelope struct {
	userID  string
	payload []byte
}

// Hub keeps the connected clients per user and delivers messages to every
// tab of the addressed user.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	deliver    chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	upgrader   websocket.Upgrader
}

var _ undo.Notifier = (*Hub)(nil)

// NewHub creates a hub. allowedOrigins empty accepts any origin.
func NewHub(allowedOrigins ...string) *Hub {
	h := &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		deliver:    make(chan envelope, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == origin || o == "*" {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Run dispatches registrations and messages until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.UserID] = set
			}
			set[client] = struct{}{}
			log.Debug().Str("user_id", client.UserID).Int("tabs", len(set)).Msg("websocket client connected")
		case client := <-h.unregister:
			h.remove(client)
		case env := <-h.deliver:
			for client := range h.clients[env.userID] {
				select {
				case client.Send <- env.payload:
				default:
					// slow consumer
					h.remove(client)
				}
			}
		case <-h.done:
			for _, set := range h.clients {
				for client := range set {
					close(client.Send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			return
		}
	}
}

func (h *Hub) Stop() { close(h.done) }

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(h.clients, client.UserID)
	}
	log.Debug().Str("user_id", client.UserID).Msg("websocket client disconnected")
}

// Publish sends v as JSON to every tab of userID. Messages for users
// without a connection are dropped.
func (h *Hub) Publish(userID string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode websocket message")
		return
	}
	select {
	case h.deliver <- envelope{userID: userID, payload: payload}:
	case <-h.done:
	}
}

// Notify implements undo.Notifier.
func (h *Hub) Notify(userID string, n undo.Notification) {
	h.Publish(userID, n)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only keeps the connection alive; clients never send commands here.
func (c *Client) readPump() {
	defer func() {
		c.Hub.leave(c)
		_ = c.Conn.Close()
	}()
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("user_id", c.UserID).Msg("websocket read failed")
			}
			return
		}
	}
}

// ServeWs authenticates the token query parameter and upgrades the
// connection.
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	tokenString := c.Query("token")
	if tokenString == "" {
		log.Warn().Msg("websocket connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, err := middleware.ParseToken(tokenString, secret)
	if err != nil {
		log.Warn().Err(err).Msg("websocket connection rejected: invalid token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	// registered before the handshake completes so nothing published after
	// the dial returns is lost; Send buffers until writePump starts
	client := &Client{UserID: claims.Subject, Hub: hub, Send: make(chan []byte, sendBuffer)}
	if !hub.join(client) {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		hub.leave(client)
		return
	}
	client.Conn = conn

	go client.writePump()
	go client.readPump()
}
