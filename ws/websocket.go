// Package ws holds the live transport: the connection registry (Hub) and
// the per-connection read/write pumps. Identity on this transport is always
// the one verified at connect time; events never carry a trusted sender.
//
// Fanout targets every subscriber of a conversation key, including the
// sender's own connections. Clients dedupe the echo by message id.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"campus-chat/models"
	"campus-chat/services"
	"campus-chat/utils"
)

// Hub is the connection registry: it tracks which live connections are
// subscribed to which conversation key. Membership is ephemeral and
// in-memory only; it dies with the process.
type Hub struct {
	// conversation key -> clients
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	join       chan subscription
	broadcast  chan outbound

	mu  sync.RWMutex
	log *slog.Logger
}

type subscription struct {
	client *Client
	key    string
}

type outbound struct {
	key  string
	data []byte
}

// Client is one live bidirectional session tied to a verified identity and
// to zero or more subscribed conversation keys. The uuid exists for registry
// bookkeeping and log correlation only.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	id       uuid.UUID
	identity models.Identity
	keys     map[string]bool
	msgSvc   *services.MessageService

	// closed is touched only from the hub run loop.
	closed bool
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan subscription, 64),
		broadcast:  make(chan outbound, 256),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.log.Info("client connected", "client", c.id, "identity", c.identity.String())
		case c := <-h.unregister:
			h.removeClient(c)
		case sub := <-h.join:
			h.addSubscription(sub.client, sub.key)
		case out := <-h.broadcast:
			h.fanout(out)
		}
	}
}

func (h *Hub) addSubscription(client *Client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[key] == nil {
		h.rooms[key] = make(map[*Client]bool)
	}
	h.rooms[key][client] = true
	client.keys[key] = true

	h.log.Info("client joined conversation",
		"client", client.id, "identity", client.identity.String(),
		"conversation", key, "subscribers", len(h.rooms[key]))
}

// removeClient drops the connection from every conversation it joined.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key := range client.keys {
		clients, exists := h.rooms[key]
		if !exists {
			continue
		}
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, key)
		}
	}

	if !client.closed {
		client.closed = true
		close(client.send)
	}

	h.log.Info("client disconnected", "client", client.id, "identity", client.identity.String())
}

func (h *Hub) fanout(out outbound) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[out.key]))
	for client := range h.rooms[out.key] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- out.data:
		default:
			// Slow consumer: drop the connection rather than block fanout.
			h.mu.Lock()
			for key := range client.keys {
				clients, exists := h.rooms[key]
				if !exists {
					continue
				}
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.rooms, key)
				}
			}
			clear(client.keys)
			h.mu.Unlock()
			if !client.closed {
				client.closed = true
				close(client.send)
			}
			h.log.Warn("dropped slow client", "client", client.id)
		}
	}
}

// BroadcastMessage pushes an enriched persisted message to every connection
// subscribed to its conversation key. Best effort: delivery to nobody is
// not an error, the store already holds the message.
func (h *Hub) BroadcastMessage(conversationKey string, msg models.EnrichedMessage) {
	out := map[string]any{
		"type":    "receiveMessage",
		"message": msg,
	}
	b, _ := json.Marshal(out)
	h.broadcast <- outbound{key: conversationKey, data: b}
}

// CountSubscribers reports how many live connections a conversation has.
func (h *Hub) CountSubscribers(conversationKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationKey])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks happen in the CORS layer in front of the router.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and starts the pumps. The identity comes
// from the verified credential presented at connect time; events on this
// connection can only speak as that identity.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, identity models.Identity, msgSvc *services.MessageService) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "identity", identity.String(), "error", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		id:       uuid.New(),
		identity: identity,
		keys:     make(map[string]bool),
		msgSvc:   msgSvc,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// clientEvent is the envelope for everything a client can emit. Sender
// fields are deliberately absent: the sender is the connection's identity.
type clientEvent struct {
	Type          string `json:"type"`
	RecipientID   int    `json:"recipient_id"`
	RecipientRole string `json:"recipient_role"`
	Content       string `json:"content"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(300 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(300 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.hub.log.Debug("client read closed", "client", c.id, "error", err)
			break
		}

		var event clientEvent
		if err := json.Unmarshal(message, &event); err != nil {
			c.hub.log.Warn("client sent malformed event", "client", c.id, "error", err)
			continue
		}

		switch event.Type {
		case "ping":
			// Reply through the write pump; the websocket allows only one
			// concurrent writer.
			pong, _ := json.Marshal(map[string]string{"type": "pong"})
			select {
			case c.send <- pong:
			default:
			}
		case "pong":
			// Connection is healthy.
		case "joinRoom":
			c.handleJoin(event)
		case "sendMessage":
			c.handleSend(event)
		default:
			c.hub.log.Warn("client sent unknown event", "client", c.id, "type", event.Type)
		}
	}
}

func (c *Client) handleJoin(event clientEvent) {
	recipient, ok := c.recipient(event)
	if !ok {
		return
	}
	key := utils.ConversationKey(c.identity, recipient)
	c.hub.join <- subscription{client: c, key: key}
}

func (c *Client) handleSend(event clientEvent) {
	recipient, ok := c.recipient(event)
	if !ok {
		return
	}
	// Persistence runs to completion regardless of this connection's
	// lifetime; a failed append is logged once and not retried.
	if _, err := c.msgSvc.Send(c.identity, recipient, event.Content); err != nil {
		c.hub.log.Warn("live send failed",
			"client", c.id, "identity", c.identity.String(), "error", err)
	}
}

func (c *Client) recipient(event clientEvent) (models.Identity, bool) {
	role, err := models.ParseRole(event.RecipientRole)
	if err != nil || event.RecipientID <= 0 {
		c.hub.log.Warn("client sent invalid recipient",
			"client", c.id, "recipient_id", event.RecipientID, "recipient_role", event.RecipientRole)
		return models.Identity{}, false
	}
	return models.Identity{ID: event.RecipientID, Role: role}, true
}

func (c *Client) writePump() {
	ticker := time.NewTicker(240 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
