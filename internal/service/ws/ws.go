// Package ws streams freshly indexed audit records to connected dashboard
// clients, scoped per tenant.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"auditlog-service/internal/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const MessageTypeRecordIndexed = "record_indexed"

type EventMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ================================
// CLIENT
// ================================

type Client struct {
	TenantID string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ================================
// HUB
// ================================

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan tenantMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *zap.Logger
}

type tenantMessage struct {
	tenantID string
	payload  []byte
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan tenantMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.TenantID != msg.tenantID {
					continue
				}
				select {
				case client.Send <- msg.payload:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a payload for every client of one tenant. Non-blocking:
// a full hub drops the broadcast, live tailing is best-effort.
func (h *Hub) Broadcast(tenantID string, payload []byte) {
	select {
	case h.broadcast <- tenantMessage{tenantID: tenantID, payload: payload}:
	default:
		h.logger.Warn("ws broadcast dropped", zap.String("tenant_id", tenantID))
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and registers the client for its tenant's
// event stream. Tenant comes from the query string; real auth lives in the
// API gateway in front of this process.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, "tenant_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		TenantID: tenantID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
	}
	hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// ================================
// NOTIFIER
// ================================

// Notifier turns indexed records into hub broadcasts. It satisfies the
// indexer's Notifier interface.
type Notifier struct {
	hub    *Hub
	logger *zap.Logger
}

func NewNotifier(hub *Hub, logger *zap.Logger) *Notifier {
	return &Notifier{hub: hub, logger: logger}
}

func (n *Notifier) RecordIndexed(rec *domain.AuditRecord) {
	msg := EventMessage{
		Type:      MessageTypeRecordIndexed,
		Timestamp: time.Now().UTC(),
		Data:      rec,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		n.logger.Warn("marshal ws event failed", zap.Error(err))
		return
	}
	n.hub.Broadcast(rec.TenantID, payload)
}
