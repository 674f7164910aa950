// Package live streams delivery progress to websocket clients.
package live

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/ziadkadry99/drivenotify/internal/delivery"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Update is one message on the live feed.
type Update struct {
	Type      string                    `json:"type"` // "recipient" or "batch"
	BatchID   string                    `json:"batchId"`
	Index     int                       `json:"index,omitempty"`
	Total     int                       `json:"total"`
	Recipient *delivery.RecipientResult `json:"recipient,omitempty"`
	Summary   *delivery.BatchSummary    `json:"summary,omitempty"`
	Timestamp time.Time                 `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan Update
}

// Hub fans delivery updates out to connected clients. A client that falls
// behind by more than its buffer is disconnected.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  zerolog.Logger
	now     func() time.Time
}

// NewHub creates an empty Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger.With().Str("component", "live").Logger(),
		now:     time.Now,
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// RecipientDone implements delivery.Observer.
func (h *Hub) RecipientDone(batchID string, index, total int, rr delivery.RecipientResult) {
	h.broadcast(Update{
		Type:      "recipient",
		BatchID:   batchID,
		Index:     index,
		Total:     total,
		Recipient: &rr,
		Timestamp: h.now().UTC(),
	})
}

// BatchDone implements delivery.Observer.
func (h *Hub) BatchDone(batchID string, summary delivery.BatchSummary) {
	h.broadcast(Update{
		Type:      "batch",
		BatchID:   batchID,
		Total:     summary.Total,
		Summary:   &summary,
		Timestamp: h.now().UTC(),
	})
}

func (h *Hub) broadcast(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- u:
		default:
			h.logger.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("live client too slow, dropping")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// ServeHTTP upgrades the request and streams updates until the client goes
// away. Messages from the client are read and discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan Update, sendBuffer)}
	h.add(c)
	h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("live client connected")

	go h.writeLoop(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Msg("live client read")
			}
			break
		}
	}
	h.remove(c)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for u := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(u); err != nil {
			h.logger.Debug().Err(err).Msg("live client write")
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
