// Package live pushes the live feed to websocket clients on a fixed
// cadence.
package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/evn/fleet_tracker/internal/models"
	"github.com/evn/fleet_tracker/internal/services/feed"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

// Source produces the live feed of an account.
type Source func(ctx context.Context, accountID int64, filter feed.Filter) (*feed.LiveFeed, error)

// Message is one push to a client.
type Message struct {
	Type string `json:"type"`
	*feed.LiveFeed
	Timestamp time.Time `json:"timestamp"`
}

// FilterUpdate may be sent by a client to change its filter.
type FilterUpdate struct {
	TagIDs []int64 `json:"tag_ids"`
	Status string  `json:"status"`
}

type Client struct {
	ID        string
	AccountID int64

	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	filter feed.Filter
}

func (c *Client) Filter() feed.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *Client) setFilter(f feed.Filter) {
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

// Hub tracks connected clients. Every client has its own push loop so a
// slow account query never delays another client.
type Hub struct {
	source   Source
	interval time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub(source Source, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Hub{
		source:   source,
		interval: interval,
		now:      time.Now,
		clients:  make(map[string]*Client),
	}
}

// Attach registers conn and starts pushing the feed of accountID.
func (h *Hub) Attach(conn *websocket.Conn, accountID int64, filter feed.Filter) *Client {
	c := &Client{
		ID:        uuid.NewString(),
		AccountID: accountID,
		conn:      conn,
		send:      make(chan []byte, 16),
		done:      make(chan struct{}),
		filter:    filter,
	}

	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"client_id":  c.ID,
		"account_id": accountID,
	}).Info("live client connected")

	go h.readPump(c)
	go h.writePump(c)
	go h.pushLoop(c)
	return c
}

// Count is the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) remove(c *Client) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c.ID)
		h.mu.Unlock()
		close(c.done)
		logrus.WithField("client_id", c.ID).Info("live client disconnected")
	})
}

func (h *Hub) pushLoop(c *Client) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.push(c)
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			h.push(c)
		}
	}
}

func (h *Hub) push(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), h.interval)
	defer cancel()

	live, err := h.source(ctx, c.AccountID, c.Filter())
	if err != nil {
		logrus.WithError(err).WithField("client_id", c.ID).Warn("live feed query failed")
		return
	}
	data, err := json.Marshal(Message{Type: "live", LiveFeed: live, Timestamp: h.now()})
	if err != nil {
		logrus.WithError(err).Error("encode live message")
		return
	}

	select {
	case c.send <- data:
	case <-c.done:
	default:
		logrus.WithField("client_id", c.ID).Warn("live client too slow, dropping update")
	}
}

func (h *Hub) readPump(c *Client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).WithField("client_id", c.ID).Debug("live client read failed")
			}
			return
		}

		var upd FilterUpdate
		if err := json.Unmarshal(message, &upd); err != nil {
			continue
		}
		status := models.Status(upd.Status)
		if status != "" && !status.Valid() {
			continue
		}
		c.setFilter(feed.Filter{TagIDs: upd.TagIDs, Status: status})
		h.push(c)
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
