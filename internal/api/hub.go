// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"grimm.is/dhcpscry/internal/logging"
	"grimm.is/dhcpscry/internal/metrics"
	"grimm.is/dhcpscry/internal/pipeline"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsSendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The observer runs on trusted network segments; the UI may be served
	// from a different origin than the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub pushes each observation to all connected websocket clients. A client
// that cannot keep up has its buffer overrun and is disconnected rather
// than allowed to stall the feed. Implements pipeline.Sink.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	logger  *logging.Logger
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan *pipeline.Observation
	once sync.Once
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		logger:  logging.WithComponent("ws"),
	}
}

// Record implements pipeline.Sink. It never blocks: slow clients are
// dropped instead.
func (h *Hub) Record(obs *pipeline.Observation) error {
	h.mu.RLock()
	var stalled []*wsClient
	for c := range h.clients {
		select {
		case c.send <- obs:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		h.logger.Warn("dropping slow websocket client", "remote", c.conn.RemoteAddr().String())
		c.close()
	}
	return nil
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and attaches it to the live feed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan *pipeline.Observation, wsSendBufferSize),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.WebsocketClients.Inc()

	go c.writeLoop()
	go c.readLoop()
}

func (c *wsClient) close() {
	c.once.Do(func() {
		c.hub.mu.Lock()
		delete(c.hub.clients, c)
		c.hub.mu.Unlock()
		metrics.WebsocketClients.Dec()
		c.conn.Close()
		close(c.send)
	})
}

// readLoop discards inbound frames; the feed is one-way but reads are
// required to process control frames and detect disconnects.
func (c *wsClient) readLoop() {
	defer c.close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case obs, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(obs); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
