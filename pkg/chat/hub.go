// Package chat holds the in-memory fanout for live chat connections.
// Persistence and authorization live in the service layer; the hub only
// routes frames between sockets that share a room.
package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/commune-hq/commune/pkg/logutils"
)

const writeTimeout = 10 * time.Second

type client struct {
	conn   *websocket.Conn
	userID uint
	send   chan []byte
}

// Hub tracks which connections are subscribed to which room. A user may
// hold several connections to the same room (multiple tabs).
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uint]map[*client]struct{})}
}

// Join registers a connection in a room and starts its writer loop.
// The returned leave function must be called when the socket closes.
func (h *Hub) Join(roomID, userID uint, conn *websocket.Conn) (send func([]byte) bool, leave func()) {
	c := &client{conn: conn, userID: userID, send: make(chan []byte, 32)}

	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()

	leave = func() {
		h.mu.Lock()
		if peers, ok := h.rooms[roomID]; ok {
			delete(peers, c)
			if len(peers) == 0 {
				delete(h.rooms, roomID)
			}
		}
		h.mu.Unlock()
		close(c.send)
	}
	return c.enqueue, leave
}

// Broadcast sends a frame to every connection in the room. Slow clients
// whose buffers are full are skipped rather than blocking the sender.
func (h *Hub) Broadcast(roomID uint, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		c.enqueue(message)
	}
}

// RoomSize reports the number of live connections in a room.
func (h *Hub) RoomSize(roomID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (c *client) enqueue(message []byte) bool {
	select {
	case c.send <- message:
		return true
	default:
		logutils.Log.WithField("user", c.userID).Warn("chat client buffer full, dropping frame")
		return false
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
