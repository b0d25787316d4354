package handlers

import (
	"github.com/gofiber/websocket/v2"
)

// ConnLike is the slice of *websocket.Conn the router needs. Tests
// substitute an in-memory implementation.
type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// Client is one registered websocket connection. All writes go through
// the buffered Send channel and a single write pump goroutine, so the
// router never writes to a socket directly and never blocks on a slow
// consumer while holding its lock.
type Client struct {
	ID     string
	UserID string
	Conn   ConnLike
	Send   chan []byte
}

func NewClient(connID, userID string, conn ConnLike) *Client {
	return &Client{
		ID:     connID,
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 64),
	}
}

// WritePump drains the send channel onto the socket. It exits when the
// channel is closed (the router removed this client) or a write fails
// (the read loop notices the dead socket and disconnects).
func (c *Client) WritePump() {
	for data := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// queue enqueues a frame without blocking. A full buffer means a slow
// consumer; the frame is dropped and the fetch-and-reconcile path
// makes the client whole later.
func (c *Client) queue(data []byte) bool {
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}
