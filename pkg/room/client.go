package room

import (
	"github.com/gorilla/websocket"
)

// Client represents one live connection. The gateway owns it for the
// connection lifetime; rooms only ever touch the Send channel.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	// room is the client's current room, nil until the first join-document.
	// Accessed only from the connection's read goroutine.
	room *Room
}

// NewClient wraps a connection with a fresh session identity.
func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan []byte, 256),
	}
}

// Room returns the client's current room, or nil if it has not joined one.
func (c *Client) Room() *Room {
	return c.room
}
