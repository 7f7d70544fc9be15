package relay

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrEmptyFrame is returned by Receive for a frame without an envelope.
var ErrEmptyFrame = errors.New("relay frame carries no envelope")

// frame is the JSON structure exchanged over the WebSocket.
type frame struct {
	Envelope string `json:"envelope"`
}

// Conn is an established relay connection. Send may be called from several
// goroutines; Receive from one.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Send writes one envelope.
func (c *Conn) Send(envelope string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(frame{Envelope: envelope}); err != nil {
		return fmt.Errorf("failed to send envelope: %w", err)
	}
	return nil
}

// Receive blocks until the next envelope arrives or the connection closes.
func (c *Conn) Receive() (string, error) {
	var f frame
	if err := c.ws.ReadJSON(&f); err != nil {
		return "", err
	}
	if f.Envelope == "" {
		return "", ErrEmptyFrame
	}
	return f.Envelope, nil
}

// Close sends a close frame and closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}
