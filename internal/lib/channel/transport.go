package channel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a minimal connection surface over the realtime transport.
type Conn interface {
	// ReadMessage blocks until the next message or a transport error.
	ReadMessage() ([]byte, error)
	// WriteJSON sends a control frame.
	WriteJSON(v interface{}) error
	// Close tears down the connection; any blocked ReadMessage returns.
	Close() error
}

// Dialer establishes realtime connections. The production implementation
// is websocket-backed; tests substitute fakes.
type Dialer interface {
	Dial(ctx context.Context, url string, bearerToken string) (Conn, error)
}

// WebsocketDialer dials the realtime broker over websocket, carrying the
// bearer credential in the handshake. An empty token is sent as-is; the
// broker rejects it and the failure surfaces as a connection error.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context, url string, bearerToken string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	header := http.Header{}
	if bearerToken != "" {
		header.Set("Authorization", "Bearer "+bearerToken)
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	return &wsConn{conn: conn}, nil
}

// wsConn adapts *websocket.Conn to the Conn interface.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v interface{}) error {
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
