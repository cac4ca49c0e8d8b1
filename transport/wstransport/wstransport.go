// Package wstransport is the reference transport.Transport implementation,
// carrying MessageEnvelope frames as WebSocket JSON text frames. It exists
// to exercise the gorilla/websocket dependency end to end; framing choice
// itself is an external concern the core protocol never depends on (§6).
package wstransport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/digital-defiance/eecp/transport"
)

// Conn adapts a *websocket.Conn to transport.Transport. It is safe for one
// concurrent Send and one concurrent Receive, matching the interface's
// documented contract.
type Conn struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	readTimeout  time.Duration
	writeTimeout time.Duration
	closed       bool
	closeMu      sync.Mutex
}

// New wraps an already-established *websocket.Conn (from a Dial or an
// Upgrader.Upgrade call) with read/write deadlines.
func New(conn *websocket.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{conn: conn, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

// Dial connects to a relay's WebSocket endpoint and returns a ready Conn.
func Dial(ctx context.Context, url string, dialTimeout, readTimeout, writeTimeout time.Duration) (*Conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("wstransport: dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("wstransport: dial failed: %w", err)
	}
	return New(conn, readTimeout, writeTimeout), nil
}

// Upgrader promotes incoming HTTP requests to WebSocket connections for the
// relay side. CheckOrigin is left to the caller via AllowOrigin.
type Upgrader struct {
	AllowOrigin  func(r *http.Request) bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Upgrade completes the HTTP->WebSocket handshake and returns a ready Conn.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	checkOrigin := u.AllowOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	upgrader := websocket.Upgrader{
		CheckOrigin:     checkOrigin,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("wstransport: upgrade failed: %w", err)
	}
	readTimeout, writeTimeout := u.ReadTimeout, u.WriteTimeout
	if readTimeout == 0 {
		readTimeout = 60 * time.Second
	}
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}
	return New(conn, readTimeout, writeTimeout), nil
}

// Send writes one envelope as a JSON text frame.
func (c *Conn) Send(ctx context.Context, env *transport.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.isClosed() {
		return transport.ErrClosed
	}
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("wstransport: set write deadline: %w", err)
	}
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("wstransport: write: %w", err)
	}
	return nil
}

// Receive blocks for the next inbound envelope.
func (c *Conn) Receive(ctx context.Context) (*transport.Envelope, error) {
	if c.isClosed() {
		return nil, transport.ErrClosed
	}
	deadline := time.Now().Add(c.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("wstransport: set read deadline: %w", err)
	}
	var env transport.Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, transport.ErrClosed
		}
		return nil, fmt.Errorf("wstransport: read: %w", err)
	}
	return &env, nil
}

// Close sends a normal-closure control frame and tears down the socket.
// Close is idempotent.
func (c *Conn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	deadline := time.Now().Add(5 * time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

func (c *Conn) isClosed() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}

var _ transport.Transport = (*Conn)(nil)
