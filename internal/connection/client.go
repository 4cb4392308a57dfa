package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket connection to a venue.
type Client interface {
	// Connect dials the venue. It fails with ErrAlreadyClosed once Close
	// has been called, even if the dial was already in flight.
	Connect(ctx context.Context) error

	// Close sends a normal close frame and releases the socket.
	Close() error

	// Send writes one text frame.
	Send(data []byte) error

	// SendJSON encodes v as a single text frame.
	SendJSON(v any) error

	// Messages returns a channel of raw inbound messages, each stamped
	// with the local time it was read.
	Messages() <-chan TimestampedMessage

	// Errors returns a channel that receives the error ending the read
	// loop. A close frame from the venue arrives as *websocket.CloseError.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool

	// Overflows returns the number of inbound frames dropped because the
	// message buffer was full.
	Overflows() int64
}

// client implements the Client interface.
type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	// Serializes data frames. WriteControl is safe to call concurrently.
	writeMu sync.Mutex

	mu        sync.RWMutex
	connected bool
	closed    bool
	lastSeen  time.Time // Last ping or pong in either direction

	overflows atomic.Int64
}

// NewClient creates a new WebSocket client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (c *client) Connect(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrAlreadyClosed
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.connected = true
	c.lastSeen = time.Now()
	c.mu.Unlock()

	conn.SetPingHandler(func(data string) error {
		c.touch()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop(conn)
	go c.heartbeatLoop(conn)

	c.logger.Debug("websocket connected", "url", c.cfg.URL)
	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

func (c *client) Send(data []byte) error {
	return c.write(func(conn *websocket.Conn) error {
		return conn.WriteMessage(websocket.TextMessage, data)
	})
}

func (c *client) SendJSON(v any) error {
	return c.write(func(conn *websocket.Conn) error {
		return conn.WriteJSON(v)
	})
}

// write runs fn with the write lock held and the write deadline set.
func (c *client) write(fn func(*websocket.Conn) error) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return fn(conn)
}

func (c *client) Messages() <-chan TimestampedMessage {
	return c.messages
}

func (c *client) Errors() <-chan error {
	return c.errors
}

func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *client) Overflows() int64 {
	return c.overflows.Load()
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// fail reports the error ending the session unless Close already ran.
func (c *client) fail(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.errors <- err:
	default:
	}
}

// readLoop stamps each frame with its receive time and hands it to the
// messages channel. Frames that do not fit are dropped and counted.
func (c *client) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now()
		if err != nil {
			c.fail(err)
			return
		}

		select {
		case c.messages <- TimestampedMessage{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		default:
			n := c.overflows.Add(1)
			c.logger.Warn("message buffer full, dropping message", "dropped_total", n)
		}
	}
}

// heartbeatLoop sends protocol pings and reports a stale connection when
// neither pings nor pongs have been seen for PingTimeout.
func (c *client) heartbeatLoop(conn *websocket.Conn) {
	interval := c.cfg.PingInterval
	if interval <= 0 {
		interval = DefaultClientConfig().PingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		deadline := time.Now().Add(c.cfg.WriteTimeout)
		if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
			c.logger.Debug("failed to send ping", "error", err)
		}

		c.mu.RLock()
		lastSeen := c.lastSeen
		c.mu.RUnlock()

		if c.cfg.PingTimeout > 0 && time.Since(lastSeen) > c.cfg.PingTimeout {
			c.logger.Warn("no ping or pong received, connection stale",
				"last_seen", lastSeen,
				"timeout", c.cfg.PingTimeout,
			)
			c.fail(ErrStaleConnection)
			return
		}
	}
}

// CloseCode extracts the WebSocket close code from a read error, or returns
// 0 if the error did not come from a close frame.
func CloseCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return 0
}

// IsNormalClose reports whether err is a normal (1000) or going-away (1001) close.
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
