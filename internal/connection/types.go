package connection

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/bookfeed/internal/model"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrUnknownVenue    = errors.New("unknown venue")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// State is the lifecycle state of a venue session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://ws.okx.com:8443/ws/v5/public)
	HandshakeTimeout time.Duration // Dial deadline when the context has none
	PingInterval     time.Duration // Interval between protocol-level pings
	PingTimeout      time.Duration // Max time without a ping or pong before the connection is stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     20 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1024,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Client       ClientConfig // Template for every session; URL and handshake timeout come from the catalog
	RefetchRate  float64      // Snapshot re-fetches per second for delta-driven venues (0 = unlimited)
	RefetchBurst int          // Re-fetch limiter burst
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:       DefaultClientConfig(),
		RefetchRate:  5,
		RefetchBurst: 2,
	}
}

// SessionStats describes one venue session.
type SessionStats struct {
	Venue     model.VenueID
	Symbol    string
	SessionID uuid.UUID
	State     State
	Connected bool
	OpenedAt  time.Time // Zero until the session goes live
	Frames    int64
	Dropped   int64 // Frames rejected by the adapter as malformed
	Overflows int64 // Frames lost to a full client buffer
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	Sessions   []SessionStats
	Live       int
	Connecting int
}
