package adapter

import (
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/bookfeed/internal/model"
)

// ErrParse marks a frame that could not be decoded. The frame is dropped and
// the session stays open.
var ErrParse = errors.New("parse frame")

// Session is the adapter's view of one live streaming connection.
type Session interface {
	// Symbol returns the symbol the session was opened for.
	Symbol() string

	// Send JSON-encodes v and writes it to the connection.
	Send(v any) error

	// Schedule runs f on the event loop after d. A pending timer with the
	// same name is replaced. Timers die with the session.
	Schedule(name string, d time.Duration, f func())

	// Now returns the event loop's current time.
	Now() time.Time

	// Logger returns a logger tagged with the venue and symbol.
	Logger() *slog.Logger
}

// Adapter translates one venue's wire protocol. An instance serves a single
// session and is only called from the event loop.
type Adapter interface {
	// Venue returns the venue this adapter speaks to.
	Venue() model.VenueID

	// Open runs the handshake once the connection is established.
	Open(s Session) error

	// Handle decodes one inbound frame. It returns a level set for book
	// data, nil for control or unrecognized frames, or an error wrapping
	// ErrParse for malformed frames.
	Handle(s Session, frame []byte, receivedAt time.Time) (*model.RawLevelSet, error)
}

// Options configures a new adapter instance.
type Options struct {
	Symbol string

	// RefetchRate bounds snapshot re-fetches per second for venues that
	// answer deltas with a full snapshot request. Zero means unlimited.
	RefetchRate float64

	// RefetchBurst is the limiter burst. Values below 1 are treated as 1.
	RefetchBurst int
}

// Factory creates an adapter for one session.
type Factory func(opts Options) Adapter
