package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a lifecycle transition recorded in the journal.
type EventKind string

const (
	EventSubscriptionCreated EventKind = "subscription_created"
	EventSubscriptionRemoved EventKind = "subscription_removed"
	EventFirstLoad           EventKind = "first_load"
	EventFallback            EventKind = "fallback"
	EventUnknownVenue        EventKind = "unknown_venue"
	EventSessionOpened       EventKind = "session_opened"
	EventSessionFailed       EventKind = "session_failed"
	EventSessionClosed       EventKind = "session_closed"
)

// LifecycleEvent is one session or subscription transition. It carries no
// book state.
type LifecycleEvent struct {
	ID        uuid.UUID // Event ID
	Kind      EventKind // What happened
	Venue     VenueID   // Venue involved
	Symbol    string    // Subscription symbol, if any
	SourceID  uuid.UUID // Session or subscription ID the event belongs to
	CloseCode int       // WebSocket close code for session_closed, 0 otherwise
	Detail    string    // Free-form reason (error text)
	At        time.Time // When it happened (loop clock)
}

// NewLifecycleEvent fills in a fresh event ID.
func NewLifecycleEvent(kind EventKind, venue VenueID, symbol string, source uuid.UUID, at time.Time) LifecycleEvent {
	return LifecycleEvent{
		ID:       uuid.New(),
		Kind:     kind,
		Venue:    venue,
		Symbol:   symbol,
		SourceID: source,
		At:       at,
	}
}
