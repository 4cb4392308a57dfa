package model

import (
	"math"
	"time"
)

// MaxDepth is the number of levels kept per side of a delivered book.
const MaxDepth = 20

// VenueID identifies an exchange.
type VenueID string

// Known venues.
const (
	OKX     VenueID = "okx"
	Bybit   VenueID = "bybit"
	Deribit VenueID = "deribit"
)

// -----------------------------------------------------------------------------
// Catalog Types
// -----------------------------------------------------------------------------

// Venue describes an exchange and its public endpoints.
type Venue struct {
	ID             VenueID       // Stable identifier (e.g., "okx")
	Name           string        // Display name (e.g., "OKX")
	WSURL          string        // Streaming endpoint
	RestURL        string        // REST base URL
	ConnectTimeout time.Duration // Deadline for the streaming handshake
	Connected      bool          // Snapshot of the live flag owned by the connection manager
}

// -----------------------------------------------------------------------------
// Book Types
// -----------------------------------------------------------------------------

// Level is a single price level.
type Level struct {
	Price    float64
	Quantity float64
}

// Valid reports whether the level has a finite positive price and quantity.
func (l Level) Valid() bool {
	return isFinite(l.Price) && isFinite(l.Quantity) && l.Price > 0 && l.Quantity > 0
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// OrderBook is a reconciled, render-ready book.
//
// Bids are strictly descending and asks strictly ascending by price, each
// side holding at most MaxDepth levels with unique prices.
type OrderBook struct {
	Symbol    string
	Bids      []Level
	Asks      []Level
	Timestamp time.Time
}

// BestBid returns the highest bid price, or 0 if there are no bids.
func (b OrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 if there are no asks.
func (b OrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

// Empty reports whether the book has no levels on either side.
func (b OrderBook) Empty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}

// Clone returns a deep copy so the caller may retain it past the next update.
func (b OrderBook) Clone() OrderBook {
	out := b
	out.Bids = append([]Level(nil), b.Bids...)
	out.Asks = append([]Level(nil), b.Asks...)
	return out
}

// RawLevelSet is what a protocol adapter extracts from one frame. Levels may
// be partial, unsorted, or invalid; a zero Timestamp means "use receipt time".
type RawLevelSet struct {
	Symbol    string
	Bids      []Level
	Asks      []Level
	Timestamp time.Time
}

// -----------------------------------------------------------------------------
// Delivery Types
// -----------------------------------------------------------------------------

// SubscriptionKey identifies one logical stream.
type SubscriptionKey struct {
	Venue  VenueID
	Symbol string
}

// String renders the key for logs.
func (k SubscriptionKey) String() string {
	return string(k.Venue) + "/" + k.Symbol
}

// MarketData is the unit delivered to a consumer callback.
type MarketData struct {
	Venue      VenueID
	Book       OrderBook
	LastUpdate time.Time
}

// Callback receives deliveries for a subscription.
type Callback func(MarketData)
