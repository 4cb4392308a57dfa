package feed

import (
	"time"

	"github.com/rickgao/bookfeed/internal/connection"
	"github.com/rickgao/bookfeed/internal/model"
)

// Timer names within a subscription's group.
const (
	timerThrottle = "throttle"
	timerFallback = "fallback"
	timerUnknown  = "unknown"
)

// Config configures a Service.
type Config struct {
	ThrottleWindow    time.Duration // Minimum spacing of deliveries after the first
	FallbackTimeout   time.Duration // Wait for a first book before delivering an empty one
	UnknownVenueDelay time.Duration // Delay of the empty book for venues with no adapter
	Connection        connection.ManagerConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ThrottleWindow:    300 * time.Millisecond,
		FallbackTimeout:   20 * time.Second,
		UnknownVenueDelay: time.Second,
		Connection:        connection.DefaultManagerConfig(),
	}
}

// EventRecorder receives subscription lifecycle events.
type EventRecorder interface {
	Record(ev model.LifecycleEvent)
}

// SubscriptionStats describes one subscription.
type SubscriptionStats struct {
	Key           model.SubscriptionKey
	FirstLoaded   bool
	PendingTimers int
	BestBid       float64
	BestAsk       float64
}

// Stats is a point-in-time view of the service.
type Stats struct {
	Subscriptions []SubscriptionStats
	PendingTimers int // Across all subscriptions
	Connection    connection.ManagerStats
}
