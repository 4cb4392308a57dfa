package feed

import (
	"sort"

	"github.com/google/uuid"

	"github.com/rickgao/bookfeed/internal/loop"
	"github.com/rickgao/bookfeed/internal/model"
)

// subscription is the state held for one (venue, symbol) stream. It is
// created and destroyed as a unit.
type subscription struct {
	id        uuid.UUID
	key       model.SubscriptionKey
	callback  model.Callback
	last      *model.OrderBook
	firstLoad bool
	timers    *loop.Group
}

// registry maps subscription keys to their state. Loop-only.
type registry struct {
	subs map[model.SubscriptionKey]*subscription
}

func newRegistry() *registry {
	return &registry{subs: make(map[model.SubscriptionKey]*subscription)}
}

func (r *registry) get(key model.SubscriptionKey) (*subscription, bool) {
	sub, ok := r.subs[key]
	return sub, ok
}

// add stores sub under its key and returns any subscription it replaced.
func (r *registry) add(sub *subscription) *subscription {
	prev := r.subs[sub.key]
	r.subs[sub.key] = sub
	return prev
}

// remove cancels the subscription's timers and deletes it.
func (r *registry) remove(key model.SubscriptionKey) (*subscription, bool) {
	sub, ok := r.subs[key]
	if !ok {
		return nil, false
	}
	sub.timers.CancelAll()
	delete(r.subs, key)
	return sub, true
}

// keys returns the keys for venue, or every key when venue is empty, sorted.
func (r *registry) keys(venue model.VenueID) []model.SubscriptionKey {
	out := make([]model.SubscriptionKey, 0, len(r.subs))
	for k := range r.subs {
		if venue == "" || k.Venue == venue {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Venue != out[j].Venue {
			return out[i].Venue < out[j].Venue
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func (r *registry) len() int {
	return len(r.subs)
}

func (r *registry) pendingTimers() int {
	n := 0
	for _, sub := range r.subs {
		n += sub.timers.Len()
	}
	return n
}
