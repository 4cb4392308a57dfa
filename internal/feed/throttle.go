package feed

import (
	"time"

	"github.com/rickgao/bookfeed/internal/book"
	"github.com/rickgao/bookfeed/internal/metrics"
	"github.com/rickgao/bookfeed/internal/model"
)

// HandleLevels reconciles a level set into the subscription's book and
// schedules its delivery. It implements connection.Sink.
func (s *Service) HandleLevels(key model.SubscriptionKey, set model.RawLevelSet, receivedAt time.Time) {
	sub, ok := s.registry.get(key)
	if !ok {
		s.logger.Debug("levels for unknown subscription", "venue", string(key.Venue), "symbol", key.Symbol)
		return
	}

	next := book.Reconcile(set, sub.last, receivedAt)
	significant := book.IsSignificantChange(sub.last, next)
	sub.last = &next

	if !significant {
		s.metrics.Discarded(key.Venue)
		return
	}

	if !sub.firstLoad {
		sub.firstLoad = true
		sub.timers.Cancel(timerFallback)
		s.manager.MarkFirstLoad(key.Venue)
		s.record(sub, model.EventFirstLoad)
		s.deliver(sub, next, metrics.DeliveryFirst)
		return
	}

	sub.timers.Schedule(timerThrottle, s.cfg.ThrottleWindow, func() {
		if sub.last == nil {
			return
		}
		s.deliver(sub, *sub.last, metrics.DeliveryThrottled)
	})
}

// deliverEmpty hands the subscriber a book with no levels and marks its
// first load done.
func (s *Service) deliverEmpty(sub *subscription, kind metrics.DeliveryKind, event model.EventKind) {
	sub.firstLoad = true
	s.record(sub, event)
	s.deliver(sub, model.OrderBook{
		Symbol:    sub.key.Symbol,
		Bids:      []model.Level{},
		Asks:      []model.Level{},
		Timestamp: s.loop.Clock().Now(),
	}, kind)
}

// deliver invokes the callback with a copy of b. A panicking callback is
// logged and does not affect the subscription.
func (s *Service) deliver(sub *subscription, b model.OrderBook, kind metrics.DeliveryKind) {
	s.metrics.Delivered(sub.key.Venue, kind)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("callback panicked",
				"venue", string(sub.key.Venue),
				"symbol", sub.key.Symbol,
				"panic", r,
			)
		}
	}()

	sub.callback(model.MarketData{
		Venue:      sub.key.Venue,
		Book:       b.Clone(),
		LastUpdate: s.loop.Clock().Now(),
	})
}
