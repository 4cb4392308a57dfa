package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rickgao/bookfeed/internal/connection"
	"github.com/rickgao/bookfeed/internal/loop"
	"github.com/rickgao/bookfeed/internal/metrics"
	"github.com/rickgao/bookfeed/internal/model"
	"github.com/rickgao/bookfeed/internal/venue"
)

// ManagerFactory builds the connection manager that feeds a service.
type ManagerFactory func(sink connection.Sink) connection.Manager

// Option configures a Service.
type Option func(*Service)

// WithMetrics records feed and session metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRecorder sends lifecycle events to r.
func WithRecorder(r EventRecorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithManager replaces the default connection manager.
func WithManager(f ManagerFactory) Option {
	return func(s *Service) {
		s.newManager = f
	}
}

// Service manages subscriptions and delivers reconciled books.
type Service struct {
	cfg      Config
	loop     *loop.Loop
	logger   *slog.Logger
	metrics  *metrics.Metrics
	recorder EventRecorder

	newManager ManagerFactory
	manager    connection.Manager
	registry   *registry
}

// NewService creates a Service on lp. The caller runs lp.
func NewService(cfg Config, catalog *venue.Catalog, lp *loop.Loop, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:      cfg,
		loop:     lp,
		logger:   logger,
		registry: newRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newManager == nil {
		s.newManager = func(sink connection.Sink) connection.Manager {
			mopts := []connection.ManagerOption{connection.WithMetrics(s.metrics)}
			if s.recorder != nil {
				mopts = append(mopts, connection.WithRecorder(s.recorder))
			}
			return connection.NewManager(cfg.Connection, catalog, lp, sink, logger, mopts...)
		}
	}
	s.manager = s.newManager(s)
	return s
}

// Venues returns the venue catalog with current connected flags.
func (s *Service) Venues(ctx context.Context) ([]model.Venue, error) {
	var venues []model.Venue
	err := s.loop.Do(ctx, func() {
		venues = s.manager.Venues()
	})
	return venues, err
}

// Connect subscribes cb to symbol on venue. It does nothing while the
// venue's session is connecting or live. Otherwise the venue's previous
// subscriptions are torn down and a new session is opened.
//
// A venue with no adapter still gets a subscription; it receives an empty
// book after the unknown-venue delay.
func (s *Service) Connect(ctx context.Context, venueID model.VenueID, symbol string, cb model.Callback) error {
	if cb == nil {
		return errors.New("nil callback")
	}

	var err error
	doErr := s.loop.Do(ctx, func() {
		err = s.connect(venueID, symbol, cb)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (s *Service) connect(venueID model.VenueID, symbol string, cb model.Callback) error {
	key := model.SubscriptionKey{Venue: venueID, Symbol: symbol}
	logger := s.logger.With("venue", string(venueID), "symbol", symbol)

	if s.manager.Active(venueID) {
		logger.Debug("venue already active, ignoring connect")
		return nil
	}

	// Clear whatever an earlier session on this venue left behind.
	s.teardown(venueID)

	sub := &subscription{
		id:       uuid.New(),
		key:      key,
		callback: cb,
		timers:   s.loop.NewGroup(),
	}
	s.registry.add(sub)
	s.metrics.SetSubscriptions(s.registry.len())
	s.record(sub, model.EventSubscriptionCreated)

	opened, err := s.manager.Open(venueID, symbol)
	switch {
	case errors.Is(err, connection.ErrUnknownVenue):
		logger.Warn("unknown venue, delivering empty book", "delay", s.cfg.UnknownVenueDelay)
		sub.timers.Schedule(timerUnknown, s.cfg.UnknownVenueDelay, func() {
			s.deliverEmpty(sub, metrics.DeliveryUnknownVenue, model.EventUnknownVenue)
		})
		return nil
	case err != nil:
		s.registry.remove(key)
		s.metrics.SetSubscriptions(s.registry.len())
		return fmt.Errorf("open %s: %w", venueID, err)
	}

	sub.timers.Schedule(timerFallback, s.cfg.FallbackTimeout, func() {
		if sub.firstLoad {
			return
		}
		logger.Warn("no data before fallback timeout", "timeout", s.cfg.FallbackTimeout)
		s.manager.MarkNoData(venueID)
		s.deliverEmpty(sub, metrics.DeliveryFallback, model.EventFallback)
	})

	logger.Info("subscribed", "subscription", sub.id.String(), "opened", opened)
	return nil
}

// Disconnect closes the venue's session and removes its subscriptions.
func (s *Service) Disconnect(ctx context.Context, venueID model.VenueID) error {
	return s.loop.Do(ctx, func() {
		s.manager.Close(venueID)
		s.teardown(venueID)
	})
}

// DisconnectAll closes every session and removes every subscription. When it
// returns no subscription timers are pending.
func (s *Service) DisconnectAll(ctx context.Context) error {
	return s.loop.Do(ctx, func() {
		s.manager.CloseAll()
		s.teardown("")
	})
}

// Stats returns a snapshot of subscriptions, timers and sessions.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.loop.Do(ctx, func() {
		for _, key := range s.registry.keys("") {
			sub, _ := s.registry.get(key)
			ss := SubscriptionStats{
				Key:           key,
				FirstLoaded:   sub.firstLoad,
				PendingTimers: sub.timers.Len(),
			}
			if sub.last != nil {
				ss.BestBid = sub.last.BestBid()
				ss.BestAsk = sub.last.BestAsk()
			}
			stats.Subscriptions = append(stats.Subscriptions, ss)
		}
		stats.PendingTimers = s.registry.pendingTimers()
		stats.Connection = s.manager.Stats()
	})
	return stats, err
}

// teardown removes the subscriptions of venueID, or all of them when
// venueID is empty.
func (s *Service) teardown(venueID model.VenueID) {
	for _, key := range s.registry.keys(venueID) {
		sub, ok := s.registry.remove(key)
		if !ok {
			continue
		}
		s.record(sub, model.EventSubscriptionRemoved)
		s.logger.Debug("subscription removed", "venue", string(key.Venue), "symbol", key.Symbol)
	}
	s.metrics.SetSubscriptions(s.registry.len())
}

func (s *Service) record(sub *subscription, kind model.EventKind) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(model.NewLifecycleEvent(kind, sub.key.Venue, sub.key.Symbol, sub.id, s.loop.Clock().Now()))
}
