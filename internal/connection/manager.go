package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/bookfeed/internal/adapter"
	"github.com/rickgao/bookfeed/internal/loop"
	"github.com/rickgao/bookfeed/internal/metrics"
	"github.com/rickgao/bookfeed/internal/model"
	"github.com/rickgao/bookfeed/internal/venue"
)

// Sink receives level sets decoded from live sessions. It is called on the
// event loop.
type Sink interface {
	HandleLevels(key model.SubscriptionKey, set model.RawLevelSet, receivedAt time.Time)
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(key model.SubscriptionKey, set model.RawLevelSet, receivedAt time.Time)

func (f SinkFunc) HandleLevels(key model.SubscriptionKey, set model.RawLevelSet, receivedAt time.Time) {
	f(key, set, receivedAt)
}

// EventRecorder receives session lifecycle events.
type EventRecorder interface {
	Record(ev model.LifecycleEvent)
}

// Manager owns one streaming session per venue. Every method must be called
// on the event loop.
type Manager interface {
	// Open starts a session for venue unless one is already connecting or
	// live, in which case it returns false. It returns ErrUnknownVenue if the
	// venue has no catalog entry or no registered adapter.
	Open(venue model.VenueID, symbol string) (bool, error)

	// Close tears down the venue's session, if any, and clears its
	// connected flag.
	Close(venue model.VenueID)

	// CloseAll tears down every session.
	CloseAll()

	// Active reports whether the venue's session is connecting or live.
	Active(venue model.VenueID) bool

	// State returns the venue's session state.
	State(venue model.VenueID) State

	// Connected returns the venue's connected flag.
	Connected(venue model.VenueID) bool

	// MarkFirstLoad sets the connected flag after a first delivery.
	MarkFirstLoad(venue model.VenueID)

	// MarkNoData clears the connected flag after a fallback delivery.
	MarkNoData(venue model.VenueID)

	// Venues returns the catalog with live connected flags.
	Venues() []model.Venue

	// Stats returns per-session statistics.
	Stats() ManagerStats
}

// ManagerOption configures a manager.
type ManagerOption func(*manager)

// WithMetrics records session metrics to m.
func WithMetrics(m *metrics.Metrics) ManagerOption {
	return func(mg *manager) {
		mg.metrics = m
	}
}

// WithRecorder sends session lifecycle events to r.
func WithRecorder(r EventRecorder) ManagerOption {
	return func(mg *manager) {
		mg.recorder = r
	}
}

// session is one streaming connection to a venue. It implements
// adapter.Session.
type session struct {
	m       *manager
	id      uuid.UUID
	venue   model.Venue
	symbol  string
	adapter adapter.Adapter
	client  Client
	logger  *slog.Logger

	state    State
	openedAt time.Time
	frames   int64
	dropped  int64

	timers *loop.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// manager implements the Manager interface.
type manager struct {
	cfg      ManagerConfig
	catalog  *venue.Catalog
	loop     *loop.Loop
	sink     Sink
	logger   *slog.Logger
	metrics  *metrics.Metrics
	recorder EventRecorder

	sessions  map[model.VenueID]*session
	connected map[model.VenueID]bool
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, catalog *venue.Catalog, lp *loop.Loop, sink Sink, logger *slog.Logger, opts ...ManagerOption) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &manager{
		cfg:       cfg,
		catalog:   catalog,
		loop:      lp,
		sink:      sink,
		logger:    logger,
		sessions:  make(map[model.VenueID]*session),
		connected: make(map[model.VenueID]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts a session for the venue.
func (m *manager) Open(id model.VenueID, symbol string) (bool, error) {
	if m.Active(id) {
		return false, nil
	}

	v, ok := m.catalog.Lookup(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownVenue, id)
	}
	factory, ok := adapter.Lookup(id)
	if !ok {
		return false, fmt.Errorf("%w: no adapter for %s", ErrUnknownVenue, id)
	}

	clientCfg := m.cfg.Client
	clientCfg.URL = v.WSURL
	clientCfg.HandshakeTimeout = v.ConnectTimeout

	s := &session{
		m:      m,
		id:     uuid.New(),
		venue:  v,
		symbol: symbol,
		adapter: factory(adapter.Options{
			Symbol:       symbol,
			RefetchRate:  m.cfg.RefetchRate,
			RefetchBurst: m.cfg.RefetchBurst,
		}),
		timers: m.loop.NewGroup(),
	}
	s.logger = m.logger.With("venue", string(id), "symbol", symbol, "session", s.id.String())
	s.client = NewClient(clientCfg, s.logger)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	m.sessions[id] = s
	m.setState(s, StateConnecting)

	dialCtx, dialCancel := context.WithTimeout(s.ctx, v.ConnectTimeout)
	go func() {
		defer dialCancel()
		err := s.client.Connect(dialCtx)
		if !m.loop.Post(func() { m.onDialed(s, err) }) && err == nil {
			s.client.Close()
		}
	}()

	s.logger.Info("connecting", "url", v.WSURL, "timeout", v.ConnectTimeout)
	return true, nil
}

// onDialed completes the Connecting transition.
func (m *manager) onDialed(s *session, err error) {
	if !m.current(s) || s.state != StateConnecting {
		if err == nil {
			go s.client.Close()
		}
		return
	}

	if err != nil {
		s.logger.Warn("connect failed", "error", err)
		m.record(s, model.EventSessionFailed, 0, err.Error())
		m.shutdown(s)
		return
	}

	s.openedAt = m.loop.Clock().Now()
	m.setState(s, StateLive)
	m.setConnected(s.venue.ID, true)
	m.record(s, model.EventSessionOpened, 0, "")
	s.logger.Info("session live")

	go m.pump(s)

	if err := s.adapter.Open(s); err != nil {
		s.logger.Warn("handshake failed", "error", err)
	}
}

// pump forwards client output onto the loop until the session ends.
func (m *manager) pump(s *session) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.client.Messages():
			m.loop.Post(func() { m.onFrame(s, msg) })
		case err := <-s.client.Errors():
			m.loop.Post(func() { m.onReadError(s, err) })
			return
		}
	}
}

// onFrame routes one inbound frame through the session's adapter.
func (m *manager) onFrame(s *session, msg TimestampedMessage) {
	if !m.current(s) || s.state != StateLive {
		return
	}

	s.frames++
	m.metrics.FrameReceived(s.venue.ID)

	set, err := s.adapter.Handle(s, msg.Data, msg.ReceivedAt)
	if err != nil {
		if errors.Is(err, adapter.ErrParse) {
			s.dropped++
			m.metrics.ParseError(s.venue.ID)
			s.logger.Debug("dropping malformed frame", "error", err, "bytes", len(msg.Data))
			return
		}
		s.logger.Warn("adapter error", "error", err)
		return
	}
	if set == nil {
		return
	}

	key := model.SubscriptionKey{Venue: s.venue.ID, Symbol: s.symbol}
	m.sink.HandleLevels(key, *set, msg.ReceivedAt)
}

// onReadError handles the end of a live session's read loop.
func (m *manager) onReadError(s *session, err error) {
	if !m.current(s) || s.state == StateClosed {
		return
	}

	code := CloseCode(err)
	if IsNormalClose(err) {
		s.logger.Info("session closed by venue", "code", code)
	} else {
		s.logger.Warn("session lost", "code", code, "error", err)
	}

	m.record(s, model.EventSessionClosed, code, errString(err))
	m.shutdown(s)
}

// Close tears down the venue's session.
func (m *manager) Close(id model.VenueID) {
	s, ok := m.sessions[id]
	if ok {
		if s.state != StateClosed {
			m.record(s, model.EventSessionClosed, 1000, "disconnect")
			m.shutdown(s)
		}
		delete(m.sessions, id)
		s.logger.Info("session removed")
	}
	m.setConnected(id, false)
}

// CloseAll tears down every session.
func (m *manager) CloseAll() {
	for id := range m.sessions {
		m.Close(id)
	}
}

// shutdown moves s to Closed, cancels its timers and releases the socket.
// The session stays in the map so its state remains observable.
func (m *manager) shutdown(s *session) {
	m.setState(s, StateClosed)
	m.setConnected(s.venue.ID, false)
	s.timers.CancelAll()
	s.cancel()
	go s.client.Close()
}

func (m *manager) current(s *session) bool {
	return m.sessions[s.venue.ID] == s
}

func (m *manager) Active(id model.VenueID) bool {
	s, ok := m.sessions[id]
	return ok && (s.state == StateConnecting || s.state == StateLive)
}

func (m *manager) State(id model.VenueID) State {
	if s, ok := m.sessions[id]; ok {
		return s.state
	}
	return StateIdle
}

func (m *manager) Connected(id model.VenueID) bool {
	return m.connected[id]
}

func (m *manager) MarkFirstLoad(id model.VenueID) {
	m.setConnected(id, true)
}

func (m *manager) MarkNoData(id model.VenueID) {
	m.setConnected(id, false)
}

func (m *manager) Venues() []model.Venue {
	venues := m.catalog.List()
	for i := range venues {
		venues[i].Connected = m.connected[venues[i].ID]
	}
	return venues
}

func (m *manager) Stats() ManagerStats {
	var stats ManagerStats
	for _, id := range m.catalog.IDs() {
		s, ok := m.sessions[id]
		if !ok {
			continue
		}
		stats.Sessions = append(stats.Sessions, SessionStats{
			Venue:     id,
			Symbol:    s.symbol,
			SessionID: s.id,
			State:     s.state,
			Connected: m.connected[id],
			OpenedAt:  s.openedAt,
			Frames:    s.frames,
			Dropped:   s.dropped,
			Overflows: s.client.Overflows(),
		})
		switch s.state {
		case StateLive:
			stats.Live++
		case StateConnecting:
			stats.Connecting++
		}
	}
	return stats
}

func (m *manager) setState(s *session, state State) {
	s.state = state
	m.metrics.SetSessionState(s.venue.ID, int(state))
}

func (m *manager) setConnected(id model.VenueID, connected bool) {
	m.connected[id] = connected
	m.metrics.SetConnected(id, connected)
}

func (m *manager) record(s *session, kind model.EventKind, code int, detail string) {
	if m.recorder == nil {
		return
	}
	ev := model.NewLifecycleEvent(kind, s.venue.ID, s.symbol, s.id, m.loop.Clock().Now())
	ev.CloseCode = code
	ev.Detail = detail
	m.recorder.Record(ev)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// -----------------------------------------------------------------------------
// adapter.Session
// -----------------------------------------------------------------------------

func (s *session) Symbol() string { return s.symbol }

func (s *session) Send(v any) error {
	if err := s.client.SendJSON(v); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	return nil
}

func (s *session) Schedule(name string, d time.Duration, f func()) {
	s.timers.Schedule(name, d, func() {
		if !s.m.current(s) || s.state != StateLive {
			return
		}
		f()
	})
}

func (s *session) Now() time.Time { return s.m.loop.Clock().Now() }

func (s *session) Logger() *slog.Logger { return s.logger }
