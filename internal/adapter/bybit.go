package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/bookfeed/internal/model"
)

// Bybit heartbeat timing.
const (
	BybitFirstPing    = 500 * time.Millisecond
	BybitPingInterval = 15 * time.Second
	BybitDepth        = 50

	bybitPingTimer = "bybit-ping"
)

func init() {
	Register(model.Bybit, newBybit)
}

type bybitRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

type bybitFrame struct {
	Op      string          `json:"op"`
	Success *bool           `json:"success"`
	RetMsg  string          `json:"ret_msg"`
	Topic   string          `json:"topic"`
	Type    string          `json:"type"` // "snapshot" or "delta"
	Ts      json.RawMessage `json:"ts"`
	Data    *bybitBook      `json:"data"`
}

type bybitBook struct {
	Symbol string          `json:"s"`
	Bids   []wireLevel     `json:"b"`
	Asks   []wireLevel     `json:"a"`
	Ts     json.RawMessage `json:"ts"`
}

type bybitAdapter struct {
	symbol string
	topic  string
}

func newBybit(opts Options) Adapter {
	return &bybitAdapter{
		symbol: opts.Symbol,
		topic:  BybitTopic(opts.Symbol),
	}
}

// BybitSymbol converts "BTC-USDT" to Bybit's "BTCUSDT".
func BybitSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "-", "")
}

// BybitTopic returns the order-book topic for symbol.
func BybitTopic(symbol string) string {
	return fmt.Sprintf("orderbook.%d.%s", BybitDepth, BybitSymbol(symbol))
}

func (a *bybitAdapter) Venue() model.VenueID { return model.Bybit }

func (a *bybitAdapter) Open(s Session) error {
	if err := s.Send(bybitRequest{Op: "subscribe", Args: []string{a.topic}}); err != nil {
		return err
	}
	s.Schedule(bybitPingTimer, BybitFirstPing, func() { a.ping(s) })
	return nil
}

func (a *bybitAdapter) ping(s Session) {
	if err := s.Send(bybitRequest{Op: "ping"}); err != nil {
		s.Logger().Debug("bybit ping failed", "error", err)
	}
}

func (a *bybitAdapter) Handle(s Session, frame []byte, receivedAt time.Time) (*model.RawLevelSet, error) {
	var f bybitFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return nil, fmt.Errorf("%w: bybit: %v", ErrParse, err)
	}

	// Spot answers pings with op "ping" and ret_msg "pong"; other
	// categories use op "pong".
	if f.Op == "pong" || f.RetMsg == "pong" {
		s.Schedule(bybitPingTimer, BybitPingInterval, func() { a.ping(s) })
		return nil, nil
	}

	if f.Success != nil {
		if !*f.Success {
			s.Logger().Warn("bybit request rejected", "op", f.Op, "ret_msg", f.RetMsg)
		}
		return nil, nil
	}

	if !strings.Contains(f.Topic, "orderbook") || f.Data == nil {
		return nil, nil
	}

	ts := parseMillis(f.Data.Ts)
	if ts.IsZero() {
		ts = parseMillis(f.Ts)
	}

	return &model.RawLevelSet{
		Symbol:    a.symbol,
		Bids:      parseSide(f.Data.Bids, true),
		Asks:      parseSide(f.Data.Asks, false),
		Timestamp: ts,
	}, nil
}
