package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/bookfeed/internal/model"
)

// Deribit JSON-RPC correlation ids.
const (
	deribitInstrumentsID = 0
	deribitSubscribeID   = 1
	deribitResubscribeID = 2
	deribitSnapshotID    = 3
)

const (
	// DeribitFallbackInstrument is used when discovery finds no active perpetual.
	DeribitFallbackInstrument = "BTC-PERPETUAL"

	// DeribitSnapshotDepth is the depth requested from public/get_order_book.
	DeribitSnapshotDepth = 20

	deribitRefetchTimer = "deribit-refetch"
)

func init() {
	Register(model.Deribit, newDeribit)
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  any             `json:"params,omitempty"`
}

type rpcFrame struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Params *rpcParams      `json:"params"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type rpcParams struct {
	ID      json.RawMessage `json:"id"`
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Data    *deribitBook    `json:"data"`
}

type deribitBook struct {
	Type           string          `json:"type"` // "snapshot" or "change"
	InstrumentName string          `json:"instrument_name"`
	Timestamp      json.RawMessage `json:"timestamp"`
	Bids           []wireLevel     `json:"bids"`
	Asks           []wireLevel     `json:"asks"`
}

type deribitInstrument struct {
	InstrumentName string `json:"instrument_name"`
	IsActive       bool   `json:"is_active"`
}

type deribitAdapter struct {
	symbol     string
	currency   string
	instrument string

	limiter        *rate.Limiter
	refetchPending bool
}

func newDeribit(opts Options) Adapter {
	limit := rate.Inf
	if opts.RefetchRate > 0 {
		limit = rate.Limit(opts.RefetchRate)
	}
	burst := opts.RefetchBurst
	if burst < 1 {
		burst = 1
	}

	return &deribitAdapter{
		symbol:     opts.Symbol,
		currency:   DeribitCurrency(opts.Symbol),
		instrument: DeribitFallbackInstrument,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// DeribitCurrency returns the base currency of a "BASE-QUOTE" symbol, or BTC.
func DeribitCurrency(symbol string) string {
	base, _, _ := strings.Cut(symbol, "-")
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		return "BTC"
	}
	return base
}

// DeribitPlaceholder returns the fixed book emitted when both the subscription
// and the direct snapshot request fail.
func DeribitPlaceholder(symbol string) model.RawLevelSet {
	set := model.RawLevelSet{
		Symbol: symbol,
		Bids:   make([]model.Level, model.MaxDepth),
		Asks:   make([]model.Level, model.MaxDepth),
	}
	for i := 0; i < model.MaxDepth; i++ {
		qty := 0.1 + 0.25*float64(i)
		set.Bids[i] = model.Level{Price: 100000 - 10*float64(i), Quantity: qty}
		set.Asks[i] = model.Level{Price: 100010 + 10*float64(i), Quantity: qty}
	}
	return set
}

func (a *deribitAdapter) Venue() model.VenueID { return model.Deribit }

func (a *deribitAdapter) Open(s Session) error {
	return a.call(s, deribitInstrumentsID, "public/get_instruments", map[string]any{
		"currency": a.currency,
		"kind":     "future",
	})
}

func (a *deribitAdapter) call(s Session, id int64, method string, params any) error {
	return s.Send(rpcRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(fmt.Sprint(id)),
		Method:  method,
		Params:  params,
	})
}

func (a *deribitAdapter) Handle(s Session, frame []byte, receivedAt time.Time) (*model.RawLevelSet, error) {
	var f rpcFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return nil, fmt.Errorf("%w: deribit: %v", ErrParse, err)
	}

	if f.Method == "heartbeat" {
		a.answerHeartbeat(s, f.Params)
		return nil, nil
	}

	id := int64(-1)
	if f.ID != nil {
		id = *f.ID
	}

	if hasPayload(f.Result) {
		switch id {
		case deribitInstrumentsID:
			return nil, a.subscribe(s, f.Result)
		case deribitSubscribeID, deribitResubscribeID:
			return nil, nil
		}
	}

	if f.Error != nil {
		return a.handleError(s, id, f.Error), nil
	}

	if f.Params != nil && f.Params.Data != nil {
		data := f.Params.Data
		if data.Type == "change" {
			instrument := data.InstrumentName
			if instrument == "" {
				instrument = a.instrument
			}
			a.requestRefetch(s, instrument)
			return nil, nil
		}
		return a.levelSet(data), nil
	}

	if id == deribitSnapshotID && hasPayload(f.Result) {
		var book deribitBook
		if err := json.Unmarshal(f.Result, &book); err != nil {
			return nil, fmt.Errorf("%w: deribit order book: %v", ErrParse, err)
		}
		return a.levelSet(&book), nil
	}

	return nil, nil
}

func (a *deribitAdapter) answerHeartbeat(s Session, p *rpcParams) {
	req := rpcRequest{JSONRPC: "2.0", Method: "public/test"}
	if p != nil && hasPayload(p.ID) {
		req.ID = p.ID
	}
	if err := s.Send(req); err != nil {
		s.Logger().Debug("deribit heartbeat reply failed", "error", err)
	}
}

// subscribe picks an active perpetual from the instruments result and
// subscribes to its book channel.
func (a *deribitAdapter) subscribe(s Session, result json.RawMessage) error {
	var instruments []deribitInstrument
	if err := json.Unmarshal(result, &instruments); err != nil {
		return fmt.Errorf("%w: deribit instruments: %v", ErrParse, err)
	}

	a.instrument = DeribitFallbackInstrument
	found := false
	for _, inst := range instruments {
		if strings.Contains(inst.InstrumentName, "PERPETUAL") && inst.IsActive {
			a.instrument = inst.InstrumentName
			found = true
			break
		}
	}
	if !found {
		s.Logger().Warn("deribit: no active perpetual, using fallback",
			"currency", a.currency,
			"instrument", a.instrument,
		)
	}

	return a.call(s, deribitSubscribeID, "public/subscribe", map[string]any{
		"channels": []string{"book." + a.instrument + ".100ms"},
	})
}

func (a *deribitAdapter) handleError(s Session, id int64, e *rpcError) *model.RawLevelSet {
	s.Logger().Warn("deribit request failed",
		"id", id,
		"code", e.Code,
		"message", e.Message,
	)

	switch id {
	case deribitSubscribeID:
		a.fetchSnapshot(s, a.instrument)
	case deribitSnapshotID:
		s.Logger().Warn("deribit: snapshot fallback failed, emitting placeholder book")
		set := DeribitPlaceholder(a.symbol)
		set.Timestamp = s.Now()
		return &set
	}
	return nil
}

func (a *deribitAdapter) fetchSnapshot(s Session, instrument string) {
	err := a.call(s, deribitSnapshotID, "public/get_order_book", map[string]any{
		"instrument_name": instrument,
		"depth":           DeribitSnapshotDepth,
	})
	if err != nil {
		s.Logger().Debug("deribit snapshot request failed", "error", err)
	}
}

// requestRefetch answers a delta with a snapshot request. Requests above the
// limiter's rate are deferred, and at most one deferred request is pending.
func (a *deribitAdapter) requestRefetch(s Session, instrument string) {
	if a.refetchPending {
		return
	}

	now := s.Now()
	r := a.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if !r.OK() || delay == rate.InfDuration {
		return
	}
	if delay <= 0 {
		a.fetchSnapshot(s, instrument)
		return
	}

	a.refetchPending = true
	s.Schedule(deribitRefetchTimer, delay, func() {
		a.refetchPending = false
		a.fetchSnapshot(s, instrument)
	})
}

func (a *deribitAdapter) levelSet(b *deribitBook) *model.RawLevelSet {
	return &model.RawLevelSet{
		Symbol:    a.symbol,
		Bids:      parseSide(b.Bids, true),
		Asks:      parseSide(b.Asks, false),
		Timestamp: parseMillis(b.Timestamp),
	}
}
