package adapter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rickgao/bookfeed/internal/model"
)

// OKXChannel is the order-book channel subscribed on OKX.
const OKXChannel = "books"

func init() {
	Register(model.OKX, newOKX)
}

// okxRequest is an OKX operation request.
type okxRequest struct {
	Op   string   `json:"op"`
	Args []okxArg `json:"args"`
}

type okxArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// okxFrame covers both event frames and push data frames.
type okxFrame struct {
	Event  string    `json:"event"` // "subscribe", "error"
	Code   string    `json:"code"`
	Msg    string    `json:"msg"`
	Arg    *okxArg   `json:"arg"`
	Action string    `json:"action"` // "snapshot" or "update"
	Data   []okxBook `json:"data"`
}

type okxBook struct {
	Bids []wireLevel     `json:"bids"` // [price, size, deprecated, orders]
	Asks []wireLevel     `json:"asks"`
	Ts   json.RawMessage `json:"ts"` // ms, as a string
}

type okxAdapter struct {
	symbol string
}

func newOKX(opts Options) Adapter {
	return &okxAdapter{symbol: opts.Symbol}
}

func (a *okxAdapter) Venue() model.VenueID { return model.OKX }

func (a *okxAdapter) Open(s Session) error {
	return s.Send(okxRequest{
		Op:   "subscribe",
		Args: []okxArg{{Channel: OKXChannel, InstID: a.symbol}},
	})
}

func (a *okxAdapter) Handle(s Session, frame []byte, receivedAt time.Time) (*model.RawLevelSet, error) {
	if string(frame) == "pong" {
		return nil, nil
	}

	var f okxFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return nil, fmt.Errorf("%w: okx: %v", ErrParse, err)
	}

	switch f.Event {
	case "":
	case "error":
		s.Logger().Warn("okx request rejected", "code", f.Code, "msg", f.Msg)
		return nil, nil
	default:
		s.Logger().Debug("okx event", "event", f.Event)
		return nil, nil
	}

	if len(f.Data) == 0 {
		return nil, nil
	}

	book := f.Data[0]
	return &model.RawLevelSet{
		Symbol:    a.symbol,
		Bids:      parseSide(book.Bids, true),
		Asks:      parseSide(book.Asks, false),
		Timestamp: parseMillis(book.Ts),
	}, nil
}
