package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/bookfeed/internal/model"
)

func openDeribit(t *testing.T, opts Options) (*fakeSession, Adapter) {
	t.Helper()
	s := newFakeSession(opts.Symbol)
	a := newDeribit(opts)
	require.NoError(t, a.Open(s))
	return s, a
}

func handle(t *testing.T, a Adapter, s Session, frame string) *model.RawLevelSet {
	t.Helper()
	set, err := a.Handle(s, []byte(frame), time.Now())
	require.NoError(t, err)
	return set
}

func TestDeribitCurrency(t *testing.T) {
	assert.Equal(t, "BTC", DeribitCurrency("BTC-USDT"))
	assert.Equal(t, "ETH", DeribitCurrency("eth-usd"))
	assert.Equal(t, "BTC", DeribitCurrency(""))
}

func TestDeribit_DiscoveryAndSubscribe(t *testing.T) {
	s, a := openDeribit(t, Options{Symbol: "ETH-USDT"})

	assert.JSONEq(t,
		`{"jsonrpc":"2.0","id":0,"method":"public/get_instruments","params":{"currency":"ETH","kind":"future"}}`,
		string(s.sent[0]))

	set := handle(t, a, s, `{"jsonrpc":"2.0","id":0,"result":[
		{"instrument_name":"ETH-27DEC24","is_active":true},
		{"instrument_name":"ETH-PERPETUAL","is_active":false},
		{"instrument_name":"ETH-PERPETUAL-V2","is_active":true}]}`)
	assert.Nil(t, set)

	assert.JSONEq(t,
		`{"jsonrpc":"2.0","id":1,"method":"public/subscribe","params":{"channels":["book.ETH-PERPETUAL-V2.100ms"]}}`,
		string(s.sent[1]))

	// Subscription confirmation is ignored.
	assert.Nil(t, handle(t, a, s, `{"jsonrpc":"2.0","id":1,"result":["book.ETH-PERPETUAL-V2.100ms"]}`))
	assert.Len(t, s.sent, 2)
}

func TestDeribit_DiscoveryFallback(t *testing.T) {
	s, a := openDeribit(t, Options{Symbol: "BTC-USDT"})

	handle(t, a, s, `{"jsonrpc":"2.0","id":0,"result":[]}`)

	params := s.lastSent(t)["params"].(map[string]any)
	assert.Equal(t, []any{"book.BTC-PERPETUAL.100ms"}, params["channels"])
}

func TestDeribit_Heartbeat(t *testing.T) {
	s, a := openDeribit(t, Options{Symbol: "BTC-USDT"})

	assert.Nil(t, handle(t, a, s, `{"jsonrpc":"2.0","method":"heartbeat","params":{"type":"test_request","id":42}}`))
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":42,"method":"public/test"}`, string(s.sent[len(s.sent)-1]))
}

func TestDeribit_SnapshotNotification(t *testing.T) {
	s, a := openDeribit(t, Options{Symbol: "BTC-USDT"})

	set := handle(t, a, s, `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"book.BTC-PERPETUAL.100ms",
		"data":{"type":"snapshot","timestamp":1700000000500,"instrument_name":"BTC-PERPETUAL","change_id":1,
		"bids":[["new",42000.5,10],["new",42001,5]],"asks":[["new",42002,7],["delete",42003,0]]}}}`)
	require.NotNil(t, set)

	assert.Equal(t, "BTC-USDT", set.Symbol)
	assert.Equal(t, []model.Level{{Price: 42001, Quantity: 5}, {Price: 42000.5, Quantity: 10}}, set.Bids)
	assert.Equal(t, []model.Level{{Price: 42002, Quantity: 7}}, set.Asks)
	assert.Equal(t, time.UnixMilli(1700000000500), set.Timestamp)
}

func TestDeribit_ChangeTriggersRefetch(t *testing.T) {
	s, a := openDeribit(t, Options{Symbol: "BTC-USDT"})
	sentBefore := len(s.sent)

	set := handle(t, a, s, `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"book.BTC-PERPETUAL.100ms",
		"data":{"type":"change","instrument_name":"BTC-PERPETUAL","bids":[["change",42000,1]],"asks":[]}}}`)
	assert.Nil(t, set, "deltas are not applied in place")

	require.Len(t, s.sent, sentBefore+1)
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","id":3,"method":"public/get_order_book","params":{"instrument_name":"BTC-PERPETUAL","depth":20}}`,
		string(s.sent[sentBefore]))

	set = handle(t, a, s, `{"jsonrpc":"2.0","id":3,"result":{"timestamp":1700000000700,"instrument_name":"BTC-PERPETUAL",
		"bids":[[42000,1],[41999.5,2]],"asks":[[42000.5,3]]}}`)
	require.NotNil(t, set)
	assert.Equal(t, []model.Level{{Price: 42000, Quantity: 1}, {Price: 41999.5, Quantity: 2}}, set.Bids)
	assert.Equal(t, time.UnixMilli(1700000000700), set.Timestamp)
}

func TestDeribit_RefetchRateLimited(t *testing.T) {
	s, a := openDeribit(t, Options{Symbol: "BTC-USDT", RefetchRate: 2, RefetchBurst: 1})
	change := `{"jsonrpc":"2.0","method":"subscription","params":{"data":{"type":"change","instrument_name":"BTC-PERPETUAL"}}}`
	sentBefore := len(s.sent)

	handle(t, a, s, change) // uses the burst token
	handle(t, a, s, change) // deferred
	handle(t, a, s, change) // coalesced into the deferred request

	assert.Len(t, s.sent, sentBefore+1)
	timer, ok := s.timers[deribitRefetchTimer]
	require.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, timer.d)

	s.now = s.now.Add(timer.d)
	s.fire(t, deribitRefetchTimer)
	assert.Len(t, s.sent, sentBefore+2)
	assert.Equal(t, "public/get_order_book", s.lastSent(t)["method"])
}

func TestDeribit_SubscriptionErrorFallbacks(t *testing.T) {
	s, a := openDeribit(t, Options{Symbol: "BTC-USDT"})
	handle(t, a, s, `{"jsonrpc":"2.0","id":0,"result":[{"instrument_name":"BTC-PERPETUAL","is_active":true}]}`)

	// Subscribe rejected: fall back to a direct snapshot request.
	set := handle(t, a, s, `{"jsonrpc":"2.0","id":1,"error":{"code":11050,"message":"bad_request"}}`)
	assert.Nil(t, set)
	assert.Equal(t, "public/get_order_book", s.lastSent(t)["method"])

	// Snapshot also rejected: placeholder book.
	set = handle(t, a, s, `{"jsonrpc":"2.0","id":3,"error":{"code":10009,"message":"not_found"}}`)
	require.NotNil(t, set)
	require.Len(t, set.Bids, model.MaxDepth)
	require.Len(t, set.Asks, model.MaxDepth)
	assert.Equal(t, 100000.0, set.Bids[0].Price)
	assert.Equal(t, 99810.0, set.Bids[19].Price)
	assert.Equal(t, 100010.0, set.Asks[0].Price)
	assert.Equal(t, 100200.0, set.Asks[19].Price)
	assert.Equal(t, s.now, set.Timestamp)

	// Deterministic across calls.
	assert.Equal(t, DeribitPlaceholder("BTC-USDT"), DeribitPlaceholder("BTC-USDT"))
}

func TestDeribit_Malformed(t *testing.T) {
	s, a := openDeribit(t, Options{Symbol: "BTC-USDT"})

	_, err := a.Handle(s, []byte(`{"id":0,"result":{"not":"a list"}}`), time.Now())
	assert.ErrorIs(t, err, ErrParse)

	_, err = a.Handle(s, []byte(`[1,2`), time.Now())
	assert.ErrorIs(t, err, ErrParse)
}
