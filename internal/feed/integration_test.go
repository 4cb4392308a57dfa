package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/bookfeed/internal/loop"
	"github.com/rickgao/bookfeed/internal/model"
	"github.com/rickgao/bookfeed/internal/venue"
)

func venueServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newLiveService(t *testing.T, overrides map[model.VenueID]venue.Override, cfg Config) *Service {
	t.Helper()

	lp := loop.New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go lp.Run(ctx)

	svc := NewService(cfg, venue.NewCatalog(overrides), lp, nil)
	t.Cleanup(func() {
		svc.DisconnectAll(context.Background())
		cancel()
		<-lp.Done()
	})
	return svc
}

func TestService_OKXEndToEnd(t *testing.T) {
	url := venueServer(t, func(conn *websocket.Conn) {
		var req struct {
			Op   string `json:"op"`
			Args []struct {
				Channel string `json:"channel"`
				InstID  string `json:"instId"`
			} `json:"args"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Op != "subscribe" || len(req.Args) != 1 || req.Args[0].InstID != "BTC-USDT" {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"subscribe","arg":{"channel":"books","instId":"BTC-USDT"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"arg":{"channel":"books","instId":"BTC-USDT"},"action":"snapshot","data":[{"bids":[["43000.5","1.2","0","3"],["43000.1","0.4","0","1"]],"asks":[["43001","0.8","0","2"]],"ts":"1700000000123"}]}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	svc := newLiveService(t, map[model.VenueID]venue.Override{model.OKX: {WSURL: url}}, DefaultConfig())

	got := make(chan model.MarketData, 4)
	require.NoError(t, svc.Connect(context.Background(), model.OKX, "BTC-USDT", func(md model.MarketData) {
		got <- md
	}))

	select {
	case md := <-got:
		assert.Equal(t, model.OKX, md.Venue)
		assert.Equal(t, "BTC-USDT", md.Book.Symbol)
		assert.Equal(t, 43000.5, md.Book.BestBid())
		assert.Equal(t, 43001.0, md.Book.BestAsk())
		assert.Len(t, md.Book.Bids, model.MaxDepth)
		assert.Len(t, md.Book.Asks, model.MaxDepth)
		assert.Equal(t, int64(1700000000123), md.Book.Timestamp.UnixMilli())
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for first book")
	}

	venues, err := svc.Venues(context.Background())
	require.NoError(t, err)
	for _, v := range venues {
		if v.ID == model.OKX {
			assert.True(t, v.Connected)
		}
	}
}

func TestService_ConnectFailureFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FallbackTimeout = 200 * time.Millisecond

	svc := newLiveService(t, map[model.VenueID]venue.Override{
		model.Bybit: {WSURL: "ws://127.0.0.1:1", ConnectTimeout: 100 * time.Millisecond},
	}, cfg)

	got := make(chan model.MarketData, 1)
	require.NoError(t, svc.Connect(context.Background(), model.Bybit, "BTCUSDT", func(md model.MarketData) {
		got <- md
	}))

	select {
	case md := <-got:
		assert.Equal(t, model.Bybit, md.Venue)
		assert.True(t, md.Book.Empty())
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for fallback")
	}

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats.Connection.Sessions, 1)
	assert.Equal(t, "closed", stats.Connection.Sessions[0].State.String())
}
