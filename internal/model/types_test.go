package model

import (
	"math"
	"testing"
	"time"
)

func TestLevel_Valid(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		want  bool
	}{
		{"positive", Level{Price: 100, Quantity: 1}, true},
		{"zero price", Level{Price: 0, Quantity: 1}, false},
		{"negative price", Level{Price: -1, Quantity: 1}, false},
		{"zero quantity", Level{Price: 100, Quantity: 0}, false},
		{"nan price", Level{Price: math.NaN(), Quantity: 1}, false},
		{"inf quantity", Level{Price: 100, Quantity: math.Inf(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderBook_BestPrices(t *testing.T) {
	book := OrderBook{
		Bids: []Level{{Price: 99, Quantity: 1}, {Price: 98, Quantity: 2}},
		Asks: []Level{{Price: 101, Quantity: 1}},
	}

	if got := book.BestBid(); got != 99 {
		t.Errorf("BestBid() = %v, want 99", got)
	}
	if got := book.BestAsk(); got != 101 {
		t.Errorf("BestAsk() = %v, want 101", got)
	}

	var empty OrderBook
	if empty.BestBid() != 0 || empty.BestAsk() != 0 {
		t.Error("expected zero best prices for empty book")
	}
	if !empty.Empty() {
		t.Error("expected Empty() to return true")
	}
}

func TestOrderBook_Clone(t *testing.T) {
	book := OrderBook{
		Symbol:    "BTC-USDT",
		Bids:      []Level{{Price: 99, Quantity: 1}},
		Asks:      []Level{{Price: 101, Quantity: 1}},
		Timestamp: time.UnixMilli(1700000000000),
	}

	clone := book.Clone()
	clone.Bids[0].Quantity = 5

	if book.Bids[0].Quantity != 1 {
		t.Errorf("original mutated through clone: quantity = %v", book.Bids[0].Quantity)
	}
	if !clone.Timestamp.Equal(book.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", clone.Timestamp, book.Timestamp)
	}
}

func TestSubscriptionKey(t *testing.T) {
	a := SubscriptionKey{Venue: OKX, Symbol: "BTC-USDT"}
	b := SubscriptionKey{Venue: OKX, Symbol: "BTC-USDT"}
	c := SubscriptionKey{Venue: "okx:BTC", Symbol: "USDT"}

	m := map[SubscriptionKey]int{a: 1}
	if m[b] != 1 {
		t.Error("equal keys should index the same entry")
	}
	if _, ok := m[c]; ok {
		t.Error("keys with colliding concatenations must stay distinct")
	}
	if a.String() != "okx/BTC-USDT" {
		t.Errorf("String() = %q, want %q", a.String(), "okx/BTC-USDT")
	}
}
