package adapter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/bookfeed/internal/model"
)

func TestRegistry_BuiltinVenues(t *testing.T) {
	assert.Equal(t, []model.VenueID{model.Bybit, model.Deribit, model.OKX}, Venues())

	for _, id := range []model.VenueID{model.OKX, model.Bybit, model.Deribit} {
		f, ok := Lookup(id)
		require.True(t, ok, "missing adapter for %s", id)
		assert.Equal(t, id, f(Options{Symbol: "BTC-USDT"}).Venue())
	}

	_, ok := Lookup("kraken")
	assert.False(t, ok)
}

func TestRegister_Duplicate(t *testing.T) {
	assert.Panics(t, func() { Register(model.OKX, newOKX) })
	assert.Panics(t, func() { Register("nil-factory", nil) })
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		want  model.Level
		ok    bool
	}{
		{"strings", `["41006.8","0.6","0","1"]`, model.Level{Price: 41006.8, Quantity: 0.6}, true},
		{"numbers", `[100.5, 2]`, model.Level{Price: 100.5, Quantity: 2}, true},
		{"action new", `["new", 100.5, 2]`, model.Level{Price: 100.5, Quantity: 2}, true},
		{"action delete", `["delete", 100.5, 0]`, model.Level{}, false},
		{"zero quantity", `["100.5","0"]`, model.Level{}, false},
		{"garbage", `["abc","1"]`, model.Level{}, false},
		{"short", `["100.5"]`, model.Level{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entry wireLevel
			require.NoError(t, json.Unmarshal([]byte(tt.entry), &entry))
			got, ok := parseLevel(entry)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
