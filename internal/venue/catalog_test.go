package venue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/bookfeed/internal/model"
)

func TestNewCatalog_Defaults(t *testing.T) {
	c := NewCatalog(nil)

	assert.Equal(t, []model.VenueID{model.OKX, model.Bybit, model.Deribit}, c.IDs())

	okx, ok := c.Lookup(model.OKX)
	require.True(t, ok)
	assert.Equal(t, "OKX", okx.Name)
	assert.Equal(t, OKXWSURL, okx.WSURL)
	assert.Equal(t, 5*time.Second, okx.ConnectTimeout)

	bybit, ok := c.Lookup(model.Bybit)
	require.True(t, ok)
	assert.Equal(t, 4*time.Second, bybit.ConnectTimeout)

	_, ok = c.Lookup("kraken")
	assert.False(t, ok)
}

func TestNewCatalog_Overrides(t *testing.T) {
	c := NewCatalog(map[model.VenueID]Override{
		model.Deribit: {WSURL: "wss://test.deribit.com/ws/api/v2", ConnectTimeout: time.Second},
		"kraken":      {WSURL: "wss://ignored"},
	})

	d, ok := c.Lookup(model.Deribit)
	require.True(t, ok)
	assert.Equal(t, "wss://test.deribit.com/ws/api/v2", d.WSURL)
	assert.Equal(t, DeribitRestURL, d.RestURL)
	assert.Equal(t, time.Second, d.ConnectTimeout)
	assert.Len(t, c.List(), 3)
}

func TestCatalog_ListIsCopy(t *testing.T) {
	c := NewCatalog(nil)

	list := c.List()
	list[0].Name = "changed"
	list[0].Connected = true

	okx, _ := c.Lookup(model.OKX)
	assert.Equal(t, "OKX", okx.Name)
	assert.False(t, okx.Connected)
}
