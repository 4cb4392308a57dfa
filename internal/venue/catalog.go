package venue

import (
	"time"

	"github.com/rickgao/bookfeed/internal/model"
)

// Default endpoints and handshake deadlines.
const (
	OKXWSURL     = "wss://ws.okx.com:8443/ws/v5/public"
	OKXRestURL   = "https://www.okx.com/api/v5"
	OKXTimeout   = 5 * time.Second
	BybitWSURL   = "wss://stream.bybit.com/v5/public/spot"
	BybitRestURL = "https://api.bybit.com/v5"
	BybitTimeout = 4 * time.Second

	DeribitWSURL   = "wss://www.deribit.com/ws/api/v2"
	DeribitRestURL = "https://www.deribit.com/api/v2"
	DeribitTimeout = 4 * time.Second
)

// Override replaces endpoint fields of a catalog entry. Zero fields are ignored.
type Override struct {
	WSURL          string
	RestURL        string
	ConnectTimeout time.Duration
}

// Catalog is an ordered, immutable set of venues.
type Catalog struct {
	venues []model.Venue
	index  map[model.VenueID]int
}

// Defaults returns the built-in venue definitions in display order.
func Defaults() []model.Venue {
	return []model.Venue{
		{ID: model.OKX, Name: "OKX", WSURL: OKXWSURL, RestURL: OKXRestURL, ConnectTimeout: OKXTimeout},
		{ID: model.Bybit, Name: "Bybit", WSURL: BybitWSURL, RestURL: BybitRestURL, ConnectTimeout: BybitTimeout},
		{ID: model.Deribit, Name: "Deribit", WSURL: DeribitWSURL, RestURL: DeribitRestURL, ConnectTimeout: DeribitTimeout},
	}
}

// NewCatalog builds a catalog from the defaults with optional per-venue overrides.
// Overrides for venues that are not in the defaults are ignored.
func NewCatalog(overrides map[model.VenueID]Override) *Catalog {
	return newCatalog(Defaults(), overrides)
}

// NewCatalogFrom builds a catalog from an explicit venue list.
func NewCatalogFrom(venues []model.Venue) *Catalog {
	return newCatalog(venues, nil)
}

func newCatalog(venues []model.Venue, overrides map[model.VenueID]Override) *Catalog {
	c := &Catalog{
		venues: make([]model.Venue, 0, len(venues)),
		index:  make(map[model.VenueID]int, len(venues)),
	}
	for _, v := range venues {
		if o, ok := overrides[v.ID]; ok {
			if o.WSURL != "" {
				v.WSURL = o.WSURL
			}
			if o.RestURL != "" {
				v.RestURL = o.RestURL
			}
			if o.ConnectTimeout > 0 {
				v.ConnectTimeout = o.ConnectTimeout
			}
		}
		v.Connected = false
		c.index[v.ID] = len(c.venues)
		c.venues = append(c.venues, v)
	}
	return c
}

// List returns a copy of every venue in catalog order.
func (c *Catalog) List() []model.Venue {
	out := make([]model.Venue, len(c.venues))
	copy(out, c.venues)
	return out
}

// Lookup returns the venue with the given ID.
func (c *Catalog) Lookup(id model.VenueID) (model.Venue, bool) {
	i, ok := c.index[id]
	if !ok {
		return model.Venue{}, false
	}
	return c.venues[i], true
}

// IDs returns the venue identifiers in catalog order.
func (c *Catalog) IDs() []model.VenueID {
	ids := make([]model.VenueID, len(c.venues))
	for i, v := range c.venues {
		ids[i] = v.ID
	}
	return ids
}
