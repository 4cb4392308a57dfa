package adapter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rickgao/bookfeed/internal/model"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[model.VenueID]Factory)
)

// Register makes a venue adapter available by ID. It panics on a nil factory
// or a duplicate registration.
func Register(id model.VenueID, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if f == nil {
		panic(fmt.Sprintf("adapter: nil factory for %q", id))
	}
	if _, dup := registry[id]; dup {
		panic(fmt.Sprintf("adapter: %q registered twice", id))
	}
	registry[id] = f
}

// Lookup returns the factory registered for id.
func Lookup(id model.VenueID) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[id]
	return f, ok
}

// Venues returns the registered venue IDs in lexical order.
func Venues() []model.VenueID {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ids := make([]model.VenueID, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
