package book

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/bookfeed/internal/model"
)

// SyntheticQuantity is the nominal size given to filler levels.
const SyntheticQuantity = 0.001

// side selects the sort direction of a book side.
type side int

const (
	bidSide side = iota // descending
	askSide             // ascending
)

// Reconcile merges a fresh level set with the previous book for the same
// subscription and returns a book that satisfies the ordering, uniqueness and
// depth invariants. prev may be nil. now stamps the book when the venue did not.
func Reconcile(raw model.RawLevelSet, prev *model.OrderBook, now time.Time) model.OrderBook {
	var prevBids, prevAsks []model.Level
	if prev != nil {
		prevBids, prevAsks = prev.Bids, prev.Asks
	}

	ts := raw.Timestamp
	if ts.IsZero() {
		ts = now
	}

	return model.OrderBook{
		Symbol:    raw.Symbol,
		Bids:      reconcileSide(raw.Bids, prevBids, bidSide),
		Asks:      reconcileSide(raw.Asks, prevAsks, askSide),
		Timestamp: ts,
	}
}

func reconcileSide(fresh, prev []model.Level, s side) []model.Level {
	levels := make([]model.Level, 0, model.MaxDepth)
	seen := make(map[float64]struct{}, len(fresh)+model.MaxDepth)

	// 1. Valid fresh levels, first occurrence of a price wins.
	for _, l := range fresh {
		if !l.Valid() {
			continue
		}
		if _, dup := seen[l.Price]; dup {
			continue
		}
		seen[l.Price] = struct{}{}
		levels = append(levels, l)
	}

	// 2. Backfill from the previous book at prices the update did not mention.
	for _, l := range prev {
		if len(levels) >= model.MaxDepth {
			break
		}
		if !l.Valid() {
			continue
		}
		if _, dup := seen[l.Price]; dup {
			continue
		}
		seen[l.Price] = struct{}{}
		levels = append(levels, l)
	}

	// 3. Order.
	sortSide(levels, s)

	// 4. Synthetic tail.
	if n := len(levels); n > 0 && n < model.MaxDepth {
		levels = extend(levels, s)
	}

	// 5. Cap, re-validate and drop repeated prices.
	if len(levels) > model.MaxDepth {
		levels = levels[:model.MaxDepth]
	}
	out := levels[:0]
	for _, l := range levels {
		if !l.Valid() {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Price == l.Price {
			continue
		}
		out = append(out, l)
	}
	return out
}

func sortSide(levels []model.Level, s side) {
	if s == bidSide {
		sort.SliceStable(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
		return
	}
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
}

// extend appends synthetic levels past the worst price until MaxDepth, until
// the next price would be invalid, or until a tick no longer changes the
// float64 price.
func extend(levels []model.Level, s side) []model.Level {
	tick := decimal.NewFromFloat(TickSize(levels[0].Price))
	if s == bidSide {
		tick = tick.Neg()
	}

	last := decimal.NewFromFloat(levels[len(levels)-1].Price)
	for len(levels) < model.MaxDepth {
		next := last.Add(tick)
		l := model.Level{Price: next.InexactFloat64(), Quantity: SyntheticQuantity}
		if !l.Valid() || !beyond(l.Price, levels[len(levels)-1].Price, s) {
			break
		}
		levels = append(levels, l)
		last = next
	}
	return levels
}

// beyond reports whether price lies strictly past worst on side s.
func beyond(price, worst float64, s side) bool {
	if s == bidSide {
		return price < worst
	}
	return price > worst
}

// TickSize returns the heuristic price increment used to space synthetic
// levels for a book whose best price is price.
func TickSize(price float64) float64 {
	switch {
	case price > 100000:
		return 100
	case price > 10000:
		return 10
	case price > 1000:
		return 1
	case price > 100:
		return 0.1
	case price > 10:
		return 0.01
	default:
		return 0.001
	}
}
