package book

import (
	"math"

	"github.com/rickgao/bookfeed/internal/model"
)

// Change detection thresholds.
const (
	RelativeThreshold = 1e-5 // best bid/ask move that counts as significant
	LadderDepth       = 5    // rungs compared for structural change
	LadderTolerance   = 0.01 // absolute price difference that breaks a rung
)

// IsSignificantChange reports whether next differs enough from prev to be
// delivered. A nil prev, or a prev without a best bid or ask, is always significant.
func IsSignificantChange(prev *model.OrderBook, next model.OrderBook) bool {
	if prev == nil {
		return true
	}

	oldBid, oldAsk := prev.BestBid(), prev.BestAsk()
	if oldBid == 0 || oldAsk == 0 {
		return true
	}

	bidChange := math.Abs(oldBid-next.BestBid()) / oldBid
	askChange := math.Abs(oldAsk-next.BestAsk()) / oldAsk
	if bidChange > RelativeThreshold || askChange > RelativeThreshold {
		return true
	}

	return ladderChanged(prev.Bids, next.Bids) || ladderChanged(prev.Asks, next.Asks)
}

func ladderChanged(a, b []model.Level) bool {
	a, b = top(a), top(b)
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if math.Abs(a[i].Price-b[i].Price) >= LadderTolerance {
			return true
		}
	}
	return false
}

func top(levels []model.Level) []model.Level {
	if len(levels) > LadderDepth {
		return levels[:LadderDepth]
	}
	return levels
}
