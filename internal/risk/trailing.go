package risk

import (
	"math"
	"sync"
)

// Trailer proposes tightened stop levels from price movement using a
// high-water mark per symbol. It only proposes; the runtime decides
// whether a proposal is a legal adjustment.
type Trailer struct {
	mu        sync.Mutex
	offsetPct float64 // distance from the water mark, e.g. 0.01 = 1%
	marks     map[string]float64
}

// NewTrailer creates a trailer with the given offset fraction.
func NewTrailer(offsetPct float64) *Trailer {
	return &Trailer{
		offsetPct: offsetPct,
		marks:     make(map[string]float64),
	}
}

// Observe feeds a price tick for an open position and returns a proposed
// stop, or (0, false) when no tightening is warranted. For longs the mark
// is the highest price seen since entry; for shorts the lowest.
func (t *Trailer) Observe(symbol string, long bool, price, currentStop float64) (float64, bool) {
	if price <= 0 || t.offsetPct <= 0 {
		return 0, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	mark, seen := t.marks[symbol]
	if !seen {
		mark = price
	} else if long && price > mark {
		mark = price
	} else if !long && price < mark {
		mark = price
	}
	t.marks[symbol] = mark

	var proposed float64
	if long {
		proposed = mark * (1 - t.offsetPct)
		if proposed <= currentStop {
			return 0, false
		}
	} else {
		proposed = mark * (1 + t.offsetPct)
		if currentStop > 0 && proposed >= currentStop {
			return 0, false
		}
	}
	return round8(proposed), true
}

// Forget clears the water mark when a position closes.
func (t *Trailer) Forget(symbol string) {
	t.mu.Lock()
	delete(t.marks, symbol)
	t.mu.Unlock()
}

func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
