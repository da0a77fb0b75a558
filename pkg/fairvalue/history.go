package fairvalue

import (
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/tickmaker/pkg/market"
)

// Source selects which midpoint feeds the trailing history.
type Source string

const (
	SourceVWAPMid Source = "vwap"
	SourceBestMid Source = "mid"
)

// History is a bounded trailing buffer of midpoints, oldest first.
type History struct {
	capacity int
	points   []decimal.Decimal
}

// NewHistory creates a buffer holding at most capacity points, seeded with prev.
// Seeds beyond capacity keep only the newest.
func NewHistory(capacity int, prev []decimal.Decimal) *History {
	h := &History{capacity: capacity}
	for _, p := range prev {
		h.push(p)
	}
	return h
}

// Observe appends the midpoint of depth when both sides are quoted.
// It reports whether a point was added.
func (h *History) Observe(depth *market.OrderDepth, src Source) bool {
	mid, ok := midFromDepth(depth, src)
	if !ok {
		return false
	}
	h.push(mid)
	return true
}

func (h *History) push(p decimal.Decimal) {
	if h.capacity <= 0 {
		return
	}
	h.points = append(h.points, p)
	if over := len(h.points) - h.capacity; over > 0 {
		h.points = append(h.points[:0:0], h.points[over:]...)
	}
}

// Points returns a copy of the buffer, oldest first.
func (h *History) Points() []decimal.Decimal {
	out := make([]decimal.Decimal, len(h.points))
	copy(out, h.points)
	return out
}

