package market

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrCrossedBook is returned when the best bid is at or above the best ask.
var ErrCrossedBook = errors.New("crossed book")

// PriceLevel is the aggregated volume resting at one price.
// Volume is always positive once the depth is normalized.
type PriceLevel struct {
	Price  int64 `json:"price"`
	Volume int64 `json:"volume"`
}

// OrderDepth holds the resting buy and sell interest for one product.
// Some feeds send sell volumes negative; Normalize fixes that.
type OrderDepth struct {
	BuyOrders  map[int64]int64 `json:"buyOrders"`
	SellOrders map[int64]int64 `json:"sellOrders"`
}

// NewOrderDepth builds a normalized depth from raw buy and sell maps.
func NewOrderDepth(buys, sells map[int64]int64) *OrderDepth {
	d := &OrderDepth{BuyOrders: buys, SellOrders: sells}
	return d.Normalize()
}

// Normalize returns a copy with positive volumes on both sides and
// zero-volume levels removed. The receiver is left untouched.
func (d *OrderDepth) Normalize() *OrderDepth {
	out := &OrderDepth{
		BuyOrders:  make(map[int64]int64),
		SellOrders: make(map[int64]int64),
	}
	if d == nil {
		return out
	}
	for p, v := range d.BuyOrders {
		if v < 0 {
			v = -v
		}
		if v != 0 {
			out.BuyOrders[p] = v
		}
	}
	for p, v := range d.SellOrders {
		if v < 0 {
			v = -v
		}
		if v != 0 {
			out.SellOrders[p] = v
		}
	}
	return out
}

// Validate rejects books whose best bid is at or above the best ask.
// A one-sided or empty book is valid.
func (d *OrderDepth) Validate() error {
	bid, okBid := d.BestBid()
	ask, okAsk := d.BestAsk()
	if okBid && okAsk && bid >= ask {
		return fmt.Errorf("%w: bid %d >= ask %d", ErrCrossedBook, bid, ask)
	}
	return nil
}

// Empty reports whether neither side has any level.
func (d *OrderDepth) Empty() bool {
	return d == nil || (len(d.BuyOrders) == 0 && len(d.SellOrders) == 0)
}

// BestBid returns the highest buy price.
func (d *OrderDepth) BestBid() (int64, bool) {
	if d == nil || len(d.BuyOrders) == 0 {
		return 0, false
	}
	first := true
	var best int64
	for p := range d.BuyOrders {
		if first || p > best {
			best = p
			first = false
		}
	}
	return best, true
}

// BestAsk returns the lowest sell price.
func (d *OrderDepth) BestAsk() (int64, bool) {
	if d == nil || len(d.SellOrders) == 0 {
		return 0, false
	}
	first := true
	var best int64
	for p := range d.SellOrders {
		if first || p < best {
			best = p
			first = false
		}
	}
	return best, true
}

// Bids returns buy levels sorted high to low (best bid first).
func (d *OrderDepth) Bids() []PriceLevel {
	if d == nil {
		return nil
	}
	levels := toLevels(d.BuyOrders)
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Price > levels[j].Price
	})
	return levels
}

// Asks returns sell levels sorted low to high (best ask first).
func (d *OrderDepth) Asks() []PriceLevel {
	if d == nil {
		return nil
	}
	levels := toLevels(d.SellOrders)
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Price < levels[j].Price
	})
	return levels
}

// Mid returns the best-quote midpoint. Needs both sides.
func (d *OrderDepth) Mid() (decimal.Decimal, bool) {
	bid, okBid := d.BestBid()
	ask, okAsk := d.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(bid + ask).Div(decimal.NewFromInt(2)), true
}

// VWAPMid averages the VWAP of each side. Needs both sides.
func (d *OrderDepth) VWAPMid() (decimal.Decimal, bool) {
	if d == nil || len(d.BuyOrders) == 0 || len(d.SellOrders) == 0 {
		return decimal.Zero, false
	}
	sum := VWAP(d.Bids()).Add(VWAP(d.Asks()))
	return sum.Div(decimal.NewFromInt(2)), true
}

// VWAP is the volume-weighted average price of levels.
// An empty or zero-volume set yields zero.
func VWAP(levels []PriceLevel) decimal.Decimal {
	notional, volume := decimal.Zero, decimal.Zero
	for _, l := range levels {
		v := decimal.NewFromInt(l.Volume).Abs()
		notional = notional.Add(decimal.NewFromInt(l.Price).Mul(v))
		volume = volume.Add(v)
	}
	if volume.IsZero() {
		return decimal.Zero
	}
	return notional.Div(volume)
}

func toLevels(m map[int64]int64) []PriceLevel {
	levels := make([]PriceLevel, 0, len(m))
	for p, v := range m {
		if v < 0 {
			v = -v
		}
		levels = append(levels, PriceLevel{Price: p, Volume: v})
	}
	return levels
}
