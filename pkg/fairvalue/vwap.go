package fairvalue

import (
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/tickmaker/pkg/market"
)

// VWAPMidpoint averages the VWAP of the bid side and the ask side.
// With one side missing it falls back to that side's best price.
type VWAPMidpoint struct{}

func (VWAPMidpoint) Name() string { return string(KindVWAPMidpoint) }

func (VWAPMidpoint) Estimate(in Input) (decimal.Decimal, bool) {
	d := in.Depth
	if d.Empty() {
		return decimal.Zero, false
	}
	if mid, ok := d.VWAPMid(); ok {
		return mid, true
	}
	if bid, ok := d.BestBid(); ok {
		return decimal.NewFromInt(bid), true
	}
	ask, _ := d.BestAsk()
	return decimal.NewFromInt(ask), true
}

// midFromDepth picks the midpoint History records.
func midFromDepth(d *market.OrderDepth, src Source) (decimal.Decimal, bool) {
	if src == SourceBestMid {
		return d.Mid()
	}
	return d.VWAPMid()
}
