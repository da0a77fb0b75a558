package fairvalue

import "github.com/shopspring/decimal"

// EMA is an exponential moving average over the trailing price buffer with
// smoothing 2/(Window+1), seeded with the oldest point. It needs at least
// Window points before it reports a value.
type EMA struct {
	Window int
}

func (EMA) Name() string { return string(KindEMA) }

func (e EMA) Estimate(in Input) (decimal.Decimal, bool) {
	if e.Window <= 0 || len(in.History) < e.Window {
		return decimal.Zero, false
	}
	alpha := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(e.Window) + 1))
	keep := decimal.NewFromInt(1).Sub(alpha)
	avg := in.History[0]
	for _, p := range in.History[1:] {
		avg = alpha.Mul(p).Add(keep.Mul(avg))
	}
	return avg, true
}
