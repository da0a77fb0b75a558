package fairvalue

import "github.com/shopspring/decimal"

// Regression is a fixed linear model over the trailing price buffer:
//
//	fair = Intercept + Σ Coefficients[i] * history[i]
//
// The newest len(Coefficients) points are used, oldest first.
type Regression struct {
	Intercept    decimal.Decimal
	Coefficients []decimal.Decimal
}

func (Regression) Name() string { return string(KindRegression) }

func (r Regression) Estimate(in Input) (decimal.Decimal, bool) {
	n := len(r.Coefficients)
	if n == 0 || len(in.History) < n {
		return decimal.Zero, false
	}
	window := in.History[len(in.History)-n:]
	fair := r.Intercept
	for i, c := range r.Coefficients {
		fair = fair.Add(c.Mul(window[i]))
	}
	return fair, true
}
