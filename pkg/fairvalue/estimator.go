// Package fairvalue turns market data into one price estimate per product per cycle.
package fairvalue

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/tickmaker/pkg/market"
)

// Input is what an estimator may look at for one product in one cycle.
type Input struct {
	Symbol  string
	History []decimal.Decimal // oldest first
	Depth   *market.OrderDepth
}

// Estimator produces a fair value. ok is false when there is not enough
// data; callers must skip the product for this cycle rather than guess.
type Estimator interface {
	Estimate(in Input) (price decimal.Decimal, ok bool)
	Name() string
}

// Kind names an estimator in configuration.
type Kind string

const (
	KindConstant     Kind = "constant"
	KindVWAPMidpoint Kind = "vwap"
	KindRegression   Kind = "regression"
	KindLastObserved Kind = "last"
	KindEMA          Kind = "ema"
)

// Spec is the configuration for one product's estimator.
type Spec struct {
	Kind         Kind
	Price        decimal.Decimal   // constant
	Intercept    decimal.Decimal   // regression
	Coefficients []decimal.Decimal // regression, applied oldest first
	Window       int               // ema
}

// MinHistory is the number of trailing points the estimator needs before it
// can produce a value. Zero means it does not read history.
func (s Spec) MinHistory() int {
	switch s.Kind {
	case KindRegression:
		return len(s.Coefficients)
	case KindEMA:
		return s.Window
	case KindLastObserved:
		return 1
	default:
		return 0
	}
}

// New builds the estimator described by spec.
func New(spec Spec) (Estimator, error) {
	switch spec.Kind {
	case KindConstant:
		return Constant{Price: spec.Price}, nil
	case KindVWAPMidpoint:
		return VWAPMidpoint{}, nil
	case KindRegression:
		if len(spec.Coefficients) == 0 {
			return nil, fmt.Errorf("regression estimator needs at least one coefficient")
		}
		return Regression{Intercept: spec.Intercept, Coefficients: spec.Coefficients}, nil
	case KindLastObserved:
		return LastObserved{}, nil
	case KindEMA:
		if spec.Window <= 0 {
			return nil, fmt.Errorf("ema estimator needs a positive window, got %d", spec.Window)
		}
		return EMA{Window: spec.Window}, nil
	default:
		return nil, fmt.Errorf("unknown estimator kind %q", spec.Kind)
	}
}

// Constant always returns the same reference price.
type Constant struct {
	Price decimal.Decimal
}

func (c Constant) Estimate(Input) (decimal.Decimal, bool) { return c.Price, true }
func (Constant) Name() string                              { return string(KindConstant) }

// LastObserved returns the newest history point.
type LastObserved struct{}

func (LastObserved) Estimate(in Input) (decimal.Decimal, bool) {
	if len(in.History) == 0 {
		return decimal.Zero, false
	}
	return in.History[len(in.History)-1], true
}

func (LastObserved) Name() string { return string(KindLastObserved) }

var (
	_ Estimator = Constant{}
	_ Estimator = VWAPMidpoint{}
	_ Estimator = Regression{}
	_ Estimator = LastObserved{}
	_ Estimator = EMA{}
)
