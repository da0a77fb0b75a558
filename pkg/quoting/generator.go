// Package quoting decides, for one product and one cycle, which resting
// levels to hit and which limit orders to post around a fair value.
package quoting

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/tickmaker/pkg/market"
)

var (
	ErrUnknownProduct      = errors.New("unknown product")
	ErrInventoryOutOfRange = errors.New("inventory outside position limit")
)

// Limits resolves a product's symmetric position limit.
type Limits interface {
	Limit(symbol string) (int64, bool)
}

// Result is one product's batch plus the simulated inventory each pass
// would reach if every emitted order filled.
type Result struct {
	Orders       market.OrderBatch
	BuyPosition  int64 // inventory after all buys fill
	SellPosition int64 // inventory after all sells fill
	Taking       int   // orders hitting existing levels
	Making       int   // resting quotes
}

// Generator is the position-limit-aware quoting engine.
type Generator struct {
	cfg    Config
	limits Limits
}

func NewGenerator(cfg Config, limits Limits) *Generator {
	return &Generator{cfg: cfg, limits: limits}
}

// Config returns the tier offsets in use.
func (g *Generator) Config() Config { return g.cfg }

// Generate builds the order batch for symbol. depth must be normalized.
//
// Buy and sell passes both start from inventory: the exchange bounds the
// aggregate of each side independently, so each pass may use the full
// room between inventory and its side of the limit.
func (g *Generator) Generate(symbol string, inventory int64, fair decimal.Decimal, depth *market.OrderDepth) (Result, error) {
	limit, ok := g.limits.Limit(symbol)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownProduct, symbol)
	}
	if inventory < -limit || inventory > limit {
		return Result{}, fmt.Errorf("%w: %s inventory %d limit %d", ErrInventoryOutOfRange, symbol, inventory, limit)
	}

	p := &pass{
		symbol:  symbol,
		limit:   limit,
		fair:    fair,
		floor:   fair.Floor().IntPart(),
		ceil:    fair.Ceil().IntPart(),
		buyPos:  inventory,
		sellPos: inventory,
	}
	if depth.Empty() {
		return p.result(), nil
	}

	p.takeAsks(depth.Asks())
	p.takeBids(depth.Bids())

	bid, hasBid := depth.BestBid()
	ask, hasAsk := depth.BestAsk()

	// Quote against our own side's best price; with that side empty,
	// fall back to the other side's.
	if ref, ok := pick(bid, hasBid, ask, hasAsk); ok {
		p.makeBuy(ref, g.cfg.Buy)
	}
	if ref, ok := pick(ask, hasAsk, bid, hasBid); ok {
		p.makeSell(ref, g.cfg.Sell)
	}
	return p.result(), nil
}

type pass struct {
	symbol      string
	limit       int64
	fair        decimal.Decimal
	floor, ceil int64

	buyPos, sellPos int64
	orders          market.OrderBatch
	taking, making  int
}

func (p *pass) result() Result {
	return Result{
		Orders:       p.orders,
		BuyPosition:  p.buyPos,
		SellPosition: p.sellPos,
		Taking:       p.taking,
		Making:       p.making,
	}
}

// takeAsks buys every ask below fair, then, while still short, buys
// the level priced at floor(fair) to flatten.
func (p *pass) takeAsks(asks []market.PriceLevel) {
	for _, lvl := range asks {
		if p.buyPos >= p.limit {
			break
		}
		avail := lvl.Volume
		if p.fair.GreaterThan(decimal.NewFromInt(lvl.Price)) {
			qty := min(avail, p.limit-p.buyPos)
			p.buy(lvl.Price, qty, true)
			avail -= qty
		}
		if p.buyPos < 0 && lvl.Price == p.floor && avail > 0 {
			p.buy(lvl.Price, min(avail, -p.buyPos), true)
		}
	}
}

// takeBids mirrors takeAsks for the sell side.
func (p *pass) takeBids(bids []market.PriceLevel) {
	for _, lvl := range bids {
		if p.sellPos <= -p.limit {
			break
		}
		avail := lvl.Volume
		if p.fair.LessThan(decimal.NewFromInt(lvl.Price)) {
			qty := min(avail, p.sellPos+p.limit)
			p.sell(lvl.Price, qty, true)
			avail -= qty
		}
		if p.sellPos > 0 && lvl.Price == p.ceil && avail > 0 {
			p.sell(lvl.Price, min(avail, p.sellPos), true)
		}
	}
}

// makeBuy posts one resting bid. The tier is chosen by where the buy-side
// inventory stands after taking.
func (p *pass) makeBuy(ref int64, t Tiers) {
	half := p.limit / 2
	var qty int64
	var s Shift
	switch {
	case p.buyPos < 0:
		qty, s = -p.buyPos, t.Flatten
	case p.buyPos < half:
		qty, s = half-p.buyPos, t.Half
	case p.buyPos < p.limit:
		qty, s = p.limit-p.buyPos, t.Full
	default:
		return
	}
	p.buy(min(p.floor+s.Fair, ref+s.Ref), qty, false)
}

func (p *pass) makeSell(ref int64, t Tiers) {
	half := p.limit / 2
	var qty int64
	var s Shift
	switch {
	case p.sellPos > 0:
		qty, s = p.sellPos, t.Flatten
	case p.sellPos > -half:
		qty, s = p.sellPos+half, t.Half
	case p.sellPos > -p.limit:
		qty, s = p.sellPos+p.limit, t.Full
	default:
		return
	}
	p.sell(max(p.ceil+s.Fair, ref+s.Ref), qty, false)
}

func (p *pass) buy(price, qty int64, taking bool) {
	if qty <= 0 {
		return
	}
	p.buyPos += qty
	p.mustWithinLimit(p.buyPos)
	p.emit(market.Order{Symbol: p.symbol, Price: price, Quantity: qty}, taking)
}

func (p *pass) sell(price, qty int64, taking bool) {
	if qty <= 0 {
		return
	}
	p.sellPos -= qty
	p.mustWithinLimit(p.sellPos)
	p.emit(market.Order{Symbol: p.symbol, Price: price, Quantity: -qty}, taking)
}

func (p *pass) emit(o market.Order, taking bool) {
	p.orders = append(p.orders, o)
	if taking {
		p.taking++
	} else {
		p.making++
	}
}

// mustWithinLimit guards the sizing arithmetic above; tripping it is a bug.
func (p *pass) mustWithinLimit(pos int64) {
	if pos < -p.limit || pos > p.limit {
		panic(fmt.Sprintf("quoting: %s simulated inventory %d outside [-%d, %d]", p.symbol, pos, p.limit, p.limit))
	}
}

func pick(primary int64, hasPrimary bool, fallback int64, hasFallback bool) (int64, bool) {
	if hasPrimary {
		return primary, true
	}
	return fallback, hasFallback
}
