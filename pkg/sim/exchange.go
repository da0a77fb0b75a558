package sim

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/uhyunpark/tickmaker/pkg/market"
	"github.com/uhyunpark/tickmaker/pkg/quoting"
)

// ErrLimitBreach rejects a product's whole batch when, filled completely,
// its buys or its sells would take inventory past the limit.
var ErrLimitBreach = errors.New("orders could breach position limit")

// Tick is one step of recorded market data.
type Tick struct {
	Timestamp    int64                         `json:"timestamp"`
	OrderDepths  map[string]*market.OrderDepth `json:"orderDepths"`
	MarketTrades map[string][]market.Trade     `json:"marketTrades,omitempty"`
}

// Report is the outcome of applying one cycle's orders.
type Report struct {
	Timestamp int64
	Fills     map[string][]market.Trade
	Rejected  map[string]error
}

// FillCount returns the number of own trades across products.
func (r Report) FillCount() int {
	n := 0
	for _, f := range r.Fills {
		n += len(f)
	}
	return n
}

// Exchange tracks the bot's positions and cash across ticks.
type Exchange struct {
	limits quoting.Limits
	logger *zap.SugaredLogger

	position  map[string]int64
	cash      map[string]int64
	ownTrades map[string][]market.Trade // fills from the last Apply
}

func NewExchange(limits quoting.Limits, logger *zap.SugaredLogger) *Exchange {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Exchange{
		limits:    limits,
		logger:    logger,
		position:  make(map[string]int64),
		cash:      make(map[string]int64),
		ownTrades: make(map[string][]market.Trade),
	}
}

// Snapshot builds what the bot sees at tick.
func (e *Exchange) Snapshot(tick Tick, traderData string) *market.Snapshot {
	return &market.Snapshot{
		Timestamp:    tick.Timestamp,
		TraderData:   traderData,
		OrderDepths:  tick.OrderDepths,
		OwnTrades:    e.ownTrades,
		MarketTrades: tick.MarketTrades,
		Position:     e.Positions(),
	}
}

// Account is the exchange-side state the bot does not carry itself. It is
// checkpointed next to the trader data so an interrupted replay can resume.
type Account struct {
	Position  map[string]int64          `json:"position,omitempty"`
	Cash      map[string]int64          `json:"cash,omitempty"`
	OwnTrades map[string][]market.Trade `json:"ownTrades,omitempty"`
}

// Account returns a copy of positions, cash and the last cycle's fills.
func (e *Exchange) Account() Account {
	a := Account{
		Position:  make(map[string]int64, len(e.position)),
		Cash:      make(map[string]int64, len(e.cash)),
		OwnTrades: make(map[string][]market.Trade, len(e.ownTrades)),
	}
	for s, p := range e.position {
		a.Position[s] = p
	}
	for s, c := range e.cash {
		a.Cash[s] = c
	}
	for s, ts := range e.ownTrades {
		a.OwnTrades[s] = append([]market.Trade(nil), ts...)
	}
	return a
}

// Restore replaces the exchange's state with a.
func (e *Exchange) Restore(a Account) {
	e.position = make(map[string]int64, len(a.Position))
	e.cash = make(map[string]int64, len(a.Cash))
	e.ownTrades = make(map[string][]market.Trade, len(a.OwnTrades))
	for s, p := range a.Position {
		e.position[s] = p
	}
	for s, c := range a.Cash {
		e.cash[s] = c
	}
	for s, ts := range a.OwnTrades {
		e.ownTrades[s] = append([]market.Trade(nil), ts...)
	}
}

func (e *Exchange) Position(symbol string) int64 { return e.position[symbol] }
func (e *Exchange) Cash(symbol string) int64     { return e.cash[symbol] }

// Positions returns a copy of every non-flat position.
func (e *Exchange) Positions() map[string]int64 {
	out := make(map[string]int64, len(e.position))
	for s, p := range e.position {
		if p != 0 {
			out[s] = p
		}
	}
	return out
}

// Symbols lists every product the bot has traded, sorted.
func (e *Exchange) Symbols() []string {
	out := make([]string, 0, len(e.cash))
	for s := range e.cash {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Apply executes orders against tick: first the tick's book, then its
// market trades at or through each order's price. Unfilled remainders
// are cancelled.
func (e *Exchange) Apply(tick Tick, orders map[string]market.OrderBatch) Report {
	rep := Report{
		Timestamp: tick.Timestamp,
		Fills:     make(map[string][]market.Trade),
		Rejected:  make(map[string]error),
	}
	e.ownTrades = make(map[string][]market.Trade)

	symbols := make([]string, 0, len(orders))
	for s := range orders {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		batch := orders[sym]
		if len(batch) == 0 {
			continue
		}
		if err := e.admit(sym, batch); err != nil {
			rep.Rejected[sym] = err
			e.logger.Warnw("batch_rejected", "timestamp", tick.Timestamp, "symbol", sym, "err", err)
			continue
		}

		book := BookFromDepth(tick.OrderDepths[sym].Normalize())
		trades := tick.MarketTrades[sym]
		avail := make([]int64, len(trades))
		for i, t := range trades {
			avail[i] = abs(t.Quantity)
		}

		for _, o := range batch {
			if o.Quantity == 0 {
				continue
			}
			fills, left := book.Take(o.Price, o.Quantity)
			for _, f := range fills {
				e.fill(sym, tick.Timestamp, o.IsBuy(), f.Price, f.Qty, f.MakerOwner)
			}
			for i := 0; left != 0 && i < len(trades); i++ {
				mt := trades[i]
				if avail[i] == 0 {
					continue
				}
				if o.IsBuy() && mt.Price <= o.Price {
					n := min(left, avail[i])
					avail[i] -= n
					left -= n
					e.fill(sym, tick.Timestamp, true, o.Price, n, mt.Seller)
				} else if !o.IsBuy() && mt.Price >= o.Price {
					n := min(-left, avail[i])
					avail[i] -= n
					left += n
					e.fill(sym, tick.Timestamp, false, o.Price, n, mt.Buyer)
				}
			}
		}
		rep.Fills[sym] = e.ownTrades[sym]
	}
	return rep
}

func (e *Exchange) admit(sym string, batch market.OrderBatch) error {
	limit, ok := e.limits.Limit(sym)
	if !ok {
		return fmt.Errorf("%w: %s", quoting.ErrUnknownProduct, sym)
	}
	pos := e.position[sym]
	if pos+batch.BuyVolume() > limit || pos-batch.SellVolume() < -limit {
		return fmt.Errorf("%w: %s position %d buys %d sells %d limit %d",
			ErrLimitBreach, sym, pos, batch.BuyVolume(), batch.SellVolume(), limit)
	}
	return nil
}

func (e *Exchange) fill(sym string, ts int64, buy bool, price, qty int64, counterparty string) {
	t := market.Trade{Symbol: sym, Price: price, Quantity: qty, Timestamp: ts}
	if buy {
		t.Buyer, t.Seller = market.Submission, counterparty
		e.position[sym] += qty
		e.cash[sym] -= price * qty
	} else {
		t.Buyer, t.Seller = counterparty, market.Submission
		e.position[sym] -= qty
		e.cash[sym] += price * qty
	}
	e.ownTrades[sym] = append(e.ownTrades[sym], t)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
