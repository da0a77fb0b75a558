// Package trader runs one decision cycle: snapshot and previous state in,
// orders and next state out.
package trader

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/tickmaker/params"
	"github.com/uhyunpark/tickmaker/pkg/fairvalue"
	"github.com/uhyunpark/tickmaker/pkg/market"
	"github.com/uhyunpark/tickmaker/pkg/metrics"
	"github.com/uhyunpark/tickmaker/pkg/quoting"
	"github.com/uhyunpark/tickmaker/pkg/state"
)

// Result is what the harness receives back for one cycle.
type Result struct {
	Orders      map[string]market.OrderBatch `json:"orders"`
	Conversions int                          `json:"conversions"`
	TraderData  string                       `json:"traderData"`
	FairValues  map[string]decimal.Decimal   `json:"fairValues,omitempty"`
}

// OrderCount returns the number of orders across all products.
func (r Result) OrderCount() int {
	n := 0
	for _, b := range r.Orders {
		n += len(b)
	}
	return n
}

type product struct {
	symbol        string
	estimator     fairvalue.Estimator
	historyLength int
	historySource fairvalue.Source
}

// Trader holds only configuration; everything that changes between cycles
// travels in the state blob, so one Trader may serve several sessions.
type Trader struct {
	registry *market.Registry
	products map[string]product
	symbols  []string // sorted
	gen      *quoting.Generator
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
}

// New builds a trader for the configured products.
func New(products []params.Product, qcfg quoting.Config, logger *zap.SugaredLogger, m *metrics.Metrics) (*Trader, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if m == nil {
		m = metrics.New("tickmaker")
	}
	t := &Trader{
		registry: market.NewRegistry(),
		products: make(map[string]product, len(products)),
		logger:   logger,
		metrics:  m,
	}
	for _, p := range products {
		est, err := fairvalue.New(p.Estimator)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", p.Symbol, err)
		}
		if need := p.Estimator.MinHistory(); p.HistoryLength < need {
			return nil, fmt.Errorf("product %s: %s estimator needs %d history points, history length is %d",
				p.Symbol, p.Estimator.Kind, need, p.HistoryLength)
		}
		if err := t.registry.Register(market.Product{Symbol: p.Symbol, Limit: p.Limit}); err != nil {
			return nil, err
		}
		src := p.HistorySource
		if src == "" {
			src = fairvalue.SourceVWAPMid
		}
		t.products[p.Symbol] = product{
			symbol:        p.Symbol,
			estimator:     est,
			historyLength: p.HistoryLength,
			historySource: src,
		}
		t.symbols = append(t.symbols, p.Symbol)
	}
	sort.Strings(t.symbols)
	t.gen = quoting.NewGenerator(qcfg, t.registry)
	return t, nil
}

// Registry returns the products this trader quotes.
func (t *Trader) Registry() *market.Registry { return t.registry }

// Run executes one cycle. It never fails: unreadable trader data restarts
// from an empty state and a product that cannot be quoted is skipped.
func (t *Trader) Run(snap *market.Snapshot) Result {
	t.metrics.CycleRun()

	st, err := state.Decode(snap.TraderData)
	if err != nil {
		t.metrics.StateDecodeError()
		t.logger.Warnw("trader_data_reset", "timestamp", snap.Timestamp, "err", err)
	}

	depths := make(map[string]*market.OrderDepth, len(snap.OrderDepths))
	for sym, d := range snap.OrderDepths {
		depths[sym] = d.Normalize()
	}

	t.updateHistory(st, depths)
	t.recordOwnTrades(st, snap)

	res := Result{
		Orders:     make(map[string]market.OrderBatch),
		FairValues: make(map[string]decimal.Decimal),
	}

	symbols := make([]string, 0, len(depths))
	for sym := range depths {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		t.metrics.SetPosition(sym, snap.PositionOf(sym))
		batch, fair, ok := t.quote(sym, snap.PositionOf(sym), depths[sym], st)
		if !ok {
			continue
		}
		res.Orders[sym] = batch
		res.FairValues[sym] = fair
	}

	t.markToMarket(st, snap, depths)

	st.Timestamp = snap.Timestamp
	blob, err := state.Encode(st)
	if err != nil {
		t.logger.Errorw("trader_data_encode_failed", "timestamp", snap.Timestamp, "err", err)
	}
	res.TraderData = blob

	t.logger.Debugw("cycle_done",
		"timestamp", snap.Timestamp,
		"products", len(res.Orders),
		"orders", res.OrderCount())
	return res
}

func (t *Trader) quote(sym string, inventory int64, depth *market.OrderDepth, st *state.State) (market.OrderBatch, decimal.Decimal, bool) {
	p, ok := t.products[sym]
	if !ok {
		t.skip(sym, metrics.ReasonUnconfigured, nil)
		return nil, decimal.Zero, false
	}
	if err := depth.Validate(); err != nil {
		t.skip(sym, metrics.ReasonCrossedBook, err)
		return nil, decimal.Zero, false
	}

	fair, ok := p.estimator.Estimate(fairvalue.Input{
		Symbol:  sym,
		History: st.History[sym],
		Depth:   depth,
	})
	if !ok {
		t.skip(sym, metrics.ReasonNoFairValue, nil)
		return nil, decimal.Zero, false
	}
	t.metrics.SetFairValue(sym, fair.InexactFloat64())

	gen, err := t.gen.Generate(sym, inventory, fair, depth)
	if err != nil {
		reason := metrics.ReasonUnconfigured
		if errors.Is(err, quoting.ErrInventoryOutOfRange) {
			reason = metrics.ReasonInventory
		}
		t.skip(sym, reason, err)
		return nil, decimal.Zero, false
	}
	t.metrics.OrdersEmitted(sym, gen.Taking, gen.Making)

	t.logger.Debugw("product_quoted",
		"symbol", sym,
		"estimator", p.estimator.Name(),
		"fair", fair.String(),
		"inventory", inventory,
		"taking", gen.Taking,
		"making", gen.Making,
		"buy_position", gen.BuyPosition,
		"sell_position", gen.SellPosition)
	return gen.Orders, fair, true
}

func (t *Trader) skip(sym, reason string, err error) {
	t.metrics.ProductSkipped(sym, reason)
	if err != nil {
		t.logger.Warnw("product_skipped", "symbol", sym, "reason", reason, "err", err)
		return
	}
	t.logger.Debugw("product_skipped", "symbol", sym, "reason", reason)
}

// updateHistory appends this cycle's midpoint for every product that keeps
// history. Crossed or one-sided books leave the buffer untouched.
func (t *Trader) updateHistory(st *state.State, depths map[string]*market.OrderDepth) {
	for _, sym := range t.symbols {
		p := t.products[sym]
		if p.historyLength <= 0 {
			continue
		}
		h := fairvalue.NewHistory(p.historyLength, st.History[sym])
		if d := depths[sym]; d.Validate() == nil {
			h.Observe(d, p.historySource)
		}
		st.History[sym] = h.Points()
	}
}
