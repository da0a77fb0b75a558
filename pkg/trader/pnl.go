package trader

import (
	"github.com/uhyunpark/tickmaker/pkg/market"
	"github.com/uhyunpark/tickmaker/pkg/state"
)

// recordOwnTrades folds our fills into the per-product ledger. A fill is
// counted once: only trades stamped at or after the previous cycle are new.
func (t *Trader) recordOwnTrades(st *state.State, snap *market.Snapshot) {
	for sym, trades := range snap.OwnTrades {
		ledger := st.PnL[sym]
		changed := false
		for _, tr := range trades {
			if tr.Timestamp < st.Timestamp {
				continue
			}
			notional := tr.Price * tr.Quantity
			switch {
			case tr.Buyer == market.Submission && tr.Seller == market.Submission:
				continue
			case tr.Buyer == market.Submission:
				ledger.Cash -= notional
			case tr.Seller == market.Submission:
				ledger.Cash += notional
			default:
				continue
			}
			ledger.VolumeTraded += abs(tr.Quantity)
			changed = true
		}
		if changed {
			st.PnL[sym] = ledger
		}
	}
}

// SettledPnL marks inventory at the touch it would have to cross to close
// (best bid for a short, best ask for a long) and adds realised cash.
func SettledPnL(ledger state.PnL, position int64, depth *market.OrderDepth) (int64, bool) {
	var mark int64
	var ok bool
	if position < 0 {
		mark, ok = depth.BestBid()
	} else {
		mark, ok = depth.BestAsk()
	}
	if !ok {
		if position != 0 {
			return 0, false
		}
		mark = 0
	}
	return ledger.Cash + position*mark, true
}

func (t *Trader) markToMarket(st *state.State, snap *market.Snapshot, depths map[string]*market.OrderDepth) {
	var total int64
	for sym, ledger := range st.PnL {
		pos := snap.PositionOf(sym)
		settled, ok := SettledPnL(ledger, pos, depths[sym])
		if !ok {
			continue
		}
		t.metrics.SetSettledPnL(sym, settled)
		total += settled
		t.logger.Debugw("product_pnl",
			"symbol", sym,
			"settled", settled,
			"cash", ledger.Cash,
			"volume", ledger.VolumeTraded,
			"position", pos)
	}
	if len(st.PnL) > 0 {
		t.logger.Infow("pnl", "timestamp", snap.Timestamp, "total", total)
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
