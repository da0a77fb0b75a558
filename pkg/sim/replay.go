package sim

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/uhyunpark/tickmaker/pkg/market"
	"github.com/uhyunpark/tickmaker/pkg/state"
	"github.com/uhyunpark/tickmaker/pkg/trader"
)

// Strategy is anything that turns a snapshot into a cycle result.
type Strategy interface {
	Run(snap *market.Snapshot) trader.Result
}

// Cycle is handed to the replay hook after each tick.
type Cycle struct {
	Snapshot *market.Snapshot
	Result   trader.Result
	Report   Report
}

type Summary struct {
	Cycles     int
	Orders     int
	Fills      int
	Rejected   int
	Position   map[string]int64
	PnL        map[string]int64 // settled at the last tick's book
	TraderData string
}

// ReadTicks parses a JSON-lines tick feed. Blank lines are skipped.
func ReadTicks(r io.Reader) ([]Tick, error) {
	var ticks []Tick
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var t Tick
		if err := json.Unmarshal(sc.Bytes(), &t); err != nil {
			return nil, fmt.Errorf("tick line %d: %w", line, err)
		}
		if n := len(ticks); n > 0 && t.Timestamp <= ticks[n-1].Timestamp {
			return nil, fmt.Errorf("tick line %d: timestamp %d not after %d", line, t.Timestamp, ticks[n-1].Timestamp)
		}
		ticks = append(ticks, t)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ticks, nil
}

// Replay drives s over ticks from an empty state.
func Replay(ctx context.Context, s Strategy, ex *Exchange, ticks []Tick, hook func(Cycle) error) (Summary, error) {
	return ReplayFrom(ctx, s, ex, ticks, "", hook)
}

// ReplayFrom drives s over ticks, threading the trader data blob from one
// cycle to the next starting at traderData. A hook error stops the replay.
func ReplayFrom(ctx context.Context, s Strategy, ex *Exchange, ticks []Tick, traderData string, hook func(Cycle) error) (Summary, error) {
	sum := Summary{TraderData: traderData}
	for _, tick := range ticks {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		snap := ex.Snapshot(tick, sum.TraderData)
		res := s.Run(snap)
		rep := ex.Apply(tick, res.Orders)

		sum.Cycles++
		sum.Orders += res.OrderCount()
		sum.Fills += rep.FillCount()
		sum.Rejected += len(rep.Rejected)
		sum.TraderData = res.TraderData

		if hook != nil {
			if err := hook(Cycle{Snapshot: snap, Result: res, Report: rep}); err != nil {
				return sum, err
			}
		}
	}

	sum.Position = ex.Positions()
	sum.PnL = make(map[string]int64)
	if len(ticks) > 0 {
		last := ticks[len(ticks)-1]
		for _, sym := range ex.Symbols() {
			depth := last.OrderDepths[sym].Normalize()
			if v, ok := trader.SettledPnL(state.PnL{Cash: ex.Cash(sym)}, ex.Position(sym), depth); ok {
				sum.PnL[sym] = v
			}
		}
	}
	return sum, nil
}
