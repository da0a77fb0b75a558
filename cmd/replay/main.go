// Command replay runs the trader over a recorded tick file against the
// local exchange simulator and prints the resulting positions and PnL.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/uhyunpark/tickmaker/params"
	"github.com/uhyunpark/tickmaker/pkg/sim"
	"github.com/uhyunpark/tickmaker/pkg/storage"
	"github.com/uhyunpark/tickmaker/pkg/trader"
	"github.com/uhyunpark/tickmaker/pkg/util"
)

func main() {
	session := flag.String("session", "replay", "checkpoint session id")
	resume := flag.Bool("resume", false, "start from the session's latest checkpoint")
	envPath := flag.String("env", "", ".env file (default: ./.env)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] ticks.jsonl\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := params.Load(*envPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := util.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		sugar.Fatalw("ticks_open_failed", "path", flag.Arg(0), "err", err)
	}
	ticks, err := sim.ReadTicks(f)
	f.Close()
	if err != nil {
		sugar.Fatalw("ticks_parse_failed", "path", flag.Arg(0), "err", err)
	}

	tr, err := trader.New(cfg.Products, cfg.Quoting, sugar, nil)
	if err != nil {
		sugar.Fatalw("trader_init_failed", "err", err)
	}

	if err := os.MkdirAll(cfg.Storage.StateDBPath, 0o755); err != nil {
		sugar.Fatalw("state_dir_failed", "path", cfg.Storage.StateDBPath, "err", err)
	}
	store, err := storage.NewPebbleStore(cfg.Storage.StateDBPath)
	if err != nil {
		sugar.Fatalw("state_db_open_failed", "path", cfg.Storage.StateDBPath, "err", err)
	}
	defer store.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.JournalPath), 0o755); err != nil {
		sugar.Fatalw("journal_dir_failed", "path", cfg.Storage.JournalPath, "err", err)
	}
	journal, err := storage.NewFileJournal(cfg.Storage.JournalPath)
	if err != nil {
		sugar.Fatalw("journal_open_failed", "path", cfg.Storage.JournalPath, "err", err)
	}
	defer journal.Close()

	ex := sim.NewExchange(tr.Registry(), sugar)
	traderData := ""
	if *resume {
		cp, ok, err := store.LatestCheckpoint(*session)
		if err != nil {
			sugar.Fatalw("checkpoint_load_failed", "session", *session, "err", err)
		}
		if ok {
			if len(cp.Account) > 0 {
				var acct sim.Account
				if err := json.Unmarshal(cp.Account, &acct); err != nil {
					sugar.Fatalw("checkpoint_account_invalid", "session", *session, "timestamp", cp.Timestamp, "err", err)
				}
				ex.Restore(acct)
			}
			traderData = cp.TraderData
			// skip ticks the checkpoint already covers
			i := 0
			for i < len(ticks) && ticks[i].Timestamp <= cp.Timestamp {
				i++
			}
			ticks = ticks[i:]
			sugar.Infow("replay_resumed", "session", *session, "from", cp.Timestamp, "remaining", len(ticks))
		}
	} else if err := store.DeleteSession(*session); err != nil {
		sugar.Fatalw("session_reset_failed", "session", *session, "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := util.RealClock{}
	sum, err := sim.ReplayFrom(ctx, tr, ex, ticks, traderData, func(c sim.Cycle) error {
		acct, err := json.Marshal(ex.Account())
		if err != nil {
			return err
		}
		if err := store.SaveCheckpoint(storage.Checkpoint{
			Session:    *session,
			Timestamp:  c.Snapshot.Timestamp,
			TraderData: c.Result.TraderData,
			Account:    acct,
			SavedAt:    clock.Now(),
		}); err != nil {
			return err
		}
		return journal.Append(storage.Entry{
			Session:    *session,
			Timestamp:  c.Snapshot.Timestamp,
			Position:   c.Snapshot.Position,
			FairValues: c.Result.FairValues,
			Orders:     c.Result.Orders,
			TraderData: c.Result.TraderData,
		})
	})
	if err != nil {
		sugar.Errorw("replay_stopped", "cycles", sum.Cycles, "err", err)
	}

	sugar.Infow("replay_done",
		"session", *session,
		"cycles", sum.Cycles,
		"orders", sum.Orders,
		"fills", sum.Fills,
		"rejected", sum.Rejected)

	var total int64
	for _, sym := range ex.Symbols() {
		pnl := sum.PnL[sym]
		total += pnl
		fmt.Printf("%-12s position %6d  pnl %10d\n", sym, sum.Position[sym], pnl)
	}
	fmt.Printf("%-12s %26d\n", "TOTAL", total)
}
