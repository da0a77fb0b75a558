package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/uhyunpark/tickmaker/params"
	"github.com/uhyunpark/tickmaker/pkg/api"
	"github.com/uhyunpark/tickmaker/pkg/metrics"
	"github.com/uhyunpark/tickmaker/pkg/storage"
	"github.com/uhyunpark/tickmaker/pkg/trader"
	"github.com/uhyunpark/tickmaker/pkg/util"
)

func main() {
	// .env in the working directory, then the environment
	cfg, err := params.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	m := metrics.New("tickmaker")
	tr, err := trader.New(cfg.Products, cfg.Quoting, sugar, m)
	if err != nil {
		sugar.Fatalw("trader_init_failed", "err", err)
	}
	for _, p := range tr.Registry().List() {
		sugar.Infow("product_configured", "symbol", p.Symbol, "limit", p.Limit)
	}

	if err := os.MkdirAll(cfg.Storage.StateDBPath, 0o755); err != nil {
		sugar.Fatalw("state_dir_failed", "path", cfg.Storage.StateDBPath, "err", err)
	}
	store, err := storage.NewPebbleStore(cfg.Storage.StateDBPath)
	if err != nil {
		sugar.Fatalw("state_db_open_failed", "path", cfg.Storage.StateDBPath, "err", err)
	}
	defer store.Close()

	var journal storage.Journal = storage.NewNopJournal()
	if cfg.Storage.JournalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.JournalPath), 0o755); err != nil {
			sugar.Fatalw("journal_dir_failed", "path", cfg.Storage.JournalPath, "err", err)
		}
		fj, err := storage.NewFileJournal(cfg.Storage.JournalPath)
		if err != nil {
			sugar.Fatalw("journal_open_failed", "path", cfg.Storage.JournalPath, "err", err)
		}
		journal = fj
	}
	defer journal.Close()

	server := api.NewServer(api.Options{
		Trader:         tr,
		Metrics:        m,
		Store:          store,
		Journal:        journal,
		Logger:         sugar,
		AllowedOrigins: cfg.API.AllowedOrigins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow("quoter_starting",
		"addr", cfg.API.Addr,
		"state_db", cfg.Storage.StateDBPath,
		"journal", cfg.Storage.JournalPath)
	if err := server.Start(ctx, cfg.API.Addr); err != nil {
		sugar.Errorw("api_server_failed", "err", err)
		return
	}
	sugar.Info("quoter_stopped")
}

func newLogger(cfg params.Log) (*zap.Logger, error) {
	if cfg.File != "" {
		return util.NewLoggerWithFile(cfg.File, cfg.Level)
	}
	return util.NewLogger(cfg.Level)
}
