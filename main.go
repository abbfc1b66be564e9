package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"trading-agent/internal/agent"
	"trading-agent/internal/api"
	"trading-agent/internal/events"
	"trading-agent/internal/ledger"
	"trading-agent/internal/monitor"
	sigengine "trading-agent/internal/signal"
	"trading-agent/pkg/cache"
	"trading-agent/pkg/config"
	"trading-agent/pkg/db"
	"trading-agent/pkg/market/upbit"
)

const version = "0.3.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	strat, err := config.LoadStrategy(cfg.StrategyPath)
	if err != nil {
		log.Fatalf("strategy load failed: %v", err)
	}

	log.Printf("starting trading agent v%s mode=%s markets=%v interval=%s", version, cfg.Mode, cfg.Markets, cfg.CandleInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations failed: %v", err)
	}

	// Restore the portfolio; the persisted form is the source of truth.
	ldgr := ledger.New(database, cfg.InitialBalance)
	if err := ldgr.Load(ctx); err != nil {
		log.Fatalf("ledger restore failed: %v", err)
	}
	log.Printf("ledger restored: cash=%.2f positions=%d trades=%d",
		ldgr.CashBalance(), len(ldgr.Positions()), len(ldgr.TradeHistory()))

	prices := cache.NewPriceCache()
	metrics := monitor.NewMetrics()
	client := upbit.NewClient()

	// Live marks between cycles; candle closes fill any gap.
	if cfg.EnableStream {
		startTickerStream(ctx, cfg.Markets, prices, bus)
	}

	ag := &agent.Agent{
		Source:   client,
		Ledger:   ldgr,
		Engine:   sigengine.NewEngine(strat),
		Strategy: strat,
		Cfg:      cfg,
		Prices:   prices,
		Bus:      bus,
		Metrics:  metrics,
	}

	srv := api.NewServer(bus, ldgr, prices, metrics, api.SystemMeta{
		Mode:     cfg.Mode,
		Markets:  cfg.Markets,
		Interval: cfg.CandleInterval,
		Version:  version,
	})
	go func() {
		if err := srv.Start(":" + cfg.Port); err != nil {
			log.Printf("api server stopped: %v", err)
		}
	}()

	if cfg.RunOnce {
		if err := ag.RunCycle(ctx); err != nil {
			log.Fatalf("cycle failed: %v", err)
		}
		log.Println("run-once cycle complete")
		return
	}

	go ag.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")
	cancel()
}

func startTickerStream(ctx context.Context, markets []string, prices *cache.PriceCache, bus *events.Bus) {
	stream := upbit.NewStreamClient()
	ch, stop, err := stream.SubscribeTickers(ctx, markets)
	if err != nil {
		log.Printf("ticker stream unavailable, using candle closes only: %v", err)
		return
	}
	go func() {
		defer stop()
		for t := range ch {
			prices.Set(t.Market, t.Price)
			bus.Publish(events.EventPriceTick, t)
		}
	}()
}
