package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"trading-agent/internal/events"
	"trading-agent/internal/indicators"
	"trading-agent/internal/ledger"
	"trading-agent/internal/monitor"
	"trading-agent/internal/signal"
	"trading-agent/pkg/cache"
	"trading-agent/pkg/config"
	"trading-agent/pkg/market/upbit"
)

// CandleSource supplies ordered OHLCV candles, oldest-first.
type CandleSource interface {
	GetCandles(ctx context.Context, market, unit string, count int) ([]upbit.Candle, error)
}

// Agent runs one trading cycle per invocation: pull candles, compute
// indicators, evaluate the signal rules and (in paper mode) apply the
// result to the ledger. A market whose data is unavailable is skipped
// for the cycle; the next cycle retries it.
type Agent struct {
	Source   CandleSource
	Ledger   *ledger.Ledger
	Engine   *signal.Engine
	Strategy config.Strategy
	Cfg      *config.Config
	Prices   *cache.PriceCache
	Bus      *events.Bus
	Metrics  *monitor.Metrics
}

// RunCycle performs a single pass over all configured markets. It returns
// an error only for persistence failures, which abort the cycle without
// committing partial trade state; data failures merely skip the market.
func (a *Agent) RunCycle(ctx context.Context) error {
	params := indicators.Params{
		RSIPeriod:     a.Strategy.RSIPeriod,
		MAShortPeriod: a.Strategy.MAShortPeriod,
		MALongPeriod:  a.Strategy.MALongPeriod,
	}

	for _, market := range a.Cfg.Markets {
		candles, err := a.Source.GetCandles(ctx, market, a.Cfg.CandleInterval, a.Cfg.CandleCount)
		if err != nil {
			log.Printf("cycle: skip %s: %v", market, err)
			if a.Metrics != nil {
				a.Metrics.MarketSkipped()
			}
			continue
		}

		closes := upbit.Closes(candles)
		if len(closes) == 0 {
			log.Printf("cycle: skip %s: no candles", market)
			if a.Metrics != nil {
				a.Metrics.MarketSkipped()
			}
			continue
		}
		curr := indicators.Compute(closes, params)
		prev := indicators.Compute(closes[:len(closes)-1], params)

		var posView *signal.Position
		if pos, held := a.Ledger.Position(market); held {
			posView = &signal.Position{Quantity: pos.Quantity, AvgEntryPrice: pos.AvgEntryPrice}
		}

		sig := a.Engine.Evaluate(market, curr, prev, posView)
		a.logSignal(sig)
		if a.Prices != nil {
			a.Prices.Set(market, curr.Price)
		}
		if a.Metrics != nil {
			a.Metrics.SignalEmitted(string(sig.Action))
		}
		if a.Bus != nil {
			a.Bus.Publish(events.EventSignal, sig)
		}

		if a.Cfg.Mode == config.ModeDryRun {
			continue
		}

		marks := a.marks()
		res, err := a.Ledger.ApplySignal(ctx, sig, curr.Price, marks, a.Strategy)
		if err != nil {
			return fmt.Errorf("cycle %s: %w", market, err)
		}
		if res == nil {
			continue
		}

		t := res.Trade
		log.Printf("trade: %s %s qty=%.6f price=%.2f fee=%.2f pnl=%.2f cash=%.2f (%s)",
			t.Side, t.Market, t.Qty, t.Price, t.Fee, t.RealizedPnL, t.CashAfter, t.Reason)
		if a.Metrics != nil {
			a.Metrics.TradeExecuted()
		}
		if a.Bus != nil {
			a.Bus.Publish(events.EventTradeExecuted, t)
		}
	}

	if a.Metrics != nil {
		a.Metrics.CycleCompleted()
	}
	status := a.Ledger.Status(a.marks())
	a.logStatus(status)
	if a.Bus != nil {
		a.Bus.Publish(events.EventCycleComplete, status)
	}
	return nil
}

// Run executes cycles on the configured interval until the context ends.
// A failed cycle is logged and retried on the next tick.
func (a *Agent) Run(ctx context.Context) {
	if err := a.RunCycle(ctx); err != nil {
		log.Printf("cycle failed: %v", err)
	}
	if a.Cfg.RunOnce {
		return
	}

	ticker := time.NewTicker(a.Cfg.CycleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.RunCycle(ctx); err != nil {
				log.Printf("cycle failed: %v", err)
			}
		}
	}
}

// marks merges streamed mark prices over the latest candle closes.
func (a *Agent) marks() map[string]float64 {
	if a.Prices == nil {
		return nil
	}
	return a.Prices.Snapshot()
}

func (a *Agent) logSignal(sig signal.Signal) {
	rsi := "n/a"
	if sig.Snapshot.RSI.Valid {
		rsi = fmt.Sprintf("%.1f", sig.Snapshot.RSI.Float64)
	}
	maS, maL := "n/a", "n/a"
	if sig.Snapshot.MAShort.Valid {
		maS = fmt.Sprintf("%.2f", sig.Snapshot.MAShort.Float64)
	}
	if sig.Snapshot.MALong.Valid {
		maL = fmt.Sprintf("%.2f", sig.Snapshot.MALong.Float64)
	}
	log.Printf("signal: %-10s %-10s price=%.2f rsi=%s ma_short=%s ma_long=%s reason=%s",
		sig.Market, sig.Action, sig.Snapshot.Price, rsi, maS, maL, sig.Reason)
}

func (a *Agent) logStatus(st ledger.Status) {
	log.Printf("portfolio: cash=%.2f positions=%.2f equity=%.2f realized=%.2f unrealized=%.2f trades=%d",
		st.CashBalance, st.PositionsValue, st.TotalEquity, st.RealizedPnL, st.UnrealizedPnL, st.TradeCount)
	for _, p := range st.Positions {
		log.Printf("  %-10s qty=%.6f entry=%.2f mark=%.2f pnl=%.2f (%.2f%%)",
			p.Market, p.Quantity, p.AvgEntryPrice, p.MarkPrice, p.UnrealizedPnL, p.PnLPct)
	}
}
