package agent

import (
	"context"
	"fmt"
	"testing"

	"trading-agent/internal/ledger"
	"trading-agent/internal/monitor"
	"trading-agent/internal/signal"
	"trading-agent/pkg/cache"
	"trading-agent/pkg/config"
	"trading-agent/pkg/db"
	"trading-agent/pkg/market/upbit"
)

// fakeSource serves canned candle series per market.
type fakeSource struct {
	candles map[string][]upbit.Candle
	errs    map[string]error
}

func (f *fakeSource) GetCandles(ctx context.Context, market, unit string, count int) ([]upbit.Candle, error) {
	if err, ok := f.errs[market]; ok {
		return nil, err
	}
	return f.candles[market], nil
}

func candlesFromCloses(market string, closes []float64) []upbit.Candle {
	out := make([]upbit.Candle, len(closes))
	for i, c := range closes {
		out[i] = upbit.Candle{Market: market, Timestamp: int64(i+1) * 1000, Close: c}
	}
	return out
}

// goldenCrossCloses produces a MA(2) over MA(3) golden cross on the final
// candle with RSI(4) in neutral territory.
func goldenCrossCloses() []float64 {
	return []float64{10, 9, 8, 8.6, 12}
}

func testStrategy() config.Strategy {
	return config.Strategy{
		RSIPeriod:           4,
		MAShortPeriod:       2,
		MALongPeriod:        3,
		RSIOverbought:       70,
		RSIOversold:         30,
		StopLossPct:         0.05,
		TakeProfitPct:       0.15,
		InvestFraction:      0.95,
		MaxPerAssetFraction: 1.0,
		FeeRate:             0.0005,
		MinNotional:         0,
	}
}

func newTestAgent(t *testing.T, mode string, source CandleSource) (*Agent, *ledger.Ledger, *db.Database) {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ldgr := ledger.New(database, 1_000_000)
	if err := ldgr.Load(context.Background()); err != nil {
		t.Fatalf("load ledger: %v", err)
	}

	strat := testStrategy()
	cfg := &config.Config{
		Markets:        []string{"KRW-BTC"},
		CandleInterval: "days",
		CandleCount:    5,
		Mode:           mode,
		InitialBalance: 1_000_000,
	}
	a := &Agent{
		Source:   source,
		Ledger:   ldgr,
		Engine:   signal.NewEngine(strat),
		Strategy: strat,
		Cfg:      cfg,
		Prices:   cache.NewPriceCache(),
		Metrics:  monitor.NewMetrics(),
	}
	return a, ldgr, database
}

func TestRunCyclePaperModeExecutesBuy(t *testing.T) {
	source := &fakeSource{candles: map[string][]upbit.Candle{
		"KRW-BTC": candlesFromCloses("KRW-BTC", goldenCrossCloses()),
	}}
	a, ldgr, _ := newTestAgent(t, config.ModePaper, source)

	if err := a.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	pos, held := ldgr.Position("KRW-BTC")
	if !held {
		t.Fatal("expected a position after golden cross in paper mode")
	}
	if pos.AvgEntryPrice != 12 {
		t.Errorf("entry price=%v, expected latest close 12", pos.AvgEntryPrice)
	}
	if len(ldgr.TradeHistory()) != 1 {
		t.Errorf("trades=%d, expected 1", len(ldgr.TradeHistory()))
	}
	if got := a.Metrics.Snapshot(); got.TradesExecuted != 1 || got.CyclesRun != 1 {
		t.Errorf("metrics=%+v, expected 1 trade and 1 cycle", got)
	}
	if price, ok := a.Prices.Get("KRW-BTC"); !ok || price != 12 {
		t.Errorf("cached price=%v ok=%v, expected 12", price, ok)
	}
}

func TestRunCycleDryRunNeverTrades(t *testing.T) {
	source := &fakeSource{candles: map[string][]upbit.Candle{
		"KRW-BTC": candlesFromCloses("KRW-BTC", goldenCrossCloses()),
	}}
	a, ldgr, _ := newTestAgent(t, config.ModeDryRun, source)

	if err := a.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if _, held := ldgr.Position("KRW-BTC"); held {
		t.Fatal("dry-run must not open positions")
	}
	if len(ldgr.TradeHistory()) != 0 {
		t.Fatal("dry-run must not record trades")
	}
	if got := a.Metrics.Snapshot(); got.Signals["BUY"] != 1 {
		t.Errorf("signals=%v, expected one BUY evaluated", got.Signals)
	}
}

func TestRunCycleSkipsUnavailableMarket(t *testing.T) {
	source := &fakeSource{
		candles: map[string][]upbit.Candle{
			"KRW-ETH": candlesFromCloses("KRW-ETH", goldenCrossCloses()),
		},
		errs: map[string]error{
			"KRW-BTC": fmt.Errorf("%w: upbit status 500", upbit.ErrDataUnavailable),
		},
	}
	a, ldgr, _ := newTestAgent(t, config.ModePaper, source)
	a.Cfg.Markets = []string{"KRW-BTC", "KRW-ETH"}

	if err := a.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle should not fail on data errors: %v", err)
	}

	if _, held := ldgr.Position("KRW-BTC"); held {
		t.Error("skipped market must not trade")
	}
	if _, held := ldgr.Position("KRW-ETH"); !held {
		t.Error("healthy market should still trade")
	}
	if got := a.Metrics.Snapshot(); got.MarketsSkipped != 1 {
		t.Errorf("markets skipped=%d, expected 1", got.MarketsSkipped)
	}
}

func TestRunCyclePersistenceFailureAbortsCycle(t *testing.T) {
	source := &fakeSource{candles: map[string][]upbit.Candle{
		"KRW-BTC": candlesFromCloses("KRW-BTC", goldenCrossCloses()),
	}}
	a, ldgr, database := newTestAgent(t, config.ModePaper, source)

	database.Close()

	if err := a.RunCycle(context.Background()); err == nil {
		t.Fatal("expected persistence failure to abort the cycle")
	}
	if len(ldgr.TradeHistory()) != 0 {
		t.Fatal("no trade should be committed in memory")
	}
}
