package ledger

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"trading-agent/internal/signal"
	"trading-agent/pkg/config"
	"trading-agent/pkg/db"
)

func testStrategy() config.Strategy {
	s := config.DefaultStrategy()
	// The sizing scenario assumes no per-asset cap.
	s.MaxPerAssetFraction = 1.0
	return s
}

func newTestLedger(t *testing.T, initialBalance float64) (*Ledger, *db.Database) {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	l := New(database, initialBalance)
	// Deterministic clock and trade IDs for assertions.
	var seq int
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time {
		seq++
		return base.Add(time.Duration(seq) * time.Minute)
	}
	var ids int
	l.newID = func() string {
		ids++
		return fmt.Sprintf("trade-%d", ids)
	}
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	return l, database
}

func buySignal(market string) signal.Signal {
	return signal.Signal{Market: market, Action: signal.ActionBuy, Rule: "golden-cross"}
}

func sellSignal(market, rule string) signal.Signal {
	return signal.Signal{Market: market, Action: signal.ActionSell, Rule: rule}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestApplySignalBuySizing(t *testing.T) {
	l, _ := newTestLedger(t, 1_000_000)
	cfg := testStrategy()
	ctx := context.Background()

	res, err := l.ApplySignal(ctx, buySignal("KRW-BTC"), 50_000, nil, cfg)
	if err != nil {
		t.Fatalf("ApplySignal returned error: %v", err)
	}
	if res == nil {
		t.Fatal("expected an executed trade")
	}

	wantGross := 950_000.0
	wantFee := wantGross * cfg.FeeRate
	wantQty := (wantGross - wantFee) / 50_000

	if !almostEqual(res.Trade.Fee, wantFee) {
		t.Errorf("fee=%v, expected %v", res.Trade.Fee, wantFee)
	}
	if !almostEqual(res.Trade.Qty, wantQty) {
		t.Errorf("qty=%v, expected %v", res.Trade.Qty, wantQty)
	}
	if !almostEqual(l.CashBalance(), 50_000) {
		t.Errorf("cash=%v, expected 50000", l.CashBalance())
	}

	pos, held := l.Position("KRW-BTC")
	if !held {
		t.Fatal("expected an open position")
	}
	if pos.AvgEntryPrice != 50_000 {
		t.Errorf("avg entry=%v, expected 50000", pos.AvgEntryPrice)
	}
	if !almostEqual(pos.Quantity, wantQty) {
		t.Errorf("position qty=%v, expected %v", pos.Quantity, wantQty)
	}
	if len(l.TradeHistory()) != 1 {
		t.Errorf("trade history length=%d, expected 1", len(l.TradeHistory()))
	}
}

func TestApplySignalBuyRespectsPerAssetCap(t *testing.T) {
	l, _ := newTestLedger(t, 1_000_000)
	cfg := testStrategy()
	cfg.MaxPerAssetFraction = 0.30

	res, err := l.ApplySignal(context.Background(), buySignal("KRW-BTC"), 50_000, nil, cfg)
	if err != nil {
		t.Fatalf("ApplySignal returned error: %v", err)
	}
	if res == nil {
		t.Fatal("expected an executed trade")
	}

	// Equity is all cash, so the cap binds at 300k instead of 950k.
	wantGross := 300_000.0
	if !almostEqual(l.CashBalance(), 1_000_000-wantGross) {
		t.Errorf("cash=%v, expected %v", l.CashBalance(), 1_000_000-wantGross)
	}
	if !almostEqual(res.Trade.Fee, wantGross*cfg.FeeRate) {
		t.Errorf("fee=%v, expected %v", res.Trade.Fee, wantGross*cfg.FeeRate)
	}
}

func TestApplySignalNoPyramiding(t *testing.T) {
	l, _ := newTestLedger(t, 1_000_000)
	cfg := testStrategy()
	ctx := context.Background()

	if res, err := l.ApplySignal(ctx, buySignal("KRW-BTC"), 50_000, nil, cfg); err != nil || res == nil {
		t.Fatalf("first buy: res=%v err=%v", res, err)
	}
	cashAfterFirst := l.CashBalance()

	res, err := l.ApplySignal(ctx, buySignal("KRW-BTC"), 48_000, nil, cfg)
	if err != nil {
		t.Fatalf("second buy returned error: %v", err)
	}
	if res != nil {
		t.Fatal("second buy while holding should be a no-op")
	}
	if l.CashBalance() != cashAfterFirst {
		t.Errorf("cash changed on skipped buy: %v != %v", l.CashBalance(), cashAfterFirst)
	}
}

func TestApplySignalBuyBelowMinNotionalSkips(t *testing.T) {
	l, _ := newTestLedger(t, 1_000)
	cfg := testStrategy() // min notional 5000

	res, err := l.ApplySignal(context.Background(), buySignal("KRW-BTC"), 50_000, nil, cfg)
	if err != nil {
		t.Fatalf("ApplySignal returned error: %v", err)
	}
	if res != nil {
		t.Fatal("buy below minimum notional should be skipped")
	}
	if l.CashBalance() != 1_000 {
		t.Errorf("cash=%v, expected unchanged 1000", l.CashBalance())
	}
}

func TestApplySignalSellRealizesPnL(t *testing.T) {
	l, _ := newTestLedger(t, 1_000_000)
	cfg := testStrategy()
	ctx := context.Background()

	buyRes, err := l.ApplySignal(ctx, buySignal("KRW-BTC"), 50_000, nil, cfg)
	if err != nil || buyRes == nil {
		t.Fatalf("buy: res=%v err=%v", buyRes, err)
	}
	qty := buyRes.Trade.Qty
	cashAfterBuy := l.CashBalance()

	sellPrice := 60_000.0
	res, err := l.ApplySignal(ctx, sellSignal("KRW-BTC", "take-profit"), sellPrice, nil, cfg)
	if err != nil {
		t.Fatalf("sell returned error: %v", err)
	}
	if res == nil {
		t.Fatal("expected an executed sell")
	}

	proceeds := qty * sellPrice * (1 - cfg.FeeRate)
	wantRealized := proceeds - qty*50_000

	if !almostEqual(res.Trade.RealizedPnL, wantRealized) {
		t.Errorf("trade pnl=%v, expected %v", res.Trade.RealizedPnL, wantRealized)
	}
	if !almostEqual(l.RealizedPnL(), wantRealized) {
		t.Errorf("ledger realized pnl=%v, expected %v", l.RealizedPnL(), wantRealized)
	}
	if !almostEqual(l.CashBalance(), cashAfterBuy+proceeds) {
		t.Errorf("cash=%v, expected %v", l.CashBalance(), cashAfterBuy+proceeds)
	}
	if _, held := l.Position("KRW-BTC"); held {
		t.Error("position should be closed after full sell")
	}
	if res.Position != nil {
		t.Error("sell result should carry no remaining position")
	}
}

func TestApplySignalSellWithoutPositionIsNoOp(t *testing.T) {
	l, _ := newTestLedger(t, 1_000_000)
	cfg := testStrategy()

	res, err := l.ApplySignal(context.Background(), sellSignal("KRW-ETH", "dead-cross"), 3_000, nil, cfg)
	if err != nil {
		t.Fatalf("ApplySignal returned error: %v", err)
	}
	if res != nil {
		t.Fatal("sell without a position should be a no-op")
	}
	if l.CashBalance() != 1_000_000 || len(l.TradeHistory()) != 0 {
		t.Error("ledger should be unchanged by a no-op sell")
	}
}

func TestApplySignalHoldIsNoOp(t *testing.T) {
	l, _ := newTestLedger(t, 1_000_000)
	res, err := l.ApplySignal(context.Background(), signal.Signal{Market: "KRW-BTC", Action: signal.ActionHold}, 50_000, nil, testStrategy())
	if err != nil || res != nil {
		t.Fatalf("HOLD should be a no-op: res=%v err=%v", res, err)
	}
}

func TestUnrealizedPnLAndEquity(t *testing.T) {
	l, _ := newTestLedger(t, 1_000_000)
	cfg := testStrategy()
	ctx := context.Background()

	res, err := l.ApplySignal(ctx, buySignal("KRW-BTC"), 50_000, nil, cfg)
	if err != nil || res == nil {
		t.Fatalf("buy: res=%v err=%v", res, err)
	}
	qty := res.Trade.Qty

	if pnl := l.UnrealizedPnL("KRW-BTC", 55_000); !almostEqual(pnl, (55_000-50_000)*qty) {
		t.Errorf("unrealized pnl=%v, expected %v", pnl, (55_000-50_000)*qty)
	}
	if pnl := l.UnrealizedPnL("KRW-ETH", 55_000); pnl != 0 {
		t.Errorf("unrealized pnl without position=%v, expected 0", pnl)
	}

	marks := map[string]float64{"KRW-BTC": 55_000}
	wantEquity := l.CashBalance() + qty*55_000
	if eq := l.TotalEquity(marks); !almostEqual(eq, wantEquity) {
		t.Errorf("equity=%v, expected %v", eq, wantEquity)
	}
	// Missing mark falls back to entry price.
	wantFallback := l.CashBalance() + qty*50_000
	if eq := l.TotalEquity(nil); !almostEqual(eq, wantFallback) {
		t.Errorf("equity without marks=%v, expected %v", eq, wantFallback)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	l, database := newTestLedger(t, 3_000_000)
	cfg := testStrategy()
	cfg.MaxPerAssetFraction = 0.30
	ctx := context.Background()

	// A few trades across two markets, leaving one open position.
	if res, err := l.ApplySignal(ctx, buySignal("KRW-BTC"), 50_000, nil, cfg); err != nil || res == nil {
		t.Fatalf("buy btc: res=%v err=%v", res, err)
	}
	if res, err := l.ApplySignal(ctx, buySignal("KRW-ETH"), 3_000, nil, cfg); err != nil || res == nil {
		t.Fatalf("buy eth: res=%v err=%v", res, err)
	}
	if res, err := l.ApplySignal(ctx, sellSignal("KRW-ETH", "stop-loss"), 2_800, nil, cfg); err != nil || res == nil {
		t.Fatalf("sell eth: res=%v err=%v", res, err)
	}

	restored := New(database, 0)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if !almostEqual(restored.CashBalance(), l.CashBalance()) {
		t.Errorf("cash=%v, expected %v", restored.CashBalance(), l.CashBalance())
	}
	if !almostEqual(restored.RealizedPnL(), l.RealizedPnL()) {
		t.Errorf("realized=%v, expected %v", restored.RealizedPnL(), l.RealizedPnL())
	}

	wantPos, _ := l.Position("KRW-BTC")
	gotPos, held := restored.Position("KRW-BTC")
	if !held {
		t.Fatal("restored ledger missing KRW-BTC position")
	}
	if !almostEqual(gotPos.Quantity, wantPos.Quantity) || gotPos.AvgEntryPrice != wantPos.AvgEntryPrice {
		t.Errorf("position=%+v, expected %+v", gotPos, wantPos)
	}
	if !gotPos.OpenedAt.Equal(wantPos.OpenedAt) {
		t.Errorf("opened_at=%v, expected %v", gotPos.OpenedAt, wantPos.OpenedAt)
	}
	if _, held := restored.Position("KRW-ETH"); held {
		t.Error("closed KRW-ETH position should not be restored")
	}

	wantTrades := l.TradeHistory()
	gotTrades := restored.TradeHistory()
	if len(gotTrades) != len(wantTrades) {
		t.Fatalf("trade history length=%d, expected %d", len(gotTrades), len(wantTrades))
	}
	for i := range wantTrades {
		w, g := wantTrades[i], gotTrades[i]
		if g.ID != w.ID || g.Market != w.Market || g.Side != w.Side || g.Reason != w.Reason {
			t.Errorf("trade %d = %+v, expected %+v", i, g, w)
		}
		if !almostEqual(g.Qty, w.Qty) || !almostEqual(g.Price, w.Price) || !almostEqual(g.Fee, w.Fee) ||
			!almostEqual(g.RealizedPnL, w.RealizedPnL) || !almostEqual(g.CashAfter, w.CashAfter) {
			t.Errorf("trade %d amounts = %+v, expected %+v", i, g, w)
		}
		if !g.ExecutedAt.Equal(w.ExecutedAt) {
			t.Errorf("trade %d executed_at=%v, expected %v", i, g.ExecutedAt, w.ExecutedAt)
		}
	}
}

func TestPersistenceFailureLeavesLedgerUntouched(t *testing.T) {
	l, database := newTestLedger(t, 1_000_000)
	cfg := testStrategy()

	// Kill the storage underneath the ledger.
	database.Close()

	res, err := l.ApplySignal(context.Background(), buySignal("KRW-BTC"), 50_000, nil, cfg)
	if err == nil {
		t.Fatal("expected a persistence error")
	}
	if res != nil {
		t.Fatal("no trade result should be returned on persistence failure")
	}
	if l.CashBalance() != 1_000_000 {
		t.Errorf("cash=%v, expected unchanged 1000000", l.CashBalance())
	}
	if _, held := l.Position("KRW-BTC"); held {
		t.Error("no position should exist after failed persist")
	}
	if len(l.TradeHistory()) != 0 {
		t.Error("trade history should be empty after failed persist")
	}
}

func TestLoadMissingStateInitializesStartingBalance(t *testing.T) {
	l, _ := newTestLedger(t, 2_500_000)
	if l.CashBalance() != 2_500_000 {
		t.Fatalf("cash=%v, expected initial 2500000", l.CashBalance())
	}
	if len(l.Positions()) != 0 || len(l.TradeHistory()) != 0 {
		t.Fatal("fresh ledger should have no positions or trades")
	}
	if l.RealizedPnL() != 0 {
		t.Fatalf("realized=%v, expected 0", l.RealizedPnL())
	}
}
