package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"trading-agent/internal/signal"
	"trading-agent/pkg/config"
	"trading-agent/pkg/db"
)

// Ledger owns the paper portfolio: cash balance, open positions, realized
// PnL and the append-only trade history. Every executed trade is committed
// to the database in one transaction before the in-memory state mutates,
// so the persisted form stays the source of truth across restarts.
//
// The ledger is owned by a single agent loop per process; running two
// processes against the same database file is unsupported.
type Ledger struct {
	mu             sync.RWMutex
	database       *db.Database
	cash           float64
	realized       float64
	positions      map[string]Position
	trades         []db.TradeRow
	initialBalance float64

	now   func() time.Time
	newID func() string
}

// TradeResult describes one executed trade. Position is the resulting
// holding, nil when the trade closed it.
type TradeResult struct {
	Trade    db.TradeRow
	Position *Position
}

// New creates a ledger bound to its database. Call Load before use.
func New(database *db.Database, initialBalance float64) *Ledger {
	return &Ledger{
		database:       database,
		positions:      make(map[string]Position),
		initialBalance: initialBalance,
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
	}
}

// Load restores the ledger from the database. A missing account row
// initializes the configured starting balance with no positions.
func (l *Ledger) Load(ctx context.Context) error {
	row, found, err := l.database.LoadLedger(ctx)
	if err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	if !found {
		if err := l.database.InitLedger(ctx, l.initialBalance, l.now()); err != nil {
			return fmt.Errorf("restore ledger: %w", err)
		}
		row = db.LedgerRow{CashBalance: l.initialBalance}
	}

	positions, err := l.database.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	trades, err := l.database.ListTrades(ctx)
	if err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = row.CashBalance
	l.realized = row.RealizedPnL
	l.positions = make(map[string]Position, len(positions))
	for _, p := range positions {
		l.positions[p.Market] = Position{
			Market:        p.Market,
			Quantity:      p.Qty,
			AvgEntryPrice: p.AvgPrice,
			OpenedAt:      p.OpenedAt,
		}
	}
	l.trades = trades
	return nil
}

// ApplySignal executes a signal against the portfolio at the given price.
// marks supplies current prices for the per-asset exposure cap; missing
// marks fall back to each position's entry price. It returns nil when no
// trade was executed (HOLD, unaffordable BUY, SELL with nothing to sell).
// A persistence failure leaves the in-memory ledger untouched.
func (l *Ledger) ApplySignal(ctx context.Context, sig signal.Signal, price float64, marks map[string]float64, cfg config.Strategy) (*TradeResult, error) {
	if price <= 0 {
		return nil, fmt.Errorf("apply signal: non-positive price %.4f for %s", price, sig.Market)
	}

	switch sig.Action {
	case signal.ActionBuy, signal.ActionStrongBuy:
		return l.buy(ctx, sig, price, marks, cfg)
	case signal.ActionSell:
		return l.sell(ctx, sig, price, cfg)
	default:
		return nil, nil
	}
}

func (l *Ledger) buy(ctx context.Context, sig signal.Signal, price float64, marks map[string]float64, cfg config.Strategy) (*TradeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// No pyramiding: one open position per market.
	if _, held := l.positions[sig.Market]; held {
		return nil, nil
	}
	if l.cash <= 0 {
		return nil, nil
	}

	equity := l.totalEquityLocked(marks)
	gross := l.cash * cfg.InvestFraction
	if maxGross := equity * cfg.MaxPerAssetFraction; gross > maxGross {
		gross = maxGross
	}
	if gross > l.cash {
		gross = l.cash
	}
	if gross < cfg.MinNotional {
		return nil, nil
	}

	fee := gross * cfg.FeeRate
	qty := (gross - fee) / price
	now := l.now()

	trade := db.TradeRow{
		ID:         l.newID(),
		Market:     sig.Market,
		Side:       string(signal.ActionBuy),
		Qty:        qty,
		Price:      price,
		Fee:        fee,
		CashAfter:  l.cash - gross,
		Reason:     sig.Rule,
		ExecutedAt: now,
	}
	pos := Position{Market: sig.Market, Quantity: qty, AvgEntryPrice: price, OpenedAt: now}
	posRow := db.PositionRow{Market: pos.Market, Qty: pos.Quantity, AvgPrice: pos.AvgEntryPrice, OpenedAt: pos.OpenedAt}
	row := db.LedgerRow{CashBalance: trade.CashAfter, RealizedPnL: l.realized, UpdatedAt: now}

	if err := l.database.CommitTrade(ctx, row, trade, &posRow, ""); err != nil {
		return nil, fmt.Errorf("persist trade: %w", err)
	}

	l.cash = trade.CashAfter
	l.positions[sig.Market] = pos
	l.trades = append(l.trades, trade)
	return &TradeResult{Trade: trade, Position: &pos}, nil
}

func (l *Ledger) sell(ctx context.Context, sig signal.Signal, price float64, cfg config.Strategy) (*TradeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, held := l.positions[sig.Market]
	if !held {
		return nil, nil
	}

	grossProceeds := pos.Quantity * price
	fee := grossProceeds * cfg.FeeRate
	proceeds := grossProceeds - fee
	realizedDelta := proceeds - pos.Quantity*pos.AvgEntryPrice
	now := l.now()

	trade := db.TradeRow{
		ID:          l.newID(),
		Market:      sig.Market,
		Side:        string(signal.ActionSell),
		Qty:         pos.Quantity,
		Price:       price,
		Fee:         fee,
		RealizedPnL: realizedDelta,
		CashAfter:   l.cash + proceeds,
		Reason:      sig.Rule,
		ExecutedAt:  now,
	}
	row := db.LedgerRow{CashBalance: trade.CashAfter, RealizedPnL: l.realized + realizedDelta, UpdatedAt: now}

	if err := l.database.CommitTrade(ctx, row, trade, nil, sig.Market); err != nil {
		return nil, fmt.Errorf("persist trade: %w", err)
	}

	l.cash = trade.CashAfter
	l.realized += realizedDelta
	delete(l.positions, sig.Market)
	l.trades = append(l.trades, trade)
	return &TradeResult{Trade: trade}, nil
}

// Position returns the open position for a market, if any.
func (l *Ledger) Position(market string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[market]
	return p, ok
}

// Positions returns a snapshot of all open positions.
func (l *Ledger) Positions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		res = append(res, p)
	}
	return res
}

// TradeHistory returns the executed trades oldest-first.
func (l *Ledger) TradeHistory() []db.TradeRow {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]db.TradeRow, len(l.trades))
	copy(out, l.trades)
	return out
}

// CashBalance returns the current cash balance.
func (l *Ledger) CashBalance() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// RealizedPnL returns the accumulated realized profit and loss.
func (l *Ledger) RealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realized
}

// UnrealizedPnL returns the open profit for a market at the current
// price, zero when no position is open.
func (l *Ledger) UnrealizedPnL(market string, price float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[market]
	if !ok {
		return 0
	}
	return p.UnrealizedPnL(price)
}

// TotalEquity values the portfolio: cash plus open positions at the given
// marks. A missing mark values the position at its entry price.
func (l *Ledger) TotalEquity(marks map[string]float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalEquityLocked(marks)
}

func (l *Ledger) totalEquityLocked(marks map[string]float64) float64 {
	equity := l.cash
	for market, p := range l.positions {
		mark, ok := marks[market]
		if !ok {
			mark = p.AvgEntryPrice
		}
		equity += p.Value(mark)
	}
	return equity
}
