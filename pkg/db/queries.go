package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LoadLedger reads the singleton account row. found is false when the
// database has never been initialized.
func (d *Database) LoadLedger(ctx context.Context) (LedgerRow, bool, error) {
	var row LedgerRow
	var updatedMs int64
	err := d.DB.QueryRowContext(ctx, `
		SELECT cash_balance, realized_pnl, updated_at_ms FROM ledger WHERE id = 1
	`).Scan(&row.CashBalance, &row.RealizedPnL, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return LedgerRow{}, false, nil
	}
	if err != nil {
		return LedgerRow{}, false, fmt.Errorf("load ledger: %w", err)
	}
	row.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return row, true, nil
}

// InitLedger writes the initial account row with the starting cash balance.
func (d *Database) InitLedger(ctx context.Context, cashBalance float64, at time.Time) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO ledger (id, cash_balance, realized_pnl, updated_at_ms)
		VALUES (1, ?, 0, ?)
		ON CONFLICT(id) DO NOTHING
	`, cashBalance, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	return nil
}

// ListPositions returns all open positions.
func (d *Database) ListPositions(ctx context.Context) ([]PositionRow, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT market, qty, avg_price, opened_at_ms FROM positions ORDER BY market
	`)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var res []PositionRow
	for rows.Next() {
		var p PositionRow
		var openedMs int64
		if err := rows.Scan(&p.Market, &p.Qty, &p.AvgPrice, &openedMs); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p.OpenedAt = time.UnixMilli(openedMs).UTC()
		res = append(res, p)
	}
	return res, rows.Err()
}

// ListTrades returns the trade history oldest-first.
func (d *Database) ListTrades(ctx context.Context) ([]TradeRow, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, market, side, qty, price, fee, realized_pnl, cash_after, reason, executed_at_ms
		FROM trades ORDER BY executed_at_ms, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var res []TradeRow
	for rows.Next() {
		var t TradeRow
		var executedMs int64
		if err := rows.Scan(&t.ID, &t.Market, &t.Side, &t.Qty, &t.Price, &t.Fee, &t.RealizedPnL, &t.CashAfter, &t.Reason, &executedMs); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.ExecutedAt = time.UnixMilli(executedMs).UTC()
		res = append(res, t)
	}
	return res, rows.Err()
}

// CommitTrade durably records one executed trade: the new account row, the
// trade itself, and the position change (upsert when pos is non-nil, delete
// when closeMarket is set). Everything happens in a single transaction so a
// crash can never leave a partially applied trade on disk.
func (d *Database) CommitTrade(ctx context.Context, ledger LedgerRow, trade TradeRow, pos *PositionRow, closeMarket string) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trade tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger (id, cash_balance, realized_pnl, updated_at_ms)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cash_balance = excluded.cash_balance,
			realized_pnl = excluded.realized_pnl,
			updated_at_ms = excluded.updated_at_ms
	`, ledger.CashBalance, ledger.RealizedPnL, ledger.UpdatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("update ledger row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trades (id, market, side, qty, price, fee, realized_pnl, cash_after, reason, executed_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trade.ID, trade.Market, trade.Side, trade.Qty, trade.Price, trade.Fee, trade.RealizedPnL, trade.CashAfter, trade.Reason, trade.ExecutedAt.UnixMilli()); err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	if pos != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO positions (market, qty, avg_price, opened_at_ms)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(market) DO UPDATE SET
				qty = excluded.qty,
				avg_price = excluded.avg_price,
				opened_at_ms = excluded.opened_at_ms
		`, pos.Market, pos.Qty, pos.AvgPrice, pos.OpenedAt.UnixMilli()); err != nil {
			return fmt.Errorf("upsert position: %w", err)
		}
	}
	if closeMarket != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE market = ?`, closeMarket); err != nil {
			return fmt.Errorf("delete position: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trade tx: %w", err)
	}
	return nil
}
