package db

import "time"

// LedgerRow is the singleton account row.
type LedgerRow struct {
	CashBalance float64
	RealizedPnL float64
	UpdatedAt   time.Time
}

// PositionRow is an open holding persisted per market.
type PositionRow struct {
	Market   string
	Qty      float64
	AvgPrice float64
	OpenedAt time.Time
}

// TradeRow is one executed paper trade. Rows are append-only.
type TradeRow struct {
	ID          string
	Market      string
	Side        string
	Qty         float64
	Price       float64
	Fee         float64
	RealizedPnL float64
	CashAfter   float64
	Reason      string
	ExecutedAt  time.Time
}
