package ledger

import "sort"

// PositionStatus is one open holding valued at its current mark.
type PositionStatus struct {
	Market        string  `json:"market"`
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	MarkPrice     float64 `json:"mark_price"`
	Value         float64 `json:"value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	PnLPct        float64 `json:"pnl_pct"`
}

// Status is a point-in-time valuation of the whole portfolio.
type Status struct {
	CashBalance    float64          `json:"cash_balance"`
	PositionsValue float64          `json:"positions_value"`
	TotalEquity    float64          `json:"total_equity"`
	RealizedPnL    float64          `json:"realized_pnl"`
	UnrealizedPnL  float64          `json:"unrealized_pnl"`
	TradeCount     int              `json:"trade_count"`
	Positions      []PositionStatus `json:"positions"`
}

// Status values the portfolio at the given marks. A missing mark values
// the position at its entry price (zero unrealized PnL).
func (l *Ledger) Status(marks map[string]float64) Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := Status{
		CashBalance: l.cash,
		RealizedPnL: l.realized,
		TradeCount:  len(l.trades),
	}
	for market, p := range l.positions {
		mark, ok := marks[market]
		if !ok {
			mark = p.AvgEntryPrice
		}
		ps := PositionStatus{
			Market:        market,
			Quantity:      p.Quantity,
			AvgEntryPrice: p.AvgEntryPrice,
			MarkPrice:     mark,
			Value:         p.Value(mark),
			UnrealizedPnL: p.UnrealizedPnL(mark),
			PnLPct:        p.UnrealizedPnLPct(mark),
		}
		st.PositionsValue += ps.Value
		st.UnrealizedPnL += ps.UnrealizedPnL
		st.Positions = append(st.Positions, ps)
	}
	st.TotalEquity = st.CashBalance + st.PositionsValue
	sort.Slice(st.Positions, func(i, j int) bool { return st.Positions[i].Market < st.Positions[j].Market })
	return st
}
