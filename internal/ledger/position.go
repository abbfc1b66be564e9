package ledger

import "time"

// Position is an open holding in one market. It exists only while
// Quantity > 0; a full close removes it from the ledger.
type Position struct {
	Market        string    `json:"market"`
	Quantity      float64   `json:"quantity"`
	AvgEntryPrice float64   `json:"avg_entry_price"` // cost basis per unit
	OpenedAt      time.Time `json:"opened_at"`
}

// Value returns the mark-to-market value at the given price.
func (p Position) Value(price float64) float64 {
	return p.Quantity * price
}

// UnrealizedPnL returns the mark-to-market profit relative to cost basis.
func (p Position) UnrealizedPnL(price float64) float64 {
	return (price - p.AvgEntryPrice) * p.Quantity
}

// UnrealizedPnLPct returns the unrealized profit as a percentage of the
// entry price.
func (p Position) UnrealizedPnLPct(price float64) float64 {
	if p.AvgEntryPrice == 0 {
		return 0
	}
	return (price - p.AvgEntryPrice) / p.AvgEntryPrice * 100
}
