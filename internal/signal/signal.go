package signal

import "trading-agent/internal/indicators"

// Action is the discrete trading decision.
type Action string

const (
	ActionBuy       Action = "BUY"
	ActionStrongBuy Action = "STRONG_BUY"
	ActionSell      Action = "SELL"
	ActionHold      Action = "HOLD"
)

// Signal is the outcome of one rule evaluation over a market.
type Signal struct {
	Market   string
	Action   Action
	Rule     string // name of the rule that fired, e.g. "stop-loss"
	Reason   string // human-readable explanation
	Snapshot indicators.Snapshot
}

// Position is the minimal view of an open holding the engine needs for
// risk-exit checks. A nil *Position means no position is open.
type Position struct {
	Quantity      float64
	AvgEntryPrice float64
}
