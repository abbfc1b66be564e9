package monitor

import (
	"sync"
	"time"
)

// Metrics tracks agent activity counters for the status API.
type Metrics struct {
	mu             sync.RWMutex
	cyclesRun      int64
	marketsSkipped int64
	signals        map[string]int64
	trades         int64
	lastCycleAt    time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	CyclesRun      int64            `json:"cycles_run"`
	MarketsSkipped int64            `json:"markets_skipped"`
	Signals        map[string]int64 `json:"signals"`
	TradesExecuted int64            `json:"trades_executed"`
	LastCycleAt    time.Time        `json:"last_cycle_at"`
}

// NewMetrics creates zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{signals: make(map[string]int64)}
}

// CycleCompleted records a finished trading cycle.
func (m *Metrics) CycleCompleted() {
	m.mu.Lock()
	m.cyclesRun++
	m.lastCycleAt = time.Now()
	m.mu.Unlock()
}

// MarketSkipped records a market skipped because its data was unavailable.
func (m *Metrics) MarketSkipped() {
	m.mu.Lock()
	m.marketsSkipped++
	m.mu.Unlock()
}

// SignalEmitted records an evaluated signal by action.
func (m *Metrics) SignalEmitted(action string) {
	m.mu.Lock()
	m.signals[action]++
	m.mu.Unlock()
}

// TradeExecuted records an executed paper trade.
func (m *Metrics) TradeExecuted() {
	m.mu.Lock()
	m.trades++
	m.mu.Unlock()
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	signals := make(map[string]int64, len(m.signals))
	for k, v := range m.signals {
		signals[k] = v
	}
	return Snapshot{
		CyclesRun:      m.cyclesRun,
		MarketsSkipped: m.marketsSkipped,
		Signals:        signals,
		TradesExecuted: m.trades,
		LastCycleAt:    m.lastCycleAt,
	}
}
