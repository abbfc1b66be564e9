package events

// Event enumerates high-level topics inside the trading agent.
type Event string

const (
	EventPriceTick     Event = "price_tick"
	EventSignal        Event = "signal"
	EventTradeExecuted Event = "trade_executed"
	EventCycleComplete Event = "cycle_complete"
)
