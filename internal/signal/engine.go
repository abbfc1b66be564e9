package signal

import (
	"fmt"

	"trading-agent/internal/indicators"
	"trading-agent/pkg/config"
)

// Engine evaluates an ordered list of guarded rules, first match wins.
// The ordering is a contract: risk exits preserve capital and must never
// be masked by a simultaneous bullish crossover, dead cross and overbought
// outrank buys, and crossovers are edge-triggered via the previous
// snapshot. A rule whose required indicator is undefined is skipped,
// never treated as satisfied.
type Engine struct {
	cfg   config.Strategy
	rules []rule
}

type rule struct {
	name string
	eval func(in input) (Signal, bool)
}

type input struct {
	market     string
	curr       indicators.Snapshot
	prev       indicators.Snapshot
	pos        *Position
	goldenX    bool
	deadX      bool
	crossKnown bool // both snapshots had defined MAs
}

// NewEngine builds the rule chain for the given strategy parameters.
func NewEngine(cfg config.Strategy) *Engine {
	e := &Engine{cfg: cfg}
	e.rules = []rule{
		{name: "stop-loss", eval: e.stopLoss},
		{name: "take-profit", eval: e.takeProfit},
		{name: "dead-cross", eval: e.deadCross},
		{name: "overbought", eval: e.overbought},
		{name: "golden-cross+oversold", eval: e.goldenCrossOversold},
		{name: "golden-cross", eval: e.goldenCross},
	}
	return e
}

// Evaluate runs the rule chain over the current and previous indicator
// snapshots. pos is the open position for the market, nil when flat.
func (e *Engine) Evaluate(market string, curr, prev indicators.Snapshot, pos *Position) Signal {
	in := input{market: market, curr: curr, prev: prev, pos: pos}

	// Crossovers need both snapshots' moving averages; undefined values
	// leave both flags false so crossover rules are skipped.
	if curr.MAShort.Valid && curr.MALong.Valid && prev.MAShort.Valid && prev.MALong.Valid {
		in.crossKnown = true
		in.goldenX = prev.MAShort.Float64 <= prev.MALong.Float64 && curr.MAShort.Float64 > curr.MALong.Float64
		in.deadX = prev.MAShort.Float64 >= prev.MALong.Float64 && curr.MAShort.Float64 < curr.MALong.Float64
	}

	for _, r := range e.rules {
		if sig, ok := r.eval(in); ok {
			sig.Market = market
			sig.Rule = r.name
			sig.Snapshot = curr
			return sig
		}
	}
	return e.hold(in)
}

func (e *Engine) stopLoss(in input) (Signal, bool) {
	if in.pos == nil || in.pos.AvgEntryPrice <= 0 {
		return Signal{}, false
	}
	change := (in.curr.Price - in.pos.AvgEntryPrice) / in.pos.AvgEntryPrice
	if change > -e.cfg.StopLossPct {
		return Signal{}, false
	}
	return Signal{
		Action: ActionSell,
		Reason: fmt.Sprintf("price %.2f is %.2f%% below entry %.2f (stop loss %.1f%%)",
			in.curr.Price, -change*100, in.pos.AvgEntryPrice, e.cfg.StopLossPct*100),
	}, true
}

func (e *Engine) takeProfit(in input) (Signal, bool) {
	if in.pos == nil || in.pos.AvgEntryPrice <= 0 {
		return Signal{}, false
	}
	change := (in.curr.Price - in.pos.AvgEntryPrice) / in.pos.AvgEntryPrice
	if change < e.cfg.TakeProfitPct {
		return Signal{}, false
	}
	return Signal{
		Action: ActionSell,
		Reason: fmt.Sprintf("price %.2f is %.2f%% above entry %.2f (take profit %.1f%%)",
			in.curr.Price, change*100, in.pos.AvgEntryPrice, e.cfg.TakeProfitPct*100),
	}, true
}

func (e *Engine) deadCross(in input) (Signal, bool) {
	if !in.deadX {
		return Signal{}, false
	}
	return Signal{
		Action: ActionSell,
		Reason: fmt.Sprintf("dead cross: MA%d(%.2f) < MA%d(%.2f)",
			e.cfg.MAShortPeriod, in.curr.MAShort.Float64, e.cfg.MALongPeriod, in.curr.MALong.Float64),
	}, true
}

func (e *Engine) overbought(in input) (Signal, bool) {
	if !in.curr.RSI.Valid || in.curr.RSI.Float64 <= e.cfg.RSIOverbought {
		return Signal{}, false
	}
	return Signal{
		Action: ActionSell,
		Reason: fmt.Sprintf("RSI %.1f above overbought threshold %.0f", in.curr.RSI.Float64, e.cfg.RSIOverbought),
	}, true
}

func (e *Engine) goldenCrossOversold(in input) (Signal, bool) {
	if !in.goldenX || !in.curr.RSI.Valid || in.curr.RSI.Float64 >= e.cfg.RSIOversold {
		return Signal{}, false
	}
	return Signal{
		Action: ActionStrongBuy,
		Reason: fmt.Sprintf("golden cross with RSI %.1f below oversold threshold %.0f",
			in.curr.RSI.Float64, e.cfg.RSIOversold),
	}, true
}

func (e *Engine) goldenCross(in input) (Signal, bool) {
	if !in.goldenX {
		return Signal{}, false
	}
	// RSI above overbought would have fired the sell rule already; an
	// undefined RSI still allows a plain BUY.
	if in.curr.RSI.Valid && in.curr.RSI.Float64 >= e.cfg.RSIOverbought {
		return Signal{}, false
	}
	return Signal{
		Action: ActionBuy,
		Reason: fmt.Sprintf("golden cross: MA%d(%.2f) > MA%d(%.2f)",
			e.cfg.MAShortPeriod, in.curr.MAShort.Float64, e.cfg.MALongPeriod, in.curr.MALong.Float64),
	}, true
}

func (e *Engine) hold(in input) Signal {
	reason := "no rule matched"
	switch {
	case !in.crossKnown && !in.curr.RSI.Valid:
		reason = "insufficient history for indicators"
	case in.curr.RSI.Valid && in.curr.MAShort.Valid && in.curr.MALong.Valid:
		trend := "downtrend"
		if in.curr.MAShort.Float64 > in.curr.MALong.Float64 {
			trend = "uptrend"
		}
		reason = fmt.Sprintf("RSI %.1f, %s, no crossover", in.curr.RSI.Float64, trend)
	case in.curr.RSI.Valid:
		reason = fmt.Sprintf("RSI %.1f, moving averages warming up", in.curr.RSI.Float64)
	}
	return Signal{
		Market:   in.market,
		Action:   ActionHold,
		Rule:     "hold",
		Reason:   reason,
		Snapshot: in.curr,
	}
}
