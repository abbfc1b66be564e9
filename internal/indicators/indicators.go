package indicators

// Value is an indicator reading that may be absent during the warm-up
// period. Valid is false while the price history is shorter than the
// indicator's window; callers must branch on it instead of reading a zero.
type Value struct {
	Float64 float64
	Valid   bool
}

// Defined wraps a concrete reading.
func Defined(v float64) Value { return Value{Float64: v, Valid: true} }

// Undefined is the absent reading.
func Undefined() Value { return Value{} }

// Snapshot bundles the indicator readings derived from one price series.
type Snapshot struct {
	RSI     Value
	MAShort Value
	MALong  Value
	Price   float64 // latest close
}

// Params are the indicator windows.
type Params struct {
	RSIPeriod     int
	MAShortPeriod int
	MALongPeriod  int
}

// Compute derives a snapshot from an oldest-first series of closing prices.
// It is a pure function: the input slice is never mutated and identical
// input yields identical output. Indicators whose window exceeds the
// available history come back undefined rather than zero.
func Compute(closes []float64, p Params) Snapshot {
	snap := Snapshot{
		RSI:     RSI(closes, p.RSIPeriod),
		MAShort: SMA(closes, p.MAShortPeriod),
		MALong:  SMA(closes, p.MALongPeriod),
	}
	if len(closes) > 0 {
		snap.Price = closes[len(closes)-1]
	}
	return snap
}

// SMA calculates the simple moving average of the last period closes.
func SMA(closes []float64, period int) Value {
	if period <= 0 || len(closes) < period {
		return Undefined()
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return Defined(sum / float64(period))
}

// RSI computes the Relative Strength Index over the last period price
// changes: average gain / average loss, RSI = 100 - 100/(1+RS). Needs
// period+1 closes. When the window holds no losses RSI is exactly 100,
// so the zero-loss boundary never divides by zero.
func RSI(closes []float64, period int) Value {
	if period <= 0 || len(closes) < period+1 {
		return Undefined()
	}

	gain := 0.0
	loss := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}

	if loss == 0 {
		return Defined(100)
	}
	rs := gain / loss
	return Defined(100 - (100 / (1 + rs)))
}
