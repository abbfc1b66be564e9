package upbit

// Candle represents a single OHLCV candlestick.
type Candle struct {
	Market    string  // market code, e.g. "KRW-BTC"
	Timestamp int64   // candle open time (ms, UTC)
	Open      float64 // opening price
	High      float64 // high price
	Low       float64 // low price
	Close     float64 // trade (closing) price
	Volume    float64 // accumulated base volume
}

// Ticker holds lightweight price info for streaming.
type Ticker struct {
	Market string
	Price  float64
	Time   int64
}

// Closes extracts the closing prices from an oldest-first candle series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
