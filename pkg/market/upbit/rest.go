package upbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// ErrDataUnavailable marks an upstream data failure. Callers skip the
// current cycle instead of crashing; errors.Is works through wrapping.
var ErrDataUnavailable = errors.New("market data unavailable")

// Client wraps REST access to the Upbit public API. Requests are
// rate-limited client-side to stay under the public quota.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a REST client against the public Upbit endpoints.
func NewClient() *Client {
	return &Client{
		BaseURL:    "https://api.upbit.com/v1",
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		// Upbit allows 10 candle requests per second per IP.
		limiter: rate.NewLimiter(rate.Limit(8), 8),
	}
}

// rawCandle mirrors the Upbit candle payload.
type rawCandle struct {
	Market    string  `json:"market"`
	Open      float64 `json:"opening_price"`
	High      float64 `json:"high_price"`
	Low       float64 `json:"low_price"`
	Close     float64 `json:"trade_price"`
	Volume    float64 `json:"candle_acc_trade_volume"`
	Timestamp int64   `json:"timestamp"`
}

// GetCandles fetches up to count candles for a market, returned
// oldest-first with strictly increasing timestamps. unit is "days",
// "weeks", "months" or "minutes" (hourly bars).
func (c *Client) GetCandles(ctx context.Context, market, unit string, count int) ([]Candle, error) {
	var endpoint string
	switch unit {
	case "days":
		endpoint = "/candles/days"
	case "minutes":
		endpoint = "/candles/minutes/60"
	default:
		endpoint = "/candles/" + unit
	}

	params := url.Values{}
	params.Set("market", market)
	params.Set("count", strconv.Itoa(count))

	var raw []rawCandle
	if err := c.getJSON(ctx, endpoint, params, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty candle response for %s", ErrDataUnavailable, market)
	}

	// Upbit returns newest-first; the engine wants oldest-first.
	candles := make([]Candle, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		r := raw[i]
		candles = append(candles, Candle{
			Market:    market,
			Timestamp: r.Timestamp,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })
	return candles, nil
}

// GetTicker fetches the latest trade price for a market.
func (c *Client) GetTicker(ctx context.Context, market string) (Ticker, error) {
	params := url.Values{}
	params.Set("markets", market)

	var raw []struct {
		Market    string  `json:"market"`
		Price     float64 `json:"trade_price"`
		Timestamp int64   `json:"timestamp"`
	}
	if err := c.getJSON(ctx, "/ticker", params, &raw); err != nil {
		return Ticker{}, err
	}
	if len(raw) == 0 {
		return Ticker{}, fmt.Errorf("%w: empty ticker response for %s", ErrDataUnavailable, market)
	}
	return Ticker{Market: raw[0].Market, Price: raw[0].Price, Time: raw[0].Timestamp}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrDataUnavailable, err)
		}
	}

	u := fmt.Sprintf("%s%s?%s", c.BaseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: upbit status %d", ErrDataUnavailable, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrDataUnavailable, err)
	}
	return nil
}
