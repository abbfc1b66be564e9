package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// StreamClient manages lightweight streaming from the Upbit public websocket.
type StreamClient struct {
	StreamURL string
	dialer    *websocket.Dialer
}

// NewStreamClient builds a websocket client for the public ticker stream.
func NewStreamClient() *StreamClient {
	return &StreamClient{
		StreamURL: "wss://api.upbit.com/websocket/v1",
		dialer:    websocket.DefaultDialer,
	}
}

// SubscribeTickers listens to the ticker stream for the given markets and
// pushes parsed tickers into a channel. It returns the channel and a stop
// function.
func (c *StreamClient) SubscribeTickers(ctx context.Context, markets []string) (<-chan Ticker, func(), error) {
	conn, _, err := c.dialer.DialContext(ctx, c.StreamURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial upbit ws: %w", err)
	}

	// Upbit expects a JSON array: ticket frame followed by type frames.
	sub := []any{
		map[string]string{"ticket": uuid.NewString()},
		map[string]any{"type": "ticker", "codes": markets},
	}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("subscribe upbit tickers: %w", err)
	}

	out := make(chan Ticker, 100)

	// Closing the connection unblocks ReadMessage; only the read goroutine
	// closes out, so stop can never race a send on a closed channel.
	var once sync.Once
	stop := func() {
		once.Do(func() {
			// Ignore errors; connection may already be closed.
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		})
	}

	go func() {
		defer close(out)
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			// Upbit sends binary frames containing JSON.
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
					strings.Contains(err.Error(), "use of closed network connection") {
					return
				}
				log.Printf("upbit ws read error: %v", err)
				return
			}

			parsed, err := parseTickerMessage(msg)
			if err != nil {
				log.Printf("upbit ws parse error: %v", err)
				continue
			}
			out <- parsed
		}
	}()

	return out, stop, nil
}

func parseTickerMessage(msg []byte) (Ticker, error) {
	var raw struct {
		Type   string  `json:"type"`
		Code   string  `json:"code"`
		Price  float64 `json:"trade_price"`
		TimeMs int64   `json:"timestamp"`
	}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return Ticker{}, err
	}
	if raw.Type != "ticker" || raw.Code == "" {
		return Ticker{}, fmt.Errorf("unexpected frame type %q", raw.Type)
	}
	return Ticker{Market: raw.Code, Price: raw.Price, Time: raw.TimeMs}, nil
}
