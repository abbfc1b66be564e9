package cache

import (
	"sync"
	"time"
)

// PriceCache holds the most recent mark price per market, fed by the
// ticker stream and candle closes. Reads vastly outnumber writes.
type PriceCache struct {
	mu    sync.RWMutex
	items map[string]priceEntry
}

type priceEntry struct {
	price     float64
	updatedAt time.Time
}

// NewPriceCache creates an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{items: make(map[string]priceEntry)}
}

// Set stores a price for a market.
func (c *PriceCache) Set(market string, price float64) {
	c.mu.Lock()
	c.items[market] = priceEntry{price: price, updatedAt: time.Now()}
	c.mu.Unlock()
}

// Get retrieves a price for a market.
func (c *PriceCache) Get(market string) (float64, bool) {
	c.mu.RLock()
	entry, ok := c.items[market]
	c.mu.RUnlock()
	return entry.price, ok
}

// GetWithAge retrieves a price and how stale it is.
func (c *PriceCache) GetWithAge(market string) (float64, time.Duration, bool) {
	c.mu.RLock()
	entry, ok := c.items[market]
	c.mu.RUnlock()
	if !ok {
		return 0, 0, false
	}
	return entry.price, time.Since(entry.updatedAt), true
}

// Snapshot returns a copy of all current marks, usable as an equity
// valuation map.
func (c *PriceCache) Snapshot() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.items))
	for market, entry := range c.items {
		out[market] = entry.price
	}
	return out
}
