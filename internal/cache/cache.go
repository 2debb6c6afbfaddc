// Package cache holds the latest known bar, price, and trade time per
// symbol for snapshot replay and staleness checks. It is a pure key-value
// store: no eviction beyond explicit purge on unsubscribe, sized by the
// subscribed symbol set.
package cache

import (
	"sync"
	"time"

	"github.com/breakoutcharts/markethub/internal/model"
)

// Cache is safe for concurrent use.
type Cache struct {
	mu        sync.RWMutex
	bars      map[string]model.Bar
	prices    map[string]model.PricePoint
	lastTrade map[string]time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		bars:      make(map[string]model.Bar),
		prices:    make(map[string]model.PricePoint),
		lastTrade: make(map[string]time.Time),
	}
}

// SetBar overwrites the latest bar for the bar's symbol. Last write wins.
func (c *Cache) SetBar(b model.Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bars[b.Symbol] = b
}

// Bar returns the latest bar for a symbol.
func (c *Cache) Bar(symbol string) (model.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bars[symbol]
	return b, ok
}

// SetPrice overwrites the latest price for a symbol. Last write wins; no
// ordering guarantee beyond arrival order on a single connection.
func (c *Cache) SetPrice(symbol string, p model.PricePoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[symbol] = p
}

// Price returns the latest price for a symbol.
func (c *Cache) Price(symbol string) (model.PricePoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	return p, ok
}

// MarkTrade records the timestamp of the most recent trade frame.
func (c *Cache) MarkTrade(symbol string, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastTrade[symbol] = t
}

// LastTrade returns when a trade frame last arrived for a symbol.
func (c *Cache) LastTrade(symbol string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.lastTrade[symbol]
	return t, ok
}

// Purge removes all cached state for the given symbols. Called on
// unsubscribe so departed symbols never reappear in client snapshots.
func (c *Cache) Purge(symbols ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		delete(c.bars, s)
		delete(c.prices, s)
		delete(c.lastTrade, s)
	}
}

// Snapshot returns the full current cache state as client events: one bar
// event per cached bar, plus a synthetic price_update (source=cached) for
// any symbol that has a price but no bar yet.
func (c *Cache) Snapshot() []model.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()

	events := make([]model.Event, 0, len(c.bars)+len(c.prices))
	for _, b := range c.bars {
		events = append(events, model.NewBarEvent(b))
	}
	for symbol, p := range c.prices {
		if _, ok := c.bars[symbol]; ok {
			continue
		}
		events = append(events, model.NewPriceEvent(symbol, model.PricePoint{
			Price:     p.Price,
			Source:    model.SourceCached,
			Timestamp: p.Timestamp,
		}))
	}
	return events
}

// Len returns the number of symbols with any cached state.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{}, len(c.prices))
	for s := range c.bars {
		seen[s] = struct{}{}
	}
	for s := range c.prices {
		seen[s] = struct{}{}
	}
	return len(seen)
}
