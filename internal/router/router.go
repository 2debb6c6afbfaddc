// Package router classifies inbound upstream data messages and routes
// them to cache updates and client broadcasts.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/breakoutcharts/markethub/internal/cache"
	"github.com/breakoutcharts/markethub/internal/model"
	"github.com/breakoutcharts/markethub/internal/stream"
)

// Broadcaster delivers an event to every connected downstream client.
type Broadcaster interface {
	Broadcast(model.Event)
}

// HoursPolicy gates real-time trade broadcasts to regular trading hours.
type HoursPolicy interface {
	IsRegularHours(t time.Time) bool
}

// Router consumes data messages from the stream manager in arrival order.
type Router struct {
	input <-chan stream.RawMessage
	cache *cache.Cache
	sink  Broadcaster
	hours HoursPolicy

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	stats Stats
}

// New creates a message router.
func New(input <-chan stream.RawMessage, c *cache.Cache, sink Broadcaster, hours HoursPolicy, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		input:  input,
		cache:  c,
		sink:   sink,
		hours:  hours,
		logger: logger,
	}
}

// Start begins routing messages.
func (r *Router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started")
	return nil
}

// Stop gracefully shuts down the router.
func (r *Router) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
	}

	return nil
}

// Stats returns current counters.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

func (r *Router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("stream input closed")
				return
			}
			r.route(raw)
		}
	}
}

// route dispatches a single data message by its type discriminant.
func (r *Router) route(raw stream.RawMessage) {
	r.count(func(s *Stats) { s.Received++ })

	var head messageHead
	if err := json.Unmarshal(raw.Data, &head); err != nil {
		r.logger.Warn("failed to extract message type", "error", err)
		r.count(func(s *Stats) { s.ParseErrors++ })
		return
	}

	switch head.T {
	case "b":
		r.routeBar(raw)
	case "t":
		r.routeTrade(raw)
	case "q":
		r.routeQuote(raw)
	default:
		r.logger.Debug("skipping message type", "type", head.T)
		r.count(func(s *Stats) { s.Unknown++ })
	}
}

// routeBar caches the bar, refreshes the latest price from the bar close,
// and broadcasts a bar event.
func (r *Router) routeBar(raw stream.RawMessage) {
	var wire barWire
	if err := json.Unmarshal(raw.Data, &wire); err != nil {
		r.logger.Warn("failed to parse bar", "error", err)
		r.count(func(s *Stats) { s.ParseErrors++ })
		return
	}

	bar := model.Bar{
		Symbol:    wire.Symbol,
		Timestamp: wire.Timestamp,
		Open:      wire.Open,
		High:      wire.High,
		Low:       wire.Low,
		Close:     wire.Close,
		Volume:    wire.Volume,
	}

	r.cache.SetBar(bar)
	r.cache.SetPrice(bar.Symbol, model.PricePoint{
		Price:     bar.Close,
		Source:    model.SourceTrade,
		Timestamp: bar.Timestamp,
	})

	r.sink.Broadcast(model.NewBarEvent(bar))
	r.count(func(s *Stats) { s.Routed++ })
}

// routeTrade always updates the cache; the broadcast is gated on the
// regular-hours filter.
func (r *Router) routeTrade(raw stream.RawMessage) {
	var wire tradeWire
	if err := json.Unmarshal(raw.Data, &wire); err != nil {
		r.logger.Warn("failed to parse trade", "error", err)
		r.count(func(s *Stats) { s.ParseErrors++ })
		return
	}

	trade := model.Trade{
		Symbol:     wire.Symbol,
		Timestamp:  wire.Timestamp,
		Price:      wire.Price,
		Size:       wire.Size,
		Conditions: wire.Conditions,
	}

	// The staleness clock runs on frame arrival, not exchange time.
	r.cache.MarkTrade(trade.Symbol, raw.ReceivedAt)
	r.cache.SetPrice(trade.Symbol, model.PricePoint{
		Price:     trade.Price,
		Source:    model.SourceTrade,
		Timestamp: trade.Timestamp,
	})

	if !r.hours.IsRegularHours(trade.Timestamp) {
		r.count(func(s *Stats) { s.Suppressed++ })
		return
	}

	r.sink.Broadcast(model.NewTradeEvent(trade))
	r.count(func(s *Stats) { s.Routed++ })
}

// routeQuote updates the latest price to the bid/ask midpoint and
// broadcasts unconditionally. Quotes are intentionally not gated on
// market hours the way trades are.
func (r *Router) routeQuote(raw stream.RawMessage) {
	var wire quoteWire
	if err := json.Unmarshal(raw.Data, &wire); err != nil {
		r.logger.Warn("failed to parse quote", "error", err)
		r.count(func(s *Stats) { s.ParseErrors++ })
		return
	}

	quote := model.Quote{
		Symbol:    wire.Symbol,
		Timestamp: wire.Timestamp,
		BidPrice:  wire.BidPrice,
		BidSize:   wire.BidSize,
		AskPrice:  wire.AskPrice,
		AskSize:   wire.AskSize,
	}

	r.cache.SetPrice(quote.Symbol, model.PricePoint{
		Price:     quote.Mid(),
		Source:    model.SourceQuote,
		Timestamp: quote.Timestamp,
	})

	r.sink.Broadcast(model.NewQuoteEvent(quote))
	r.count(func(s *Stats) { s.Routed++ })
}

func (r *Router) count(fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}
