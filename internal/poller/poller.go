// Package poller guarantees price freshness when the streaming trade
// channel goes quiet for a symbol.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/breakoutcharts/markethub/internal/cache"
	"github.com/breakoutcharts/markethub/internal/model"
)

// SymbolSource provides the symbols currently subscribed upstream.
type SymbolSource interface {
	Subscribed() []string
}

// TradeFetcher fetches the latest trade for a symbol via request/response.
type TradeFetcher interface {
	GetLatestTrade(ctx context.Context, symbol string) (model.Trade, error)
}

// Broadcaster delivers synthetic price updates to downstream clients.
type Broadcaster interface {
	Broadcast(model.Event)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Tick interval (default: 5s)
	Staleness   time.Duration // Max silence before a symbol is polled (default: 10s)
	Timeout     time.Duration // Per-fetch timeout (default: 5s)
	Concurrency int           // Max concurrent fetches (default: 8)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Second,
		Staleness:   10 * time.Second,
		Timeout:     5 * time.Second,
		Concurrency: 8,
	}
}

// Poller runs only while at least one downstream client is connected;
// Start and Stop are re-entrant across client-count transitions.
type Poller struct {
	cfg     Config
	fetcher TradeFetcher
	symbols SymbolSource
	cache   *cache.Cache
	sink    Broadcaster
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a poll fallback scheduler.
func New(cfg Config, fetcher TradeFetcher, symbols SymbolSource, c *cache.Cache, sink Broadcaster, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		symbols: symbols,
		cache:   c,
		sink:    sink,
		logger:  logger,
	}
}

// Start begins the polling loop. No-op if already running.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(runCtx)

	p.logger.Info("poll fallback started",
		"interval", p.cfg.Interval,
		"staleness", p.cfg.Staleness,
	)
}

// Stop clears the tick loop. No-op if not running. In-flight fetches run
// to completion; only new ticks stop.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	p.cancel()

	p.logger.Info("poll fallback stopped")
}

// Running reports whether the tick loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Wait blocks until the loop goroutine has fully exited. Used at process
// shutdown and in tests.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollStale(ctx)
		}
	}
}

// pollStale fetches the latest trade for every subscribed symbol whose
// trade stream has been silent longer than the staleness window. Symbols
// are polled concurrently; each writes only its own cache slot.
func (p *Poller) pollStale(ctx context.Context) {
	symbols := p.symbols.Subscribed()
	if len(symbols) == 0 {
		return
	}

	now := time.Now()
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, errors atomic.Int64

	for _, symbol := range symbols {
		last, ok := p.cache.LastTrade(symbol)
		if ok && now.Sub(last) <= p.cfg.Staleness {
			continue
		}

		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			if err := p.pollSymbol(symbol); err != nil {
				// Isolated: one symbol's failure never affects the
				// rest of the tick. Retried naturally next tick.
				p.logger.Warn("fallback fetch failed", "symbol", symbol, "error", err)
				errors.Add(1)
				return
			}
			fetched.Add(1)
		}(symbol)
	}

	wg.Wait()

	if n := fetched.Load() + errors.Load(); n > 0 {
		p.logger.Debug("fallback poll cycle complete",
			"polled", n,
			"fetched", fetched.Load(),
			"errors", errors.Load(),
			"duration", time.Since(now),
		)
	}
}

// pollSymbol fetches one symbol and rebroadcasts only on a price change.
// The fetch deliberately does not inherit the loop context: an in-flight
// poll is never cancelled, it just stops being scheduled.
func (p *Poller) pollSymbol(symbol string) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	trade, err := p.fetcher.GetLatestTrade(ctx, symbol)
	if err != nil {
		return err
	}

	if old, ok := p.cache.Price(symbol); ok && old.Price == trade.Price {
		// De-dup by value: identical prices are not rebroadcast.
		return nil
	}

	point := model.PricePoint{
		Price:     trade.Price,
		Source:    model.SourceRest,
		Timestamp: trade.Timestamp,
	}
	p.cache.SetPrice(symbol, point)
	p.sink.Broadcast(model.NewPriceEvent(symbol, point))

	p.logger.Debug("fallback price update", "symbol", symbol, "price", trade.Price)
	return nil
}
