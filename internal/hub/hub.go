// Package hub wires the upstream stream, cache, router, poll fallback,
// and downstream fanout into one relay and owns the subscription
// reconciliation between them.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/breakoutcharts/markethub/internal/alpaca"
	"github.com/breakoutcharts/markethub/internal/cache"
	"github.com/breakoutcharts/markethub/internal/config"
	"github.com/breakoutcharts/markethub/internal/fanout"
	"github.com/breakoutcharts/markethub/internal/markethours"
	"github.com/breakoutcharts/markethub/internal/poller"
	"github.com/breakoutcharts/markethub/internal/router"
	"github.com/breakoutcharts/markethub/internal/stream"
)

// Hub is the composition root of the relay.
type Hub struct {
	cfg    *config.Config
	logger *slog.Logger

	cache   *cache.Cache
	rest    *alpaca.Client
	hours   *markethours.Policy
	manager *stream.Manager
	router  *router.Router
	poller  *poller.Poller
	broker  *fanout.Broker

	// Serializes reconciliation so concurrent client requests cannot
	// interleave their set deltas.
	reconcileMu sync.Mutex

	cancelBroker context.CancelFunc
}

// New builds a hub from configuration. Nothing runs until Start.
func New(cfg *config.Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Hub{
		cfg:    cfg,
		logger: logger,
		cache:  cache.New(),
		hours:  markethours.NewPolicy(),
	}

	h.rest = alpaca.NewClient(
		cfg.Alpaca.RestURL,
		cfg.Alpaca.Key,
		cfg.Alpaca.Secret,
		alpaca.WithFeed(cfg.Alpaca.Feed),
		alpaca.WithTimeout(cfg.Alpaca.Timeout),
		alpaca.WithRetries(cfg.Alpaca.MaxRetries, time.Second),
		alpaca.WithLogger(logger.With("component", "alpaca")),
	)

	h.manager = stream.NewManager(stream.ManagerConfig{
		StreamURL:            cfg.Alpaca.StreamURL,
		Key:                  cfg.Alpaca.Key,
		Secret:               cfg.Alpaca.Secret,
		Profile:              cfg.Stream.Profile,
		MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
		ReconnectDelay:       cfg.Stream.ReconnectDelay,
		PingInterval:         cfg.Stream.PingInterval,
		WriteTimeout:         cfg.Stream.WriteTimeout,
		BufferSize:           cfg.Stream.BufferSize,
	}, h.cache, logger.With("component", "stream"))

	h.broker = fanout.New(fanout.Config{
		SendBuffer: cfg.Fanout.SendBuffer,
	}, h.cache, h.Reconcile, logger.With("component", "fanout"))

	h.router = router.New(
		h.manager.Messages(),
		h.cache,
		h.broker,
		h.hours,
		logger.With("component", "router"),
	)

	h.poller = poller.New(poller.Config{
		Interval:    cfg.Poller.Interval,
		Staleness:   cfg.Poller.Staleness,
		Timeout:     cfg.Poller.Timeout,
		Concurrency: cfg.Poller.Concurrency,
	}, h.rest, h.manager, h.cache, h.broker, logger.With("component", "poller"))

	// The poll fallback only runs while someone is listening.
	h.broker.OnFirstClient(func() { h.poller.Start(context.Background()) })
	h.broker.OnLastClient(h.poller.Stop)

	return h
}

// Start launches the upstream connection, router, and fanout. The poll
// fallback stays idle until the first client connects.
func (h *Hub) Start(ctx context.Context) error {
	brokerCtx, cancel := context.WithCancel(context.Background())
	h.cancelBroker = cancel
	h.broker.Start(brokerCtx)

	if err := h.router.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}
	if err := h.manager.Start(ctx); err != nil {
		return fmt.Errorf("start stream manager: %w", err)
	}

	h.logger.Info("hub started")
	return nil
}

// Stop shuts everything down in dependency order: poll fallback first,
// then the upstream connection, then the router, then the fanout.
func (h *Hub) Stop(ctx context.Context) error {
	h.poller.Stop()

	if err := h.manager.Stop(ctx); err != nil {
		h.logger.Warn("stream manager stop", "error", err)
	}
	if err := h.router.Stop(ctx); err != nil {
		h.logger.Warn("router stop", "error", err)
	}

	if h.cancelBroker != nil {
		h.cancelBroker()
	}
	h.broker.Wait()
	h.poller.Wait()

	h.logger.Info("hub stopped")
	return nil
}

// Broker exposes the downstream fanout for the WebSocket endpoint.
func (h *Hub) Broker() *fanout.Broker {
	return h.broker
}

// Rest exposes the provider REST client for the history endpoints.
func (h *Hub) Rest() *alpaca.Client {
	return h.rest
}

// Hours exposes the exchange time policy.
func (h *Hub) Hours() *markethours.Policy {
	return h.hours
}

// Reconcile replaces the active symbol set with the requested one. The
// request is whole-set: symbols missing from it are unsubscribed, new
// ones subscribed, and the overlap left untouched. Returns the set now
// active upstream.
func (h *Hub) Reconcile(requested []string) ([]string, error) {
	h.reconcileMu.Lock()
	defer h.reconcileMu.Unlock()

	// A subscribe request implies an attached client, so the poll
	// fallback must be running.
	if h.broker.ClientCount() > 0 {
		h.poller.Start(context.Background())
	}

	want := normalize(requested)
	current := h.manager.Subscribed()

	toSubscribe := diff(want, current)
	toUnsubscribe := diff(current, want)

	if len(toSubscribe) == 0 && len(toUnsubscribe) == 0 {
		return current, nil
	}

	if len(toUnsubscribe) > 0 {
		if err := h.manager.Unsubscribe(toUnsubscribe); err != nil {
			return nil, fmt.Errorf("unsubscribe %v: %w", toUnsubscribe, err)
		}
	}
	if len(toSubscribe) > 0 {
		if err := h.manager.Subscribe(toSubscribe); err != nil {
			return nil, fmt.Errorf("subscribe %v: %w", toSubscribe, err)
		}
	}

	h.logger.Info("subscriptions reconciled",
		"added", toSubscribe,
		"removed", toUnsubscribe,
		"active", len(want),
	)

	return h.manager.Subscribed(), nil
}

// Stats is the health endpoint payload.
type Stats struct {
	StreamState   stream.State `json:"stream_state"`
	Subscribed    []string     `json:"subscribed"`
	Clients       int          `json:"clients"`
	CachedSymbols int          `json:"cached_symbols"`
	PollerRunning bool         `json:"poller_running"`
	Router        router.Stats `json:"router"`
}

// Stats returns a point-in-time view of hub health.
func (h *Hub) Stats() Stats {
	return Stats{
		StreamState:   h.manager.State(),
		Subscribed:    h.manager.Subscribed(),
		Clients:       h.broker.ClientCount(),
		CachedSymbols: h.cache.Len(),
		PollerRunning: h.poller.Running(),
		Router:        h.router.Stats(),
	}
}

// normalize uppercases, trims, and dedupes a symbol list, dropping
// empties. The result is sorted.
func normalize(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// diff returns the elements of a not present in b.
func diff(a, b []string) []string {
	have := make(map[string]struct{}, len(b))
	for _, s := range b {
		have[s] = struct{}{}
	}

	var out []string
	for _, s := range a {
		if _, ok := have[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
