// Package fanout maintains the set of connected downstream WebSocket
// clients and broadcasts hub events to all of them.
package fanout

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/breakoutcharts/markethub/internal/model"
)

// Snapshotter provides the cached state replayed to a newly connected
// client.
type Snapshotter interface {
	Snapshot() []model.Event
}

// SubscribeFunc reconciles a client's requested symbol set against the
// hub and returns the normalized set that is now active.
type SubscribeFunc func(symbols []string) ([]string, error)

// Config holds broker configuration.
type Config struct {
	SendBuffer int // Per-client outbound queue (default: 256)
}

// Broker owns the client set. All membership changes flow through its
// run loop, so no lock guards the clients map.
type Broker struct {
	cfg       Config
	snapshot  Snapshotter
	subscribe SubscribeFunc
	logger    *slog.Logger

	// Transitions between zero and one clients drive the poll fallback.
	onFirstClient func()
	onLastClient  func()

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	// Closed when the run loop exits, so client goroutines never block
	// on register/unregister against a stopped broker.
	done chan struct{}

	clients map[*Client]struct{}
	count   atomic.Int64

	wg sync.WaitGroup
}

// New creates a broker. snapshot may be nil for tests; the transition
// callbacks are optional.
func New(cfg Config, snapshot Snapshotter, subscribe SubscribeFunc, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}

	return &Broker{
		cfg:        cfg,
		snapshot:   snapshot,
		subscribe:  subscribe,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, cfg.SendBuffer),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// OnFirstClient registers a callback fired when the client count goes
// from zero to one. Must be set before Start.
func (b *Broker) OnFirstClient(fn func()) { b.onFirstClient = fn }

// OnLastClient registers a callback fired when the client count returns
// to zero. Must be set before Start.
func (b *Broker) OnLastClient(fn func()) { b.onLastClient = fn }

// Start launches the broker run loop.
func (b *Broker) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

// Wait blocks until the run loop has exited.
func (b *Broker) Wait() {
	b.wg.Wait()
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	return int(b.count.Load())
}

// Broadcast serializes an event once and queues it for every connected
// client. Never blocks the caller: if the broadcast queue is full the
// event is dropped with a warning.
func (b *Broker) Broadcast(event model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	select {
	case b.broadcast <- data:
	default:
		b.logger.Warn("broadcast queue full, dropping event", "type", event.Type)
	}
}

// HandleConn adopts an upgraded WebSocket connection as a new client and
// starts its pumps. The caller performs the HTTP upgrade.
func (b *Broker) HandleConn(conn *websocket.Conn) {
	client := newClient(b, conn, b.cfg.SendBuffer, b.logger)

	select {
	case b.register <- client:
	case <-b.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (b *Broker) run(ctx context.Context) {
	defer b.wg.Done()
	defer close(b.done)

	for {
		select {
		case <-ctx.Done():
			for client := range b.clients {
				close(client.done)
				delete(b.clients, client)
			}
			b.count.Store(0)
			return

		case client := <-b.register:
			b.clients[client] = struct{}{}
			b.count.Store(int64(len(b.clients)))
			b.logger.Info("client connected", "client_id", client.id, "clients", len(b.clients))

			b.sendSnapshot(client)

			if len(b.clients) == 1 && b.onFirstClient != nil {
				b.onFirstClient()
			}

		case client := <-b.unregister:
			if _, ok := b.clients[client]; !ok {
				continue
			}
			delete(b.clients, client)
			close(client.done)
			b.count.Store(int64(len(b.clients)))
			b.logger.Info("client disconnected", "client_id", client.id, "clients", len(b.clients))

			if len(b.clients) == 0 && b.onLastClient != nil {
				b.onLastClient()
			}

		case data := <-b.broadcast:
			for client := range b.clients {
				select {
				case client.send <- data:
				default:
					// Slow consumer: drop it rather than stall the
					// loop. readPump cleans up via unregister.
					close(client.done)
					delete(b.clients, client)
					b.count.Store(int64(len(b.clients)))
					b.logger.Warn("client send buffer full, disconnecting", "client_id", client.id)

					if len(b.clients) == 0 && b.onLastClient != nil {
						b.onLastClient()
					}
				}
			}
		}
	}
}

// sendSnapshot replays the cached state to a single freshly registered
// client so its charts render without waiting for live data.
func (b *Broker) sendSnapshot(client *Client) {
	if b.snapshot == nil {
		return
	}

	events := b.snapshot.Snapshot()
	data, err := json.Marshal(model.NewSnapshotEvent(events))
	if err != nil {
		b.logger.Error("failed to marshal snapshot", "error", err)
		return
	}

	select {
	case client.send <- data:
		b.logger.Debug("snapshot sent", "client_id", client.id, "events", len(events))
	default:
		b.logger.Warn("snapshot dropped, client send buffer full", "client_id", client.id)
	}
}

// handleSubscribe runs a client subscribe request through the hub and
// acknowledges it to that client only. Called from the client's read
// goroutine.
func (b *Broker) handleSubscribe(client *Client, symbols []string) {
	if b.subscribe == nil {
		return
	}

	active, err := b.subscribe(symbols)
	if err != nil {
		b.logger.Error("subscribe request failed", "client_id", client.id, "error", err)
		return
	}

	data, err := json.Marshal(model.NewSubscribedEvent(active))
	if err != nil {
		b.logger.Error("failed to marshal subscribe ack", "error", err)
		return
	}

	select {
	case <-client.done:
		b.logger.Debug("subscribe ack skipped, client disconnected", "client_id", client.id)
	case client.send <- data:
	default:
		b.logger.Warn("subscribe ack dropped, client send buffer full", "client_id", client.id)
	}
}
