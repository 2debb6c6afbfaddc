package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Manager maintains exactly one authenticated streaming session and the
// set of symbols subscribed on it.
type Manager struct {
	cfg    ManagerConfig
	purger CachePurger
	logger *slog.Logger

	// Output to the message router
	out chan RawMessage

	mu       sync.Mutex
	state    State
	client   Client
	symbols  map[string]struct{}
	attempts int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// newClient is swapped in tests to inject transport behavior.
	newClient func(ClientConfig, *slog.Logger) Client
}

// NewManager creates an upstream connection manager. purger may be nil.
func NewManager(cfg ManagerConfig, purger CachePurger, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		cfg:       cfg,
		purger:    purger,
		logger:    logger,
		out:       make(chan RawMessage, cfg.BufferSize),
		state:     StateDisconnected,
		symbols:   make(map[string]struct{}),
		newClient: NewClient,
	}
}

// Start opens the upstream connection in the background. A failed initial
// dial is handled by the reconnect procedure, not returned.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("stream manager started", "url", m.cfg.StreamURL, "profile", m.cfg.Profile)
	return nil
}

// Stop shuts the connection down for good.
func (m *Manager) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	m.mu.Lock()
	if m.client != nil {
		m.client.Close()
	}
	m.state = StateClosed
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// run has exited, so nothing can forward into out anymore. On
		// timeout the channel stays open and the router stops via its
		// own context.
		close(m.out)
	case <-ctx.Done():
		m.logger.Warn("stream manager stop timed out")
	}

	m.logger.Info("stream manager stopped")
	return nil
}

// Messages returns the channel of data messages for the router.
func (m *Manager) Messages() <-chan RawMessage {
	return m.out
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Subscribed returns a sorted copy of the subscribed symbol set.
func (m *Manager) Subscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.symbols))
	for s := range m.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Subscribe adds symbols to the subscribed set and issues the upstream
// subscribe command. No-op with a logged error when not authenticated.
func (m *Manager) Subscribe(symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}

	m.mu.Lock()
	if m.state != StateAuthenticated {
		state := m.state
		m.mu.Unlock()
		m.logger.Error("cannot subscribe, stream not authenticated",
			"state", state,
			"symbols", symbols,
		)
		return ErrNotAuthenticated
	}
	for _, s := range symbols {
		m.symbols[s] = struct{}{}
	}
	client := m.client
	m.mu.Unlock()

	m.logger.Info("subscribing upstream", "symbols", symbols)
	return m.sendSubscription(client, "subscribe", symbols)
}

// Unsubscribe removes symbols from the subscribed set, purges their cache
// entries, and issues the upstream unsubscribe command. No-op when not
// authenticated.
func (m *Manager) Unsubscribe(symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}

	m.mu.Lock()
	if m.state != StateAuthenticated {
		m.mu.Unlock()
		m.logger.Debug("unsubscribe skipped, stream not authenticated", "symbols", symbols)
		return nil
	}
	for _, s := range symbols {
		delete(m.symbols, s)
	}
	client := m.client
	m.mu.Unlock()

	if m.purger != nil {
		m.purger.Purge(symbols...)
	}

	m.logger.Info("unsubscribing upstream", "symbols", symbols)
	return m.sendSubscription(client, "unsubscribe", symbols)
}

// run owns the connect/read/reconnect cycle.
func (m *Manager) run() {
	defer m.wg.Done()

	for {
		if m.ctx.Err() != nil {
			return
		}

		err := m.session()
		if err == nil {
			// Clean shutdown.
			return
		}

		m.setState(StateDisconnected)

		m.mu.Lock()
		if m.attempts >= m.cfg.MaxReconnectAttempts {
			m.mu.Unlock()
			m.logger.Error("reconnect attempts exhausted, manual restart required",
				"attempts", m.cfg.MaxReconnectAttempts,
				"error", err,
			)
			return
		}
		m.attempts++
		attempt := m.attempts
		m.mu.Unlock()

		m.logger.Warn("stream disconnected, reconnecting",
			"attempt", attempt,
			"max", m.cfg.MaxReconnectAttempts,
			"delay", m.cfg.ReconnectDelay,
			"error", err,
		)

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(m.cfg.ReconnectDelay):
		}
	}
}

// session dials, authenticates, and reads frames until the transport
// fails. Returns nil only on clean shutdown.
func (m *Manager) session() error {
	m.setState(StateConnecting)

	client := m.newClient(ClientConfig{
		URL:          m.cfg.StreamURL,
		PingInterval: m.cfg.PingInterval,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.BufferSize,
	}, m.logger)

	if err := client.Connect(m.ctx); err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	m.mu.Lock()
	m.client = client
	m.state = StateAuthenticating
	m.mu.Unlock()

	auth, _ := json.Marshal(authCommand{
		Action: "auth",
		Key:    m.cfg.Key,
		Secret: m.cfg.Secret,
	})
	if err := client.Send(auth); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	for {
		select {
		case <-m.ctx.Done():
			return nil
		case err := <-client.Errors():
			return err
		case msg, ok := <-client.Messages():
			if !ok {
				return ErrNotConnected
			}
			m.handleFrame(msg)
		}
	}
}

// handleFrame splits an inbound frame (a JSON array of provider messages)
// into control messages, which drive manager state, and data messages,
// which are forwarded to the router in arrival order.
func (m *Manager) handleFrame(msg TimestampedMessage) {
	var elements []json.RawMessage
	if err := json.Unmarshal(msg.Data, &elements); err != nil {
		m.logger.Warn("malformed upstream frame", "error", err)
		return
	}

	for _, elem := range elements {
		var head controlMessage
		if err := json.Unmarshal(elem, &head); err != nil {
			m.logger.Warn("malformed upstream message", "error", err)
			continue
		}

		switch head.T {
		case "success":
			m.handleSuccess(head)
		case "error":
			// Provider-level rejection: logged, non-fatal, the
			// transport stays open.
			m.logger.Warn("upstream error message", "code", head.Code, "msg", head.Msg)
		case "subscription":
			m.logger.Debug("subscription confirmed upstream")
		default:
			m.forward(RawMessage{Data: elem, ReceivedAt: msg.ReceivedAt})
		}
	}
}

// handleSuccess processes connected/authenticated acknowledgments.
func (m *Manager) handleSuccess(head controlMessage) {
	switch head.Msg {
	case "connected":
		m.logger.Debug("upstream transport connected, awaiting auth")
	case "authenticated":
		m.mu.Lock()
		m.state = StateAuthenticated
		m.attempts = 0
		symbols := make([]string, 0, len(m.symbols))
		for s := range m.symbols {
			symbols = append(symbols, s)
		}
		client := m.client
		m.mu.Unlock()

		m.logger.Info("authenticated upstream")

		// Restore subscriptions that predate the reconnect.
		if len(symbols) > 0 {
			sort.Strings(symbols)
			if err := m.sendSubscription(client, "subscribe", symbols); err != nil {
				m.logger.Error("failed to restore subscriptions", "error", err)
			}
		}
	}
}

// forward hands a data message to the router channel.
func (m *Manager) forward(raw RawMessage) {
	select {
	case m.out <- raw:
	case <-m.ctx.Done():
	default:
		m.logger.Warn("router buffer full, dropping message")
	}
}

// sendSubscription issues a subscribe/unsubscribe command for the
// configured channel profile.
func (m *Manager) sendSubscription(client Client, action string, symbols []string) error {
	cmd := subscribeCommand{Action: action, Bars: symbols}
	if m.cfg.Profile != "bars-only" {
		cmd.Trades = symbols
		cmd.Quotes = symbols
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s command: %w", action, err)
	}
	if err := client.Send(data); err != nil {
		return fmt.Errorf("send %s command: %w", action, err)
	}
	return nil
}
