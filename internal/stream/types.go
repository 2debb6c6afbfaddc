package stream

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAlreadyClosed    = errors.New("already closed")
)

// State is the upstream connection lifecycle state.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateClosed         State = "closed"
)

// TimestampedMessage wraps a raw frame with its receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// RawMessage is a single provider-native data message (one element of an
// inbound frame array) handed from the Manager to the message router.
type RawMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// authCommand is the in-band authenticate request sent on transport open.
type authCommand struct {
	Action string `json:"action"` // always "auth"
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// subscribeCommand subscribes or unsubscribes symbol channels.
type subscribeCommand struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Trades []string `json:"trades,omitempty"`
	Quotes []string `json:"quotes,omitempty"`
	Bars   []string `json:"bars,omitempty"`
}

// controlMessage is the decodable head of any provider message; data
// messages carry "b"/"t"/"q" in T, control messages carry
// "success"/"error"/"subscription".
type controlMessage struct {
	T    string `json:"T"`
	Msg  string `json:"msg,omitempty"`
	Code int    `json:"code,omitempty"`
}

// CachePurger removes cached per-symbol state when symbols are
// unsubscribed. Implemented by the price/bar cache.
type CachePurger interface {
	Purge(symbols ...string)
}

// ClientConfig configures a WebSocket transport client.
type ClientConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	BufferSize       int // Message channel buffer size
}

// ManagerConfig configures the upstream connection manager.
type ManagerConfig struct {
	StreamURL string
	Key       string
	Secret    string

	// Profile selects the subscription channels: "full" subscribes
	// trades+quotes+bars, "bars-only" subscribes bars.
	Profile string

	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	PingInterval         time.Duration
	WriteTimeout         time.Duration
	BufferSize           int
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Profile:              "full",
		MaxReconnectAttempts: 5,
		ReconnectDelay:       5 * time.Second,
		PingInterval:         30 * time.Second,
		WriteTimeout:         5 * time.Second,
		BufferSize:           1024,
	}
}
