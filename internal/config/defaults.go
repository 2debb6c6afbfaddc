package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHost                 = "0.0.0.0"
	DefaultPort                 = 3001
	DefaultRestURL              = "https://data.alpaca.markets/v2"
	DefaultStreamURL            = "wss://stream.data.alpaca.markets/v2/sip"
	DefaultFeed                 = "sip"
	DefaultAPITimeout           = 30 * time.Second
	DefaultMaxRetries           = 3
	DefaultStreamProfile        = "full"
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = 5 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultStreamBufferSize     = 1024
	DefaultPollInterval         = 5 * time.Second
	DefaultPollStaleness        = 10 * time.Second
	DefaultPollTimeout          = 5 * time.Second
	DefaultPollConcurrency      = 8
	DefaultSendBuffer           = 256
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	// Alpaca defaults
	if c.Alpaca.RestURL == "" {
		c.Alpaca.RestURL = DefaultRestURL
	}
	if c.Alpaca.StreamURL == "" {
		c.Alpaca.StreamURL = DefaultStreamURL
	}
	if c.Alpaca.Feed == "" {
		c.Alpaca.Feed = DefaultFeed
	}
	if c.Alpaca.Timeout == 0 {
		c.Alpaca.Timeout = DefaultAPITimeout
	}
	if c.Alpaca.MaxRetries == 0 {
		c.Alpaca.MaxRetries = DefaultMaxRetries
	}

	// Stream defaults
	if c.Stream.Profile == "" {
		c.Stream.Profile = DefaultStreamProfile
	}
	if c.Stream.MaxReconnectAttempts == 0 {
		c.Stream.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Stream.ReconnectDelay == 0 {
		c.Stream.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Staleness == 0 {
		c.Poller.Staleness = DefaultPollStaleness
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}

	// Fanout defaults
	if c.Fanout.SendBuffer == 0 {
		c.Fanout.SendBuffer = DefaultSendBuffer
	}
}
