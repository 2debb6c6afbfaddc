package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Alpaca.Key == "" {
		return errors.New("alpaca.key is required")
	}
	if c.Alpaca.Secret == "" {
		return errors.New("alpaca.secret is required")
	}
	if c.Alpaca.Feed != "sip" && c.Alpaca.Feed != "iex" {
		return fmt.Errorf("alpaca.feed must be sip or iex, got %q", c.Alpaca.Feed)
	}

	if c.Stream.Profile != "full" && c.Stream.Profile != "bars-only" {
		return fmt.Errorf("stream.profile must be full or bars-only, got %q", c.Stream.Profile)
	}
	if c.Stream.MaxReconnectAttempts < 1 {
		return errors.New("stream.max_reconnect_attempts must be >= 1")
	}
	if c.Stream.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be positive")
	}
	if c.Poller.Staleness <= 0 {
		return errors.New("poller.staleness must be positive")
	}
	if c.Poller.Concurrency < 1 {
		return errors.New("poller.concurrency must be >= 1")
	}

	if c.Fanout.SendBuffer < 1 {
		return errors.New("fanout.send_buffer must be >= 1")
	}

	return nil
}
