package config

import "time"

// Config is the root configuration for a markethub instance.
type Config struct {
	Server Server `yaml:"server"`
	CORS   CORS   `yaml:"cors"`
	Alpaca Alpaca `yaml:"alpaca"`
	Stream Stream `yaml:"stream"`
	Poller Poller `yaml:"poller"`
	Fanout Fanout `yaml:"fanout"`
}

// Server holds HTTP listener settings.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CORS holds cross-origin settings for the REST endpoints.
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Alpaca holds upstream provider settings.
type Alpaca struct {
	RestURL    string        `yaml:"rest_url"`
	StreamURL  string        `yaml:"stream_url"`
	Key        string        `yaml:"key"`
	Secret     string        `yaml:"secret"`
	Feed       string        `yaml:"feed"` // "sip" or "iex"
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// Stream holds upstream connection manager settings.
type Stream struct {
	// Profile selects what the hub subscribes to upstream:
	// "full" = trades+quotes+bars, "bars-only" = bars.
	Profile              string        `yaml:"profile"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
}

// Poller holds fallback scheduler settings.
type Poller struct {
	Interval    time.Duration `yaml:"interval"`
	Staleness   time.Duration `yaml:"staleness"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
}

// Fanout holds downstream broadcaster settings.
type Fanout struct {
	SendBuffer int `yaml:"send_buffer"`
}
