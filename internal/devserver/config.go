package devserver

import (
	"fmt"
	"net"
	"time"
)

const (
	DefaultHTTPAddr          = "localhost:8080"
	DefaultTickInterval      = 500 * time.Millisecond
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultStatusRateLimit   = "120-M"
)

// Config drives the development sync server. Everything has a default;
// an empty Config yields a working localhost server running the
// built-in scenario.
type Config struct {
	// HTTPAddr is the listen address.
	HTTPAddr string `mapstructure:"http_addr" yaml:"http_addr"`
	// AuthToken, when set, is the bearer token every subscriber must
	// present. Empty accepts any non-empty token.
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`
	// ScenarioPath points at a YAML scenario file. Empty runs the
	// built-in scenario.
	ScenarioPath string `mapstructure:"scenario" yaml:"scenario"`
	// TickInterval is the wall-clock time between simulated progress
	// updates.
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	// HeartbeatInterval is the push cadence of liveness frames.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	// StatusRateLimit bounds the poll endpoint, in limiter notation
	// like "120-M".
	StatusRateLimit string `mapstructure:"status_rate_limit" yaml:"status_rate_limit"`
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if _, _, err := net.SplitHostPort(c.HTTPAddr); err != nil {
		return fmt.Errorf("devserver: invalid http addr %q: %w", c.HTTPAddr, err)
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.StatusRateLimit == "" {
		c.StatusRateLimit = DefaultStatusRateLimit
	}
	return nil
}
