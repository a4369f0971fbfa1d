package client

import (
	"log/slog"

	"github.com/xraph/await/backoff"
)

// Option configures a Client.
type Option func(*Client)

// WithToken sets the auth token presented during the handshake.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithReconnect enables automatic reconnection after a dropped
// connection, retrying up to maxRetries times with the given delay
// strategy. While disconnected, trackers keep polling on their
// fallback cadence.
func WithReconnect(maxRetries int, strategy backoff.Strategy) Option {
	return func(c *Client) {
		c.reconnect = true
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
		if strategy != nil {
			c.redial = strategy
		}
	}
}
