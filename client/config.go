// File: client/config.go
// Package client
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// DialFunc opens the raw stream the WebSocket handshake runs over.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Config holds all configurable parameters for the bridge client.
type Config struct {
	URL                  string        // ws://host:port/path, or bare host:port
	MaxReconnectAttempts int           // automatic reconnects before giving up (0 = none)
	ReconnectInterval    time.Duration // delay between automatic reconnects
	DefaultTimeout       time.Duration // per-request timeout when the caller passes 0
	HandshakeTimeout     time.Duration // dial plus upgrade deadline
	WriteTimeout         time.Duration // per-frame write deadline
	Dial                 DialFunc      // nil = net.Dialer
	Logger               zerolog.Logger
}

// DefaultConfig returns sensible defaults for a local host endpoint.
func DefaultConfig() *Config {
	return &Config{
		URL:                  "ws://localhost:8090",
		MaxReconnectAttempts: 10,
		ReconnectInterval:    3 * time.Second,
		DefaultTimeout:       10 * time.Second,
		HandshakeTimeout:     5 * time.Second,
		WriteTimeout:         5 * time.Second,
		Logger:               zerolog.Nop(),
	}
}
