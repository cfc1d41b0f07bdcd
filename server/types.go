// File: server/types.go
// Package server implements the host side of the bridge: a poll-driven
// WebSocket endpoint holding at most one connection at a time.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"time"
)

// Config holds all endpoint configuration parameters.
type Config struct {
	Addr             string        // TCP bind address, loopback only
	TickInterval     time.Duration // Run scheduler period
	HandshakeTimeout time.Duration // deadline for reading the upgrade request
	FrameReadTimeout time.Duration // deadline for completing a frame once bytes are seen
	WriteTimeout     time.Duration // per-frame write deadline
	LogTruncate      int           // max characters of a message copied into log lines
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:             "127.0.0.1:8090",
		TickInterval:     10 * time.Millisecond,
		HandshakeTimeout: 5 * time.Second,
		FrameReadTimeout: 5 * time.Second,
		WriteTimeout:     5 * time.Second,
		LogTruncate:      200,
	}
}

// State is the lifecycle of the single connection slot.
type State int32

const (
	StateClosed State = iota
	StateHandshaking
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHandshaking:
		return "handshaking"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var (
	// ErrNotStarted is returned by Tick before Start or after Stop.
	ErrNotStarted = errors.New("server: endpoint not started")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("server: endpoint already started")
	// ErrTickInProgress is returned when Tick is re-entered, e.g. from a handler.
	ErrTickInProgress = errors.New("server: tick already in progress")
)

// Metric keys published into the metrics registry.
const (
	MetricConnectionsAccepted = "connections.accepted"
	MetricConnectionsRejected = "connections.rejected"
	MetricConnectionsReplaced = "connections.replaced"
	MetricFramesIn            = "frames.in"
	MetricFramesOut           = "frames.out"
	MetricRequests            = "requests"
	MetricProtocolErrors      = "errors.protocol"
	MetricTransportErrors     = "errors.transport"
)
