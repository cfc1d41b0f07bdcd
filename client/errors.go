// File: client/errors.go
// Package client
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected is returned by Request when no connection is open.
	ErrNotConnected = errors.New("client: not connected to host")
	// ErrDisconnected rejects calls still pending when the connection goes away.
	ErrDisconnected = errors.New("client: connection closed")
	// ErrReconnectExhausted marks a client that stopped reconnecting on its own.
	ErrReconnectExhausted = errors.New("client: max reconnect attempts reached")
	// ErrUnsupportedScheme is returned for URLs other than ws://.
	ErrUnsupportedScheme = errors.New("client: unsupported URL scheme")
)

// RemoteError is an error envelope returned by the host.
type RemoteError struct {
	Method  string
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: remote error %d: %s", e.Method, e.Code, e.Message)
}

// TimeoutError reports a call that received no response in time.
type TimeoutError struct {
	Method string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timeout: %s after %v", e.Method, e.After)
}

// Timeout makes TimeoutError satisfy the net.Error style check.
func (e *TimeoutError) Timeout() bool { return true }
