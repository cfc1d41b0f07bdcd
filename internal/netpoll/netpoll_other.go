// internal/netpoll/netpoll_other.go
//go:build !linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netpoll

import "syscall"

// Supported reports whether native probes are available.
const Supported = false

// ListenerPending is not available on this platform.
func ListenerPending(syscall.Conn) (bool, error) {
	return false, ErrUnsupported
}

// Probe is not available on this platform.
func Probe(syscall.Conn) (Readiness, error) {
	return Readiness{}, ErrUnsupported
}
