// Package netpoll
// Author: momentics <momentics@gmail.com>
//
// Non-blocking readiness probes for the poll-driven host endpoint: "is a
// connection waiting on the listener" and "how many bytes can be read from
// this socket right now". Both answer immediately and never consume data.
package netpoll

import "errors"

// ErrUnsupported is returned on platforms without a native probe. Callers are
// expected to fall back to deadline-based polling.
var ErrUnsupported = errors.New("netpoll: readiness probe not supported on this platform")

// Readiness describes the read side of a connected socket.
type Readiness struct {
	Readable  bool // poll reported POLLIN or POLLHUP
	Available int  // bytes queued in the kernel receive buffer
}

// PeerClosed reports the "readable but nothing to read" state that a stream
// socket enters after the remote side has shut down.
func (r Readiness) PeerClosed() bool {
	return r.Readable && r.Available == 0
}
