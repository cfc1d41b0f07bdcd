// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Error values shared by the frame codec and the handshake negotiator.

package protocol

import "errors"

// Transport-level failures: fatal to the current connection.
var (
	ErrTruncatedStream = errors.New("websocket: stream closed mid-frame")
)

// Protocol-level failures: the connection is rejected or closed.
var (
	ErrFrameTooLarge         = errors.New("websocket: frame payload exceeds maximum allowed size")
	ErrUnmaskedFrame         = errors.New("websocket: client frame is not masked")
	ErrInvalidUTF8           = errors.New("websocket: text payload is not valid UTF-8")
	ErrInvalidUpgradeHeaders = errors.New("websocket: invalid upgrade headers")
	ErrMissingWebSocketKey   = errors.New("websocket: missing Sec-WebSocket-Key header")
	ErrHandshakeTooLarge     = errors.New("websocket: handshake headers too large")
	ErrBadHandshakeStatus    = errors.New("websocket: handshake status is not 101")
	ErrSecAcceptMismatch     = errors.New("websocket: Sec-WebSocket-Accept mismatch")
)

// IsProtocolError reports whether err is a protocol violation as opposed to a
// plain socket failure.
func IsProtocolError(err error) bool {
	for _, target := range []error{
		ErrFrameTooLarge, ErrUnmaskedFrame, ErrInvalidUTF8, ErrInvalidUpgradeHeaders,
		ErrMissingWebSocketKey, ErrHandshakeTooLarge, ErrBadHandshakeStatus, ErrSecAcceptMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
