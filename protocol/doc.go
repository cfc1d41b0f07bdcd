// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Implements the WebSocket wire protocol (RFC 6455) used by hioload-bridge.
//
// Everything here is built directly on io.Reader / io.Writer so that it can run
// over a raw stream socket without the net/http server stack.
//
// Includes:
//   - Single-frame encoding/decoding with masking and extended lengths
//   - Server-side opening handshake parsing and Sec-WebSocket-Accept derivation
//   - Client-side upgrade request and accept verification
//
// Only text, close, ping and pong frames carry meaning for the bridge; there is
// no fragmentation, compression or sub-protocol negotiation.
package protocol
