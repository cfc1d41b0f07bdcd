// File: protocol/handshake.go
// Package protocol implements the WebSocket opening handshake for hioload-bridge.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server side reads the raw HTTP/1.1 Upgrade request straight off the socket,
// derives Sec-WebSocket-Accept with the in-tree SHA-1 and writes the 101
// response. Client side builds the Upgrade request and verifies the accept
// value returned by the server.

package protocol

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/momentics/hioload-bridge/internal/sha1"
)

// Constants used for handshake processing.
const (
	WebSocketGUID            = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	HeaderConnection         = "Connection"
	HeaderUpgrade            = "Upgrade"
	HeaderSecWebSocketKey    = "Sec-WebSocket-Key"
	HeaderSecWebSocketAccept = "Sec-WebSocket-Accept"
	HeaderSecWebSocketVer    = "Sec-WebSocket-Version"
	RequiredWebSocketVersion = "13"
	MaxHandshakeHeadersSize  = 8192
)

// UpgradeRequest is the parsed client side of the opening handshake.
type UpgradeRequest struct {
	Method string
	Path   string
	Header map[string]string // lower-cased names, last value wins
	Key    string            // trimmed Sec-WebSocket-Key
	Size   int               // bytes consumed including the blank line
}

// ComputeAcceptKey derives the Sec-WebSocket-Accept value from the client's key
// per RFC 6455 section 1.3.
func ComputeAcceptKey(clientKey string) string {
	sum := sha1.Sum([]byte(clientKey + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ReadUpgradeRequest accumulates header lines from br until the terminating
// "\r\n\r\n" and validates them. Bytes after the header block stay buffered in br.
func ReadUpgradeRequest(br *bufio.Reader) (*UpgradeRequest, error) {
	req := &UpgradeRequest{Header: make(map[string]string)}

	first := true
	for {
		line, err := br.ReadSlice('\n')
		req.Size += len(line)
		if req.Size > MaxHandshakeHeadersSize || err == bufio.ErrBufferFull {
			return nil, ErrHandshakeTooLarge
		}
		if err != nil {
			return nil, fmt.Errorf("handshake read request: %w", err)
		}
		text := strings.TrimRight(string(line), "\r\n")
		if text == "" {
			if first {
				// Tolerate a stray CRLF before the request line.
				continue
			}
			break
		}
		if first {
			first = false
			parts := strings.Fields(text)
			if len(parts) >= 2 {
				req.Method, req.Path = parts[0], parts[1]
			}
			continue
		}
		if sep := strings.IndexByte(text, ':'); sep > 0 {
			name := strings.ToLower(strings.TrimSpace(text[:sep]))
			req.Header[name] = strings.TrimSpace(text[sep+1:])
		}
	}

	if !containsToken(req.Header["upgrade"], "websocket") {
		return nil, ErrInvalidUpgradeHeaders
	}
	req.Key = trimKey(req.Header["sec-websocket-key"])
	if req.Key == "" {
		return nil, ErrMissingWebSocketKey
	}
	return req, nil
}

// WriteHandshakeResponse writes the HTTP/1.1 101 Switching Protocols response.
func WriteHandshakeResponse(w io.Writer, acceptKey string) error {
	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + acceptKey + "\r\n" +
		"\r\n"
	_, err := io.WriteString(w, resp)
	return err
}

// NewClientKey returns a base64-encoded 16-byte nonce read from rnd.
func NewClientKey(rnd io.Reader) (string, error) {
	var nonce [16]byte
	if _, err := io.ReadFull(rnd, nonce[:]); err != nil {
		return "", fmt.Errorf("handshake nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonce[:]), nil
}

// WriteHandshakeRequest writes the HTTP GET Upgrade request for host and path.
func WriteHandshakeRequest(w io.Writer, host, path, key string) error {
	if path == "" {
		path = "/"
	}
	_, err := fmt.Fprintf(w,
		"GET %s HTTP/1.1\r\nHost: %s\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n%s: %s\r\n%s: %s\r\n\r\n",
		path, host, HeaderSecWebSocketKey, key, HeaderSecWebSocketVer, RequiredWebSocketVersion,
	)
	return err
}

// ReadHandshakeResponse reads the server's reply from br and verifies the status
// and Sec-WebSocket-Accept value against the key that was sent. Bytes following
// the headers stay buffered in br.
func ReadHandshakeResponse(br *bufio.Reader, key string) error {
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		return fmt.Errorf("handshake read response: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		return fmt.Errorf("%w: got %d", ErrBadHandshakeStatus, resp.StatusCode)
	}
	if !containsToken(resp.Header.Get(HeaderUpgrade), "websocket") {
		return ErrInvalidUpgradeHeaders
	}
	if got := resp.Header.Get(HeaderSecWebSocketAccept); got != ComputeAcceptKey(key) {
		return fmt.Errorf("%w: got %q", ErrSecAcceptMismatch, got)
	}
	return nil
}

// trimKey drops whitespace and control characters anywhere in the key.
func trimKey(raw string) string {
	return strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7F {
			return -1
		}
		return r
	}, raw)
}

// containsToken checks if the comma-separated headerValue holds token (case-insensitive).
func containsToken(headerValue, token string) bool {
	for _, p := range strings.Split(headerValue, ",") {
		if strings.EqualFold(strings.TrimSpace(p), token) {
			return true
		}
	}
	return false
}
