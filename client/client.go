// File: client/client.go
// Package client provides the tool side of the bridge: a reconnecting
// WebSocket client that correlates asynchronous responses with outbound calls.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This client implements:
// - RFC6455 handshake over bare TCP (ws:// URL or host:port)
// - Masked text frames, Pong replies to Ping, Close echo
// - Request/response correlation by uuid with per-call timeouts
// - Automatic reconnect at a fixed interval, bounded by MaxReconnectAttempts
// - Lifecycle callbacks: OnConnect, OnDisconnect, OnMessage

package client

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-bridge/protocol"
	"github.com/momentics/hioload-bridge/rpc"
)

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// Client is a reconnecting bridge client. All methods are safe for
// concurrent use.
type Client struct {
	cfg  Config
	log  zerolog.Logger
	addr string // host:port to dial
	host string // Host header
	path string

	calls *correlator
	newID func() string

	mu             sync.Mutex // guards the fields below
	state          connState
	conn           net.Conn
	gen            uint64
	attempts       int
	exhausted      bool
	manual         bool // Disconnect was called; no automatic reconnect
	reconnectTimer *time.Timer
	onConnect      func()
	onDisconnect   func(error)
	onMessage      func(*rpc.Message)

	writeMu sync.Mutex
}

// New creates a disconnected client. Call Connect to open the connection.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Client{
		cfg:   *cfg,
		log:   cfg.Logger,
		calls: newCorrelator(),
		newID: uuid.NewString,
	}
	if c.cfg.DefaultTimeout <= 0 {
		c.cfg.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	if c.cfg.HandshakeTimeout <= 0 {
		c.cfg.HandshakeTimeout = DefaultConfig().HandshakeTimeout
	}
	if err := c.parseURL(c.cfg.URL); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) parseURL(raw string) error {
	if !strings.Contains(raw, "://") {
		c.addr, c.host, c.path = raw, raw, "/"
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("client: parse %q: %w", raw, err)
	}
	if u.Scheme != "ws" {
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	c.host = u.Host
	c.addr = u.Host
	if u.Port() == "" {
		c.addr = net.JoinHostPort(u.Hostname(), "80")
	}
	c.path = u.RequestURI()
	return nil
}

// OnConnect registers fn to run after every successful handshake.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

// OnDisconnect registers fn to run when an open connection is lost or closed.
func (c *Client) OnDisconnect(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// OnMessage registers the observer for unsolicited messages: messages that
// carry a method and do not answer a pending call. fn runs on the reader
// goroutine and must not wait for a response of its own.
func (c *Client) OnMessage(fn func(msg *rpc.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// IsConnected reports whether the connection is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected
}

// Exhausted reports whether automatic reconnection has given up.
func (c *Client) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// Pending returns the number of calls awaiting a response.
func (c *Client) Pending() int {
	return c.calls.size()
}

// Connect opens the connection. It is a no-op while connected or connecting.
// An explicit call resets the reconnect budget, so it also resumes a client
// whose automatic reconnection was exhausted. A failed attempt schedules an
// automatic reconnect.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = stateConnecting
	c.manual = false
	c.exhausted = false
	c.attempts = 0
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.mu.Unlock()
	return c.establish(ctx)
}

// Disconnect closes the connection, cancels any scheduled reconnect and
// rejects every pending call with ErrDisconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manual = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	if c.state == stateConnected {
		c.state = stateDisconnected
	}
	cb := c.onDisconnect
	c.mu.Unlock()

	if conn != nil {
		c.writeFrame(conn, protocol.OpcodeClose, protocol.ClosePayload(protocol.CloseNormalClosure))
		conn.Close()
		c.log.Info().Msg("disconnected")
	}
	if n := c.calls.rejectAll(ErrDisconnected); n > 0 {
		c.log.Debug().Int("pending", n).Msg("pending calls rejected")
	}
	if conn != nil && cb != nil {
		cb(nil)
	}
}

// Request sends method with params and waits for the correlated response.
// A timeout <= 0 uses Config.DefaultTimeout. params may be nil, raw JSON or
// any value sonnet can marshal.
func (c *Client) Request(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.cfg.DefaultTimeout
	}

	c.mu.Lock()
	conn, exhausted := c.conn, c.exhausted
	c.mu.Unlock()
	if conn == nil {
		if exhausted {
			return nil, fmt.Errorf("%w: %w", ErrNotConnected, ErrReconnectExhausted)
		}
		return nil, ErrNotConnected
	}

	id := c.newID()
	payload, err := rpc.EncodeRequest(id, method, params)
	if err != nil {
		return nil, fmt.Errorf("client: encode %s params: %w", method, err)
	}

	call := c.calls.add(id, method, timeout)
	c.mu.Lock()
	current := c.conn == conn
	c.mu.Unlock()
	if !current {
		// Dropped since the snapshot; teardown may already have rejected
		// everything pending, so this call is failed here.
		c.calls.settle(id, callResult{err: ErrDisconnected})
		r := <-call.done
		return r.result, r.err
	}
	if err := c.writeFrame(conn, protocol.OpcodeText, payload); err != nil {
		c.calls.take(id)
		return nil, fmt.Errorf("client: send %s: %w", method, err)
	}
	c.log.Debug().Str("id", id).Str("method", method).Msg("request sent")

	select {
	case r := <-call.done:
		c.log.Debug().Str("id", id).Dur("elapsed", time.Since(call.started)).Err(r.err).Msg("request settled")
		return r.result, r.err
	case <-ctx.Done():
		if c.calls.settle(id, callResult{err: ctx.Err()}) {
			c.log.Debug().Str("id", id).Msg("request canceled")
		}
		r := <-call.done
		return r.result, r.err
	}
}

// establish dials and handshakes, then starts the reader. The state must be
// stateConnecting on entry.
func (c *Client) establish(ctx context.Context) error {
	conn, br, err := c.handshake(ctx)

	c.mu.Lock()
	if err != nil {
		c.state = stateDisconnected
		c.log.Warn().Err(err).Str("url", c.cfg.URL).Int("attempt", c.attempts).Msg("connect failed")
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return err
	}
	if c.manual {
		c.state = stateDisconnected
		c.mu.Unlock()
		conn.Close()
		return ErrDisconnected
	}
	c.conn = conn
	c.state = stateConnected
	c.attempts = 0
	c.exhausted = false
	c.gen++
	gen := c.gen
	cb := c.onConnect
	c.mu.Unlock()

	c.log.Info().Str("url", c.cfg.URL).Msg("connected")
	go c.readLoop(conn, br, gen)
	if cb != nil {
		cb()
	}
	return nil
}

func (c *Client) handshake(ctx context.Context) (net.Conn, *bufio.Reader, error) {
	deadline := time.Now().Add(c.cfg.HandshakeTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	dctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	dial := c.cfg.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	conn, err := dial(dctx, "tcp", c.addr)
	if err != nil {
		return nil, nil, fmt.Errorf("client: dial %s: %w", c.addr, err)
	}

	conn.SetDeadline(deadline)
	key, err := protocol.NewClientKey(rand.Reader)
	if err == nil {
		err = protocol.WriteHandshakeRequest(conn, c.host, c.path, key)
	}
	br := bufio.NewReader(conn)
	if err == nil {
		err = protocol.ReadHandshakeResponse(br, key)
	}
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	conn.SetDeadline(time.Time{})
	return conn, br, nil
}

// scheduleReconnectLocked arms the reconnect timer unless the client was
// disconnected on purpose or the attempt budget is spent.
func (c *Client) scheduleReconnectLocked() {
	if c.manual || c.reconnectTimer != nil {
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.exhausted = true
		c.log.Error().Int("attempts", c.attempts).Msg("max reconnect attempts reached")
		return
	}
	c.attempts++
	c.log.Info().Int("attempt", c.attempts).Dur("in", c.cfg.ReconnectInterval).Msg("reconnect scheduled")
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectInterval, c.reconnect)
}

func (c *Client) reconnect() {
	c.mu.Lock()
	c.reconnectTimer = nil
	if c.manual || c.state != stateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = stateConnecting
	c.mu.Unlock()
	c.establish(context.Background())
}

func (c *Client) readLoop(conn net.Conn, br *bufio.Reader, gen uint64) {
	for {
		f, err := protocol.DecodeFrame(br)
		if err != nil {
			c.drop(gen, err)
			return
		}
		switch f.Opcode {
		case protocol.OpcodePing:
			c.writeFrame(conn, protocol.OpcodePong, f.Payload)
		case protocol.OpcodePong:
		case protocol.OpcodeClose:
			c.writeFrame(conn, protocol.OpcodeClose, nil)
			c.drop(gen, nil)
			return
		default:
			if _, err := f.Text(); err != nil {
				c.drop(gen, err)
				return
			}
			c.handleMessage(f.Payload)
		}
	}
}

// handleMessage routes one inbound text payload. A pending call with a
// matching id wins over the unsolicited-message observer.
func (c *Client) handleMessage(raw []byte) {
	msg, err := rpc.ParseMessage(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping unparseable message")
		return
	}
	if id := msg.IDString(); id != "" {
		if call := c.calls.take(id); call != nil {
			r := callResult{result: msg.Result}
			if !msg.HasResult() {
				r.result = json.RawMessage("null")
			}
			if msg.Error != nil {
				r = callResult{err: &RemoteError{Method: call.method, Code: msg.Error.Code, Message: msg.Error.Message}}
			}
			call.done <- r
			return
		}
	}
	if msg.Method != "" {
		c.mu.Lock()
		fn := c.onMessage
		c.mu.Unlock()
		if fn != nil {
			fn(msg)
			return
		}
	}
	c.log.Debug().Str("id", msg.IDString()).Str("method", msg.Method).Msg("dropping unmatched message")
}

// drop tears down the connection of generation gen, if it is still current.
func (c *Client) drop(gen uint64, cause error) {
	c.mu.Lock()
	if c.gen != gen || c.conn == nil {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.state = stateDisconnected
	c.scheduleReconnectLocked()
	cb := c.onDisconnect
	c.mu.Unlock()

	conn.Close()
	switch {
	case cause == nil:
		c.log.Info().Msg("host closed connection")
	case errors.Is(cause, net.ErrClosed):
		c.log.Info().Msg("connection closed")
	default:
		c.log.Warn().Err(cause).Msg("connection lost")
	}
	c.calls.rejectAll(ErrDisconnected)
	if cb != nil {
		cb(cause)
	}
}

func (c *Client) writeFrame(conn net.Conn, op protocol.Opcode, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return protocol.WriteFrame(conn, op, payload, true)
}
