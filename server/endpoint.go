// File: server/endpoint.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Endpoint owns the listener and the single active connection. All socket
// work happens inside Tick, which an external scheduler (Run, or a host's own
// frame loop) calls periodically.

package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-bridge/control"
	"github.com/momentics/hioload-bridge/internal/netpoll"
	"github.com/momentics/hioload-bridge/protocol"
	"github.com/momentics/hioload-bridge/rpc"
)

// pollWait bounds accept and peek calls on platforms without readiness probes.
const pollWait = time.Millisecond

// Endpoint is the host side of the bridge.
type Endpoint struct {
	cfg        *Config
	dispatcher *rpc.Dispatcher
	log        zerolog.Logger
	metrics    *control.MetricsRegistry
	probes     *control.DebugProbes

	mu   sync.Mutex // guards ln, conn, br, done
	ln   *net.TCPListener
	conn *net.TCPConn
	br   *bufio.Reader
	done chan struct{}

	state   atomic.Int32
	ticking atomic.Bool
	addr    atomic.Value // string
	peer    atomic.Value // string
}

// NewEndpoint creates an endpoint serving requests through d.
func NewEndpoint(cfg *Config, d *rpc.Dispatcher, opts ...EndpointOption) *Endpoint {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	e := &Endpoint{
		cfg:        cfg,
		dispatcher: d,
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = control.NewMetricsRegistry()
	}
	if e.probes != nil {
		e.probes.RegisterProbe("endpoint.state", func() any { return e.State().String() })
		e.probes.RegisterProbe("endpoint.peer", func() any { return e.Peer() })
		e.probes.RegisterProbe("endpoint.addr", func() any { return e.Addr() })
	}
	e.addr.Store("")
	e.peer.Store("")
	return e
}

// Start binds the listening socket.
func (e *Endpoint) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln != nil {
		return ErrAlreadyStarted
	}
	ln, err := net.Listen("tcp", e.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", e.cfg.Addr, err)
	}
	e.ln = ln.(*net.TCPListener)
	e.done = make(chan struct{})
	e.addr.Store(ln.Addr().String())
	e.log.Info().Str("addr", ln.Addr().String()).Msg("endpoint listening")
	return nil
}

// Stop closes the active connection and the listener. It is safe to call from
// any goroutine, including from a handler running inside Tick.
func (e *Endpoint) Stop() error {
	e.mu.Lock()
	ln, conn, done := e.ln, e.conn, e.done
	e.ln, e.conn, e.br, e.done = nil, nil, nil, nil
	e.mu.Unlock()

	if ln == nil {
		return nil
	}
	close(done)
	if conn != nil {
		conn.Close()
	}
	e.setState(StateClosed)
	e.peer.Store("")
	e.log.Info().Msg("endpoint stopped")
	return ln.Close()
}

// State returns the connection slot state.
func (e *Endpoint) State() State {
	return State(e.state.Load())
}

// Addr returns the bound address, or "" when not started.
func (e *Endpoint) Addr() string {
	return e.addr.Load().(string)
}

// Peer returns the remote address of the active connection, or "".
func (e *Endpoint) Peer() string {
	return e.peer.Load().(string)
}

// Metrics returns the registry the endpoint publishes into.
func (e *Endpoint) Metrics() *control.MetricsRegistry {
	return e.metrics
}

// Stats returns a snapshot of endpoint counters, state and dispatch counters.
func (e *Endpoint) Stats() map[string]any {
	out := e.metrics.GetSnapshot()
	out["state"] = e.State().String()
	out["peer"] = e.Peer()
	if e.dispatcher != nil {
		ds := e.dispatcher.Stats()
		out["dispatch.processed"] = ds.Processed
		out["dispatch.malformed"] = ds.Malformed
		out["dispatch.unknownMethod"] = ds.UnknownMethod
		out["dispatch.handlerFailure"] = ds.HandlerFailure
	}
	return out
}

// Tick performs one cooperative step: accept a pending connection, then
// drain and answer every complete frame currently readable. It never starts
// goroutines and refuses to be re-entered.
func (e *Endpoint) Tick() error {
	if !e.ticking.CompareAndSwap(false, true) {
		return ErrTickInProgress
	}
	defer e.ticking.Store(false)

	e.mu.Lock()
	ln := e.ln
	e.mu.Unlock()
	if ln == nil {
		return ErrNotStarted
	}

	e.acceptPending(ln)
	e.serviceConnection()
	return nil
}

func (e *Endpoint) acceptPending(ln *net.TCPListener) {
	if netpoll.Supported {
		pending, err := netpoll.ListenerPending(ln)
		if err != nil {
			e.log.Debug().Err(err).Msg("listener probe failed")
			return
		}
		if !pending {
			return
		}
	}

	ln.SetDeadline(time.Now().Add(pollWait))
	conn, err := ln.AcceptTCP()
	if err != nil {
		if !isTimeout(err) && !errors.Is(err, net.ErrClosed) {
			e.log.Warn().Err(err).Msg("accept failed")
		}
		return
	}

	e.mu.Lock()
	old := e.conn
	e.conn, e.br = nil, nil
	e.mu.Unlock()
	if old != nil {
		e.metrics.Add(MetricConnectionsReplaced, 1)
		e.log.Info().Str("peer", e.Peer()).Msg("closing active connection for new client")
		old.Close()
	}

	e.setState(StateHandshaking)
	br, err := e.handshake(conn)
	if err != nil {
		e.metrics.Add(MetricConnectionsRejected, 1)
		e.log.Warn().Err(err).Str("peer", conn.RemoteAddr().String()).Msg("handshake rejected")
		conn.Close()
		e.setState(StateClosed)
		e.peer.Store("")
		return
	}

	e.mu.Lock()
	if e.ln == nil {
		e.mu.Unlock()
		conn.Close()
		return
	}
	e.conn, e.br = conn, br
	e.mu.Unlock()

	e.setState(StateOpen)
	e.peer.Store(conn.RemoteAddr().String())
	e.metrics.Add(MetricConnectionsAccepted, 1)
	e.log.Info().Str("peer", conn.RemoteAddr().String()).Msg("client connected")
}

// handshake reads the upgrade request under the handshake deadline. A bad
// request is answered by closing the socket without any response.
func (e *Endpoint) handshake(conn *net.TCPConn) (*bufio.Reader, error) {
	conn.SetDeadline(time.Now().Add(e.cfg.HandshakeTimeout))
	br := bufio.NewReaderSize(conn, protocol.MaxHandshakeHeadersSize)
	req, err := protocol.ReadUpgradeRequest(br)
	if err != nil {
		return nil, err
	}
	if err := protocol.WriteHandshakeResponse(conn, protocol.ComputeAcceptKey(req.Key)); err != nil {
		return nil, fmt.Errorf("handshake write response: %w", err)
	}
	conn.SetDeadline(time.Time{})
	e.log.Debug().Str("path", req.Path).Msg("handshake complete")
	return br, nil
}

func (e *Endpoint) serviceConnection() {
	e.mu.Lock()
	conn, br := e.conn, e.br
	e.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		ready, err := e.readable(conn, br)
		if err != nil {
			e.dropConnection(conn, err)
			return
		}
		if !ready {
			return
		}

		conn.SetReadDeadline(time.Now().Add(e.cfg.FrameReadTimeout))
		frame, err := protocol.DecodeFrame(br)
		if err != nil {
			e.dropConnection(conn, err)
			return
		}
		e.metrics.Add(MetricFramesIn, 1)
		if !e.handleFrame(conn, frame) {
			return
		}
	}
}

// readable reports whether at least one byte can be read without blocking.
// io.EOF means the peer has gone away.
func (e *Endpoint) readable(conn *net.TCPConn, br *bufio.Reader) (bool, error) {
	if br.Buffered() > 0 {
		return true, nil
	}
	if netpoll.Supported {
		r, err := netpoll.Probe(conn)
		if err != nil {
			return false, err
		}
		if r.PeerClosed() {
			return false, io.EOF
		}
		return r.Available > 0, nil
	}

	conn.SetReadDeadline(time.Now().Add(pollWait))
	_, err := br.Peek(1)
	conn.SetReadDeadline(time.Time{})
	switch {
	case err == nil:
		return true, nil
	case isTimeout(err):
		return false, nil
	default:
		return false, err
	}
}

// handleFrame reacts to one inbound frame and reports whether the connection
// is still usable.
func (e *Endpoint) handleFrame(conn *net.TCPConn, f *protocol.WSFrame) bool {
	if !f.Masked {
		e.protocolFailure(conn, protocol.CloseProtocolError, protocol.ErrUnmaskedFrame)
		return false
	}

	switch f.Opcode {
	case protocol.OpcodeClose:
		e.write(conn, protocol.OpcodeClose, nil)
		e.dropConnection(conn, nil)
		return false
	case protocol.OpcodePing:
		return e.write(conn, protocol.OpcodePong, f.Payload)
	case protocol.OpcodePong:
		return true
	}

	// Text, and any opcode this endpoint does not know, carries a request.
	text, err := f.Text()
	if err != nil {
		e.protocolFailure(conn, protocol.CloseInvalidPayload, err)
		return false
	}
	e.metrics.Add(MetricRequests, 1)
	e.log.Debug().Str("msg", truncate(text, e.cfg.LogTruncate)).Msg("request received")

	resp := e.dispatcher.Process(f.Payload)
	e.log.Debug().Str("msg", truncate(string(resp), e.cfg.LogTruncate)).Msg("response sent")
	return e.write(conn, protocol.OpcodeText, resp)
}

func (e *Endpoint) write(conn *net.TCPConn, op protocol.Opcode, payload []byte) bool {
	conn.SetWriteDeadline(time.Now().Add(e.cfg.WriteTimeout))
	if err := protocol.WriteFrame(conn, op, payload, false); err != nil {
		e.dropConnection(conn, err)
		return false
	}
	e.metrics.Add(MetricFramesOut, 1)
	return true
}

func (e *Endpoint) protocolFailure(conn *net.TCPConn, code uint16, err error) {
	e.metrics.Add(MetricProtocolErrors, 1)
	e.log.Warn().Err(err).Msg("protocol violation, closing connection")
	conn.SetWriteDeadline(time.Now().Add(e.cfg.WriteTimeout))
	protocol.WriteFrame(conn, protocol.OpcodeClose, protocol.ClosePayload(code), false)
	e.dropConnection(conn, nil)
}

// dropConnection tears down conn if it is still the active connection.
// A nil cause is an orderly close.
func (e *Endpoint) dropConnection(conn *net.TCPConn, cause error) {
	e.mu.Lock()
	active := e.conn == conn
	if active {
		e.conn, e.br = nil, nil
	}
	e.mu.Unlock()
	conn.Close()
	if !active {
		return
	}

	switch {
	case cause == nil:
		e.log.Info().Str("peer", e.Peer()).Msg("client disconnected")
	case errors.Is(cause, io.EOF):
		e.log.Info().Str("peer", e.Peer()).Msg("peer closed connection")
	case protocol.IsProtocolError(cause):
		e.metrics.Add(MetricProtocolErrors, 1)
		e.log.Warn().Err(cause).Msg("protocol error, connection closed")
	default:
		e.metrics.Add(MetricTransportErrors, 1)
		e.log.Error().Err(cause).Msg("connection error, connection closed")
	}
	e.setState(StateClosed)
	e.peer.Store("")
}

func (e *Endpoint) setState(s State) {
	e.state.Store(int32(s))
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// truncate shortens s to at most n runes for log output.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
