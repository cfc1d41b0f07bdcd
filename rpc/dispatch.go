// File: rpc/dispatch.go
// Package rpc routes decoded requests to registered handlers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The Dispatcher is owned by one endpoint instance and passed to it by
// reference. It is registered once at startup and read on every message.

package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// HandlerFunc serves one method. params is the request's params object ({} if
// absent); the returned bytes are embedded verbatim as the result.
type HandlerFunc func(params json.RawMessage) (json.RawMessage, error)

// Handler is the interface form of HandlerFunc.
type Handler interface {
	Handle(method string, params json.RawMessage) (json.RawMessage, error)
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger used for handler failures.
func WithLogger(log zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// DispatchStats is a snapshot of dispatch counters.
type DispatchStats struct {
	Processed      int64 `json:"processed"`
	Malformed      int64 `json:"malformed"`
	UnknownMethod  int64 `json:"unknownMethod"`
	HandlerFailure int64 `json:"handlerFailure"`
}

// Dispatcher maps method names to handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	log      zerolog.Logger

	processed atomic.Int64
	malformed atomic.Int64
	unknown   atomic.Int64
	failures  atomic.Int64
}

// NewDispatcher creates an empty dispatch table.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Register binds method to h, replacing any previous binding.
func (d *Dispatcher) Register(method string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[method] = h
}

// RegisterHandler binds each of methods to the same Handler.
func (d *Dispatcher) RegisterHandler(h Handler, methods ...string) {
	for _, m := range methods {
		method := m
		d.Register(method, func(params json.RawMessage) (json.RawMessage, error) {
			return h.Handle(method, params)
		})
	}
}

// Methods returns the registered method names in sorted order.
func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for m := range d.handlers {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Stats returns the dispatch counters.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Processed:      d.processed.Load(),
		Malformed:      d.malformed.Load(),
		UnknownMethod:  d.unknown.Load(),
		HandlerFailure: d.failures.Load(),
	}
}

// Process handles one raw request message and returns the response message.
// It never fails: every problem becomes an error envelope.
func (d *Dispatcher) Process(raw []byte) []byte {
	d.processed.Add(1)

	msg, err := ParseMessage(raw)
	if err != nil {
		d.malformed.Add(1)
		return EncodeError(UnknownID, CodeMalformedRequest, fmt.Sprintf("Invalid JSON: %v", err))
	}

	id := msg.IDString()
	if id == "" {
		d.malformed.Add(1)
		return EncodeError(UnknownID, CodeMalformedRequest, "Missing 'id' field in request")
	}
	if msg.Method == "" {
		d.malformed.Add(1)
		return EncodeError(id, CodeMalformedRequest, "Missing 'method' field in request")
	}

	d.mu.RLock()
	h, ok := d.handlers[msg.Method]
	d.mu.RUnlock()
	if !ok {
		d.unknown.Add(1)
		return EncodeError(id, CodeUnknownMethod, "Unknown method: "+msg.Method)
	}

	params := msg.Params
	if len(params) == 0 || string(params) == "null" {
		params = json.RawMessage("{}")
	}

	result, err := d.invoke(h, params)
	if err != nil {
		d.failures.Add(1)
		d.log.Error().Err(err).Str("method", msg.Method).Str("id", id).Msg("handler failed")
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return EncodeError(id, rpcErr.Code, rpcErr.Message)
		}
		return EncodeError(id, CodeHandlerError, err.Error())
	}
	return EncodeResult(id, result)
}

// invoke runs h, turning a panic into an error so one bad handler cannot take
// the connection down.
func (d *Dispatcher) invoke(h HandlerFunc, params json.RawMessage) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(params)
}
