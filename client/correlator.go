// File: client/correlator.go
// Package client
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The correlator owns the pending-call table. Insert, lookup and removal each
// happen under one lock so that a call is settled exactly once, whichever of
// response, timeout, cancellation or teardown gets there first.

package client

import (
	"encoding/json"
	"sync"
	"time"
)

type callResult struct {
	result json.RawMessage
	err    error
}

type pendingCall struct {
	id      string
	method  string
	started time.Time
	timer   *time.Timer
	done    chan callResult
}

type correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingCall
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[string]*pendingCall)}
}

// add registers a call that fails with a TimeoutError once timeout elapses.
func (c *correlator) add(id, method string, timeout time.Duration) *pendingCall {
	call := &pendingCall{
		id:      id,
		method:  method,
		started: time.Now(),
		done:    make(chan callResult, 1),
	}
	c.mu.Lock()
	c.pending[id] = call
	call.timer = time.AfterFunc(timeout, func() {
		c.settle(id, callResult{err: &TimeoutError{Method: method, After: timeout}})
	})
	c.mu.Unlock()
	return call
}

// take removes and returns the call for id, stopping its timer.
func (c *correlator) take(id string) *pendingCall {
	c.mu.Lock()
	call, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	call.timer.Stop()
	return call
}

// settle delivers r to the call for id. It reports false if the call was
// already settled.
func (c *correlator) settle(id string, r callResult) bool {
	call := c.take(id)
	if call == nil {
		return false
	}
	call.done <- r
	return true
}

// rejectAll fails every pending call with err.
func (c *correlator) rejectAll(err error) int {
	c.mu.Lock()
	calls := c.pending
	c.pending = make(map[string]*pendingCall)
	c.mu.Unlock()

	for _, call := range calls {
		call.timer.Stop()
		call.done <- callResult{err: err}
	}
	return len(calls)
}

func (c *correlator) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
