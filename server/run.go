// File: server/run.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Run is the default external scheduler for an Endpoint. Hosts that already
// own a frame loop call Tick from it instead.

package server

import (
	"context"
	"errors"
	"time"
)

// Run calls Tick every TickInterval until ctx is done or Stop is called.
// It returns ctx.Err() on cancellation and nil after Stop.
func (e *Endpoint) Run(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return ErrNotStarted
	}

	interval := e.cfg.TickInterval
	if interval <= 0 {
		interval = DefaultConfig().TickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case <-ticker.C:
			err := e.Tick()
			switch {
			case err == nil, errors.Is(err, ErrTickInProgress):
			case errors.Is(err, ErrNotStarted):
				return nil
			default:
				return err
			}
		}
	}
}
