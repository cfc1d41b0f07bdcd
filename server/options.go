// File: server/options.go
// Package server defines functional options for the Endpoint.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-bridge/control"
)

// EndpointOption customizes endpoint initialization.
type EndpointOption func(*Endpoint)

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) EndpointOption {
	return func(e *Endpoint) {
		e.log = log
	}
}

// WithMetrics publishes endpoint counters into mr instead of a private registry.
func WithMetrics(mr *control.MetricsRegistry) EndpointOption {
	return func(e *Endpoint) {
		e.metrics = mr
	}
}

// WithProbes registers endpoint state probes into dp.
func WithProbes(dp *control.DebugProbes) EndpointOption {
	return func(e *Endpoint) {
		e.probes = dp
	}
}
