// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime configuration, metrics and debug introspection for hioload-bridge.
//
// Provides concurrent-safe state handling primitives including:
//   - Snapshot config reads, environment overrides and reload listeners
//   - Counters and gauges updated by the endpoints
//   - Named debug probes evaluated on demand
//
// Instances are owned by the process wiring them together; nothing here is a
// package-level singleton.
package control
