// Package builtin
// Author: momentics <momentics@gmail.com>
//
// Methods every bridge host answers regardless of the domain handlers it
// registers: endpoint statistics, the recent activity log, effective
// configuration, the method list and capability lookup.

package builtin

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/momentics/hioload-bridge/capability"
	"github.com/momentics/hioload-bridge/control"
	"github.com/momentics/hioload-bridge/internal/eventlog"
	"github.com/momentics/hioload-bridge/rpc"
)

// Method names served by this package.
const (
	MethodStats    = "server/stats"
	MethodLogs     = "server/logs"
	MethodConfig   = "server/config"
	MethodMethods  = "server/methods"
	MethodPing     = "server/ping"
	MethodProperty = "host/property"
)

// StatsSource is implemented by *server.Endpoint.
type StatsSource interface {
	Stats() map[string]any
}

// Deps are the host components the built-ins report on. Nil members disable
// the corresponding method.
type Deps struct {
	Stats        StatsSource
	Probes       *control.DebugProbes
	Log          *eventlog.Ring
	Config       *control.ConfigStore
	Capabilities *capability.Table
	Now          func() time.Time
}

// Register binds the built-in methods on d.
func Register(d *rpc.Dispatcher, deps Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	d.Register(MethodMethods, func(json.RawMessage) (json.RawMessage, error) {
		return sonnet.Marshal(map[string]any{"methods": d.Methods()})
	})
	d.Register(MethodPing, func(json.RawMessage) (json.RawMessage, error) {
		return sonnet.Marshal(map[string]any{"pong": true, "time": deps.Now().UTC().Format(time.RFC3339Nano)})
	})
	if deps.Stats != nil || deps.Probes != nil {
		d.Register(MethodStats, deps.stats)
	}
	if deps.Log != nil {
		d.Register(MethodLogs, deps.logs)
	}
	if deps.Config != nil {
		d.Register(MethodConfig, deps.config)
	}
	if deps.Capabilities != nil {
		d.Register(MethodProperty, deps.Capabilities.Handle)
	}
}

func (deps Deps) stats(json.RawMessage) (json.RawMessage, error) {
	out := make(map[string]any, 2)
	if deps.Stats != nil {
		out["endpoint"] = deps.Stats.Stats()
	}
	if deps.Probes != nil {
		out["probes"] = deps.Probes.DumpState()
	}
	return sonnet.Marshal(out)
}

type logsParams struct {
	Severity string `json:"severity"`
	Limit    int    `json:"limit"`
}

type logLine struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// logs returns retained log lines at or above the requested severity, newest
// last. A positive limit keeps only the most recent entries.
func (deps Deps) logs(params json.RawMessage) (json.RawMessage, error) {
	var p logsParams
	if err := sonnet.Unmarshal(params, &p); err != nil {
		return nil, rpc.Errorf(rpc.CodeMalformedRequest, "invalid params: %v", err)
	}
	entries := deps.Log.Entries(eventlog.ParseSeverity(p.Severity))
	if p.Limit > 0 && len(entries) > p.Limit {
		entries = entries[len(entries)-p.Limit:]
	}
	lines := make([]logLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, logLine{
			Time:    e.Time.UTC().Format(time.RFC3339Nano),
			Level:   e.Level.String(),
			Message: e.Message,
		})
	}
	return sonnet.Marshal(map[string]any{
		"entries": lines,
		"count":   len(lines),
		"dropped": deps.Log.Dropped(),
	})
}

func (deps Deps) config(json.RawMessage) (json.RawMessage, error) {
	snap := deps.Config.GetSnapshot()
	out := make(map[string]any, len(snap))
	for k, v := range snap {
		switch tv := v.(type) {
		case time.Duration:
			out[k] = tv.String()
		case fmt.Stringer:
			out[k] = tv.String()
		default:
			out[k] = v
		}
	}
	return sonnet.Marshal(out)
}
