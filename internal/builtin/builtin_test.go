package builtin_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-bridge/capability"
	"github.com/momentics/hioload-bridge/control"
	"github.com/momentics/hioload-bridge/internal/builtin"
	"github.com/momentics/hioload-bridge/internal/eventlog"
	"github.com/momentics/hioload-bridge/rpc"
)

type fixedStats map[string]any

func (f fixedStats) Stats() map[string]any { return f }

func process(t *testing.T, d *rpc.Dispatcher, req string, into any) {
	t.Helper()
	var resp rpc.Response
	if err := json.Unmarshal(d.Process([]byte(req)), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != nil {
		t.Fatalf("%s: %v", req, resp.Error)
	}
	if err := json.Unmarshal(resp.Result, into); err != nil {
		t.Fatalf("%s: %v", resp.Result, err)
	}
}

func setup() (*rpc.Dispatcher, *eventlog.Ring) {
	ring := eventlog.NewRing(10)
	log := zerolog.New(ring)
	log.Info().Msg("client connected")
	log.Warn().Msg("slow handler")
	log.Error().Msg("handler failed")

	tbl := capability.NewTable("2022.3")
	tbl.Value("platform", "linux")

	dp := control.NewDebugProbes()
	dp.RegisterProbe("log.size", func() any { return ring.Len() })

	d := rpc.NewDispatcher()
	builtin.Register(d, builtin.Deps{
		Stats:        fixedStats{"state": "open"},
		Probes:       dp,
		Log:          ring,
		Config:       control.NewConfigStore(map[string]any{"addr": "127.0.0.1:8090", "tick-interval": 10 * time.Millisecond}),
		Capabilities: tbl,
		Now:          func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	return d, ring
}

func TestMethodsAndPing(t *testing.T) {
	d, _ := setup()
	var methods struct{ Methods []string }
	process(t, d, `{"id":"1","method":"server/methods"}`, &methods)
	if len(methods.Methods) != 6 {
		t.Errorf("methods = %v", methods.Methods)
	}
	var pong struct {
		Pong bool
		Time string
	}
	process(t, d, `{"id":"2","method":"server/ping"}`, &pong)
	if !pong.Pong || pong.Time != "2024-01-02T03:04:05Z" {
		t.Errorf("ping = %+v", pong)
	}
}

func TestLogsSeverityAndLimit(t *testing.T) {
	d, ring := setup()
	var out struct {
		Entries []struct{ Level, Message string }
		Count   int
	}
	process(t, d, `{"id":"1","method":"server/logs","params":{"severity":"warning"}}`, &out)
	if out.Count != 2 || out.Entries[0].Message != "slow handler" || out.Entries[1].Level != "error" {
		t.Errorf("warning+ = %+v", out)
	}
	process(t, d, `{"id":"2","method":"server/logs","params":{"limit":1}}`, &out)
	if out.Count != 1 || out.Entries[0].Message != "handler failed" {
		t.Errorf("limit 1 = %+v", out)
	}
	if ring.Len() != 3 {
		t.Errorf("ring modified: %d", ring.Len())
	}
}

func TestStatsConfigProperty(t *testing.T) {
	d, _ := setup()
	var stats struct {
		Endpoint map[string]any
		Probes   map[string]any
	}
	process(t, d, `{"id":"1","method":"server/stats"}`, &stats)
	if stats.Endpoint["state"] != "open" || stats.Probes["log.size"] != float64(3) {
		t.Errorf("stats = %+v", stats)
	}

	var cfg map[string]any
	process(t, d, `{"id":"2","method":"server/config"}`, &cfg)
	if cfg["tick-interval"] != "10ms" || cfg["addr"] != "127.0.0.1:8090" {
		t.Errorf("config = %v", cfg)
	}

	var prop struct{ Name, Value string }
	process(t, d, `{"id":"3","method":"host/property","params":{"name":"platform"}}`, &prop)
	if prop.Value != "linux" {
		t.Errorf("property = %+v", prop)
	}
}
