package control_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/momentics/hioload-bridge/control"
)

func TestConfigStoreEnvOverrides(t *testing.T) {
	cs := control.NewConfigStore(map[string]any{
		"addr":              "127.0.0.1:8090",
		"tick-interval":     10 * time.Millisecond,
		"log.capacity":      500,
		"handshake.timeout": 5 * time.Second,
	})
	var changed []string
	cs.OnReload(func(keys []string) { changed = keys })

	env := map[string]string{
		"BRIDGE_ADDR":          "127.0.0.1:9000",
		"BRIDGE_TICK_INTERVAL": "20ms",
		"BRIDGE_LOG_CAPACITY":  "100",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	if err := cs.LoadEnv("BRIDGE", lookup); err != nil {
		t.Fatal(err)
	}

	if cs.String("addr") != "127.0.0.1:9000" || cs.Duration("tick-interval") != 20*time.Millisecond || cs.Int("log.capacity") != 100 {
		t.Errorf("snapshot = %v", cs.GetSnapshot())
	}
	if cs.Duration("handshake.timeout") != 5*time.Second {
		t.Error("untouched key changed")
	}
	if !reflect.DeepEqual(changed, []string{"addr", "log.capacity", "tick-interval"}) {
		t.Errorf("changed = %v", changed)
	}

	env["BRIDGE_LOG_CAPACITY"] = "lots"
	if err := cs.LoadEnv("BRIDGE", lookup); err == nil {
		t.Error("bad integer accepted")
	}
}

func TestConfigStoreSetConfigNotifiesOnlyChanges(t *testing.T) {
	cs := control.NewConfigStore(map[string]any{"addr": "a"})
	calls := 0
	cs.OnReload(func([]string) { calls++ })
	cs.SetConfig(map[string]any{"addr": "a"})
	cs.SetConfig(map[string]any{"addr": "b"})
	if calls != 1 {
		t.Errorf("listener calls = %d", calls)
	}
	if got := control.EnvName("BRIDGE", "log.capacity"); got != "BRIDGE_LOG_CAPACITY" {
		t.Errorf("EnvName = %s", got)
	}
}

func TestMetricsRegistry(t *testing.T) {
	mr := control.NewMetricsRegistry()
	mr.Add("frames.in", 2)
	mr.Add("frames.in", 3)
	mr.Set("state", "open")
	if mr.Counter("frames.in") != 5 || mr.Counter("missing") != 0 {
		t.Errorf("snapshot = %v", mr.GetSnapshot())
	}
	if mr.GetSnapshot()["state"] != "open" || mr.Updated().IsZero() {
		t.Error("gauge not recorded")
	}
}

func TestDebugProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	control.RegisterPlatformProbes(dp)
	dp.RegisterProbe("log.size", func() any { return 3 })
	state := dp.DumpState()
	if state["log.size"] != 3 || state["platform.cpus"].(int) < 1 || state["platform.os"] == "" {
		t.Errorf("state = %v", state)
	}
	if len(dp.Names()) != 5 {
		t.Errorf("Names = %v", dp.Names())
	}
}
