// File: cmd/bridge-host/main.go
// Package main
// Demo host process: a poll-driven bridge endpoint with the built-in methods
// and a couple of sample domain handlers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"

	"github.com/momentics/hioload-bridge/capability"
	"github.com/momentics/hioload-bridge/control"
	"github.com/momentics/hioload-bridge/internal/builtin"
	"github.com/momentics/hioload-bridge/internal/eventlog"
	"github.com/momentics/hioload-bridge/rpc"
	"github.com/momentics/hioload-bridge/server"
)

const version = "1.0.0"

func main() {
	defaults := server.DefaultConfig()
	addr := flag.String("addr", defaults.Addr, "listen address (loopback)")
	tick := flag.Duration("tick", defaults.TickInterval, "tick interval")
	handshake := flag.Duration("handshake-timeout", defaults.HandshakeTimeout, "handshake deadline")
	logCap := flag.Int("log-capacity", eventlog.DefaultCapacity, "retained log lines")
	level := flag.String("level", "info", "log level")
	flag.Parse()

	cs := control.NewConfigStore(map[string]any{
		"addr":              *addr,
		"tick-interval":     *tick,
		"handshake.timeout": *handshake,
		"log.capacity":      *logCap,
		"log.level":         *level,
	})
	if err := cs.LoadEnv("BRIDGE", nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ring := eventlog.NewRing(cs.Int("log.capacity"))
	lv, err := zerolog.ParseLevel(cs.String("log.level"))
	if err != nil {
		lv = zerolog.InfoLevel
	}
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log := zerolog.New(zerolog.MultiLevelWriter(console, ring)).Level(lv).With().Timestamp().Logger()

	cs.OnReload(func(changed []string) {
		log.Info().Strs("keys", changed).Msg("configuration changed")
	})

	metrics := control.NewMetricsRegistry()
	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)
	probes.RegisterProbe("log.size", func() any { return ring.Len() })

	cfg := server.DefaultConfig()
	cfg.Addr = cs.String("addr")
	cfg.TickInterval = cs.Duration("tick-interval")
	cfg.HandshakeTimeout = cs.Duration("handshake.timeout")

	d := rpc.NewDispatcher(rpc.WithLogger(log))
	ep := server.NewEndpoint(cfg, d,
		server.WithLogger(log),
		server.WithMetrics(metrics),
		server.WithProbes(probes),
	)

	builtin.Register(d, builtin.Deps{
		Stats:        ep,
		Probes:       probes,
		Log:          ring,
		Config:       cs,
		Capabilities: hostCapabilities(),
	})
	registerSamples(d)

	if err := ep.Start(); err != nil {
		log.Fatal().Err(err).Msg("start failed")
	}
	log.Info().Strs("methods", d.Methods()).Msg("bridge host ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := ep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("run failed")
	}
	ep.Stop()
}

func hostCapabilities() *capability.Table {
	tbl := capability.NewTable(version)
	tbl.Value("host.version", version)
	tbl.Value("platform", runtime.GOOS+"/"+runtime.GOARCH)
	tbl.Register("process.pid", func() (any, error) { return os.Getpid(), nil })
	tbl.Register("process.cwd", func() (any, error) { return os.Getwd() })
	tbl.RegisterSince("1.0", "bridge.maxFramePayload", func() (any, error) { return 16 << 20, nil })
	return tbl
}

// registerSamples adds demo domain handlers.
func registerSamples(d *rpc.Dispatcher) {
	d.Register("echo", func(params json.RawMessage) (json.RawMessage, error) {
		return params, nil
	})
	d.Register("sleep", func(params json.RawMessage) (json.RawMessage, error) {
		var p struct {
			Ms int `json:"ms"`
		}
		if err := sonnet.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		if p.Ms < 0 || p.Ms > 10000 {
			return nil, rpc.Errorf(rpc.CodeMalformedRequest, "ms out of range: %d", p.Ms)
		}
		time.Sleep(time.Duration(p.Ms) * time.Millisecond)
		return json.RawMessage(`true`), nil
	})
}
