// File: cmd/bridge-call/main.go
// Package main
// Tool-side CLI: connects to a bridge host, issues one request and prints the
// result as JSON.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"

	"github.com/momentics/hioload-bridge/client"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one call and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	defaults := client.DefaultConfig()
	fs := flag.NewFlagSet("bridge-call", flag.ContinueOnError)
	fs.SetOutput(stderr)
	url := fs.String("url", defaults.URL, "host endpoint URL")
	method := fs.String("method", "server/methods", "method to call")
	params := fs.String("params", "{}", "params JSON object")
	timeout := fs.Duration("timeout", defaults.DefaultTimeout, "request timeout")
	verbose := fs.Bool("v", false, "log connection events to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	log := zerolog.Nop()
	if *verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: stderr}).With().Timestamp().Logger()
	}

	if !sonnet.Valid([]byte(*params)) {
		fmt.Fprintf(stderr, "params is not valid JSON: %s\n", *params)
		return 2
	}

	cfg := client.DefaultConfig()
	cfg.URL = *url
	cfg.MaxReconnectAttempts = 0
	cfg.Logger = log
	c, err := client.New(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+cfg.HandshakeTimeout)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		fmt.Fprintf(stderr, "connect %s: %v\n", *url, err)
		return 1
	}

	res, err := c.Request(ctx, *method, json.RawMessage(*params), *timeout)
	if err != nil {
		var remote *client.RemoteError
		if errors.As(err, &remote) {
			fmt.Fprintf(stderr, "error %d: %s\n", remote.Code, remote.Message)
			return 3
		}
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, string(res))
	return 0
}
