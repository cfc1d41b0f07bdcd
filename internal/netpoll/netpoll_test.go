//go:build linux

package netpoll_test

import (
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-bridge/internal/netpoll"
)

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestListenerPendingAndProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	tl := ln.(*net.TCPListener)

	if pending, err := netpoll.ListenerPending(tl); err != nil || pending {
		t.Fatalf("idle listener: pending=%v err=%v", pending, err)
	}

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	eventually(t, "pending connection", func() bool {
		p, err := netpoll.ListenerPending(tl)
		return err == nil && p
	})

	srv, err := ln.Accept()
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()
	tc := srv.(*net.TCPConn)

	r, err := netpoll.Probe(tc)
	if err != nil || r.Readable || r.Available != 0 {
		t.Fatalf("idle conn: %+v err=%v", r, err)
	}

	client.Write([]byte("hello"))
	eventually(t, "5 readable bytes", func() bool {
		r, err := netpoll.Probe(tc)
		return err == nil && r.Readable && r.Available == 5
	})

	buf := make([]byte, 5)
	if _, err := srv.Read(buf); err != nil {
		t.Fatal(err)
	}
	client.Close()
	eventually(t, "peer close", func() bool {
		r, err := netpoll.Probe(tc)
		return err == nil && r.PeerClosed()
	})
}
