// internal/netpoll/netpoll_linux.go
//go:build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// poll(2) and TIOCINQ (FIONREAD) based probes on raw socket descriptors.

package netpoll

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// Supported reports whether native probes are available.
const Supported = true

// ListenerPending reports whether accept would return immediately.
func ListenerPending(ln syscall.Conn) (bool, error) {
	var ready bool
	err := withFD(ln, func(fd int) error {
		revents, err := pollIn(fd)
		ready = revents&unix.POLLIN != 0
		return err
	})
	return ready, err
}

// Probe reports the read readiness of a connected socket.
func Probe(conn syscall.Conn) (Readiness, error) {
	var r Readiness
	err := withFD(conn, func(fd int) error {
		revents, err := pollIn(fd)
		if err != nil {
			return err
		}
		r.Readable = revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
		if !r.Readable {
			return nil
		}
		n, err := unix.IoctlGetInt(fd, unix.TIOCINQ)
		if err != nil {
			return fmt.Errorf("ioctl TIOCINQ: %w", err)
		}
		r.Available = n
		return nil
	})
	return r, err
}

// pollIn polls a single descriptor for input with a zero timeout.
func pollIn(fd int) (int16, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("poll: %w", err)
		}
		return fds[0].Revents, nil
	}
}

func withFD(c syscall.Conn, fn func(fd int) error) error {
	rc, err := c.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := rc.Control(func(fd uintptr) { opErr = fn(int(fd)) }); err != nil {
		return err
	}
	return opErr
}
