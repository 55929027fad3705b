//go:build linux

// Package procutil holds small OS-level socket tuning helpers that the
// standard library's net package does not expose directly.
package procutil

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// ListenUDP binds a UDP socket at addr with SO_REUSEADDR set before bind(2)
// runs, via net.ListenConfig's Control hook (spec §4.8). Setting the option
// after bind, as a post-hoc setsockopt on the connection returned by
// net.ListenUDP, has no effect on that bind call — the option only changes
// what a subsequent bind() is allowed to do — so this is the only place it
// can actually deliver "rebind a listen address still draining from a
// prior process", matching the SO_REUSEADDR the Python original sets on
// every UDP socket before bind.
func ListenUDP(network, addr string) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}
	pc, err := lc.ListenPacket(context.Background(), network, addr)
	if err != nil {
		return nil, err
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("procutil: unexpected PacketConn type %T", pc)
	}
	return conn, nil
}
