//go:build !linux

package procutil

import (
	"context"
	"fmt"
	"net"
)

// ListenUDP binds a UDP socket at addr. Platforms here don't get the
// Linux-specific SO_REUSEADDR pre-bind tuning (listener restarts tolerate
// the brief bind delay the OS default already imposes).
func ListenUDP(network, addr string) (*net.UDPConn, error) {
	var lc net.ListenConfig
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
