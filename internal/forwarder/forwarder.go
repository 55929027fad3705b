// Package forwarder fans outbound datagrams out to every configured
// downstream target over cached UDP endpoints (spec §4.11).
package forwarder

import (
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// Target is one downstream consumer (spec §6 "forwarders").
type Target struct {
	Host string
	Port int
}

func (t Target) String() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// Forwarder lazily resolves and caches one *net.UDPConn per target. Send is
// best-effort: a failure to create or write to one endpoint is logged and
// does not block or fail delivery to the others (spec §4.11, §7).
type Forwarder struct {
	log     *logrus.Logger
	targets []Target

	mu    sync.RWMutex
	conns map[Target]*net.UDPConn
}

func New(log *logrus.Logger, targets []Target) *Forwarder {
	return &Forwarder{
		log:     log,
		targets: targets,
		conns:   make(map[Target]*net.UDPConn),
	}
}

// Send fans message out to every configured target.
func (f *Forwarder) Send(message []byte) {
	for _, t := range f.targets {
		conn, err := f.endpoint(t)
		if err != nil {
			f.log.WithError(err).WithField("target", t).Warn("forwarder: failed to create endpoint")
			continue
		}
		if _, err := conn.Write(message); err != nil {
			f.log.WithError(err).WithField("target", t).Warn("forwarder: send failed")
		}
	}
}

// endpoint returns the cached connection for t, creating it at most once.
// The read-then-write-locked double-check keeps creation serialized per
// target without holding the write lock on the hot path once warm (spec §5:
// "concurrent-read/rare-write; lazy initialization must be race-free").
func (f *Forwarder) endpoint(t Target) (*net.UDPConn, error) {
	f.mu.RLock()
	conn, ok := f.conns[t]
	f.mu.RUnlock()
	if ok {
		return conn, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if conn, ok := f.conns[t]; ok {
		return conn, nil
	}
	addr, err := net.ResolveUDPAddr("udp", t.String())
	if err != nil {
		return nil, err
	}
	conn, err = net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	f.conns[t] = conn
	return conn, nil
}

// Close releases every cached endpoint.
func (f *Forwarder) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for t, c := range f.conns {
		c.Close()
		delete(f.conns, t)
	}
}
