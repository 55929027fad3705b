// Package udpin implements the plain UDP listener (spec §4.8, component
// C8): one bound socket per configured input, producing ingress events
// tagged with a resolved alias or the bare remote IP.
package udpin

import (
	"net"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/iliyan85/aismixer/internal/ingress"
	"github.com/iliyan85/aismixer/internal/procutil"
)

const recvBufferSize = 8192

// AliasResolver resolves a source IP to a configured alias, e.g. the global
// udp_alias_map (spec §4.8). A nil resolver means "no alias map configured".
type AliasResolver func(ip string) (string, bool)

// Listener binds one UDP socket and emits one ingress.Event per received
// datagram (spec §4.8). Unlike the original's per-line splitting, AIS
// mixers always see one sentence (or TAG+sentence run) per datagram in
// practice, but emitting the whole decoded datagram as RawLine and letting
// the sentence extractor split it keeps this listener a thin I/O shim — the
// splitting logic lives in one place (internal/sentence) instead of being
// duplicated per listener type.
type Listener struct {
	conn        *net.UDPConn
	fixedAlias  string
	aliasLookup AliasResolver
	log         *logrus.Logger
	Out         chan ingress.Event
}

// Listen binds addr (IPv4 or IPv6 selected by the address family of addr).
// fixedAlias, if non-empty, is always used instead of aliasLookup (spec
// §4.8: "the input's configured fixed alias if present").
func Listen(addr, fixedAlias string, aliasLookup AliasResolver, log *logrus.Logger) (*Listener, error) {
	conn, err := procutil.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{
		conn:        conn,
		fixedAlias:  fixedAlias,
		aliasLookup: aliasLookup,
		log:         log,
		Out:         make(chan ingress.Event, 256),
	}, nil
}

// Serve reads datagrams until the socket is closed.
func (l *Listener) Serve() {
	buf := make([]byte, recvBufferSize)
	for {
		n, raddr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		raw := decode(buf[:n])
		if raw == "" {
			continue
		}
		l.Out <- ingress.Event{
			Kind:         ingress.KindUDP,
			AliasForS:    l.alias(raddr.IP.String()),
			RemoteIP:     raddr.IP.String(),
			AssemblerKey: raddr.String(),
			RawLine:      raw,
		}
	}
}

// Close closes the underlying socket, causing Serve to return.
func (l *Listener) Close() error {
	return l.conn.Close()
}

func (l *Listener) alias(ip string) string {
	if l.fixedAlias != "" {
		return l.fixedAlias
	}
	if l.aliasLookup != nil {
		if a, ok := l.aliasLookup(ip); ok {
			return a
		}
	}
	return ""
}

// decode mirrors the Python original's `data.decode(errors="ignore").strip()`:
// invalid UTF-8 bytes are dropped one at a time rather than failing the
// whole datagram (spec §7 "Malformed inbound bytes"), and surrounding
// whitespace is trimmed.
func decode(b []byte) string {
	valid := make([]byte, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			b = b[1:]
			continue
		}
		valid = append(valid, b[:size]...)
		b = b[size:]
	}
	return strings.Trim(string(valid), " \t\r\n")
}
