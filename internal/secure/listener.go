package secure

import (
	"encoding/json"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyan85/aismixer/internal/ingress"
)

const recvBufferSize = 8192

// dataMessage is the plaintext JSON payload carried inside the AEAD
// envelope (spec §4.7 data path): `{"source_id": "...", "payload": "..."}`.
type dataMessage struct {
	SourceID string `json:"source_id"`
	Payload  string `json:"payload"`
}

// Listener runs the secure UDP handshake + AEAD data path on one socket and
// emits ingress events onto Out (spec §4.7, component C7).
type Listener struct {
	conn     *net.UDPConn
	keys     *KeyStore
	sessions *SessionTable
	log      *logrus.Logger
	Out      chan ingress.Event
}

// Listen binds a UDP socket at addr (IPv4 or IPv6 depending on the address
// family) and returns a Listener ready to Serve.
func Listen(addr string, keys *KeyStore, log *logrus.Logger) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP(udpAddr.Network(), udpAddr)
	if err != nil {
		return nil, err
	}
	return &Listener{
		conn:     conn,
		keys:     keys,
		sessions: NewSessionTable(),
		log:      log,
		Out:      make(chan ingress.Event, 256),
	}, nil
}

// Serve reads datagrams until the socket is closed, dispatching each to the
// handshake or data path. Call it in its own goroutine; close the listener's
// socket to stop it, then close Out once Serve returns.
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
		data := append([]byte(nil), buf[:n]...)
		switch {
		case IsHandshake(data):
			l.handleHandshake(data, raddr)
		case IsData(data):
			l.handleData(data, raddr)
		default:
			l.log.WithField("remote", raddr).Debug("secure: unrecognized packet prefix")
		}
	}
}

func (l *Listener) handleHandshake(data []byte, raddr *net.UDPAddr) {
	resp, sess, err := l.keys.Accept(data, time.Now())
	if err != nil {
		l.log.WithError(err).WithField("remote", raddr).Warn("secure: handshake rejected")
		return
	}
	l.sessions.Install(raddr, sess)
	if _, err := l.conn.WriteToUDP(resp, raddr); err != nil {
		l.log.WithError(err).WithField("remote", raddr).Warn("secure: failed to send handshake response")
		return
	}
	l.log.WithFields(logrus.Fields{"station_id": sess.StationID, "remote": raddr}).Info("secure: handshake accepted")
}

func (l *Listener) handleData(data []byte, raddr *net.UDPAddr) {
	sess, ok := l.sessions.Lookup(raddr)
	if !ok {
		l.log.WithField("remote", raddr).Debug("secure: no session for data packet")
		return
	}
	plaintext, err := OpenData(sess, data)
	if err != nil {
		l.log.WithError(err).WithField("remote", raddr).Warn("secure: AEAD open failed")
		return
	}
	var msg dataMessage
	if err := json.Unmarshal(plaintext, &msg); err != nil {
		l.log.WithError(err).WithField("remote", raddr).Warn("secure: malformed data payload")
		return
	}
	if msg.SourceID != sess.StationID {
		l.log.WithFields(logrus.Fields{"remote": raddr, "claimed": msg.SourceID, "session": sess.StationID}).
			Warn("secure: source_id mismatch")
		return
	}
	l.Out <- ingress.Event{
		Kind:         ingress.KindSecure,
		AliasForS:    sess.StationID,
		RemoteIP:     raddr.IP.String(),
		AssemblerKey: sess.StationID,
		RawLine:      msg.Payload,
	}
}

// Close closes the underlying socket, causing Serve to return.
func (l *Listener) Close() error {
	return l.conn.Close()
}
