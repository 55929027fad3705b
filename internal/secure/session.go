package secure

import (
	"crypto/cipher"
	"net"
	"sync"
)

// Session binds a source address to an authenticated station and its
// AES-256-GCM AEAD context (spec §3 "Session").
type Session struct {
	StationID string
	AEAD      cipher.AEAD
}

// SessionTable maps source (ip, port) to Session. It is single-writer,
// owned exclusively by the secure listener (spec §5). Sessions are never
// explicitly torn down; a re-handshake from the same address replaces the
// prior entry, and a peer that changes source port silently loses its
// session (spec §4.7, §9 open question).
type SessionTable struct {
	mu sync.RWMutex
	m  map[string]Session
}

func NewSessionTable() *SessionTable {
	return &SessionTable{m: make(map[string]Session)}
}

func key(addr *net.UDPAddr) string {
	return addr.String()
}

func (t *SessionTable) Install(addr *net.UDPAddr, sess Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[key(addr)] = sess
}

func (t *SessionTable) Lookup(addr *net.UDPAddr) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.m[key(addr)]
	return s, ok
}
