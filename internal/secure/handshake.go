package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	handshakePrefix = "NMEA-H"
	dataPrefix      = "NMEA-D"
	sessionContext  = "NMEA-SESSION"
	aeadAAD         = "NMEA"
	nonceSize       = 12
	clockSkew       = 30 * time.Second
)

// HandshakeRequest is a parsed `NMEA-H|station_id|ts|base64(sig)` packet.
type HandshakeRequest struct {
	StationID string
	Timestamp int64
	Signature []byte
}

// ParseHandshake parses the three pipe-delimited fields following the
// 6-byte "NMEA-H" prefix (spec §4.7 step 1). data must already have had the
// prefix matched by the caller but ParseHandshake accepts it either way.
func ParseHandshake(data []byte) (HandshakeRequest, error) {
	s := string(data)
	s = strings.TrimPrefix(s, handshakePrefix)
	s = strings.TrimLeft(s, "|")
	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return HandshakeRequest{}, errors.New("secure: invalid handshake format")
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return HandshakeRequest{}, errors.New("secure: invalid handshake timestamp")
	}
	sig, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return HandshakeRequest{}, errors.New("secure: invalid handshake signature encoding")
	}
	return HandshakeRequest{StationID: parts[0], Timestamp: ts, Signature: sig}, nil
}

// HandshakeDigest computes SHA-256(NMEA-H || station_id || ts_be64), the
// pre-hashed digest both sides sign (spec §4.7 step 4).
func HandshakeDigest(stationID string, ts int64) []byte {
	h := sha256.New()
	h.Write([]byte(handshakePrefix))
	h.Write([]byte(stationID))
	var tsb [8]byte
	binary.BigEndian.PutUint64(tsb[:], uint64(ts))
	h.Write(tsb[:])
	return h.Sum(nil)
}

// withinClockSkew reports whether ts is within 30s of now (spec §4.7 step 2).
func withinClockSkew(ts int64, now time.Time) bool {
	delta := now.Unix() - ts
	if delta < 0 {
		delta = -delta
	}
	return time.Duration(delta)*time.Second <= clockSkew
}

// DeriveSessionKey computes SHA-256("NMEA-SESSION" || shared || sigC || sigS)
// (spec §4.7 step 7).
func DeriveSessionKey(shared, sigC, sigS []byte) []byte {
	h := sha256.New()
	h.Write([]byte(sessionContext))
	h.Write(shared)
	h.Write(sigC)
	h.Write(sigS)
	return h.Sum(nil)
}

// Accept runs the full server-side handshake (spec §4.7 steps 1-9) against a
// raw packet. On success it returns the OK response to send back to the
// source address and the session to install; on failure it returns a
// non-nil error and the caller must not alter session state (spec §7).
func (ks *KeyStore) Accept(data []byte, now time.Time) (response []byte, sess Session, err error) {
	req, err := ParseHandshake(data)
	if err != nil {
		return nil, Session{}, err
	}
	if !withinClockSkew(req.Timestamp, now) {
		return nil, Session{}, errors.New("secure: handshake timestamp out of window")
	}
	clientPub, ok := ks.Lookup(req.StationID)
	if !ok {
		return nil, Session{}, errors.New("secure: unknown client " + req.StationID)
	}

	digest := HandshakeDigest(req.StationID, req.Timestamp)
	if !ecdsa.VerifyASN1(clientPub, digest, req.Signature) {
		return nil, Session{}, errors.New("secure: signature verification failed")
	}

	sigS, err := ecdsa.SignASN1(rand.Reader, ks.ServerPriv, digest)
	if err != nil {
		return nil, Session{}, err
	}

	shared, err := ecdh(ks.ServerPriv, clientPub)
	if err != nil {
		return nil, Session{}, err
	}

	sessionKey := DeriveSessionKey(shared, req.Signature, sigS)
	aead, err := newAEAD(sessionKey)
	if err != nil {
		return nil, Session{}, err
	}

	sess = Session{StationID: req.StationID, AEAD: aead}
	response = append([]byte("OK|"), []byte(base64.StdEncoding.EncodeToString(sigS))...)
	return response, sess, nil
}

func ecdh(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) ([]byte, error) {
	ecdhPriv, err := priv.ECDH()
	if err != nil {
		return nil, err
	}
	ecdhPub, err := pub.ECDH()
	if err != nil {
		return nil, err
	}
	return ecdhPriv.ECDH(ecdhPub)
}

func newAEAD(sessionKey []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// IsHandshake reports whether data carries the handshake prefix.
func IsHandshake(data []byte) bool {
	return len(data) >= len(handshakePrefix) && string(data[:len(handshakePrefix)]) == handshakePrefix
}

// IsData reports whether data carries the data-path prefix.
func IsData(data []byte) bool {
	return len(data) >= len(dataPrefix) && string(data[:len(dataPrefix)]) == dataPrefix
}

// OpenData decrypts a `NMEA-D || nonce(12) || ciphertext+tag` packet using
// sess's AEAD, authenticating with the fixed "NMEA" associated data (spec
// §4.7 data path).
func OpenData(sess Session, data []byte) ([]byte, error) {
	rest := data[len(dataPrefix):]
	if len(rest) < nonceSize {
		return nil, errors.New("secure: data packet too short")
	}
	nonce := rest[:nonceSize]
	ciphertext := rest[nonceSize:]
	return sess.AEAD.Open(nil, nonce, ciphertext, []byte(aeadAAD))
}
