package secure

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"testing"
	"time"
)

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }
func decodeB64(t *testing.T, s string) []byte {
	t.Helper()
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func genKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return priv
}

// TestHandshakeAcceptance covers scenario 5 (spec §8): an authorized client
// with a valid signature inside the clock-skew window is accepted, and the
// response starts with "OK|" followed by base64 of the server's signature
// over the agreed digest.
func TestHandshakeAcceptance(t *testing.T) {
	serverPriv := genKey(t)
	clientPriv := genKey(t)

	ks := NewKeyStore(serverPriv, map[string]*ecdsa.PublicKey{
		"boat_001": &clientPriv.PublicKey,
	})

	now := time.Now()
	digest := HandshakeDigest("boat_001", now.Unix())
	sigC, err := ecdsa.SignASN1(rand.Reader, clientPriv, digest)
	if err != nil {
		t.Fatal(err)
	}

	req := buildHandshakePacket("boat_001", now.Unix(), sigC)
	resp, sess, err := ks.Accept(req, now)
	if err != nil {
		t.Fatalf("expected handshake to be accepted, got %v", err)
	}
	if sess.StationID != "boat_001" {
		t.Fatalf("session station id = %q", sess.StationID)
	}
	if len(resp) < 3 || string(resp[:3]) != "OK|" {
		t.Fatalf("response = %q, want OK| prefix", resp)
	}

	sigS := resp[3:]
	if !ecdsa.VerifyASN1(&serverPriv.PublicKey, digest, decodeB64(t, string(sigS))) {
		t.Fatal("server signature in response does not verify against the agreed digest")
	}
}

func TestHandshakeRejectsUnknownClient(t *testing.T) {
	serverPriv := genKey(t)
	clientPriv := genKey(t)
	ks := NewKeyStore(serverPriv, map[string]*ecdsa.PublicKey{})

	now := time.Now()
	digest := HandshakeDigest("ghost", now.Unix())
	sigC, _ := ecdsa.SignASN1(rand.Reader, clientPriv, digest)
	req := buildHandshakePacket("ghost", now.Unix(), sigC)

	if _, _, err := ks.Accept(req, now); err == nil {
		t.Fatal("expected rejection for unknown client")
	}
}

func TestHandshakeRejectsClockSkew(t *testing.T) {
	serverPriv := genKey(t)
	clientPriv := genKey(t)
	ks := NewKeyStore(serverPriv, map[string]*ecdsa.PublicKey{"boat_001": &clientPriv.PublicKey})

	now := time.Now()
	staleTs := now.Add(-time.Minute).Unix()
	digest := HandshakeDigest("boat_001", staleTs)
	sigC, _ := ecdsa.SignASN1(rand.Reader, clientPriv, digest)
	req := buildHandshakePacket("boat_001", staleTs, sigC)

	if _, _, err := ks.Accept(req, now); err == nil {
		t.Fatal("expected rejection for stale timestamp")
	}
}

func TestHandshakeRejectsBadSignature(t *testing.T) {
	serverPriv := genKey(t)
	clientPriv := genKey(t)
	otherPriv := genKey(t)
	ks := NewKeyStore(serverPriv, map[string]*ecdsa.PublicKey{"boat_001": &clientPriv.PublicKey})

	now := time.Now()
	digest := HandshakeDigest("boat_001", now.Unix())
	wrongSig, _ := ecdsa.SignASN1(rand.Reader, otherPriv, digest)
	req := buildHandshakePacket("boat_001", now.Unix(), wrongSig)

	if _, _, err := ks.Accept(req, now); err == nil {
		t.Fatal("expected rejection for signature from wrong key")
	}
}

func TestDataRoundTrip(t *testing.T) {
	serverPriv := genKey(t)
	clientPriv := genKey(t)
	ks := NewKeyStore(serverPriv, map[string]*ecdsa.PublicKey{"boat_001": &clientPriv.PublicKey})

	now := time.Now()
	digest := HandshakeDigest("boat_001", now.Unix())
	sigC, _ := ecdsa.SignASN1(rand.Reader, clientPriv, digest)
	req := buildHandshakePacket("boat_001", now.Unix(), sigC)
	_, sess, err := ks.Accept(req, now)
	if err != nil {
		t.Fatal(err)
	}

	plaintext := []byte(`{"source_id":"boat_001","payload":"!AIVDM,1,1,,A,xyz,0*26"}`)
	nonce := make([]byte, nonceSize)
	sealed := sess.AEAD.Seal(nil, nonce, plaintext, []byte(aeadAAD))
	packet := append([]byte(dataPrefix), append(nonce, sealed...)...)

	out, err := OpenData(sess, packet)
	if err != nil {
		t.Fatalf("OpenData: %v", err)
	}
	if string(out) != string(plaintext) {
		t.Fatalf("OpenData() = %q, want %q", out, plaintext)
	}
}

func buildHandshakePacket(stationID string, ts int64, sig []byte) []byte {
	s := handshakePrefix + "|" + stationID + "|" + itoa(ts) + "|" + b64(sig)
	return []byte(s)
}
