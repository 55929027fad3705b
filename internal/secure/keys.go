// Package secure implements the station-authenticated UDP handshake and AEAD
// data path (spec §4.7): ECDSA P-256 mutual signatures over a pre-hashed
// digest, ECDH session-key derivation, and AES-256-GCM sealed payloads.
package secure

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// DecodeCompressedPubKey parses a compressed X9.62 P-256 point, as stored in
// the authorized-keys file and exchanged during key provisioning (spec §6).
func DecodeCompressedPubKey(data []byte) (*ecdsa.PublicKey, error) {
	curve := elliptic.P256()
	x, y := elliptic.UnmarshalCompressed(curve, data)
	if x == nil {
		return nil, errors.New("secure: invalid compressed P-256 point")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// EncodeCompressedPubKey is the inverse of DecodeCompressedPubKey, used when
// logging or provisioning a station's own public key.
func EncodeCompressedPubKey(pub *ecdsa.PublicKey) []byte {
	return elliptic.MarshalCompressed(pub.Curve, pub.X, pub.Y)
}

// KeyStore holds the server's private key and the pinned public keys of
// every authorized client station, keyed by station id.
type KeyStore struct {
	ServerPriv *ecdsa.PrivateKey
	Clients    map[string]*ecdsa.PublicKey
}

func NewKeyStore(serverPriv *ecdsa.PrivateKey, clients map[string]*ecdsa.PublicKey) *KeyStore {
	return &KeyStore{ServerPriv: serverPriv, Clients: clients}
}

func (ks *KeyStore) Lookup(stationID string) (*ecdsa.PublicKey, bool) {
	pub, ok := ks.Clients[stationID]
	return pub, ok
}

// LoadServerPrivateKey reads a PEM-encoded EC private key (server_key_file,
// spec §6) and returns its ECDSA P-256 key.
func LoadServerPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("secure: %s contains no PEM block", path)
	}
	priv, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("secure: parsing %s: %w", path, err)
	}
	if priv.Curve != elliptic.P256() {
		return nil, fmt.Errorf("secure: %s is not a P-256 key", path)
	}
	return priv, nil
}

// BuildClientKeys decodes a station-id -> compressed-pubkey-bytes map (as
// produced by config.LoadAuthorizedKeys) into station-id -> *ecdsa.PublicKey.
func BuildClientKeys(raw map[string][]byte) (map[string]*ecdsa.PublicKey, error) {
	out := make(map[string]*ecdsa.PublicKey, len(raw))
	for stationID, data := range raw {
		pub, err := DecodeCompressedPubKey(data)
		if err != nil {
			return nil, fmt.Errorf("secure: decoding key for %s: %w", stationID, err)
		}
		out[stationID] = pub
	}
	return out, nil
}
