package secure

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
)

func TestCompressedPubKeyRoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	encoded := EncodeCompressedPubKey(&priv.PublicKey)
	decoded, err := DecodeCompressedPubKey(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.X.Cmp(priv.PublicKey.X) != 0 || decoded.Y.Cmp(priv.PublicKey.Y) != 0 {
		t.Fatal("decoded public key does not match original")
	}
}

func TestDecodeCompressedPubKeyRejectsGarbage(t *testing.T) {
	if _, err := DecodeCompressedPubKey([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatal("expected error for invalid compressed point")
	}
}
