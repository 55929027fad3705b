package dedup

import "testing"

func TestIsUniqueWithinTTL(t *testing.T) {
	d := New()
	const msg = "!AIVDM,1,1,,A,13aEOK?P00PD2wVMdLDRhgvL289?,0*26"

	if !d.IsUnique(msg) {
		t.Fatal("first call should report unique")
	}
	if d.IsUnique(msg) {
		t.Fatal("second call within TTL should report duplicate")
	}
}

func TestIsUniqueDistinctMessages(t *testing.T) {
	d := New()
	if !d.IsUnique("a") || !d.IsUnique("b") {
		t.Fatal("distinct messages should both be unique")
	}
}
