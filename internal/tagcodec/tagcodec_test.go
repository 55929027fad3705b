package tagcodec

import "testing"

func TestChecksumXOR(t *testing.T) {
	// Scenario 1 (spec §8): body "c:1700000000,s:A_B". The spec's literal
	// checksum value is a placeholder ("implementer verifies"); the real
	// byte-wise XOR of this body is 0x66.
	body := "c:1700000000,s:A_B"
	if got := Checksum(body); got != "66" {
		t.Fatalf("Checksum(%q) = %q, want %q", body, got, "66")
	}
	pairs := []Pair{{Key: "c", Value: "1700000000"}, {Key: "s", Value: "A_B"}}
	got := Emit(pairs)
	want := `\c:1700000000,s:A_B*66\`
	if got != want {
		t.Fatalf("Emit() = %q, want %q", got, want)
	}
}

func TestEmitParseRoundTrip(t *testing.T) {
	pairs := []Pair{{Key: "c", Value: "1700000000"}, {Key: "s", Value: "mix1"}, {Key: "g", Value: "1-2-3"}}
	emitted := Emit(pairs)
	line := emitted + "!AIVDM,1,1,,A,xyz,0*26"
	idx := len(emitted)
	b := ParseBeforeIndex(line, idx)
	if len(b.Pairs) != len(pairs) {
		t.Fatalf("got %d pairs, want %d", len(b.Pairs), len(pairs))
	}
	for i, p := range pairs {
		if b.Pairs[i] != p {
			t.Fatalf("pair %d = %+v, want %+v", i, b.Pairs[i], p)
		}
	}
}

func TestParseBeforeIndexNoTag(t *testing.T) {
	line := "!AIVDM,1,1,,A,xyz,0*26"
	b := ParseBeforeIndex(line, 0)
	if len(b.Pairs) != 0 {
		t.Fatalf("expected no pairs, got %+v", b.Pairs)
	}
}

func TestParseBeforeIndexUnterminatedChecksum(t *testing.T) {
	// missing *HH before closing backslash -> treated as absent
	line := `\c:1,s:x\!AIVDM,1,1,,A,xyz,0*26`
	idx := 9 // points at '!'
	b := ParseBeforeIndex(line, idx)
	if len(b.Pairs) != 0 {
		t.Fatalf("expected malformed tag to be treated as absent, got %+v", b.Pairs)
	}
}

func TestGet(t *testing.T) {
	b := Block{Pairs: []Pair{{Key: "s", Value: "boat"}}}
	v, ok := b.Get("s")
	if !ok || v != "boat" {
		t.Fatalf("Get(s) = %q, %v", v, ok)
	}
	if _, ok := b.Get("missing"); ok {
		t.Fatal("expected missing key to report false")
	}
}
