package sentence

import "testing"

func TestExtractSingle(t *testing.T) {
	line := "!AIVDM,1,1,,A,13aEOK?P00PD2wVMdLDRhgvL289?,0*26"
	got := Extract(line, false)
	if len(got) != 1 || got[0] != line {
		t.Fatalf("Extract() = %v, want [%q]", got, line)
	}
}

func TestExtractWithPrecedingTag(t *testing.T) {
	tag := `\c:1700000000,s:mix1*66\`
	line := tag + "!AIVDM,1,1,,A,13aEOK?P00PD2wVMdLDRhgvL289?,0*26"
	idx := ExtractIndices(line, false)
	if len(idx) != 1 {
		t.Fatalf("expected 1 match, got %d", len(idx))
	}
	s := idx[0]
	if s.TagStart != 0 || s.TagEnd != len(tag)-1 {
		t.Fatalf("tag bounds = (%d,%d), want (0,%d)", s.TagStart, s.TagEnd, len(tag)-1)
	}
}

func TestExtractMultipleConcatenated(t *testing.T) {
	a := "!AIVDM,1,1,,A,13aEOK?P00PD2wVMdLDRhgvL289?,0*26"
	b := "!AIVDM,2,1,3,B,abc,0*12"
	line := a + b
	got := Extract(line, false)
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("Extract() = %v", got)
	}
}

func TestExtractRejectsUnknownTalker(t *testing.T) {
	line := "!ZZVDM,1,1,,A,xyz,0*26"
	got := Extract(line, false)
	if len(got) != 0 {
		t.Fatalf("expected no matches for unknown talker, got %v", got)
	}
}

func TestExtractVDOOptIn(t *testing.T) {
	line := "!AIVDO,1,1,,A,xyz,0*26"
	if got := Extract(line, false); len(got) != 0 {
		t.Fatalf("expected VDO excluded by default, got %v", got)
	}
	if got := Extract(line, true); len(got) != 1 {
		t.Fatalf("expected VDO included when requested, got %v", got)
	}
}
