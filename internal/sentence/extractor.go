// Package sentence locates AIS VDM/VDO sentences inside a raw datagram that
// may concatenate multiple TAG+sentence units (spec §4.4).
package sentence

import "strings"

// talkers is the set of AIS talker IDs accepted ahead of VDM/VDO, per
// spec §4.4: AI, AB, AD, AN, AR, AS, AT, AX, BS.
var talkers = map[string]bool{
	"AI": true, "AB": true, "AD": true, "AN": true,
	"AR": true, "AS": true, "AT": true, "AX": true, "BS": true,
}

// Slice identifies one matched sentence and, if a TAG block immediately
// precedes it, that block's byte range. TagStart/TagEnd are -1 when no TAG
// block precedes the sentence.
type Slice struct {
	Start, End         int
	TagStart, TagEnd   int
	Sentence           string
}

// Extract returns the matched sentence strings in raw, in order.
func Extract(raw string, includeVDO bool) []string {
	slices := ExtractIndices(raw, includeVDO)
	out := make([]string, len(slices))
	for i, s := range slices {
		out[i] = s.Sentence
	}
	return out
}

// ExtractIndices returns sentence matches with their byte offsets and, for
// each, the range of any immediately preceding TAG block (so a caller can
// locate the TAG without re-scanning raw). Matching requires a leading '!',
// a recognized talker ID, "VDM" (or "VDO" when includeVDO), a comma, and a
// trailing "*HH" checksum before the next unescaped boundary.
func ExtractIndices(raw string, includeVDO bool) []Slice {
	var out []Slice
	i := 0
	for i < len(raw) {
		bang := strings.IndexByte(raw[i:], '!')
		if bang == -1 {
			break
		}
		start := i + bang
		end, ok := matchSentence(raw, start, includeVDO)
		if !ok {
			i = start + 1
			continue
		}
		tagStart, tagEnd := findPrecedingTag(raw, start)
		out = append(out, Slice{
			Start: start, End: end,
			TagStart: tagStart, TagEnd: tagEnd,
			Sentence: raw[start:end],
		})
		i = end
	}
	return out
}

// matchSentence attempts to match "!<talker>VD[MO],...*HH" starting at idx
// (which must point at '!'). It returns the exclusive end offset of the
// match (one past the final hex digit) and whether a match occurred.
func matchSentence(raw string, idx int, includeVDO bool) (int, bool) {
	rest := raw[idx:]
	if len(rest) < 9 || rest[0] != '!' { // "!XXVDM,*HH" minimum shape
		return 0, false
	}
	talker := rest[1:3]
	if !talkers[talker] {
		return 0, false
	}
	kind := rest[3:6]
	if kind != "VDM" && !(includeVDO && kind == "VDO") {
		return 0, false
	}
	if rest[6] != ',' {
		return 0, false
	}
	// Find end of sentence: up to the next CR/LF, or end of string, then
	// walk back to find the trailing *HH checksum within that span.
	body := rest[7:]
	term := len(body)
	for j := 0; j < len(body); j++ {
		if body[j] == '\r' || body[j] == '\n' {
			term = j
			break
		}
	}
	span := body[:term]
	// Non-greedy match of the spec's regex form: the FIRST "*HH" in span
	// terminates the sentence, mirroring the original's lazy [^\r\n]*?
	// quantifier rather than consuming through to the last '*' in a run of
	// concatenated sentences.
	star := -1
	for p := 0; p+2 < len(span); p++ {
		if span[p] == '*' && isHex(span[p+1]) && isHex(span[p+2]) {
			star = p
			break
		}
	}
	if star == -1 {
		return 0, false
	}
	return idx + 7 + star + 3, true
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

// findPrecedingTag looks for a `\...*HH\` block immediately abutting
// sentenceStart (i.e. raw[sentenceStart-1] == '\\'). Returns (-1, -1) if
// none is found or the block is malformed.
func findPrecedingTag(raw string, sentenceStart int) (int, int) {
	if sentenceStart == 0 || raw[sentenceStart-1] != '\\' {
		return -1, -1
	}
	end := sentenceStart - 1
	start := strings.LastIndexByte(raw[:end], '\\')
	if start == -1 {
		return -1, -1
	}
	body := raw[start+1 : end]
	star := strings.LastIndexByte(body, '*')
	if star == -1 || len(body)-star-1 != 2 {
		return -1, -1
	}
	h1, h2 := body[star+1], body[star+2]
	if !isHex(h1) || !isHex(h2) {
		return -1, -1
	}
	return start, end
}
