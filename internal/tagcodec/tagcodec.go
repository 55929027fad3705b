// Package tagcodec parses and emits NMEA TAG blocks: the
// `\k1:v1,k2:v2,...*HH\` decoration that precedes a tagged NMEA sentence
// (spec §3 "TagBlock", §4.3).
package tagcodec

import (
	"fmt"
	"strings"
)

// Block is a parsed TAG block. Pairs preserves insertion order so that
// emission round-trips deterministically; Get is a convenience lookup over
// the same data.
type Block struct {
	Pairs []Pair
}

// Pair is a single key:value entry recovered from a TAG body.
type Pair struct {
	Key, Value string
}

// Get returns the value for key and whether it was present.
func (b Block) Get(key string) (string, bool) {
	for _, p := range b.Pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Checksum computes the XOR of body's bytes, formatted as two uppercase hex
// digits (spec §4.3).
func Checksum(body string) string {
	var c byte
	for i := 0; i < len(body); i++ {
		c ^= body[i]
	}
	return fmt.Sprintf("%02X", c)
}

// Emit joins pairs with ',', computes the checksum, and wraps the result as
// `\body*HH\`.
func Emit(pairs []Pair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.Key + ":" + p.Value
	}
	body := strings.Join(parts, ",")
	return "\\" + body + "*" + Checksum(body) + "\\"
}

// ParseBeforeIndex locates the TAG block, if any, that immediately precedes
// byte offset idx in raw (idx typically points at the '!' of a sentence) and
// parses its body into key:value pairs. A block whose body does not
// terminate in `*HH` before the closing backslash is treated as absent, per
// spec §4.3 and the open question in §9 (the checksum itself is not
// verified, only its syntactic presence).
func ParseBeforeIndex(raw string, idx int) Block {
	if idx <= 0 || idx > len(raw) || raw[idx-1] != '\\' {
		return Block{}
	}
	end := idx - 1 // position of the closing backslash
	start := strings.LastIndexByte(raw[:end], '\\')
	if start == -1 {
		return Block{}
	}
	body := raw[start+1 : end]
	body, ok := stripChecksumSuffix(body)
	if !ok {
		return Block{}
	}
	return Block{Pairs: parsePairs(body)}
}

// ParseTrailing parses the last TAG block appearing anywhere in raw,
// regardless of what follows it, for a caller that has only the whole line
// and no sentence-start index. The forward pipeline does not call it; it
// uses ParseBeforeIndex.
func ParseTrailing(raw string) Block {
	end := strings.LastIndexByte(raw, '\\')
	if end <= 0 {
		return Block{}
	}
	start := strings.LastIndexByte(raw[:end], '\\')
	if start == -1 {
		return Block{}
	}
	body := raw[start+1 : end]
	body, ok := stripChecksumSuffix(body)
	if !ok {
		return Block{}
	}
	return Block{Pairs: parsePairs(body)}
}

// stripChecksumSuffix requires body to end in `*HH` (two hex digits) and
// returns the body with that suffix removed. Per spec §9's open question,
// the digits are only checked for syntactic well-formedness, not verified
// against the actual XOR of the preceding bytes — the original Python never
// validated it either, and this repo preserves that behavior deliberately
// (see DESIGN.md).
func stripChecksumSuffix(body string) (string, bool) {
	star := strings.LastIndexByte(body, '*')
	if star == -1 || len(body)-star-1 != 2 {
		return "", false
	}
	h1, h2 := body[star+1], body[star+2]
	if !isHex(h1) || !isHex(h2) {
		return "", false
	}
	return body[:star], true
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func parsePairs(body string) []Pair {
	if body == "" {
		return nil
	}
	fields := strings.Split(body, ",")
	pairs := make([]Pair, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		k, v, ok := strings.Cut(f, ":")
		if !ok {
			continue
		}
		pairs = append(pairs, Pair{Key: k, Value: v})
	}
	return pairs
}
