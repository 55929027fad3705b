// Package dedup implements the TTL-based sentence deduplicator (spec §4.2).
package dedup

import (
	"time"

	"github.com/iliyan85/aismixer/internal/ttlmap"
)

const defaultTTL = 30 * time.Second

// Deduplicator tracks recently seen sentence strings. It is single-writer,
// owned exclusively by the forward pipeline (spec §5).
type Deduplicator struct {
	m *ttlmap.Map
}

func New() *Deduplicator {
	return &Deduplicator{m: ttlmap.New(ttlmap.Options{TTL: defaultTTL, MaxEntries: 200000})}
}

// NewWithTTL allows overriding the default 30s window.
func NewWithTTL(ttl time.Duration) *Deduplicator {
	return &Deduplicator{m: ttlmap.New(ttlmap.Options{TTL: ttl, MaxEntries: 200000})}
}

// IsUnique reports whether sentence has not been seen within the TTL window.
// First-seen wins: if the entry is fresh, its timestamp is NOT refreshed by
// this call, so a duplicate arriving just before expiry does not extend the
// window.
func (d *Deduplicator) IsUnique(sentence string) bool {
	if d.m.Contains(sentence) {
		return false
	}
	d.m.Touch(sentence)
	return true
}
