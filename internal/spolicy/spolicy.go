// Package spolicy implements the deterministic `s:` TAG value selection and
// sanitization policy (spec §4.6), plus the per-s TTL touch cache.
package spolicy

import (
	"time"

	"github.com/iliyan85/aismixer/internal/ttlmap"
)

const (
	maxLen           = 15
	anonymous        = "ANONYMOUS"
	defaultCacheTTL  = 15 * time.Minute
	defaultCacheMax  = 200000
)

// Sanitize replaces any character outside [A-Za-z0-9_] with '_' and
// truncates to 15 characters. Empty input becomes "ANONYMOUS" before
// sanitization is applied.
func Sanitize(val string) string {
	if val == "" {
		val = anonymous
	}
	b := make([]byte, 0, len(val))
	for i := 0; i < len(val); i++ {
		c := val[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b = append(b, c)
		} else {
			b = append(b, '_')
		}
	}
	if len(b) > maxLen {
		b = b[:maxLen]
	}
	return string(b)
}

// IPToS normalizes an IP address by replacing '.' and ':' with '_' before
// sanitizing, so IPv4 "1.2.3.4" becomes "1_2_3_4" and IPv6 collapses every
// colon to an underscore without collapsing adjacent ones, e.g.
// "2001:db8::1" becomes "2001_db8__1".
func IPToS(ip string) string {
	if ip == "" {
		return anonymous
	}
	b := make([]byte, len(ip))
	for i := 0; i < len(ip); i++ {
		c := ip[i]
		if c == '.' || c == ':' {
			b[i] = '_'
		} else {
			b[i] = c
		}
	}
	return Sanitize(string(b))
}

// Choose implements the four-step selection priority of spec §4.6:
//  1. the global station id, if non-empty
//  2. aliasForS (secure client name / UDP input id / IP alias map hit), if
//     non-empty and not literally "ANONYMOUS"
//  3. the inbound `s:` TAG value, if present
//  4. the sanitized remote IP
//
// The winning value is always sanitized before being returned.
func Choose(globalStationID, aliasForS, incomingS, remoteIP string) string {
	if globalStationID != "" {
		return Sanitize(globalStationID)
	}
	if aliasForS != "" && aliasForS != anonymous {
		return Sanitize(aliasForS)
	}
	if incomingS != "" {
		return Sanitize(incomingS)
	}
	return IPToS(remoteIP)
}

// Cache is the per-s TTL touch cache (spec §4.6's touch_s) with an
// eviction-linked auxiliary state map (spec §9's "cyclic/shared lifetimes"
// note): on real eviction from the TTL map, any auxiliary state recorded for
// that s value is cleared.
type Cache struct {
	ttl   *ttlmap.Map
	state map[string]struct{}
}

// CacheOptions mirrors the env-var-tunable defaults of spec §6: TTL 900s
// (15 min), max 200000 entries.
type CacheOptions struct {
	TTL        time.Duration
	MaxEntries int
}

func NewCache(opts CacheOptions) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = defaultCacheTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultCacheMax
	}
	c := &Cache{state: make(map[string]struct{})}
	c.ttl = ttlmap.New(ttlmap.Options{
		TTL:        opts.TTL,
		MaxEntries: opts.MaxEntries,
		OnEvict:    c.onEvict,
	})
	return c
}

func (c *Cache) onEvict(key string) {
	delete(c.state, key)
}

// Touch records that s was just used, refreshing its TTL and ensuring it has
// an (empty) auxiliary state entry. A no-op for an empty s.
func (c *Cache) Touch(s string) {
	if s == "" {
		return
	}
	c.ttl.Touch(s)
	if _, ok := c.state[s]; !ok {
		c.state[s] = struct{}{}
	}
}

// Len reports the number of live s values currently tracked.
func (c *Cache) Len() int {
	return c.ttl.Len()
}
