// Package ttlmap implements a generic key->expiry map with lazy and
// amortized sweeping and a hard cap on live entry count.
package ttlmap

import (
	"time"
)

// EvictFunc is invoked exactly once per real eviction of a key, whether the
// eviction happened via the amortized sweep, a lazy contains() check, or a
// hard-cap forced eviction.
type EvictFunc func(key string)

type entry struct {
	exp int64
	key string
}

// Map is a TTL-bounded set of keys. It is not safe for concurrent use; each
// Map is owned by exactly one writer, per spec.md's ownership model.
type Map struct {
	ttl          int64 // nanoseconds
	maxEntries   int
	onEvict      EvictFunc
	d            map[string]int64
	q            []entry
	qhead        int
	lastSweep    int64
	sweepEvery   int64
	ops          int
	opsPerSweep  int
	now          func() int64 // monotonic nanoseconds, overridable for tests
}

// Options configures a Map's sweep cadence and hard cap. Zero values fall
// back to the documented defaults (§6): ttl 900s, max 200000 entries, sweep
// every 1s, 2048 ops per sweep.
type Options struct {
	TTL         time.Duration
	MaxEntries  int
	OnEvict     EvictFunc
	SweepEvery  time.Duration
	OpsPerSweep int
}

func New(opts Options) *Map {
	if opts.TTL <= 0 {
		opts.TTL = 900 * time.Second
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 200000
	}
	if opts.SweepEvery <= 0 {
		opts.SweepEvery = time.Second
	}
	if opts.OpsPerSweep <= 0 {
		opts.OpsPerSweep = 2048
	}
	m := &Map{
		ttl:         int64(opts.TTL),
		maxEntries:  opts.MaxEntries,
		onEvict:     opts.OnEvict,
		d:           make(map[string]int64),
		sweepEvery:  int64(opts.SweepEvery),
		opsPerSweep: opts.OpsPerSweep,
		now:         func() int64 { return time.Now().UnixNano() },
	}
	m.lastSweep = m.now()
	return m
}

// Touch sets key's expiry to now+ttl, always moving it forward (I2). If the
// number of live keys then exceeds the cap, the oldest live keys are forced
// out regardless of expiry until size <= cap (I3).
func (m *Map) Touch(key string) {
	n := m.now()
	exp := n + m.ttl
	m.d[key] = exp
	m.q = append(m.q, entry{exp: exp, key: key})
	m.maybeSweep(n)
	if len(m.d) > m.maxEntries {
		m.evictOldest(n, true)
	}
}

// Contains reports whether key has a non-expired entry. A stale entry is
// lazily evicted as a side effect.
func (m *Map) Contains(key string) bool {
	n := m.now()
	exp, ok := m.d[key]
	if !ok {
		m.maybeSweep(n)
		return false
	}
	if exp <= n {
		m.evictIfExpired(key, n)
		return false
	}
	m.maybeSweep(n)
	return true
}

// Len returns the number of live keys.
func (m *Map) Len() int {
	return len(m.d)
}

func (m *Map) maybeSweep(now int64) {
	m.ops++
	if m.ops >= m.opsPerSweep || (now-m.lastSweep) >= m.sweepEvery {
		m.sweep(now)
		m.ops = 0
		m.lastSweep = now
	}
}

// sweep pops from the front of the FIFO while the head's expiry has passed,
// removing the map entry only when it still matches the popped expiry
// (tombstone semantics: a later Touch may have appended a fresher record for
// the same key, and the stale record must not clobber the live one).
func (m *Map) sweep(now int64) {
	for m.qhead < len(m.q) && m.q[m.qhead].exp <= now {
		e := m.q[m.qhead]
		m.qhead++
		if cur, ok := m.d[e.key]; ok && cur <= now && cur == e.exp {
			delete(m.d, e.key)
			if m.onEvict != nil {
				m.onEvict(e.key)
			}
		}
	}
	m.compact()
}

func (m *Map) evictIfExpired(key string, now int64) {
	if exp, ok := m.d[key]; ok && exp <= now {
		delete(m.d, key)
		if m.onEvict != nil {
			m.onEvict(key)
		}
	}
}

func (m *Map) evictOldest(now int64, hard bool) {
	for len(m.d) > m.maxEntries && m.qhead < len(m.q) {
		e := m.q[m.qhead]
		m.qhead++
		cur, ok := m.d[e.key]
		if !ok || cur != e.exp {
			continue // tombstone: a later Touch holds the live record
		}
		if hard || cur <= now {
			delete(m.d, e.key)
			if m.onEvict != nil {
				m.onEvict(e.key)
			}
		}
	}
	m.compact()
}

// compact drops the consumed prefix of the FIFO once it grows large enough
// to matter, so a long-lived Map doesn't retain an ever-growing slice.
func (m *Map) compact() {
	if m.qhead > 4096 && m.qhead*2 > len(m.q) {
		m.q = append([]entry(nil), m.q[m.qhead:]...)
		m.qhead = 0
	}
}
