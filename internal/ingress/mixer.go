package ingress

import "sync"

// Mixer fans in every listener's per-source event channel into one output
// channel. Ordering between sources is not guaranteed; each source's
// relative order is preserved because each source has exactly one reader
// goroutine copying from its own channel into Out, in the order it receives
// (spec §4.9, §5).
type Mixer struct {
	Out chan Event
	wg  sync.WaitGroup
}

// NewMixer creates a mixer with an output channel of the given buffer size.
// A size of 0 yields an unbuffered channel, so each source's copy goroutine
// blocks until the consumer receives; spec §5 notes
// the original uses unbounded queues as an acknowledged risk, so callers
// wanting headroom should size this generously rather than rely on
// backpressure semantics here.
func NewMixer(bufSize int) *Mixer {
	return &Mixer{Out: make(chan Event, bufSize)}
}

// Attach starts a goroutine that copies every event from in into Out, until
// in is closed. Call Attach once per listener queue before the listeners
// start producing.
func (m *Mixer) Attach(in <-chan Event) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for ev := range in {
			m.Out <- ev
		}
	}()
}

// Wait blocks until every attached source channel has been closed and
// drained, then closes Out. Callers should range over Out concurrently with
// (or after spawning) a goroutine running Wait, otherwise Wait can deadlock
// against an unbuffered Out.
func (m *Mixer) Wait() {
	m.wg.Wait()
	close(m.Out)
}
