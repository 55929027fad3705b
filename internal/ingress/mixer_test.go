package ingress

import "testing"

func TestMixerPreservesPerSourceOrder(t *testing.T) {
	m := NewMixer(0)
	a := make(chan Event)
	b := make(chan Event)
	m.Attach(a)
	m.Attach(b)

	go func() {
		a <- Event{AssemblerKey: "a", RawLine: "1"}
		a <- Event{AssemblerKey: "a", RawLine: "2"}
		close(a)
	}()
	go func() {
		b <- Event{AssemblerKey: "b", RawLine: "x"}
		b <- Event{AssemblerKey: "b", RawLine: "y"}
		close(b)
	}()

	go m.Wait()

	var aSeen, bSeen []string
	for ev := range m.Out {
		if ev.AssemblerKey == "a" {
			aSeen = append(aSeen, ev.RawLine)
		} else {
			bSeen = append(bSeen, ev.RawLine)
		}
	}

	if len(aSeen) != 2 || aSeen[0] != "1" || aSeen[1] != "2" {
		t.Fatalf("source a order not preserved: %v", aSeen)
	}
	if len(bSeen) != 2 || bSeen[0] != "x" || bSeen[1] != "y" {
		t.Fatalf("source b order not preserved: %v", bSeen)
	}
}
