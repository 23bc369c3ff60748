package hal

import "sync/atomic"

// Timer is the preemption timer. It counts base ticks fed through TickTo
// and expires once a quantum has passed since the last Reset.
//
// TickTo runs on the tick pump; Reset and Expired run on the hart.
type Timer struct {
	quantum  uint64
	now      atomic.Uint64
	deadline atomic.Uint64
}

// NewTimer returns a timer with the given quantum in ticks. It starts
// expired until the first Reset.
func NewTimer(quantum uint64) *Timer {
	if quantum == 0 {
		quantum = 1
	}
	return &Timer{quantum: quantum}
}

func (t *Timer) Quantum() uint64 { return t.quantum }

// TickTo advances the clock to seq. Older sequence numbers are ignored.
func (t *Timer) TickTo(seq uint64) {
	for {
		cur := t.now.Load()
		if seq <= cur || t.now.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// Reset arms the timer one quantum from now.
func (t *Timer) Reset() {
	t.deadline.Store(t.now.Load() + t.quantum)
}

// Expired reports whether the quantum has run out.
func (t *Timer) Expired() bool {
	return t.now.Load() >= t.deadline.Load()
}
