//go:build !tinygo

package hal

import "time"

const tickDur = time.Millisecond

// hostTime turns wall-clock time into millisecond ticks. step is called
// once per frame (window) or per headless tick and emits every whole
// millisecond elapsed since the previous call.
type hostTime struct {
	ch  chan uint64
	seq uint64

	now  func() time.Time
	last time.Time
	acc  time.Duration
}

func newHostTime() *hostTime {
	return &hostTime{ch: make(chan uint64, 1024), now: time.Now}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

func (t *hostTime) step() {
	now := t.now()
	if t.last.IsZero() {
		t.last = now
		t.emit(1)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / tickDur)
	if ticks == 0 {
		return
	}
	t.acc %= tickDur
	t.emit(ticks)
}

// emit advances the sequence by n. Consumers only need the latest value,
// so a full channel drops ticks but never the count.
func (t *hostTime) emit(n uint64) {
	t.seq += n
	select {
	case t.ch <- t.seq:
	default:
	}
}
