package console

import (
	"context"
	"io"
	"sync/atomic"

	"egos/hal"
)

// CtrlC is the rune a keyboard delivers for ctrl+c.
const CtrlC = hal.CtrlC

// TTY latches ctrl+c from the keyboard until the kernel asks for it.
type TTY struct {
	intr atomic.Bool
	echo io.Writer
}

// NewTTY returns a TTY that echoes "^C" to echo (if not nil).
func NewTTY(echo io.Writer) *TTY {
	return &TTY{echo: echo}
}

// Intr reports and clears a pending ctrl+c.
func (t *TTY) Intr() bool {
	return t.intr.Swap(false)
}

// Interrupt latches a ctrl+c.
func (t *TTY) Interrupt() {
	t.intr.Store(true)
	if t.echo != nil {
		io.WriteString(t.echo, "^C\n")
	}
}

// Pump feeds keyboard events into the TTY until ctx is done. A keyboard
// without an event channel is waited out.
func (t *TTY) Pump(ctx context.Context, kbd hal.Keyboard) error {
	var events <-chan hal.KeyEvent
	if kbd != nil {
		events = kbd.Events()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Press && ev.Rune == CtrlC {
				t.Interrupt()
			}
		}
	}
}
