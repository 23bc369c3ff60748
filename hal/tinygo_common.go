//go:build tinygo && baremetal

package hal

import (
	"machine"
	"time"
)

type tinyGoDisplay struct {
	fb Framebuffer
}

func (d tinyGoDisplay) Framebuffer() Framebuffer { return d.fb }

type tinyGoInput struct {
	kbd Keyboard
}

func (in tinyGoInput) Keyboard() Keyboard { return in.kbd }

type tinyGoTime struct {
	ch  chan uint64
	seq uint64
}

func newTinyGoTime() *tinyGoTime {
	t := &tinyGoTime{ch: make(chan uint64, 16)}
	go func() {
		ticker := time.NewTicker(tickDur)
		defer ticker.Stop()
		for range ticker.C {
			t.seq++
			select {
			case t.ch <- t.seq:
			default:
			}
		}
	}()
	return t
}

func (t *tinyGoTime) Ticks() <-chan uint64 { return t.ch }

const tickDur = time.Millisecond

type uartLogger struct {
	uart *machine.UART
}

func (l *uartLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		l.uart.WriteByte(s[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	for i := 0; i < len(b); i++ {
		l.uart.WriteByte(b[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

// uartKeyboard polls the UART receive buffer.
type uartKeyboard struct {
	ch chan KeyEvent
}

func newUARTKeyboard(uart *machine.UART) *uartKeyboard {
	k := &uartKeyboard{ch: make(chan KeyEvent, 16)}
	go func() {
		for {
			for uart.Buffered() > 0 {
				b, err := uart.ReadByte()
				if err != nil {
					break
				}
				ev, ok := uartEvent(b)
				if !ok {
					continue
				}
				select {
				case k.ch <- ev:
				default:
				}
			}
			time.Sleep(10 * tickDur)
		}
	}()
	return k
}

func (k *uartKeyboard) Events() <-chan KeyEvent { return k.ch }
