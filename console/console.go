// Package console is the system terminal: process output drawn with
// tinyterm on the framebuffer and mirrored line by line to the logger,
// plus the ctrl+c probe the kernel consults on every trap.
package console

import (
	"bytes"
	"image/color"
	"sync"

	"egos/hal"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

const maxLine = 256

var bg = color.RGBA{A: 0xFF}

// Console is safe for concurrent use.
type Console struct {
	mu   sync.Mutex
	log  hal.Logger
	fb   hal.Framebuffer
	lock hal.Locker
	d    *fbDisplay
	term *tinyterm.Terminal
	line []byte
}

// New returns a console drawing on disp (if it has a usable framebuffer)
// and logging to log (if not nil).
func New(disp hal.Display, log hal.Logger) *Console {
	c := &Console{log: log}
	if disp != nil {
		c.fb = disp.Framebuffer()
	}
	c.d = newFBDisplay(c.fb)
	if l, ok := c.fb.(hal.Locker); ok {
		c.lock = l
	}
	c.reset()
	return c
}

// Write prints p. Completed lines also go to the logger.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.term != nil {
		c.draw(func() { c.term.Write(p) })
	}

	rest := p
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			c.line = append(c.line, rest...)
			if len(c.line) >= maxLine {
				c.flushLocked()
			}
			break
		}
		c.line = append(c.line, bytes.TrimSuffix(rest[:i], []byte{'\r'})...)
		c.flushLocked()
		rest = rest[i+1:]
	}
	return len(p), nil
}

// Flush logs a pending partial line.
func (c *Console) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.line) > 0 {
		c.flushLocked()
	}
}

// Clear blanks the screen and homes the cursor.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// Framebuffer returns the framebuffer the console draws on, or nil. Any
// drawing on it must go through Draw.
func (c *Console) Framebuffer() hal.Framebuffer {
	if !c.d.usable() {
		return nil
	}
	return c.fb
}

// Draw runs fn with exclusive access to the framebuffer and presents the
// result.
func (c *Console) Draw(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draw(fn)
}

func (c *Console) draw(fn func()) {
	if c.lock != nil {
		c.lock.Lock()
	}
	fn()
	if c.lock != nil {
		c.lock.Unlock()
	}
	_ = c.d.Display()
}

func (c *Console) flushLocked() {
	if c.log != nil {
		c.log.WriteLineBytes(c.line)
	}
	c.line = c.line[:0]
}

func (c *Console) reset() {
	if !c.d.usable() {
		c.term = nil
		return
	}
	c.term = tinyterm.NewTerminal(c.d)
	c.draw(func() {
		c.term.Configure(&tinyterm.Config{
			Font:       &proggy.TinySZ8pt7b,
			FontHeight: 10,
			FontOffset: 6,
		})
		_ = c.d.FillRectangle(0, 0, int16(c.d.w), int16(c.d.h), bg)
	})
}
