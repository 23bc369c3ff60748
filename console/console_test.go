package console

import (
	"context"
	"errors"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"egos/hal"
)

type lineLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLog) WriteLineString(s string) { l.WriteLineBytes([]byte(s)) }
func (l *lineLog) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, string(b))
}

type testFB struct {
	w, h     int
	buf      []byte
	presents int
}

func newTestFB(w, h int) *testFB {
	return &testFB{w: w, h: h, buf: make([]byte, w*h*2)}
}

func (f *testFB) Width() int              { return f.w }
func (f *testFB) Height() int             { return f.h }
func (f *testFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int        { return f.w * 2 }
func (f *testFB) Buffer() []byte          { return f.buf }
func (f *testFB) ClearRGB(r, g, b uint8)  {}
func (f *testFB) Present() error          { f.presents++; return nil }

type testDisplay struct{ fb hal.Framebuffer }

func (d testDisplay) Framebuffer() hal.Framebuffer { return d.fb }

func (f *testFB) lit() int {
	n := 0
	for i := 0; i+1 < len(f.buf); i += 2 {
		if f.buf[i] != 0 || f.buf[i+1] != 0 {
			n++
		}
	}
	return n
}

func TestConsoleMirrorsLines(t *testing.T) {
	log := &lineLog{}
	c := New(nil, log)

	c.Write([]byte("hello, "))
	c.Write([]byte("world\r\nsecond\nthi"))
	c.Flush()

	want := []string{"hello, world", "second", "thi"}
	if strings.Join(log.lines, "|") != strings.Join(want, "|") {
		t.Fatalf("logged %q, want %q", log.lines, want)
	}
	if c.Framebuffer() != nil {
		t.Fatal("Framebuffer() without a display should be nil")
	}
}

func TestConsoleFlushesLongLine(t *testing.T) {
	log := &lineLog{}
	c := New(nil, log)

	c.Write([]byte(strings.Repeat("x", maxLine+10)))
	if len(log.lines) != 1 || len(log.lines[0]) != maxLine+10 {
		t.Fatalf("logged %d lines, want one overlong line flushed", len(log.lines))
	}
}

func TestConsoleDrawsText(t *testing.T) {
	fb := newTestFB(120, 40)
	c := New(testDisplay{fb: fb}, nil)

	before := fb.presents
	c.Write([]byte("egos"))
	if fb.lit() == 0 {
		t.Fatal("no pixels drawn")
	}
	if fb.presents <= before {
		t.Fatal("Write did not present the frame")
	}

	c.Clear()
	if n := fb.lit(); n != 0 {
		t.Fatalf("%d pixels lit after Clear", n)
	}
}

func TestFBDisplayScrollRegister(t *testing.T) {
	fb := newTestFB(4, 4)
	d := newFBDisplay(fb)
	white := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	at := func(x, row int) bool {
		off := row*fb.StrideBytes() + x*2
		return fb.buf[off] == 0xFF && fb.buf[off+1] == 0xFF
	}

	d.SetPixel(1, 3, white)
	d.SetScroll(2)
	if !at(1, 1) {
		t.Fatal("memory row 3 should show on screen row 1 after SetScroll(2)")
	}

	// Memory row 0 is now the second to last row on screen.
	d.SetPixel(2, 0, white)
	if !at(2, 2) {
		t.Fatal("memory row 0 should show on screen row 2")
	}

	d.SetScroll(0)
	if !at(1, 3) || !at(2, 0) {
		t.Fatal("SetScroll(0) did not restore the memory layout")
	}
	if fb.lit() != 2 {
		t.Fatalf("%d pixels lit, want 2", fb.lit())
	}
}

func TestFBDisplayClips(t *testing.T) {
	fb := newTestFB(4, 4)
	d := newFBDisplay(fb)
	white := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

	d.SetPixel(-1, 0, white)
	d.SetPixel(4, 0, white)
	if err := d.FillRectangle(2, 2, 10, 10, white); err != nil {
		t.Fatalf("FillRectangle: %v", err)
	}
	if n := fb.lit(); n != 4 {
		t.Fatalf("%d pixels lit, want 4", n)
	}
}

func TestTTYLatchesCtrlC(t *testing.T) {
	var echo strings.Builder
	tty := NewTTY(&echo)
	kbd := &testKeyboard{ch: make(chan hal.KeyEvent, 4)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tty.Pump(ctx, kbd) }()

	kbd.ch <- hal.KeyEvent{Press: true, Rune: 'c'}
	kbd.ch <- hal.KeyEvent{Press: true, Rune: CtrlC}

	deadline := time.After(5 * time.Second)
	for !tty.Intr() {
		select {
		case <-deadline:
			t.Fatal("ctrl+c never latched")
		case <-time.After(time.Millisecond):
		}
	}
	if tty.Intr() {
		t.Fatal("Intr() did not clear the latch")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Pump() = %v, want %v", err, context.Canceled)
	}
	if echo.String() != "^C\n" {
		t.Fatalf("echo = %q, want %q", echo.String(), "^C\n")
	}
}

type testKeyboard struct{ ch chan hal.KeyEvent }

func (k *testKeyboard) Events() <-chan hal.KeyEvent { return k.ch }
