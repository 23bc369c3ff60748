//go:build !tinygo

package hal

import "sync"

// hostFramebuffer is written by the console and copied out by the window
// on every frame, so both sides take mu.
type hostFramebuffer struct {
	mu     sync.Mutex
	width  int
	height int
	stride int
	buf    []byte
	frames uint64
}

func newHostFramebuffer(width, height int) *hostFramebuffer {
	stride := width * 2
	return &hostFramebuffer{
		width:  width,
		height: height,
		stride: stride,
		buf:    make([]byte, stride*height),
		frames: 1,
	}
}

func (f *hostFramebuffer) Width() int          { return f.width }
func (f *hostFramebuffer) Height() int         { return f.height }
func (f *hostFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *hostFramebuffer) StrideBytes() int    { return f.stride }
func (f *hostFramebuffer) Buffer() []byte      { return f.buf }

// Lock and Unlock let the console batch pixel writes against snapshots.
func (f *hostFramebuffer) Lock()   { f.mu.Lock() }
func (f *hostFramebuffer) Unlock() { f.mu.Unlock() }

func (f *hostFramebuffer) Present() error {
	f.mu.Lock()
	f.frames++
	f.mu.Unlock()
	return nil
}

func (f *hostFramebuffer) ClearRGB(r, g, b uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fill565(f.buf, rgb565(r, g, b))
}

// snapshotRGB565 copies the buffer if it changed since seen and returns the
// new frame count.
func (f *hostFramebuffer) snapshotRGB565(dst []byte, seen uint64) (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if seen == f.frames {
		return seen, false
	}
	copy(dst, f.buf)
	return f.frames, true
}
