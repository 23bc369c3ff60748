package console

import (
	"image/color"

	"egos/hal"

	"tinygo.org/x/drivers"
)

// fbDisplay adapts an RGB565 framebuffer to the tinyterm/tinyfont
// Displayer contract, including a vertical scroll register: drawing
// happens in display memory and row top of memory is shown first.
// Callers serialize access.
type fbDisplay struct {
	fb     hal.Framebuffer
	w, h   int
	stride int
	top    int
}

func newFBDisplay(fb hal.Framebuffer) *fbDisplay {
	d := &fbDisplay{fb: fb}
	if fb != nil && fb.Format() == hal.PixelFormatRGB565 && fb.Buffer() != nil {
		d.w, d.h, d.stride = fb.Width(), fb.Height(), fb.StrideBytes()
	}
	return d
}

// usable reports whether there is a pixel buffer to draw on.
func (d *fbDisplay) usable() bool { return d.w > 0 && d.h > 0 }

// row returns the framebuffer row showing memory row y.
func (d *fbDisplay) row(y int) int {
	r := (y - d.top) % d.h
	if r < 0 {
		r += d.h
	}
	return r
}

func (d *fbDisplay) Size() (x, y int16) {
	return int16(d.w), int16(d.h)
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.w || iy < 0 || iy >= d.h {
		return
	}
	buf := d.fb.Buffer()
	off := d.row(iy)*d.stride + ix*2
	if off+1 >= len(buf) {
		return
	}
	p := rgb565(c)
	buf[off] = byte(p)
	buf[off+1] = byte(p >> 8)
}

func (d *fbDisplay) Display() error {
	if !d.usable() {
		return nil
	}
	return d.fb.Present()
}

func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if !d.usable() {
		return nil
	}
	x0, x1 := clamp(int(x), d.w), clamp(int(x)+int(width), d.w)
	y0, y1 := clamp(int(y), d.h), clamp(int(y)+int(height), d.h)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	p := rgb565(c)
	lo, hi := byte(p), byte(p>>8)
	buf := d.fb.Buffer()
	for py := y0; py < y1; py++ {
		base := d.row(py) * d.stride
		row := buf[base+x0*2 : base+x1*2]
		for i := 0; i+1 < len(row); i += 2 {
			row[i] = lo
			row[i+1] = hi
		}
	}
	return nil
}

// SetScroll makes memory row line the first row on screen.
func (d *fbDisplay) SetScroll(line int16) {
	if !d.usable() {
		return
	}
	old := d.top
	d.top = int(line) % d.h
	if d.top < 0 {
		d.top += d.h
	}
	d.rotate(d.top - old)
}

// rotate moves framebuffer rows up by n so that what was drawn stays where
// it is in display memory.
func (d *fbDisplay) rotate(n int) {
	n %= d.h
	if n < 0 {
		n += d.h
	}
	if n == 0 {
		return
	}
	buf := d.fb.Buffer()[:d.h*d.stride]
	tmp := make([]byte, n*d.stride)
	copy(tmp, buf[:n*d.stride])
	copy(buf, buf[n*d.stride:])
	copy(buf[(d.h-n)*d.stride:], tmp)
}

func (d *fbDisplay) SetRotation(rotation drivers.Rotation) error { return nil }

func rgb565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
