package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"egos/console"
	"egos/hal"
	"egos/kernel"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	haltFontHeight = 10
	haltFontOffset = 6
)

var (
	haltFG = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	haltBG = color.RGBA{R: 0x80, A: 0xFF}
)

// haltLines is the report shown when the system stops for good.
func haltLines(info kernel.HaltInfo) []string {
	lines := []string{
		"egos halted",
		fmt.Sprintf("pid: %d", info.PID),
	}
	if info.Err != nil {
		lines = append(lines, fmt.Sprintf("error: %v", info.Err))
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// showHalt logs the report and paints it over the console.
func showHalt(con *console.Console, l hal.Logger, info kernel.HaltInfo) {
	lines := haltLines(info)
	if l != nil {
		for _, line := range lines {
			l.WriteLineString(line)
		}
	}

	fb := con.Framebuffer()
	if fb == nil {
		return
	}
	font := &proggy.TinySZ8pt7b
	_, outbox := tinyfont.LineWidth(font, "0")
	fontWidth := int16(outbox)
	if fontWidth <= 0 {
		return
	}

	d := haltDisplay{fb: fb}
	cols := int16(fb.Width()) / fontWidth
	if cols <= 0 {
		cols = 1
	}
	maxH := int16(fb.Height())

	con.Draw(func() {
		d.fill(haltBG)
		y := int16(0)
		for _, line := range lines {
			for len(line) > 0 {
				if y+haltFontHeight > maxH {
					return
				}
				chunk, rest := takeRunes(line, cols)
				x := int16(0)
				for _, r := range chunk {
					tinyfont.DrawChar(d, font, x, y+haltFontOffset, r, haltFG)
					x += fontWidth
				}
				y += haltFontHeight
				line = strings.TrimLeft(rest, " ")
			}
		}
	})
}

// haltDisplay draws straight into an RGB565 framebuffer. Callers hold the
// framebuffer through console.Draw.
type haltDisplay struct {
	fb hal.Framebuffer
}

func (d haltDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d haltDisplay) SetPixel(x, y int16, c color.RGBA) {
	d.put(int(x), int(y), rgb565(c))
}

func (d haltDisplay) Display() error { return nil }

func (d haltDisplay) fill(c color.RGBA) {
	p := rgb565(c)
	for y := 0; y < d.fb.Height(); y++ {
		for x := 0; x < d.fb.Width(); x++ {
			d.put(x, y, p)
		}
	}
}

func (d haltDisplay) put(x, y int, pixel uint16) {
	if d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	if x < 0 || x >= d.fb.Width() || y < 0 || y >= d.fb.Height() {
		return
	}
	buf := d.fb.Buffer()
	off := y*d.fb.StrideBytes() + x*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func rgb565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	var i int
	for count := int16(0); i < len(s) && count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i], s[i:]
}
