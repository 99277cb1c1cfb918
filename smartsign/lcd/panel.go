// Package lcd drives an HD44780 character LCD as a scroll.Painter.
//
// Example usage:
//
//	panel, err := lcd.NewI2C(machine.I2C0, lcd.DefaultAddrs, lcd.Size20x4)
//	if err != nil {
//		// handle
//	}
//	panel.Message("Connecting...")
//	renderer, _ := scroll.New(scroll.DefaultConfig(), panel, buf, logger)
package lcd

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Device is the subset of hd44780i2c.Device the panel needs.
type Device interface {
	SetCursor(x, y uint8)
	Print(data []byte)
	ClearDisplay()
	DisplayOn(on bool)
}

// Size is the character geometry of a panel.
type Size struct {
	Columns int
	Rows    int
}

var (
	Size16x2 = Size{Columns: 16, Rows: 2}
	Size20x4 = Size{Columns: 20, Rows: 4}
)

// ErrRowOutOfRange is returned when painting a row the panel does not have.
var ErrRowOutOfRange = errors.New("lcd: row out of range")

// Panel paints whole rows onto a Device.
type Panel struct {
	dev  Device
	size Size
	buf  []byte // preallocated so painting does not churn the heap
}

// NewPanel wraps an already configured device.
func NewPanel(dev Device, size Size) *Panel {
	return &Panel{
		dev:  dev,
		size: size,
		buf:  make([]byte, 0, size.Columns),
	}
}

// Size returns the panel geometry.
func (p *Panel) Size() Size { return p.size }

// Paint writes line at the start of row, truncated or padded to the panel
// width. Characters outside the controller's ASCII range print as '?'.
func (p *Panel) Paint(row int, line string) error {
	if row < 0 || row >= p.size.Rows {
		return errors.New("paint row " + strconv.Itoa(row) + ": " + ErrRowOutOfRange.Error())
	}
	p.buf = appendCells(p.buf[:0], line, p.size.Columns)
	for len(p.buf) < p.size.Columns {
		p.buf = append(p.buf, ' ')
	}
	p.dev.SetCursor(0, uint8(row))
	p.dev.Print(p.buf)
	return nil
}

// Clear blanks the whole display.
func (p *Panel) Clear() {
	p.dev.ClearDisplay()
}

// Message clears the display and prints text, one row per '\n'.
// Rows beyond the panel height are dropped and long rows are truncated.
func (p *Panel) Message(text string) {
	p.dev.ClearDisplay()
	for row := 0; row < p.size.Rows; row++ {
		line, rest, found := strings.Cut(text, "\n")
		p.buf = appendCells(p.buf[:0], line, p.size.Columns)
		p.dev.SetCursor(0, uint8(row))
		p.dev.Print(p.buf)
		if !found {
			return
		}
		text = rest
	}
}

// Flash blinks the display count times, each blink lasting period.
// It blocks for count*period.
func (p *Panel) Flash(count int, period time.Duration) {
	half := period / 2
	for i := 0; i < count; i++ {
		p.dev.DisplayOn(false)
		time.Sleep(half)
		p.dev.DisplayOn(true)
		time.Sleep(period - half)
	}
}

// appendCells appends at most n display cells of s to dst.
func appendCells(dst []byte, s string, n int) []byte {
	cells := 0
	for _, r := range s {
		if cells == n {
			break
		}
		dst = append(dst, cell(r))
		cells++
	}
	return dst
}

// cell maps a rune to a byte the HD44780 A00 ROM prints sensibly.
func cell(r rune) byte {
	switch {
	case r == '\t':
		return ' '
	case r < 0x20 || r > 0x7d:
		// 0x7e and 0x7f are arrows in the A00 ROM.
		return '?'
	}
	return byte(r)
}
