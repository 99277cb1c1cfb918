// Package term paints the sign onto a terminal with tcell, drawn as a
// bordered character grid the size of the real panel.
package term

import (
	"errors"
	"strconv"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// ErrRowOutOfRange is returned when painting a row the panel does not have.
var ErrRowOutOfRange = errors.New("term: row out of range")

var (
	// LCD green-on-black, close enough to a backlit STN panel.
	lcdStyle    = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGreenYellow)
	borderStyle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	statusStyle = tcell.StyleDefault.Foreground(tcell.ColorSilver)
)

// Panel draws rows inside a border at the top-left of a tcell screen.
type Panel struct {
	mu     sync.Mutex
	screen tcell.Screen
	cols   int
	rows   int
}

// NewPanel draws an empty panel of cols x rows on screen.
func NewPanel(screen tcell.Screen, cols, rows int) *Panel {
	p := &Panel{screen: screen, cols: cols, rows: rows}
	p.drawBorder()
	screen.Show()
	return p
}

// Paint draws line on row. Every rune occupies exactly one cell, as on the
// LCD; runes the terminal would draw wide or zero-width become '?'.
func (p *Panel) Paint(row int, line string) error {
	if row < 0 || row >= p.rows {
		return errors.New("paint row " + strconv.Itoa(row) + ": " + ErrRowOutOfRange.Error())
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	x := 0
	for _, r := range line {
		if x == p.cols {
			break
		}
		if runewidth.RuneWidth(r) != 1 {
			r = '?'
		}
		p.screen.SetContent(1+x, 1+row, r, nil, lcdStyle)
		x++
	}
	for ; x < p.cols; x++ {
		p.screen.SetContent(1+x, 1+row, ' ', nil, lcdStyle)
	}
	p.screen.Show()
	return nil
}

// Status writes s on the line below the panel.
func (p *Panel) Status(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	y := p.rows + 2
	w, _ := p.screen.Size()
	x := 0
	for _, r := range s {
		if x >= w {
			break
		}
		p.screen.SetContent(x, y, r, nil, statusStyle)
		x += runewidth.RuneWidth(r)
	}
	for ; x < w; x++ {
		p.screen.SetContent(x, y, ' ', nil, statusStyle)
	}
	p.screen.Show()
}

func (p *Panel) drawBorder() {
	right, bottom := p.cols+1, p.rows+1
	for x := 1; x < right; x++ {
		p.screen.SetContent(x, 0, tcell.RuneHLine, nil, borderStyle)
		p.screen.SetContent(x, bottom, tcell.RuneHLine, nil, borderStyle)
	}
	for y := 1; y < bottom; y++ {
		p.screen.SetContent(0, y, tcell.RuneVLine, nil, borderStyle)
		p.screen.SetContent(right, y, tcell.RuneVLine, nil, borderStyle)
	}
	p.screen.SetContent(0, 0, tcell.RuneULCorner, nil, borderStyle)
	p.screen.SetContent(right, 0, tcell.RuneURCorner, nil, borderStyle)
	p.screen.SetContent(0, bottom, tcell.RuneLLCorner, nil, borderStyle)
	p.screen.SetContent(right, bottom, tcell.RuneLRCorner, nil, borderStyle)
}
