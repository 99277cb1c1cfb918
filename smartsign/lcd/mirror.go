package lcd

import "sync"

// Row start addresses in display data RAM. Rows 2 and 3 continue rows 0
// and 1, which is why a 4-line panel is not addressed contiguously.
var rowAddr = [4]uint8{0x00, 0x40, 0x14, 0x54}

const (
	ddramLine0End = 0x28 // first DDRAM line spans 0x00..0x27
	ddramLine1    = 0x40
	ddramSize     = 0x68
)

// DDRAMAddr returns the controller address of column x on row y.
func DDRAMAddr(x, y uint8) uint8 {
	return rowAddr[y&3] + x
}

// Mirror is an in-memory HD44780 that implements Device. It keeps the
// controller's display data RAM, so text printed past the end of one row
// lands where the real controller would put it.
type Mirror struct {
	mu     sync.Mutex
	rows   uint8
	cols   uint8
	ram    [ddramSize]byte
	addr   uint8
	on     bool
	blinks int
}

// NewMirror returns a blank, switched-on mirror of the given size.
func NewMirror(size Size) *Mirror {
	m := &Mirror{rows: uint8(size.Rows), cols: uint8(size.Columns), on: true}
	m.ClearDisplay()
	return m
}

// SetCursor moves the DDRAM address to column x of row y, clamping y to the
// last row as the hd44780i2c driver does.
func (m *Mirror) SetCursor(x, y uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if y >= m.rows {
		y = m.rows - 1
	}
	m.addr = DDRAMAddr(x, y)
}

// Print writes data at the cursor, advancing the address like the
// controller's auto-increment mode.
func (m *Mirror) Print(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range data {
		m.ram[m.addr] = b
		m.addr++
		switch m.addr {
		case ddramLine0End:
			m.addr = ddramLine1
		case ddramSize:
			m.addr = 0
		}
	}
}

// ClearDisplay fills DDRAM with spaces and homes the cursor.
func (m *Mirror) ClearDisplay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.ram {
		m.ram[i] = ' '
	}
	m.addr = 0
}

// DisplayOn switches the display. Each off-to-on transition counts as a blink.
func (m *Mirror) DisplayOn(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if on && !m.on {
		m.blinks++
	}
	m.on = on
}

// Row returns the characters currently visible on row y.
func (m *Mirror) Row(y int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := DDRAMAddr(0, uint8(y))
	return string(m.ram[start : start+m.cols])
}

// Lines returns every visible row.
func (m *Mirror) Lines() []string {
	out := make([]string, m.rows)
	for y := range out {
		out[y] = m.Row(y)
	}
	return out
}

// Blinks reports how many times the display was switched back on.
func (m *Mirror) Blinks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blinks
}
