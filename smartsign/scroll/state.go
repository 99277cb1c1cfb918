package scroll

// Phase is the scroll state of a single row.
type Phase uint8

const (
	// Scrolling rows are longer than the panel and have not yet shown
	// their whole text since the last adoption.
	Scrolling Phase = iota
	// Settled rows have been fully shown at least once.
	Settled
)

func (p Phase) String() string {
	switch p {
	case Scrolling:
		return "scrolling"
	case Settled:
		return "settled"
	default:
		return "unknown"
	}
}

// RowState tracks the scroll window of one row.
type RowState struct {
	// Offset is the index of the first visible character.
	Offset int
	// Completed is set once the row has been fully shown since the
	// renderer last adopted new text.
	Completed bool
}

// Phase reports whether the row is still scrolling.
func (s RowState) Phase() Phase {
	if s.Completed {
		return Settled
	}
	return Scrolling
}

// window writes the visible slice of text into line (len(line) == width),
// padding with spaces, then advances s by one tick.
func (s *RowState) window(text []rune, line []rune, cfg Config) {
	n := len(text)
	if n <= cfg.Width {
		copy(line, text)
		pad(line[n:])
		s.Completed = true
		return
	}

	k := copy(line, text[s.Offset:])
	pad(line[k:])

	s.Offset += cfg.Step
	if s.Offset > cfg.wrapAfter(n) {
		s.Offset = 0
		s.Completed = true
	}
}

func pad(r []rune) {
	for i := range r {
		r[i] = ' '
	}
}
