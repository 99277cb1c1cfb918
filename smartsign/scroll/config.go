package scroll

import (
	"errors"
	"strconv"
	"time"
)

// ErrInvalidConfig is wrapped by every error returned from Config.Validate.
var ErrInvalidConfig = errors.New("scroll: invalid config")

// Config describes the panel geometry and the scroll timing.
type Config struct {
	// Width is the number of character cells per row.
	Width int
	// Rows is the number of rows on the panel.
	Rows int
	// Step is how many characters a long row advances per tick.
	Step int
	// TailMargin sets the wrap point. A long row wraps once its offset
	// passes len-(Width-TailMargin).
	TailMargin int
	// Tick is the period of one render pass.
	Tick time.Duration
}

// DefaultConfig returns the settings for a 20x4 HD44780 panel.
func DefaultConfig() Config {
	return Config{
		Width:      20,
		Rows:       4,
		Step:       4,
		TailMargin: 4,
		Tick:       time.Second,
	}
}

// Validate reports whether c can drive a Renderer.
func (c Config) Validate() error {
	switch {
	case c.Width < 1:
		return invalid("width must be positive, got " + strconv.Itoa(c.Width))
	case c.Rows < 1:
		return invalid("rows must be positive, got " + strconv.Itoa(c.Rows))
	case c.Step < 1:
		return invalid("step must be positive, got " + strconv.Itoa(c.Step))
	case c.TailMargin < 0 || c.TailMargin >= c.Width:
		return invalid("tail margin must be in [0, width), got " + strconv.Itoa(c.TailMargin))
	case c.Tick <= 0:
		return invalid("tick must be positive, got " + c.Tick.String())
	}
	return nil
}

// wrapAfter returns the largest offset a row of n characters may hold
// before it wraps.
func (c Config) wrapAfter(n int) int {
	return n - (c.Width - c.TailMargin)
}

func invalid(msg string) error {
	return &configError{msg: msg}
}

type configError struct{ msg string }

func (e *configError) Error() string { return ErrInvalidConfig.Error() + ": " + e.msg }

func (e *configError) Unwrap() error { return ErrInvalidConfig }
