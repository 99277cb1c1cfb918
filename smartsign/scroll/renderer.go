// Package scroll paints rows of text onto a fixed-width character panel,
// scrolling rows that do not fit and swapping in new text only after every
// row has been shown in full.
//
// A Renderer keeps its own working copy of the text. It reads a fresh
// snapshot from its Snapshotter only when every row is Settled, so the
// whole panel changes at once and no row restarts mid-scroll.
package scroll

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Painter draws one complete row. line always holds exactly Config.Width
// characters. Implementations hide controller-specific row addressing.
type Painter interface {
	Paint(row int, line string) error
}

// PainterFunc adapts a function to the Painter interface.
type PainterFunc func(row int, line string) error

// Paint calls f(row, line).
func (f PainterFunc) Paint(row int, line string) error { return f(row, line) }

// Snapshotter supplies the latest published rows.
type Snapshotter interface {
	ReadSnapshot() []string
}

// Renderer owns the working text and per-row scroll state. It is not safe
// for concurrent use; once Run is called, Run owns it.
type Renderer struct {
	cfg     Config
	painter Painter
	src     Snapshotter
	logger  *slog.Logger

	text   [][]rune
	states []RowState
	line   []rune // reused for every row to keep the heap quiet
	passes uint64
}

// New returns a Renderer with empty working text. The first pass settles
// every row, so the first adoption happens right after it.
func New(cfg Config, painter Painter, src Snapshotter, logger *slog.Logger) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Renderer{
		cfg:     cfg,
		painter: painter,
		src:     src,
		logger:  logger,
		text:    make([][]rune, cfg.Rows),
		states:  make([]RowState, cfg.Rows),
		line:    make([]rune, cfg.Width),
	}, nil
}

// Config returns the renderer's configuration.
func (r *Renderer) Config() Config { return r.cfg }

// Pass renders every row once and advances its scroll window.
// Paint failures are logged and do not affect scroll state.
func (r *Renderer) Pass() {
	for i := range r.states {
		r.states[i].window(r.text[i], r.line, r.cfg)
		if err := r.painter.Paint(i, string(r.line)); err != nil {
			r.logger.Warn("render:paint-failed", slog.Int("row", i), slog.String("err", err.Error()))
		}
	}
	r.passes++
}

// Ready reports whether every row is Settled.
func (r *Renderer) Ready() bool {
	for _, s := range r.states {
		if !s.Completed {
			return false
		}
	}
	return true
}

// TryAdopt replaces the working text with the latest snapshot if every
// row is Settled, resetting all scroll state. It reports whether it did.
func (r *Renderer) TryAdopt() bool {
	if !r.Ready() {
		return false
	}
	r.adopt(r.src.ReadSnapshot())
	return true
}

func (r *Renderer) adopt(snap []string) {
	for i := range r.text {
		var row string
		if i < len(snap) {
			row = snap[i]
		}
		r.text[i] = []rune(row)
		r.states[i] = RowState{}
	}
	r.logger.Debug("render:adopted", slog.Uint64("pass", r.passes))
}

// Tick runs one Pass followed by TryAdopt, without waiting.
func (r *Renderer) Tick() bool {
	r.Pass()
	return r.TryAdopt()
}

// Run renders on a fixed period until ctx is done. Each iteration paints
// every row, sleeps out the rest of the tick, then tries to adopt new text.
func (r *Renderer) Run(ctx context.Context) error {
	timer := time.NewTimer(r.cfg.Tick)
	defer timer.Stop()

	for {
		start := time.Now()
		r.Pass()

		wait := r.cfg.Tick - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		r.TryAdopt()
	}
}

// States returns a copy of the per-row scroll state.
func (r *Renderer) States() []RowState {
	out := make([]RowState, len(r.states))
	copy(out, r.states)
	return out
}

// Text returns a copy of the working text.
func (r *Renderer) Text() []string {
	out := make([]string, len(r.text))
	for i, t := range r.text {
		out[i] = string(t)
	}
	return out
}
