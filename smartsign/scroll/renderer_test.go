package scroll

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// recorder is a Painter that keeps every painted line per row.
type recorder struct {
	mu    sync.Mutex
	lines map[int][]string
	fail  map[int]bool
}

func newRecorder() *recorder {
	return &recorder{lines: map[int][]string{}, fail: map[int]bool{}}
}

func (p *recorder) Paint(row int, line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[row] {
		return errors.New("i2c: nack")
	}
	p.lines[row] = append(p.lines[row], line)
	return nil
}

func (p *recorder) last(row int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.lines[row]
	if len(l) == 0 {
		return ""
	}
	return l[len(l)-1]
}

// snapshots is a Snapshotter returning a settable value.
type snapshots struct {
	mu    sync.Mutex
	rows  []string
	reads int
}

func (s *snapshots) ReadSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	out := make([]string, len(s.rows))
	copy(out, s.rows)
	return out
}

func (s *snapshots) set(rows ...string) {
	s.mu.Lock()
	s.rows = rows
	s.mu.Unlock()
}

// adopted returns a renderer that has already taken rows as its working text.
func adopted(t *testing.T, cfg Config, p Painter, rows ...string) (*Renderer, *snapshots) {
	t.Helper()
	src := &snapshots{}
	src.set(rows...)
	r, err := New(cfg, p, src, nil)
	require.NoError(t, err)
	require.True(t, r.Tick(), "empty rows should settle on the first pass")
	want := make([]string, cfg.Rows)
	copy(want, rows)
	require.Equal(t, want, r.Text())
	return r, src
}

const reminder = "Reminder: Team meeting at 3pm" // 29 characters

// ===========================================================================
// Config
// ===========================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 20, cfg.Width)
	require.Equal(t, 4, cfg.Rows)
	require.Equal(t, 4, cfg.Step)
	require.Equal(t, 4, cfg.TailMargin)
	require.Equal(t, time.Second, cfg.Tick)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"zero rows", func(c *Config) { c.Rows = 0 }},
		{"zero step", func(c *Config) { c.Step = 0 }},
		{"negative margin", func(c *Config) { c.TailMargin = -1 }},
		{"margin equals width", func(c *Config) { c.TailMargin = c.Width }},
		{"zero tick", func(c *Config) { c.Tick = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)

			_, err = New(cfg, newRecorder(), &snapshots{}, nil)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

// ===========================================================================
// Short rows
// ===========================================================================

func TestPass_ShortRowPaddedAndSettled(t *testing.T) {
	p := newRecorder()
	r, _ := adopted(t, DefaultConfig(), p, "Hello", "", "exactly twenty chars", "x")

	r.Pass()

	require.Equal(t, "Hello               ", p.last(0))
	require.Equal(t, strings.Repeat(" ", 20), p.last(1))
	require.Equal(t, "exactly twenty chars", p.last(2))
	require.Equal(t, "x                   ", p.last(3))
	for i, s := range r.States() {
		require.True(t, s.Completed, "row %d", i)
		require.Equal(t, 0, s.Offset, "row %d", i)
		require.Equal(t, Settled, s.Phase())
	}
}

func TestTick_AllShortRowsAdoptAfterOnePass(t *testing.T) {
	p := newRecorder()
	r, src := adopted(t, DefaultConfig(), p, "a", "b", "c", "d")

	src.set("A", "B", "C", "D")
	require.True(t, r.Tick())
	require.Equal(t, []string{"A", "B", "C", "D"}, r.Text())
	require.Equal(t, "a                   ", p.last(0), "old text painted before adoption")
}

// ===========================================================================
// Long rows
// ===========================================================================

func TestPass_ReminderScrollSequence(t *testing.T) {
	text := reminder + "!" // 30 characters
	require.Equal(t, 30, utf8.RuneCountInString(text))

	p := newRecorder()
	r, _ := adopted(t, DefaultConfig(), p, text, "", "", "")

	wantOffsets := []int{4, 8, 12, 0}
	wantWindows := []string{
		text[0:20],
		text[4:24],
		text[8:28],
		text[12:30] + "  ",
	}
	for i := range wantOffsets {
		require.False(t, r.States()[0].Completed, "step %d: completed too early", i)
		r.Pass()
		require.Equal(t, wantWindows[i], p.last(0), "step %d window", i)
		require.Equal(t, wantOffsets[i], r.States()[0].Offset, "step %d offset", i)
	}
	require.True(t, r.States()[0].Completed)
	require.Equal(t, Settled, r.States()[0].Phase())
}

func TestPass_WrapUsesTailMargin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TailMargin = 8 // wrap once offset > len-12

	text := strings.Repeat("0123456789", 3) // 30 characters, wrap after 18
	r, _ := adopted(t, cfg, newRecorder(), text)

	var offsets []int
	for !r.States()[0].Completed {
		r.Pass()
		offsets = append(offsets, r.States()[0].Offset)
	}
	require.Equal(t, []int{4, 8, 12, 16, 0}, offsets)
}

func TestPass_CountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("é", 21)
	p := newRecorder()
	r, _ := adopted(t, DefaultConfig(), p, text)

	r.Pass()
	require.Equal(t, strings.Repeat("é", 20), p.last(0))
	require.Equal(t, Scrolling, r.States()[0].Phase())
}

func TestPass_ScrollingRowProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		cfg.Width = rapid.IntRange(1, 40).Draw(rt, "width")
		cfg.Step = rapid.IntRange(1, 8).Draw(rt, "step")
		cfg.TailMargin = rapid.IntRange(0, cfg.Width-1).Draw(rt, "margin")
		n := rapid.IntRange(cfg.Width+1, cfg.Width+100).Draw(rt, "len")
		text := strings.Repeat("x", n)

		src := &snapshots{}
		src.set(text, "", "", "")
		var painted []string
		r, err := New(cfg, PainterFunc(func(row int, line string) error {
			if row == 0 {
				painted = append(painted, line)
			}
			return nil
		}), src, nil)
		require.NoError(rt, err)
		r.Tick()
		painted = painted[:0]

		prev := 0
		for steps := 0; ; steps++ {
			require.Less(rt, steps, n+1, "row never wrapped")
			r.Pass()
			require.Equal(rt, cfg.Width, utf8.RuneCountInString(painted[len(painted)-1]))

			s := r.States()[0]
			require.Less(rt, s.Offset, n, "offset must stay inside the text")
			if s.Completed {
				require.Equal(rt, 0, s.Offset)
				require.Greater(rt, prev+cfg.Step, n-(cfg.Width-cfg.TailMargin))
				break
			}
			require.Equal(rt, prev+cfg.Step, s.Offset)
			prev = s.Offset
		}
	})
}

// ===========================================================================
// Adoption
// ===========================================================================

func TestTryAdopt_BlockedWhileAnyRowScrolls(t *testing.T) {
	p := newRecorder()
	r, src := adopted(t, DefaultConfig(), p, reminder, "short", "", "")

	src.set("A", "B", "C", "D")
	r.Pass()
	require.False(t, r.States()[0].Completed)
	require.True(t, r.States()[1].Completed)

	require.False(t, r.TryAdopt())
	require.Equal(t, []string{reminder, "short", "", ""}, r.Text())
	require.Equal(t, 4, r.States()[0].Offset, "offset untouched by a refused adoption")
}

func TestTick_PublishMidScrollWaitsForWrap(t *testing.T) {
	p := newRecorder()
	r, src := adopted(t, DefaultConfig(), p, reminder+"!", "", "", "")

	require.False(t, r.Tick())
	src.set("A", "B", "C", "D")

	require.False(t, r.Tick())
	require.False(t, r.Tick())
	require.Equal(t, reminder+"!", r.Text()[0])

	require.True(t, r.Tick(), "row 0 wraps on the fourth pass")
	require.Equal(t, []string{"A", "B", "C", "D"}, r.Text())
}

func TestTryAdopt_ResetsEveryRow(t *testing.T) {
	r, src := adopted(t, DefaultConfig(), newRecorder(), "a", "b", "c", "d")
	r.Pass()
	src.set(reminder, reminder, "", "")

	require.True(t, r.TryAdopt())
	for i, s := range r.States() {
		require.Equal(t, RowState{}, s, "row %d", i)
		require.Equal(t, Scrolling, s.Phase())
	}
}

func TestTryAdopt_ShortSnapshotPadsRows(t *testing.T) {
	r, src := adopted(t, DefaultConfig(), newRecorder(), "a", "b", "c", "d")
	r.Pass()
	src.set("only")

	require.True(t, r.TryAdopt())
	require.Equal(t, []string{"only", "", "", ""}, r.Text())
}

func TestTryAdopt_NeverPartial(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rows := make([]string, 4)
		for i := range rows {
			rows[i] = strings.Repeat("y", rapid.IntRange(0, 60).Draw(rt, "len"))
		}
		src := &snapshots{}
		src.set(rows...)
		r, err := New(DefaultConfig(), PainterFunc(func(int, string) error { return nil }), src, nil)
		require.NoError(rt, err)
		r.Tick()
		src.set("A", "B", "C", "D")

		passes := rapid.IntRange(0, 20).Draw(rt, "passes")
		for i := 0; i < passes; i++ {
			before := r.Text()
			r.Pass()
			ready := r.Ready()
			took := r.TryAdopt()
			require.Equal(rt, ready, took)
			if !took {
				require.Equal(rt, before, r.Text())
			} else {
				require.Equal(rt, []string{"A", "B", "C", "D"}, r.Text())
			}
		}
	})
}

// ===========================================================================
// Failure handling
// ===========================================================================

func TestPass_PaintFailureDoesNotStopOtherRows(t *testing.T) {
	p := newRecorder()
	p.fail[1] = true
	r, _ := adopted(t, DefaultConfig(), p, reminder, "b", "c", "d")

	before := len(p.lines[0])
	require.NotPanics(t, func() { r.Pass() })
	require.Len(t, p.lines[0], before+1)
	require.Equal(t, "c                   ", p.last(2))
	require.Equal(t, 4, r.States()[0].Offset)
	require.True(t, r.States()[1].Completed, "state advances even when the paint failed")
}

// ===========================================================================
// Run loop
// ===========================================================================

func TestRun_AdoptsPublishedTextAndStops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tick = 5 * time.Millisecond
	p := newRecorder()
	src := &snapshots{}
	src.set("hello", "", "", "")

	r, err := New(cfg, p, src, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return p.last(0) == "hello               "
	}, time.Second, cfg.Tick)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
